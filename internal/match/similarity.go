// Package match scores string similarity and picks the best candidate for a
// human-entered name. Scores are bounded to [0,1]; "no match" is a normal
// outcome, never an error.
package match

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/vanline-group/recon-cli/internal/normalize"
)

// Similarity returns a bounded similarity score between two strings.
// Both inputs are canonicalized first. Identical normalized strings
// short-circuit to exactly 1.0 so equal names never pick up floating noise;
// an empty side scores 0.0. Otherwise the score is the Ratcliff/Obershelp
// ratio 2*M/T over the matching character blocks, which tolerates minor
// typos, reordered tokens, and punctuation drift. Symmetric in its
// arguments.
func Similarity(a, b string) float64 {
	na := normalize.Name(a)
	nb := normalize.Name(b)

	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	return ratio(na, nb)
}

// ratio computes the SequenceMatcher character ratio over runes.
func ratio(a, b string) float64 {
	sm := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return sm.Ratio()
}
