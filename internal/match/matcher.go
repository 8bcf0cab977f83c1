package match

import (
	"github.com/vanline-group/recon-cli/internal/model"
	"github.com/vanline-group/recon-cli/internal/normalize"
)

// DefaultThreshold is the minimum similarity score for accepting a fuzzy
// name match.
const DefaultThreshold = 0.75

// highTierCutoff separates high-confidence fuzzy matches from medium ones.
const highTierCutoff = 0.9

// FindBestMatch returns the candidate whose name best matches name, along
// with true, when the best score clears threshold. Exact normalized
// equality returns immediately with tier exact and score 1.0. On ties the
// first-seen candidate wins; candidate order is the caller's
// responsibility. An empty name, an empty candidate list, or a best score
// below threshold returns false — callers treat that as "create a new
// entity", never as an error.
func FindBestMatch(name string, candidates []model.Candidate, threshold float64) (model.MatchResult, bool) {
	none := model.MatchResult{Tier: model.TierNone}

	normalized := normalize.Name(name)
	if normalized == "" || len(candidates) == 0 {
		return none, false
	}

	var bestID string
	var bestScore float64

	for _, c := range candidates {
		if c.Name == "" {
			continue
		}

		if normalize.Name(c.Name) == normalized {
			return model.MatchResult{CandidateID: c.ID, Score: 1.0, Tier: model.TierExact}, true
		}

		if score := Similarity(normalized, c.Name); score > bestScore {
			bestScore = score
			bestID = c.ID
		}
	}

	// bestID is empty when every comparison scored 0; with a zero threshold
	// bestScore alone would accept a match that names no candidate.
	if bestID == "" || bestScore < threshold {
		return none, false
	}

	tier := model.TierMedium
	if bestScore >= highTierCutoff {
		tier = model.TierHigh
	}
	return model.MatchResult{CandidateID: bestID, Score: bestScore, Tier: tier}, true
}
