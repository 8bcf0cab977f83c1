// Package normalize canonicalizes free-text contact fields so the same
// person compares equal regardless of how a spreadsheet operator typed them.
// Every function is total: nil-equivalent input yields an empty string.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

var nonDigitRe = regexp.MustCompile(`[^0-9]`)

// foldMarks decomposes accented characters and drops the combining marks,
// so "José" normalizes to the same bytes as "Jose".
var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var punctReplacer = strings.NewReplacer(
	",", "",
	".", "",
	"'", "",
	"\"", "",
	"&", " and ",
	"-", " ",
)

// Name standardizes a human-entered name for matching:
//  1. Trim whitespace
//  2. Fold to lowercase and strip diacritics
//  3. Strip punctuation (commas, periods, quotes; "&" becomes "and")
//  4. Collapse whitespace runs into single spaces
func Name(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if folded, _, err := transform.String(foldMarks, raw); err == nil {
		raw = folded
	}
	raw = strings.ToLower(raw)
	raw = punctReplacer.Replace(raw)
	raw = whitespaceRe.ReplaceAllString(raw, " ")

	return strings.TrimSpace(raw)
}

// Email lowercases and trims an email address. No syntactic validation:
// a malformed address simply never matches anything.
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Phone strips every non-digit character, reducing "(555) 123-4567" and
// "555.123.4567" to the same ten digits.
func Phone(raw string) string {
	return nonDigitRe.ReplaceAllString(raw, "")
}

// NameSQL returns a SQL expression applying the same canonicalization as
// Name to a column, for use inside set-based linkage updates. Diacritic
// folding is left to the database collation; the punctuation and whitespace
// handling match the Go path.
func NameSQL(col string) string {
	return `LOWER(TRIM(
    REGEXP_REPLACE(
        REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(` + col + `,
            ',', ''), '.', ''), '''', ''), '"', ''), '&', ' and '), '-', ' '),
        '\s+', ' ', 'g')
    ))`
}

// EmailSQL returns a SQL expression matching Email.
func EmailSQL(col string) string {
	return `LOWER(TRIM(` + col + `))`
}

// PhoneSQL returns a SQL expression matching Phone.
func PhoneSQL(col string) string {
	return `REGEXP_REPLACE(COALESCE(` + col + `, ''), '[^0-9]', '', 'g')`
}
