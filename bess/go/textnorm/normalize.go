// Package textnorm turns fetched HTML and PDF bytes into plain text and
// normalizes German text for keyword matching.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	umlautReplacer = strings.NewReplacer(
		"ä", "ae",
		"ö", "oe",
		"ü", "ue",
		"Ä", "Ae",
		"Ö", "Oe",
		"Ü", "Ue",
		"ß", "ss",
		"ẞ", "Ss",
	)
)

// FoldUmlauts rewrites German umlauts to their ASCII digraphs (ä→ae, ö→oe,
// ü→ue, ß→ss).
func FoldUmlauts(s string) string {
	return umlautReplacer.Replace(s)
}

// Normalize lowercases s, folds umlauts, and collapses runs of whitespace to
// a single space. The keyword lexicons contain both spellings, so matching
// against normalized text catches either.
func Normalize(s string) string {
	normalized := FoldUmlauts(strings.ToLower(s))
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
