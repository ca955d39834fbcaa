package crm

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// NormalizeName lowercases a human name or address fragment and re-titles
// each word, so "JUAN PEREZ" and "juan perez" both become "Juan Perez".
func NormalizeName(s string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(s)))
}

// JoinStreet builds a normalized street line from street and number parts.
func JoinStreet(street, number string) string {
	joined := strings.TrimSpace(strings.TrimSpace(street) + " " + strings.TrimSpace(number))
	return NormalizeName(joined)
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes markup tags from store-managed rich text, leaving the
// plain content.
func StripHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}
