// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9]+`)
	multipleDashRe    = regexp.MustCompile(`-+`)
)

// Slugify converts user input to a URL-stable workspace slug.
//
// Normalization rules:
//  1. Decompose unicode and drop non-ASCII marks
//  2. Lowercase
//  3. Replace runs of non-alphanumerics with a dash
//  4. Trim leading/trailing dashes
//
// Examples:
//
//	"Rebase Energy"  → "rebase-energy"
//	"Vindpark Öst"   → "vindpark-ost"
//	"  --acme--  "   → "acme"
func Slugify(input string) string {
	s := norm.NFKD.String(strings.TrimSpace(input))

	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumericRe.ReplaceAllString(s, "-")
	s = multipleDashRe.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// TitleFromSlug produces a display name for a slug, "rebase-energy" → "Rebase Energy".
func TitleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
