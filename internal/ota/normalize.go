package ota

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldKey reduces a string to a comparison key: lowercase, whitespace
// removed, diacritics stripped, characters sorted. Board exports reorder
// name parts freely ("KOWALSKI Jan" vs "Jan Kowalski"), so keys compare
// equal for any reordering of the cleaned characters, anagrams included.
func foldKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if folded, _, err := transform.String(stripMarks, out); err == nil {
		out = folded
	}

	chars := []rune(out)
	slices.Sort(chars)
	return string(chars)
}

func sameText(a, b string) bool {
	return foldKey(a) == foldKey(b)
}
