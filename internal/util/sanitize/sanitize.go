// Package sanitize cleans text that comes from the server or from the search
// box before it reaches a terminal, a CSV cell or a query string.
package sanitize

import (
	"strings"
	"unicode"
)

// invisible runes that survive copy-paste from spreadsheets and chat apps and
// break both matching and column alignment.
var invisible = map[rune]bool{
	'\u200b': true, // zero-width space
	'\u200c': true, // zero-width non-joiner
	'\u200d': true, // zero-width joiner
	'\u2060': true, // word joiner
	'\ufeff': true, // byte order mark
	'\u00ad': true, // soft hyphen
}

// Field returns s as a single display line: invisible runes and control
// characters (including ANSI escape introducers) are dropped and any run of
// whitespace becomes one space.
func Field(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case invisible[r]:
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Query normalises search box input. It is Field with a length cap so a
// pasted paragraph cannot turn into an oversized query string.
func Query(s string, maxRunes int) string {
	s = Field(s)
	if maxRunes <= 0 {
		return s
	}
	if r := []rune(s); len(r) > maxRunes {
		return strings.TrimRightFunc(string(r[:maxRunes]), unicode.IsSpace)
	}
	return s
}
