package guard

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// leet maps digit and symbol look-alikes to the letter they usually replace.
// '@' is handled separately because it folds unconditionally.
var leet = map[rune]rune{
	'1': 'i',
	'!': 'i',
	'3': 'e',
	'0': 'o',
	'$': 's',
}

// Normalize lower-cases text, strips diacritics and reverses simple
// leetspeak. Digits and symbols fold only when a neighbouring rune is a
// letter so that plain numbers ("17", "2024") survive intact.
func Normalize(text string) string {
	return foldLeet(Fold(text))
}

// Fold lower-cases text and removes combining marks, without leetspeak
// folding. Numeric rules run on this form.
func Fold(text string) string {
	lowered := strings.ToLower(text)

	// transform.Chain keeps state, so it is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, lowered)
	if err != nil {
		return lowered
	}
	return stripped
}

func foldLeet(s string) string {
	src := []rune(s)
	out := make([]rune, len(src))
	for i, r := range src {
		if r == '@' {
			out[i] = 'a'
			continue
		}
		sub, ok := leet[r]
		if ok && (letterAt(src, i-1) || letterAt(src, i+1)) {
			out[i] = sub
			continue
		}
		out[i] = r
	}
	return string(out)
}

func letterAt(rs []rune, i int) bool {
	return i >= 0 && i < len(rs) && unicode.IsLetter(rs[i])
}
