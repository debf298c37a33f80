package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const slugSeparator = '.'

var lowerCaser = cases.Lower(language.Und)

// Slug normalizes a username: diacritics are folded ("José" -> "jose"), text is
// lowercased, every run of spaces/punctuation becomes a single ".", and any
// character outside [0-9a-z-_.] is dropped.
//
//	Slug("Jane Doe")     // "jane.doe"
//	Slug("O'Brien, Seán") // "o.brien.sean"
func Slug(text string) string {
	folded, _, err := transform.String(foldDiacritics(), text)
	if err != nil {
		folded = text
	}
	folded = lowerCaser.String(strings.TrimSpace(folded))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSeparator := false
	for _, r := range folded {
		if isSlugRune(r) {
			if pendingSeparator && b.Len() > 0 {
				b.WriteRune(slugSeparator)
			}
			pendingSeparator = false
			b.WriteRune(r)
			continue
		}
		pendingSeparator = true
	}

	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r == '-', r == '_', r == '.':
			return r
		default:
			return -1
		}
	}, b.String())
	return strings.Trim(kept, ".")
}

// foldDiacritics decomposes and drops combining marks. transform.Chain is stateful,
// so each call gets its own chain.
func foldDiacritics() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func isSlugRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}
