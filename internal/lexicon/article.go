package lexicon

import (
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"
)

// elisionInitials are the initials before which le/la contract to l'.
const elisionInitials = "aeiouyhàâäéèêëîïôöùûüÿæœ"

// ArticleFor returns a determiner for noun, trailing space included unless
// elided. Definite and indefinite are drawn with equal probability. The
// determiner is cosmetic: the decoder never sees it.
func ArticleFor(noun Word, rng *rand.Rand) string {
	definite := rng.IntN(2) == 0
	if noun.Number == Plural {
		if definite {
			return "les "
		}
		return "des "
	}
	elide := startsWithVowel(noun.Surface)
	switch {
	case definite && elide:
		return "l'"
	case definite && noun.Gender == Feminine:
		return "la "
	case definite:
		return "le "
	case noun.Gender == Feminine:
		return "une "
	default:
		return "un "
	}
}

func startsWithVowel(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return false
	}
	return strings.ContainsRune(elisionInitials, unicode.ToLower(r))
}
