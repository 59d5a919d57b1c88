package sentence

import (
	"fmt"
	"math/bits"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// Decode recovers the value carried by a wire sentence. Tokens are folded
// last to first as value = value*cardinality + index. Any token whose
// surface form is not in the dictionary fails the whole decode.
func Decode(dict *lexicon.Dictionary, wire string) (uint64, error) {
	tokens, err := ParseWire(wire)
	if err != nil {
		return 0, err
	}
	return DecodeTokens(dict, tokens)
}

// DecodeTokens is Decode for already parsed tokens.
func DecodeTokens(dict *lexicon.Dictionary, tokens []Token) (uint64, error) {
	if len(tokens) == 0 {
		return 0, fmt.Errorf("empty sentence: %w", apperrors.ErrMalformedToken)
	}
	var value uint64
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		card := dict.Cardinality(tok.Category)
		idx, err := dict.IndexOf(tok.Category, tok.Surface)
		if err != nil {
			return 0, fmt.Errorf("decoding token %d %q: %w", i, tok, err)
		}
		// a lemma past the last full window has no usable index
		if idx >= card {
			return 0, fmt.Errorf("decoding token %d %q: index %d outside cardinality %d: %w",
				i, tok, idx, card, apperrors.ErrLemmaNotFound)
		}
		hi, lo := bits.Mul64(value, uint64(card))
		sum, carry := bits.Add64(lo, uint64(idx), 0)
		if hi != 0 || carry != 0 {
			return 0, fmt.Errorf("decoding token %d %q: %w", i, tok, apperrors.ErrValueOverflow)
		}
		value = sum
	}
	return value, nil
}
