package sentence

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// Token is one parsed "Tag:surface" wire token.
type Token struct {
	Category lexicon.Category
	Surface  string
}

func (t Token) String() string {
	return t.Category.Tag() + ":" + t.Surface
}

// ParseToken splits a wire token into its category and surface form.
func ParseToken(s string) (Token, error) {
	tag, surface, ok := strings.Cut(s, ":")
	if !ok {
		return Token{}, fmt.Errorf("token %q: missing category prefix: %w", s, apperrors.ErrMalformedToken)
	}
	cat, ok := lexicon.ParseCategory(tag)
	if !ok {
		return Token{}, fmt.Errorf("token %q: unknown category %q: %w", s, tag, apperrors.ErrMalformedToken)
	}
	if surface == "" {
		return Token{}, fmt.Errorf("token %q: empty surface form: %w", s, apperrors.ErrMalformedToken)
	}
	return Token{Category: cat, Surface: surface}, nil
}

// ParseWire splits a wire sentence on whitespace and parses every token.
// An empty sentence is malformed.
func ParseWire(wire string) ([]Token, error) {
	fields := strings.Fields(wire)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty sentence: %w", apperrors.ErrMalformedToken)
	}
	tokens := make([]Token, len(fields))
	for i, f := range fields {
		tok, err := ParseToken(f)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		tokens[i] = tok
	}
	return tokens, nil
}
