package sentence

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// Sentence is the token sequence produced for one value.
type Sentence struct {
	Form  Form
	Words []lexicon.Word
	// Fallbacks lists the categories of tokens for which no form in the
	// lemma window agreed and the window's first form was used instead.
	Fallbacks []lexicon.Category
	// articles[i] is the determiner chosen for Words[i], empty for
	// anything but nouns.
	articles []string
}

// Annotated returns the wire form: "Tag:surface" tokens joined by single
// spaces, without determiners.
func (s *Sentence) Annotated() string {
	var sb strings.Builder
	for i, w := range s.Words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w.Category.Tag())
		sb.WriteByte(':')
		sb.WriteString(w.Surface)
	}
	return sb.String()
}

// Tokens returns the annotated tokens one by one.
func (s *Sentence) Tokens() []string {
	out := make([]string, len(s.Words))
	for i, w := range s.Words {
		out[i] = w.Category.Tag() + ":" + w.Surface
	}
	return out
}

// Render returns the prose form with determiners, a capitalised first
// letter and a final period. It is for people only and is never decoded.
func (s *Sentence) Render() string {
	var sb strings.Builder
	for i, w := range s.Words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i < len(s.articles) {
			sb.WriteString(s.articles[i])
		}
		sb.WriteString(w.Surface)
	}
	sb.WriteByte('.')
	return capitalize(sb.String())
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Encoder turns values into sentences. It owns its random source and is
// not safe for concurrent use; create one per goroutine. The dictionary
// may be shared.
type Encoder struct {
	dict   *lexicon.Dictionary
	rng    *rand.Rand
	logger *slog.Logger
}

func NewEncoder(dict *lexicon.Dictionary, rng *rand.Rand) *Encoder {
	return &Encoder{
		dict:   dict,
		rng:    rng,
		logger: slog.Default().With("component", "encoder"),
	}
}

// Encode writes v as a sentence. Adjectives and verbs agree with the
// nearest preceding noun. It fails with ErrEmptyCategory when the chosen
// form needs a category of cardinality zero, and with ErrValueOverflow when
// v does not fit the largest form.
func (e *Encoder) Encode(v uint64) (*Sentence, error) {
	form := SelectForm(e.dict, v)
	order := form.Categories()
	for _, c := range order {
		if e.dict.Cardinality(c) == 0 {
			return nil, fmt.Errorf("encoding %d as %s: %s: %w", v, form, c, apperrors.ErrEmptyCategory)
		}
	}
	if capacity := CapacityOf(e.dict, form); !capacity.Holds(v) {
		return nil, fmt.Errorf("encoding %d: %s capacity %s: %w", v, form, capacity, apperrors.ErrValueOverflow)
	}

	s := &Sentence{
		Form:     form,
		Words:    make([]lexicon.Word, 0, len(order)),
		articles: make([]string, 0, len(order)),
	}
	var lastNoun lexicon.Word
	rem := v
	for _, c := range order {
		card := uint64(e.dict.Cardinality(c))
		digit := int(rem % card)
		rem /= card

		var cons lexicon.Constraint
		if c == lexicon.Adjective || c == lexicon.Verb {
			cons = lexicon.AgreeWith(lastNoun)
		}
		sel, err := e.dict.Select(c, digit, cons, e.rng)
		if err != nil {
			return nil, fmt.Errorf("encoding %d: %s digit %d: %w", v, c, digit, err)
		}
		if sel.Fallback {
			s.Fallbacks = append(s.Fallbacks, c)
		}

		article := ""
		if c == lexicon.Noun {
			lastNoun = sel.Word
			article = lexicon.ArticleFor(sel.Word, e.rng)
		}
		s.Words = append(s.Words, sel.Word)
		s.articles = append(s.articles, article)
	}

	if len(s.Fallbacks) > 0 {
		e.logger.Debug("sentence used agreement fallback",
			"form", form.String(),
			"fallbacks", len(s.Fallbacks),
		)
	}
	return s, nil
}
