package sentence_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/chunk"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon/lexicontest"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/sentence"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

var small = lexicontest.Sizes{Nouns: 3, Adjectives: 2, Verbs: 2, Adverbs: 1}

func newEncoder(d *lexicon.Dictionary, seed uint64) *sentence.Encoder {
	return sentence.NewEncoder(d, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func TestWorkedExample(t *testing.T) {
	d := lexicontest.New(t, small)

	assert.Equal(t, sentence.Capacity{Value: 36}, sentence.CapacityOf(d, sentence.Form1))
	assert.Equal(t, sentence.Form1, sentence.SelectForm(d, 5))

	s, err := newEncoder(d, 1).Encode(5)
	require.NoError(t, err)
	require.Len(t, s.Words, 4)

	wantCats := []lexicon.Category{lexicon.Noun, lexicon.Verb, lexicon.Noun, lexicon.Adjective}
	wantDigits := []int{2, 1, 0, 0}
	for i, w := range s.Words {
		assert.Equal(t, wantCats[i], w.Category)
		idx, err := d.IndexOf(w.Category, w.Surface)
		require.NoError(t, err)
		assert.Equal(t, wantDigits[i], idx, "token %d %s", i, w)
	}

	got, err := sentence.Decode(d, s.Annotated())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)
}

func TestSelectFormMonotonic(t *testing.T) {
	d := lexicontest.New(t, small)
	t1 := sentence.CapacityOf(d, sentence.Form1).Value
	t2 := sentence.CapacityOf(d, sentence.Form2).Value
	require.Equal(t, uint64(36), t1)
	require.Equal(t, uint64(72), t2)

	prev := sentence.Form1
	for v := uint64(0); v < 200; v++ {
		f := sentence.SelectForm(d, v)
		assert.GreaterOrEqual(t, f, prev, "v=%d", v)
		prev = f
		switch {
		case v < t1:
			assert.Equal(t, sentence.Form1, f)
		case v < t2:
			assert.Equal(t, sentence.Form2, f)
		default:
			assert.Equal(t, sentence.Form3, f)
		}
	}
}

func TestEncodeDecodeRoundTripSmall(t *testing.T) {
	d := lexicontest.New(t, small)
	enc := newEncoder(d, 3)
	capacity := sentence.CapacityOf(d, sentence.Form3).Value
	for v := uint64(0); v < capacity; v++ {
		s, err := enc.Encode(v)
		require.NoError(t, err, "v=%d", v)
		assert.Len(t, s.Words, len(s.Form.Categories()))
		got, err := sentence.Decode(d, s.Annotated())
		require.NoError(t, err, "v=%d wire=%q", v, s.Annotated())
		assert.Equal(t, v, got)
	}
}

func TestEncodeDecodeRoundTripChunkRange(t *testing.T) {
	d := lexicontest.Default(t)
	require.True(t, sentence.CapacityOf(d, sentence.Form3).Holds(chunk.MaxValue))

	enc := newEncoder(d, 11)
	rng := rand.New(rand.NewPCG(5, 8))
	values := []uint64{0, 1, chunk.MaxValue}
	for _, f := range sentence.Forms {
		c := sentence.CapacityOf(d, f).Value
		values = append(values, c-1)
	}
	for i := 0; i < 500; i++ {
		values = append(values, rng.Uint64N(chunk.MaxValue+1))
	}
	for _, v := range values {
		if !sentence.CapacityOf(d, sentence.Form3).Holds(v) {
			continue
		}
		s, err := enc.Encode(v)
		require.NoError(t, err, "v=%d", v)
		got, err := sentence.Decode(d, s.Annotated())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestAgreementWithNearestNoun(t *testing.T) {
	d := lexicontest.Default(t)
	enc := newEncoder(d, 21)
	for v := uint64(1e15); v < 1e15+200; v++ {
		s, err := enc.Encode(v)
		require.NoError(t, err)
		require.Empty(t, s.Fallbacks)

		var noun lexicon.Word
		for _, w := range s.Words {
			switch w.Category {
			case lexicon.Noun:
				noun = w
			case lexicon.Adjective:
				assert.Equal(t, noun.Gender, w.Gender, s.Annotated())
				assert.Equal(t, noun.Number, w.Number, s.Annotated())
			case lexicon.Verb:
				assert.True(t, w.Finite())
				assert.Equal(t, lexicon.ThirdPerson, w.Person)
				assert.Equal(t, noun.Number, w.Number, s.Annotated())
			}
		}
	}
}

func TestDecodeIgnoresSynonymChoice(t *testing.T) {
	d := lexicontest.New(t, small)
	const v = 61
	seen := map[string]bool{}
	for seed := uint64(0); seed < 32; seed++ {
		s, err := newEncoder(d, seed).Encode(v)
		require.NoError(t, err)
		seen[s.Annotated()] = true
		got, err := sentence.Decode(d, s.Annotated())
		require.NoError(t, err)
		assert.Equal(t, uint64(v), got)
	}
	assert.Greater(t, len(seen), 1, "random choices should vary the surface forms")
}

func TestRender(t *testing.T) {
	d := lexicontest.New(t, small)
	s, err := newEncoder(d, 4).Encode(40)
	require.NoError(t, err)
	require.Equal(t, sentence.Form2, s.Form)

	prose := s.Render()
	assert.True(t, strings.HasSuffix(prose, "."))
	first, _ := utf8.DecodeRuneInString(prose)
	assert.True(t, unicode.IsUpper(first), prose)
	// two nouns, each preceded by a separate determiner
	assert.Len(t, strings.Fields(prose), len(s.Words)+2)
	assert.NotContains(t, prose, ":")

	assert.Equal(t, strings.Join(s.Tokens(), " "), s.Annotated())
}

func TestEncodeErrors(t *testing.T) {
	d := lexicontest.New(t, small)
	_, err := newEncoder(d, 1).Encode(72)
	assert.True(t, errors.Is(err, apperrors.ErrValueOverflow))

	noAdverbs := lexicontest.New(t, lexicontest.Sizes{Nouns: 3, Adjectives: 2, Verbs: 2})
	s, err := newEncoder(noAdverbs, 1).Encode(71)
	require.NoError(t, err)
	assert.Equal(t, sentence.Form2, s.Form)
	_, err = newEncoder(noAdverbs, 1).Encode(72)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyCategory))
}

func TestDecodeErrors(t *testing.T) {
	d := lexicontest.New(t, small)
	tests := []struct {
		name string
		wire string
		want error
	}{
		{"empty", "   ", apperrors.ErrMalformedToken},
		{"missing prefix", "Nom:nom0 nom1", apperrors.ErrMalformedToken},
		{"unknown category", "Nom:nom0 Det:le", apperrors.ErrMalformedToken},
		{"empty surface", "Nom:", apperrors.ErrMalformedToken},
		{"unknown surface", "Nom:nom0 Ver:ver0e Nom:licorne Adj:adj0", apperrors.ErrLemmaNotFound},
		{"wrong category namespace", "Adj:nom0", apperrors.ErrLemmaNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := sentence.Decode(d, tt.wire)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err)
			assert.Zero(t, v)
		})
	}
}

func TestDecodeRejectsPartialWindow(t *testing.T) {
	b := lexicon.NewBuilder(lexicon.Options{})
	require.NoError(t, b.Load(strings.NewReader(lexicontest.WordList(small)+"extra\textra\tAdv\n"), "inline"))
	d := b.Build()
	require.Equal(t, 2, d.Cardinality(lexicon.Adverb))
	// "extra" is raw adverb 1, usable index 1: inside the table
	_, err := sentence.Decode(d, "Adv:extra")
	require.NoError(t, err)

	b = lexicon.NewBuilder(lexicon.Options{})
	require.NoError(t, b.Load(strings.NewReader(lexicontest.WordList(small)+"nomz\tnomz\tNom:Mas+SG\n"), "inline"))
	d = b.Build()
	// raw noun 12 sits past the last full window of four
	_, err = sentence.Decode(d, "Nom:nomz")
	assert.True(t, errors.Is(err, apperrors.ErrLemmaNotFound))
}

func TestEncodeNeverEmitsForeignHomograph(t *testing.T) {
	b := lexicon.NewBuilder(lexicon.Options{})
	require.NoError(t, b.Load(strings.NewReader(lexicontest.WordList(small)+"adv0\tadvB\tAdv\n"), "inline"))
	d := b.Build()
	require.Equal(t, 2, d.Cardinality(lexicon.Adverb))

	enc := newEncoder(d, 3)
	limit := sentence.CapacityOf(d, sentence.Form3).Value
	rejected := 0
	for v := uint64(0); v < limit; v++ {
		s, err := enc.Encode(v)
		if err != nil {
			require.ErrorIs(t, err, apperrors.ErrAmbiguousLemma, "value %d", v)
			rejected++
			continue
		}
		got, err := sentence.Decode(d, s.Annotated())
		require.NoError(t, err)
		require.Equal(t, v, got, "wire %q", s.Annotated())
	}
	assert.Positive(t, rejected)

	_, err := enc.Encode(84)
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousLemma)
}

func TestDecodeOverflow(t *testing.T) {
	d := lexicontest.New(t, small)
	// forty-one maximal nouns fold to 3^41-1, past 64 bits
	wire := strings.TrimSpace(strings.Repeat("Nom:nom11x ", 41))
	_, err := sentence.Decode(d, wire)
	assert.True(t, errors.Is(err, apperrors.ErrValueOverflow))
}

func TestCapacityOfDefaultDictionary(t *testing.T) {
	d := lexicontest.Default(t)
	c := sentence.CapacityOf(d, sentence.Form3)
	assert.False(t, c.Saturated)
	assert.Less(t, chunk.MaxValue, c.Value)
	assert.True(t, sentence.Capacity{Value: math.MaxUint64, Saturated: true}.Holds(math.MaxUint64))
}

func TestParseToken(t *testing.T) {
	tok, err := sentence.ParseToken("Ver:mangé")
	require.NoError(t, err)
	assert.Equal(t, lexicon.Verb, tok.Category)
	assert.Equal(t, "mangé", tok.Surface)
	assert.Equal(t, "Ver:mangé", tok.String())

	// only the first colon separates
	tok, err = sentence.ParseToken("Nom:a:b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", tok.Surface)
}

func BenchmarkEncode(b *testing.B) {
	d := lexicontest.Default(b)
	enc := newEncoder(d, 1)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := enc.Encode(uint64(i) * 7919); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	d := lexicontest.Default(b)
	s, err := newEncoder(d, 1).Encode(chunk.MaxValue)
	if err != nil {
		b.Fatal(err)
	}
	wire := s.Annotated()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sentence.Decode(d, wire); err != nil {
			b.Fatal(err)
		}
	}
}
