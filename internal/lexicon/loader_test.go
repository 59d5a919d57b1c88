package lexicon_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

func TestLoadDirSortedAndAdditive(t *testing.T) {
	b := lexicon.NewBuilder(lexicon.Options{})
	require.NoError(t, b.LoadDir("testdata"))
	d := b.Build()

	// 01-nouns.dic introduces chat, chatte, gens, souris in that order;
	// 02-extra.dic adds "minou" to the existing chat lemma.
	assert.Equal(t, 4, d.RawCount(lexicon.Noun))
	lemma, words, ok := d.Lemma(lexicon.Noun, 0)
	require.True(t, ok)
	assert.Equal(t, "chat", lemma)
	require.Len(t, words, 3)
	assert.Equal(t, "minou", words[2].Surface)

	idx, ok := d.LemmaIndex(lexicon.Noun, "souris")
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	assert.Equal(t, 1, d.Cardinality(lexicon.Noun))
	assert.Equal(t, 0, d.Cardinality(lexicon.Adjective))
	assert.Equal(t, 0, d.Cardinality(lexicon.Verb))
	assert.Equal(t, 1, d.Cardinality(lexicon.Adverb))
}

func TestParsedFeatures(t *testing.T) {
	b := lexicon.NewBuilder(lexicon.Options{})
	require.NoError(t, b.LoadDir("testdata"))
	d := b.Build()

	_, nouns, _ := d.Lemma(lexicon.Noun, 2)
	require.Len(t, nouns, 1)
	assert.Equal(t, lexicon.GenderNone, nouns[0].Gender)
	assert.Equal(t, lexicon.Plural, nouns[0].Number)

	_, adjs, _ := d.Lemma(lexicon.Adjective, 1)
	require.Len(t, adjs, 1)
	assert.Equal(t, lexicon.GenderInvariant, adjs[0].Gender)
	assert.Equal(t, lexicon.Singular, adjs[0].Number)

	_, verbs, ok := d.Lemma(lexicon.Verb, 0)
	require.True(t, ok)
	require.Len(t, verbs, 4)
	assert.Equal(t, lexicon.FirstPerson, verbs[0].Person)
	assert.Equal(t, lexicon.ThirdPerson, verbs[1].Person)
	assert.True(t, verbs[1].Finite())
	assert.Equal(t, lexicon.Masculine, verbs[2].Gender)
	assert.False(t, verbs[2].Finite())
	assert.Equal(t, lexicon.PersonNone, verbs[3].Person)
	assert.Equal(t, "Ver:mange(IPre+SG+P3)", verbs[1].String())
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"too few fields", "chat chat"},
		{"unknown tag", "le le Det:Mas+SG"},
		{"noun without features", "chat chat Nom"},
		{"bad gender", "chat chat Nom:Neu+SG"},
		{"bad number", "chat chat Nom:Mas+DU"},
		{"adjective too many features", "beau beau Adj:Mas+SG+X"},
		{"finite verb without person", "mange manger Ver:IPre+SG"},
		{"bad person", "mange manger Ver:IPre+SG+P4"},
		{"empty tense", "mange manger Ver:+SG+P3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := lexicon.NewBuilder(lexicon.Options{})
			src := "vite vite Adv\n" + tt.row + "\n"
			err := b.Load(strings.NewReader(src), "inline")
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrDictionaryLoad))

			var loadErr *lexicon.LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, 2, loadErr.Line)
			assert.Equal(t, tt.row, loadErr.Row)

			// all-or-nothing: the valid first row was not applied
			assert.Equal(t, 0, b.Build().RawCount(lexicon.Adverb))
		})
	}
}

func TestSkipUnknownTags(t *testing.T) {
	b := lexicon.NewBuilder(lexicon.Options{SkipUnknownTags: true})
	src := "le le Det:Mas+SG\nvite vite Adv\nde de Pre\n"
	require.NoError(t, b.Load(strings.NewReader(src), "inline"))
	assert.Equal(t, 2, b.Skipped())
	assert.Equal(t, 1, b.Build().RawCount(lexicon.Adverb))

	// a malformed row of a known category still fails
	err := b.Load(strings.NewReader("chat chat Nom:Neu+SG\n"), "inline")
	require.Error(t, err)
}

func TestBuildIsIsolatedFromLaterLoads(t *testing.T) {
	b := lexicon.NewBuilder(lexicon.Options{})
	require.NoError(t, b.Load(strings.NewReader("vite vite Adv\n"), "one"))
	first := b.Build()
	require.NoError(t, b.Load(strings.NewReader("vite vite Adv\nbien bien Adv\n"), "two"))
	second := b.Build()

	assert.Equal(t, 1, first.RawCount(lexicon.Adverb))
	_, words, _ := first.Lemma(lexicon.Adverb, 0)
	assert.Len(t, words, 1)
	assert.Equal(t, 2, second.RawCount(lexicon.Adverb))
	assert.NotEqual(t, first.Fingerprint(), second.Fingerprint())
}

func TestLoadPathMissing(t *testing.T) {
	b := lexicon.NewBuilder(lexicon.Options{})
	assert.Error(t, b.LoadPath("testdata/does-not-exist"))
	require.NoError(t, b.LoadPath("testdata/01-nouns.dic"))
	assert.Equal(t, 4, b.Build().RawCount(lexicon.Noun))
}
