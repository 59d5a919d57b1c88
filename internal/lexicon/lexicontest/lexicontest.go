// Package lexicontest builds synthetic word lists with exact category
// cardinalities for tests of the codec and its callers.
package lexicontest

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
)

// Sizes are the usable cardinalities to generate.
type Sizes struct {
	Nouns, Adjectives, Verbs, Adverbs int
}

// WordList renders a word list whose built dictionary has exactly the
// given cardinalities. Every raw noun lemma has a singular and a plural
// form of one gender, every adjective lemma inflects for both genders and
// numbers, and every verb lemma has third-person present forms plus an
// infinitive.
func WordList(s Sizes) string {
	var sb strings.Builder
	for i := 0; i < s.Nouns*lexicon.Noun.NormalizationConstant(); i++ {
		gender := "Mas"
		if i%2 == 1 {
			gender = "Fem"
		}
		fmt.Fprintf(&sb, "nom%d\tnom%d\tNom:%s+SG\n", i, i, gender)
		fmt.Fprintf(&sb, "nom%dx\tnom%d\tNom:%s+PL\n", i, i, gender)
	}
	for i := 0; i < s.Adjectives*lexicon.Adjective.NormalizationConstant(); i++ {
		fmt.Fprintf(&sb, "adj%d\tadj%d\tAdj:Mas+SG\n", i, i)
		fmt.Fprintf(&sb, "adj%dx\tadj%d\tAdj:Mas+PL\n", i, i)
		fmt.Fprintf(&sb, "adj%de\tadj%d\tAdj:Fem+SG\n", i, i)
		fmt.Fprintf(&sb, "adj%dex\tadj%d\tAdj:Fem+PL\n", i, i)
	}
	for i := 0; i < s.Verbs*lexicon.Verb.NormalizationConstant(); i++ {
		fmt.Fprintf(&sb, "ver%der\tver%der\tVer:Inf\n", i, i)
		fmt.Fprintf(&sb, "ver%de\tver%der\tVer:IPre+SG+P1:IPre+SG+P3\n", i, i)
		fmt.Fprintf(&sb, "ver%dent\tver%der\tVer:IPre+PL+P3\n", i, i)
	}
	for i := 0; i < s.Adverbs*lexicon.Adverb.NormalizationConstant(); i++ {
		fmt.Fprintf(&sb, "adv%d\tadv%d\tAdv\n", i, i)
	}
	return sb.String()
}

// New builds a dictionary with the given cardinalities, failing t on any
// load error.
func New(t testing.TB, s Sizes) *lexicon.Dictionary {
	t.Helper()
	b := lexicon.NewBuilder(lexicon.Options{})
	if err := b.Load(strings.NewReader(WordList(s)), "lexicontest"); err != nil {
		t.Fatalf("loading synthetic word list: %v", err)
	}
	return b.Build()
}

// DefaultSizes give a Form3 capacity above every value chunk.Split can
// produce (7·2^56), while small values still land in Form1.
var DefaultSizes = Sizes{Nouns: 3000, Adjectives: 1500, Verbs: 500, Adverbs: 300}

var (
	defaultOnce sync.Once
	defaultDict *lexicon.Dictionary
	defaultErr  error
)

// Default returns a shared dictionary built from DefaultSizes. Dictionaries
// are immutable, so one instance serves every test.
func Default(t testing.TB) *lexicon.Dictionary {
	t.Helper()
	defaultOnce.Do(func() {
		b := lexicon.NewBuilder(lexicon.Options{})
		defaultErr = b.Load(strings.NewReader(WordList(DefaultSizes)), "lexicontest-default")
		if defaultErr == nil {
			defaultDict = b.Build()
		}
	})
	if defaultErr != nil {
		t.Fatalf("loading default synthetic word list: %v", defaultErr)
	}
	return defaultDict
}
