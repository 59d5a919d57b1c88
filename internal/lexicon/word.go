// Package lexicon loads tagged French word lists into per-category lemma
// tables and answers the lookups the sentence codec needs: category
// cardinalities, surface form to usable index, and agreement-constrained
// word selection inside a lemma window.
package lexicon

import (
	"fmt"
	"strings"
)

// Category is one of the four parts of speech the codec uses.
type Category uint8

const (
	Noun Category = iota
	Adjective
	Verb
	Adverb
)

// Categories lists every category in table order.
var Categories = [...]Category{Noun, Adjective, Verb, Adverb}

const numCategories = len(Categories)

// normalization holds the number of raw lemma rows that make up one usable
// index. These are protocol constants: changing one changes the meaning of
// every sentence already encoded with a dictionary.
var normalization = [numCategories]int{
	Noun:      4,
	Adjective: 4,
	Verb:      8,
	Adverb:    1,
}

// NormalizationConstant returns K for the category.
func (c Category) NormalizationConstant() int {
	return normalization[c]
}

// Tag returns the dictionary and wire tag ("Nom", "Adj", "Ver", "Adv").
func (c Category) Tag() string {
	switch c {
	case Noun:
		return "Nom"
	case Adjective:
		return "Adj"
	case Verb:
		return "Ver"
	case Adverb:
		return "Adv"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

func (c Category) String() string {
	switch c {
	case Noun:
		return "noun"
	case Adjective:
		return "adjective"
	case Verb:
		return "verb"
	case Adverb:
		return "adverb"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ParseCategory maps a tag back to its Category.
func ParseCategory(tag string) (Category, bool) {
	switch tag {
	case "Nom":
		return Noun, true
	case "Adj":
		return Adjective, true
	case "Ver":
		return Verb, true
	case "Adv":
		return Adverb, true
	default:
		return 0, false
	}
}

type Gender uint8

const (
	GenderNone Gender = iota
	Masculine
	Feminine
	GenderInvariant
)

func (g Gender) String() string {
	switch g {
	case Masculine:
		return "Mas"
	case Feminine:
		return "Fem"
	case GenderInvariant:
		return "InvGen"
	default:
		return ""
	}
}

func parseGender(s string) (Gender, error) {
	switch s {
	case "Mas", "Masc":
		return Masculine, nil
	case "Fem":
		return Feminine, nil
	case "InvGen":
		return GenderInvariant, nil
	default:
		return GenderNone, fmt.Errorf("unknown gender %q", s)
	}
}

type Number uint8

const (
	NumberNone Number = iota
	Singular
	Plural
	NumberInvariant
)

func (n Number) String() string {
	switch n {
	case Singular:
		return "SG"
	case Plural:
		return "PL"
	case NumberInvariant:
		return "InvPL"
	default:
		return ""
	}
}

func parseNumber(s string) (Number, error) {
	switch s {
	case "SG":
		return Singular, nil
	case "PL":
		return Plural, nil
	case "InvPL":
		return NumberInvariant, nil
	default:
		return NumberNone, fmt.Errorf("unknown number %q", s)
	}
}

type Person uint8

const (
	PersonNone Person = iota
	FirstPerson
	SecondPerson
	ThirdPerson
)

func (p Person) String() string {
	if p == PersonNone {
		return ""
	}
	return fmt.Sprintf("P%d", uint8(p))
}

func parsePerson(s string) (Person, error) {
	switch s {
	case "P1":
		return FirstPerson, nil
	case "P2":
		return SecondPerson, nil
	case "P3":
		return ThirdPerson, nil
	default:
		return PersonNone, fmt.Errorf("unknown person %q", s)
	}
}

// Non-finite verb tenses: they carry no person, and only the past
// participle may carry gender and number.
const (
	TensePastParticiple    = "PPas"
	TensePresentParticiple = "PPre"
	TenseInfinitive        = "Inf"
)

func isNonFinite(tense string) bool {
	return tense == TensePastParticiple || tense == TensePresentParticiple || tense == TenseInfinitive
}

// Word is one inflected form. It is a closed variant: Category decides
// which of the remaining fields are meaningful, and values are only built
// through the New* constructors.
type Word struct {
	Category Category
	Surface  string
	Gender   Gender
	Number   Number
	// Invariant is the invariant-type token of an adjective that does not
	// inflect for gender and number. Exclusive with Gender/Number.
	Invariant string
	Tense     string
	Person    Person
}

func NewNoun(surface string, gender Gender, number Number) Word {
	return Word{Category: Noun, Surface: surface, Gender: gender, Number: number}
}

func NewAdjective(surface string, gender Gender, number Number) Word {
	return Word{Category: Adjective, Surface: surface, Gender: gender, Number: number}
}

func NewInvariantAdjective(surface string, invariant string) Word {
	return Word{Category: Adjective, Surface: surface, Invariant: invariant}
}

// NewVerb builds a verb form. Gender is kept only for past participles and
// person only for finite tenses.
func NewVerb(surface string, tense string, number Number, person Person, gender Gender) Word {
	w := Word{Category: Verb, Surface: surface, Tense: tense, Number: number}
	if isNonFinite(tense) {
		if tense == TensePastParticiple {
			w.Gender = gender
		} else {
			w.Number = NumberNone
		}
		return w
	}
	w.Person = person
	return w
}

func NewAdverb(surface string) Word {
	return Word{Category: Adverb, Surface: surface}
}

// Finite reports whether w is a conjugated verb form.
func (w Word) Finite() bool {
	return w.Category == Verb && !isNonFinite(w.Tense)
}

// Features renders the morphological features the way the word lists
// write them, e.g. "Fem+PL" or "IPre+SG+P3".
func (w Word) Features() string {
	var parts []string
	switch w.Category {
	case Noun, Adjective:
		if w.Invariant != "" {
			return w.Invariant
		}
		if w.Gender != GenderNone {
			parts = append(parts, w.Gender.String())
		}
		if w.Number != NumberNone {
			parts = append(parts, w.Number.String())
		}
	case Verb:
		parts = append(parts, w.Tense)
		if w.Gender != GenderNone {
			parts = append(parts, w.Gender.String())
		}
		if w.Number != NumberNone {
			parts = append(parts, w.Number.String())
		}
		if w.Person != PersonNone {
			parts = append(parts, w.Person.String())
		}
	}
	return strings.Join(parts, "+")
}

func (w Word) String() string {
	if f := w.Features(); f != "" {
		return fmt.Sprintf("%s:%s(%s)", w.Category.Tag(), w.Surface, f)
	}
	return fmt.Sprintf("%s:%s", w.Category.Tag(), w.Surface)
}

// Constraint is the agreement a selected word must satisfy. It is derived
// from the nearest preceding noun of the sentence.
type Constraint struct {
	Gender Gender
	Number Number
}

// AgreeWith returns the constraint imposed by noun.
func AgreeWith(noun Word) Constraint {
	return Constraint{Gender: noun.Gender, Number: noun.Number}
}

// Admits reports whether w may be rendered under c.
func (c Constraint) Admits(w Word) bool {
	switch w.Category {
	case Noun:
		return (w.Gender == Masculine || w.Gender == Feminine) &&
			(w.Number == Singular || w.Number == Plural)
	case Adjective:
		return w.Invariant == "" && w.Number == c.Number && w.Gender == c.Gender
	case Verb:
		return w.Finite() && w.Number == c.Number && w.Person == ThirdPerson
	case Adverb:
		return true
	default:
		return false
	}
}
