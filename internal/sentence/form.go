// Package sentence maps integers to annotated sentences and back. A value
// is written as a mixed-radix number whose digits are usable lemma indices,
// least significant first, in the token order of the smallest sentence form
// that can hold it.
package sentence

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
)

// Form is one of the three sentence shapes.
type Form uint8

const (
	Form1 Form = iota + 1
	Form2
	Form3
)

// Forms lists every form from smallest to largest capacity.
var Forms = [...]Form{Form1, Form2, Form3}

var formOrder = map[Form][]lexicon.Category{
	Form1: {lexicon.Noun, lexicon.Verb, lexicon.Noun, lexicon.Adjective},
	Form2: {lexicon.Noun, lexicon.Adjective, lexicon.Verb, lexicon.Noun, lexicon.Adjective},
	Form3: {lexicon.Noun, lexicon.Adjective, lexicon.Verb, lexicon.Adverb, lexicon.Noun, lexicon.Adjective},
}

// Categories returns the token categories of f in append order, which is
// also the order digits are consumed in.
func (f Form) Categories() []lexicon.Category {
	return formOrder[f]
}

func (f Form) String() string {
	switch f {
	case Form1, Form2, Form3:
		return fmt.Sprintf("form%d", uint8(f))
	default:
		return fmt.Sprintf("Form(%d)", uint8(f))
	}
}

// Capacity is the number of distinct values a form can carry with a given
// dictionary. Saturated is set when the true product exceeds uint64, in
// which case every uint64 fits.
type Capacity struct {
	Value     uint64
	Saturated bool
}

// Holds reports whether v is below the capacity.
func (c Capacity) Holds(v uint64) bool {
	return c.Saturated || v < c.Value
}

func (c Capacity) String() string {
	if c.Saturated {
		return fmt.Sprintf(">%d", uint64(math.MaxUint64))
	}
	return fmt.Sprintf("%d", c.Value)
}

// CapacityOf returns the product of the cardinalities of f's categories.
func CapacityOf(dict *lexicon.Dictionary, f Form) Capacity {
	c := Capacity{Value: 1}
	for _, cat := range f.Categories() {
		n := uint64(dict.Cardinality(cat))
		if n == 0 {
			return Capacity{}
		}
		hi, lo := bits.Mul64(c.Value, n)
		if hi != 0 || c.Saturated {
			c = Capacity{Value: math.MaxUint64, Saturated: true}
			continue
		}
		c.Value = lo
	}
	return c
}

// SelectForm returns the smallest form whose capacity is above v. Values
// at or above Form2's capacity get Form3 whether or not they fit it; Encode
// reports the overflow.
func SelectForm(dict *lexicon.Dictionary, v uint64) Form {
	for _, f := range Forms[:len(Forms)-1] {
		if CapacityOf(dict, f).Holds(v) {
			return f
		}
	}
	return Form3
}
