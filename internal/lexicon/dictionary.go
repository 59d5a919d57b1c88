package lexicon

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// Dictionary is an immutable snapshot of the lemma tables. It is safe for
// concurrent use by any number of encoders and decoders.
type Dictionary struct {
	groups [numCategories]*lemmaGroup
	// surfaces maps a surface form to the lowest raw index of a lemma that
	// has it, per category.
	surfaces    [numCategories]map[string]int
	fingerprint string
	logger      *slog.Logger
}

func newDictionary(groups [numCategories]*lemmaGroup) *Dictionary {
	d := &Dictionary{
		groups: groups,
		logger: slog.Default().With("component", "dictionary"),
	}
	for _, c := range Categories {
		g := d.groups[c]
		surfaces := make(map[string]int)
		for idx, e := range g.entries {
			for _, w := range e.Words {
				if _, seen := surfaces[w.Surface]; !seen {
					surfaces[w.Surface] = idx
				}
			}
		}
		d.surfaces[c] = surfaces
	}
	d.fingerprint = d.computeFingerprint()
	return d
}

// RawCount returns the number of lemma entries loaded for c.
func (d *Dictionary) RawCount(c Category) int {
	return d.groups[c].len()
}

// Cardinality returns the usable cardinality of c: the raw lemma count
// divided by the category's normalization constant. It is the modulus of
// that category's digit in the mixed-radix codec.
func (d *Dictionary) Cardinality(c Category) int {
	return d.groups[c].len() / c.NormalizationConstant()
}

// IndexOf returns the usable index of the lemma owning surface. A miss is
// reported as ErrLemmaNotFound and must never be folded into a value.
func (d *Dictionary) IndexOf(c Category, surface string) (int, error) {
	raw, ok := d.surfaces[c][surface]
	if !ok {
		return 0, fmt.Errorf("%s %q: %w", c, surface, apperrors.ErrLemmaNotFound)
	}
	return raw / c.NormalizationConstant(), nil
}

// Lemma returns the lemma key and forms stored at a raw index.
func (d *Dictionary) Lemma(c Category, raw int) (string, []Word, bool) {
	e, ok := d.groups[c].at(raw)
	if !ok {
		return "", nil, false
	}
	return e.Lemma, e.Words, true
}

// LemmaIndex returns the raw index assigned to a lemma key.
func (d *Dictionary) LemmaIndex(c Category, lemma string) (int, bool) {
	return d.groups[c].indexOfLemma(lemma)
}

// Fingerprint identifies the exact lemma layout of this snapshot. Two
// dictionaries with equal fingerprints encode and decode identically.
func (d *Dictionary) Fingerprint() string {
	return d.fingerprint
}

// Selection is the result of Select. Fallback is set when no form in the
// window satisfied the constraint.
type Selection struct {
	Word     Word
	Fallback bool
}

// Select picks a word of category c whose lemma has the given usable index
// and satisfies cons. It scans the raw window [usable*K, usable*K+K) and
// draws uniformly among the matching forms of the first entry that has
// any. Forms whose surface would decode to another usable index are never
// drawn. With no match, the first form of the window is returned with
// Fallback set, or the first form that decodes back to usable when the
// first one does not. A window with no such form is ErrAmbiguousLemma.
func (d *Dictionary) Select(c Category, usable int, cons Constraint, rng *rand.Rand) (Selection, error) {
	k := c.NormalizationConstant()
	if usable < 0 || usable >= d.Cardinality(c) {
		return Selection{}, fmt.Errorf("%s index %d outside [0,%d): %w",
			c, usable, d.Cardinality(c), apperrors.ErrLemmaNotFound)
	}
	g := d.groups[c]
	start := usable * k
	var candidates []Word
	for raw := start; raw < start+k; raw++ {
		candidates = candidates[:0]
		for _, w := range g.entries[raw].Words {
			if cons.Admits(w) && d.resolvesTo(c, w.Surface, usable) {
				candidates = append(candidates, w)
			}
		}
		if len(candidates) > 0 {
			return Selection{Word: candidates[rng.IntN(len(candidates))]}, nil
		}
	}

	fallback := g.entries[start].Words[0]
	if !d.resolvesTo(c, fallback.Surface, usable) {
		w, ok := d.firstResolving(c, usable)
		if !ok {
			return Selection{}, fmt.Errorf("%s index %d: every surface belongs to an earlier lemma: %w",
				c, usable, apperrors.ErrAmbiguousLemma)
		}
		fallback = w
	}
	d.logger.Debug("no agreeing form in window, using fallback",
		"category", c.String(),
		"usable_index", usable,
		"gender", cons.Gender.String(),
		"number", cons.Number.String(),
		"word", fallback.Surface,
	)
	return Selection{Word: fallback, Fallback: true}, nil
}

func (d *Dictionary) resolvesTo(c Category, surface string, usable int) bool {
	raw, ok := d.surfaces[c][surface]
	return ok && raw/c.NormalizationConstant() == usable
}

func (d *Dictionary) firstResolving(c Category, usable int) (Word, bool) {
	k := c.NormalizationConstant()
	for raw := usable * k; raw < usable*k+k; raw++ {
		for _, w := range d.groups[c].entries[raw].Words {
			if d.resolvesTo(c, w.Surface, usable) {
				return w, true
			}
		}
	}
	return Word{}, false
}

// CategoryStats summarises one category of the dictionary.
type CategoryStats struct {
	Category    string `json:"category"`
	Tag         string `json:"tag"`
	Lemmas      int    `json:"lemmas"`
	Forms       int    `json:"forms"`
	Cardinality int    `json:"cardinality"`
}

// Stats returns per-category counts in table order.
func (d *Dictionary) Stats() []CategoryStats {
	out := make([]CategoryStats, 0, numCategories)
	for _, c := range Categories {
		forms := 0
		for _, e := range d.groups[c].entries {
			forms += len(e.Words)
		}
		out = append(out, CategoryStats{
			Category:    c.String(),
			Tag:         c.Tag(),
			Lemmas:      d.RawCount(c),
			Forms:       forms,
			Cardinality: d.Cardinality(c),
		})
	}
	return out
}

func (d *Dictionary) computeFingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for _, c := range Categories {
		h.Write([]byte(c.Tag()))
		for idx, e := range d.groups[c].entries {
			binary.BigEndian.PutUint64(buf[:], uint64(idx))
			h.Write(buf[:])
			h.Write([]byte(e.Lemma))
			for _, w := range e.Words {
				h.Write([]byte{0})
				h.Write([]byte(w.String()))
			}
			h.Write([]byte{'\n'})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
