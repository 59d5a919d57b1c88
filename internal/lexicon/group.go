package lexicon

// entry is one lemma: its key and every inflected form loaded for it, in
// load order.
type entry struct {
	Lemma string
	Words []Word
}

// lemmaGroup is the per-category lemma table. entries maps the sequential
// raw index to the lemma, keys maps the lemma back to its raw index. Both
// views are only ever changed together by insert.
type lemmaGroup struct {
	entries []*entry
	keys    map[string]int
}

func newLemmaGroup() *lemmaGroup {
	return &lemmaGroup{keys: make(map[string]int)}
}

// insert appends w to the lemma's forms, assigning the next raw index when
// the lemma is new. Indices are never reused.
func (g *lemmaGroup) insert(lemma string, w Word) (index int, created bool) {
	if idx, ok := g.keys[lemma]; ok {
		e := g.entries[idx]
		e.Words = append(e.Words, w)
		return idx, false
	}
	idx := len(g.entries)
	g.entries = append(g.entries, &entry{Lemma: lemma, Words: []Word{w}})
	g.keys[lemma] = idx
	return idx, true
}

func (g *lemmaGroup) len() int {
	return len(g.entries)
}

func (g *lemmaGroup) at(index int) (*entry, bool) {
	if index < 0 || index >= len(g.entries) {
		return nil, false
	}
	return g.entries[index], true
}

func (g *lemmaGroup) indexOfLemma(lemma string) (int, bool) {
	idx, ok := g.keys[lemma]
	return idx, ok
}

// clone deep-copies the group so a built Dictionary never shares backing
// arrays with a Builder that keeps loading.
func (g *lemmaGroup) clone() *lemmaGroup {
	out := &lemmaGroup{
		entries: make([]*entry, len(g.entries)),
		keys:    make(map[string]int, len(g.keys)),
	}
	for i, e := range g.entries {
		words := make([]Word, len(e.Words))
		copy(words, e.Words)
		out.entries[i] = &entry{Lemma: e.Lemma, Words: words}
	}
	for k, v := range g.keys {
		out.keys[k] = v
	}
	return out
}
