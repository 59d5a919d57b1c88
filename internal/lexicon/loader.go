package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// Options controls how word-list rows are interpreted.
type Options struct {
	// SkipUnknownTags skips rows whose part of speech is not one of the
	// four codec categories instead of failing the load.
	SkipUnknownTags bool
}

// LoadError identifies the row that made a load fail.
type LoadError struct {
	Source string
	Line   int
	Row    string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s:%d: %v (row %q)", e.Source, e.Line, e.Err, e.Row)
}

func (e *LoadError) Unwrap() []error {
	return []error{apperrors.ErrDictionaryLoad, e.Err}
}

var errUnknownTag = errors.New("unknown tag")

// Builder accumulates word-list sources. Each category keeps its own
// lemma table and raw-index counter, so later sources extend lemmas that
// earlier ones introduced.
type Builder struct {
	groups  [numCategories]*lemmaGroup
	opts    Options
	skipped int
	logger  *slog.Logger
}

func NewBuilder(opts Options) *Builder {
	b := &Builder{
		opts:   opts,
		logger: slog.Default().With("component", "dictionary-loader"),
	}
	for _, c := range Categories {
		b.groups[c] = newLemmaGroup()
	}
	return b
}

// row is one parsed word-list line.
type row struct {
	lemma string
	words []Word
}

// Load parses every row of r and adds it to the builder. The source is
// applied all-or-nothing: a malformed row leaves the builder unchanged.
func (b *Builder) Load(r io.Reader, source string) error {
	var rows []row
	skipped := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := parseRow(line)
		if err != nil {
			if errors.Is(err, errUnknownTag) && b.opts.SkipUnknownTags {
				skipped++
				continue
			}
			return &LoadError{Source: source, Line: lineNo, Row: line, Err: err}
		}
		rows = append(rows, parsed)
	}
	if err := sc.Err(); err != nil {
		return &LoadError{Source: source, Line: lineNo, Err: fmt.Errorf("reading: %w", err)}
	}

	for _, r := range rows {
		for _, w := range r.words {
			b.Add(r.lemma, w)
		}
	}
	b.skipped += skipped
	b.logger.Info("word list loaded",
		"source", source,
		"rows", len(rows),
		"skipped", skipped,
	)
	return nil
}

// LoadFile loads a single word-list file.
func (b *Builder) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening word list %s: %w", path, err)
	}
	defer f.Close()
	return b.Load(f, path)
}

// LoadDir loads every regular file of dir in name order, so that a given
// directory always yields the same lemma indices.
func (b *Builder) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading word list directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if err := b.LoadFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// LoadPath loads path as a directory or a single file.
func (b *Builder) LoadPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("word list %s: %w", path, err)
	}
	if info.IsDir() {
		return b.LoadDir(path)
	}
	return b.LoadFile(path)
}

// Add inserts one form under lemma in its category's table.
func (b *Builder) Add(lemma string, w Word) {
	b.groups[w.Category].insert(lemma, w)
}

// Skipped returns how many rows were skipped for unknown tags.
func (b *Builder) Skipped() int {
	return b.skipped
}

// Build freezes the current tables into a Dictionary. The builder may keep
// loading afterwards without affecting the returned value.
func (b *Builder) Build() *Dictionary {
	var groups [numCategories]*lemmaGroup
	for _, c := range Categories {
		groups[c] = b.groups[c].clone()
	}
	d := newDictionary(groups)
	b.logger.Info("dictionary built",
		"nouns", d.Cardinality(Noun),
		"adjectives", d.Cardinality(Adjective),
		"verbs", d.Cardinality(Verb),
		"adverbs", d.Cardinality(Adverb),
		"fingerprint", d.Fingerprint()[:12],
	)
	return d
}

// parseRow reads "surface lemma tag[:features...]". Extra whitespace
// separated fields are treated as further tag groups of the same row.
func parseRow(line string) (row, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
	if len(fields) < 3 {
		return row{}, fmt.Errorf("expected surface, lemma and tag, got %d fields", len(fields))
	}
	surface, lemma := fields[0], fields[1]
	meta := strings.Split(strings.Join(fields[2:], ""), ":")

	cat, ok := ParseCategory(meta[0])
	if !ok {
		return row{}, fmt.Errorf("%w %q", errUnknownTag, meta[0])
	}
	switch cat {
	case Adverb:
		return row{lemma: lemma, words: []Word{NewAdverb(surface)}}, nil
	case Noun:
		w, err := parseNoun(surface, meta)
		if err != nil {
			return row{}, err
		}
		return row{lemma: lemma, words: []Word{w}}, nil
	case Adjective:
		w, err := parseAdjective(surface, meta)
		if err != nil {
			return row{}, err
		}
		return row{lemma: lemma, words: []Word{w}}, nil
	default:
		words, err := parseVerb(surface, meta)
		if err != nil {
			return row{}, err
		}
		return row{lemma: lemma, words: words}, nil
	}
}

func parseNoun(surface string, meta []string) (Word, error) {
	if len(meta) != 2 || meta[1] == "" {
		return Word{}, fmt.Errorf("noun needs one gender+number feature group")
	}
	data := strings.Split(meta[1], "+")
	switch len(data) {
	case 1:
		n, err := parseNumber(data[0])
		if err != nil {
			return Word{}, err
		}
		return NewNoun(surface, GenderNone, n), nil
	case 2:
		g, err := parseGender(data[0])
		if err != nil {
			return Word{}, err
		}
		n, err := parseNumber(data[1])
		if err != nil {
			return Word{}, err
		}
		return NewNoun(surface, g, n), nil
	default:
		return Word{}, fmt.Errorf("noun feature %q: expected gender+number", meta[1])
	}
}

func parseAdjective(surface string, meta []string) (Word, error) {
	if len(meta) != 2 || meta[1] == "" {
		return Word{}, fmt.Errorf("adjective needs one feature group")
	}
	data := strings.Split(meta[1], "+")
	switch len(data) {
	case 1:
		return NewInvariantAdjective(surface, data[0]), nil
	case 2:
		g, err := parseGender(data[0])
		if err != nil {
			return Word{}, err
		}
		n, err := parseNumber(data[1])
		if err != nil {
			return Word{}, err
		}
		return NewAdjective(surface, g, n), nil
	default:
		return Word{}, fmt.Errorf("adjective feature %q: expected gender+number or invariant type", meta[1])
	}
}

// parseVerb returns one form per tag group: finite tenses carry
// number+person, a past participle may carry gender+number.
func parseVerb(surface string, meta []string) ([]Word, error) {
	if len(meta) < 2 {
		return nil, fmt.Errorf("verb needs at least one tense group")
	}
	words := make([]Word, 0, len(meta)-1)
	for _, group := range meta[1:] {
		data := strings.Split(group, "+")
		tense := data[0]
		if tense == "" {
			return nil, fmt.Errorf("verb group %q: empty tense", group)
		}
		switch {
		case !isNonFinite(tense):
			if len(data) != 3 {
				return nil, fmt.Errorf("verb group %q: finite tense needs number+person", group)
			}
			n, err := parseNumber(data[1])
			if err != nil {
				return nil, err
			}
			p, err := parsePerson(data[2])
			if err != nil {
				return nil, err
			}
			words = append(words, NewVerb(surface, tense, n, p, GenderNone))
		case tense == TensePastParticiple && len(data) == 3:
			g, err := parseGender(data[1])
			if err != nil {
				return nil, err
			}
			n, err := parseNumber(data[2])
			if err != nil {
				return nil, err
			}
			words = append(words, NewVerb(surface, tense, n, PersonNone, g))
		default:
			words = append(words, NewVerb(surface, tense, NumberNone, PersonNone, GenderNone))
		}
	}
	return words, nil
}
