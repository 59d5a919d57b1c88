package lexicon

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"
)

// SnapshotMagic identifies a dictionary snapshot file ("ECDX").
const (
	SnapshotMagic   uint32 = 0x45434458
	SnapshotVersion uint32 = 1
	HeaderSize      int    = 32
	FooterSize      int    = 8
)

// SnapshotHeader is the fixed header at the start of every snapshot.
type SnapshotHeader struct {
	Magic     uint32
	Version   uint32
	Counts    [numCategories]uint32
	CreatedAt int64
}

type snapshotWord struct {
	Surface   string `json:"s"`
	Gender    Gender `json:"g,omitempty"`
	Number    Number `json:"n,omitempty"`
	Invariant string `json:"i,omitempty"`
	Tense     string `json:"t,omitempty"`
	Person    Person `json:"p,omitempty"`
}

type snapshotEntry struct {
	Category string         `json:"c"`
	Lemma    string         `json:"l"`
	Words    []snapshotWord `json:"w"`
}

// WriteSnapshot stores d at path so another process can reload the exact
// same lemma indices. The file is written to a .tmp sibling and renamed
// on success.
func WriteSnapshot(path string, d *Dictionary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], SnapshotMagic)
	binary.LittleEndian.PutUint32(header[4:8], SnapshotVersion)
	entries := make([]snapshotEntry, 0)
	for i, c := range Categories {
		binary.LittleEndian.PutUint32(header[8+4*i:12+4*i], uint32(d.RawCount(c)))
		for _, e := range d.groups[c].entries {
			words := make([]snapshotWord, len(e.Words))
			for j, w := range e.Words {
				words[j] = snapshotWord{
					Surface:   w.Surface,
					Gender:    w.Gender,
					Number:    w.Number,
					Invariant: w.Invariant,
					Tense:     w.Tense,
					Person:    w.Person,
				}
			}
			entries = append(entries, snapshotEntry{Category: c.Tag(), Lemma: e.Lemma, Words: words})
		}
	}
	binary.LittleEndian.PutUint64(header[24:32], uint64(time.Now().Unix()))

	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling snapshot entries: %w", err)
	}
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(body))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(body)))

	for _, part := range [][]byte{header, body, footer} {
		if _, err := f.Write(part); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

// ReadSnapshot loads a dictionary written by WriteSnapshot, checking the
// magic bytes, the checksum and the per-category counts.
func ReadSnapshot(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("invalid snapshot file: %d bytes is too short", len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != SnapshotMagic {
		return nil, fmt.Errorf("invalid snapshot file: bad magic bytes %x", magic)
	}
	header := SnapshotHeader{
		Magic:     magic,
		Version:   binary.LittleEndian.Uint32(data[4:8]),
		CreatedAt: int64(binary.LittleEndian.Uint64(data[24:32])),
	}
	if header.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", header.Version)
	}
	for i := range Categories {
		header.Counts[i] = binary.LittleEndian.Uint32(data[8+4*i : 12+4*i])
	}

	footer := data[len(data)-FooterSize:]
	body := data[HeaderSize : len(data)-FooterSize]
	if int(binary.LittleEndian.Uint32(footer[4:8])) != len(body) {
		return nil, fmt.Errorf("invalid snapshot file: body length mismatch")
	}
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(body) {
		return nil, fmt.Errorf("invalid snapshot file: checksum mismatch")
	}

	var entries []snapshotEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parsing snapshot entries: %w", err)
	}
	b := NewBuilder(Options{})
	for _, e := range entries {
		c, ok := ParseCategory(e.Category)
		if !ok {
			return nil, fmt.Errorf("snapshot entry %q: unknown category %q", e.Lemma, e.Category)
		}
		if len(e.Words) == 0 {
			return nil, fmt.Errorf("snapshot entry %q: no forms", e.Lemma)
		}
		for _, w := range e.Words {
			b.Add(e.Lemma, Word{
				Category:  c,
				Surface:   w.Surface,
				Gender:    w.Gender,
				Number:    w.Number,
				Invariant: w.Invariant,
				Tense:     w.Tense,
				Person:    w.Person,
			})
		}
	}
	for i, c := range Categories {
		if got := b.groups[c].len(); got != int(header.Counts[i]) {
			return nil, fmt.Errorf("snapshot %s count mismatch: header %d, entries %d", c, header.Counts[i], got)
		}
	}
	return b.Build(), nil
}
