package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
)

// loadDictionary reads the snapshot when it exists, otherwise every source
// in order. Lemma counts are published to m when it is non-nil.
func loadDictionary(cfg config.DictionaryConfig, m *metrics.Metrics) (*lexicon.Dictionary, error) {
	dict, err := readDictionary(cfg)
	if err != nil {
		return nil, err
	}
	if m != nil {
		for _, st := range dict.Stats() {
			m.DictionaryLemmas.WithLabelValues(st.Category).Set(float64(st.Cardinality))
		}
	}
	return dict, nil
}

func readDictionary(cfg config.DictionaryConfig) (*lexicon.Dictionary, error) {
	if cfg.Snapshot != "" {
		dict, err := lexicon.ReadSnapshot(cfg.Snapshot)
		switch {
		case err == nil:
			slog.Info("dictionary loaded from snapshot", "path", cfg.Snapshot)
			return dict, nil
		case errors.Is(err, fs.ErrNotExist) && len(cfg.Sources) > 0:
			slog.Warn("snapshot missing, loading word lists", "path", cfg.Snapshot)
		default:
			return nil, errors.Join(apperrors.ErrDictionaryLoad, err)
		}
	}
	return buildDictionary(cfg)
}

func buildDictionary(cfg config.DictionaryConfig) (*lexicon.Dictionary, error) {
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no word list sources configured: %w", apperrors.ErrDictionaryLoad)
	}
	b := lexicon.NewBuilder(lexicon.Options{SkipUnknownTags: cfg.SkipUnknownTags})
	for _, src := range cfg.Sources {
		if err := b.LoadPath(src); err != nil {
			return nil, errors.Join(apperrors.ErrDictionaryLoad, err)
		}
	}
	if n := b.Skipped(); n > 0 {
		slog.Warn("word list rows skipped for unknown tags", "rows", n)
	}
	return b.Build(), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
