package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
)

// app carries the global flags and the loaded config to every command.
type app struct {
	configPath string
	logLevel   string
	workers    int
	seed       uint64
	timeout    time.Duration

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "corpse",
		Short: "Hide bytes in grammatical French sentences",
		Long: `corpse encodes arbitrary bytes as a sequence of grammatically agreeing
French sentences and decodes them back, using a shared word list.

Each 7-byte chunk of the payload becomes one sentence. The wire form is one
sentence per line of "Tag:surface" tokens, for example:

  Nom:chat Ver:mange Nom:souris Adj:grise

Both peers must load the same word list; "corpse snapshot" pins one.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Logging.Level = a.logLevel
			}
			if a.workers > 0 {
				cfg.Codec.Workers = a.workers
			}
			a.cfg = cfg
			// stdout carries sentences and payloads only
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to YAML config file (defaults plus EC_* env when empty)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&a.workers, "workers", 0, "override codec.workers")
	root.PersistentFlags().Uint64Var(&a.seed, "seed", 0, "seed synonym and article choice for reproducible output (0 = random)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 5*time.Minute, "operation timeout for one-shot commands")

	root.AddCommand(
		newEncodeCmd(a),
		newDecodeCmd(a),
		newStatsCmd(a),
		newSnapshotCmd(a),
		newKeygenCmd(a),
		newSealCmd(a),
		newOpenCmd(a),
		newServeCmd(a),
		newSendCmd(a),
		newListenCmd(a),
	)
	return root
}

// pipeline loads the configured dictionary and builds a codec pipeline
// over it. m may be nil.
func (a *app) pipeline(m *metrics.Metrics) (*pipeline.Pipeline, error) {
	dict, err := loadDictionary(a.cfg.Dictionary, m)
	if err != nil {
		return nil, err
	}
	return a.pipelineFor(dict, m), nil
}

func (a *app) pipelineFor(dict *lexicon.Dictionary, m *metrics.Metrics, opts ...pipeline.Option) *pipeline.Pipeline {
	base := []pipeline.Option{pipeline.WithWorkers(a.cfg.Codec.Workers)}
	if a.seed != 0 {
		base = append(base, pipeline.WithSeed(a.seed))
	}
	if m != nil {
		base = append(base, pipeline.WithMetrics(m))
	}
	return pipeline.New(dict, append(base, opts...)...)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
