package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/chunk"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/relay"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/store"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/metrics"
)

func newSendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [file]",
		Short: "Encode bytes and publish the sentences to Kafka",
		Long: `Send encodes a payload and publishes one event per sentence to
kafka.topics.sentences, keyed by a fresh message ID which it prints.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			p, err := a.pipeline(nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			producer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.Sentences)
			defer producer.Close()

			id, n, err := relay.NewPublisher(producer, p, nil).Publish(ctx, payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d sentences\n", id, n)
			return nil
		},
	}
	return cmd
}

func newListenCmd(a *app) *cobra.Command {
	var ttl time.Duration
	var printPayloads bool
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Consume sentences from Kafka, decode messages and record them",
		Long: `Listen joins the consumer group on kafka.topics.sentences, reassembles
messages from their sentence events and decodes each complete message.
Decoded messages are recorded as transcripts in PostgreSQL, and with
--print also written to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listen(cmd.Context(), cmd.OutOrStdout(), ttl, printPayloads)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 10*time.Minute, "drop messages still incomplete after this long")
	cmd.Flags().BoolVar(&printPayloads, "print", false, "write each decoded payload to stdout")
	return cmd
}

func (a *app) listen(ctx context.Context, out io.Writer, ttl time.Duration, printPayloads bool) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, checker.ReadyHandler())
		defer shutdownMetrics(context.Background())
	}

	if err := kafka.Ping(ctx, cfg.Kafka.Brokers); err != nil {
		return err
	}
	checker.Register("kafka", health.Ping(false, func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}))

	var transcripts *store.Store
	if db, err := a.openStore(ctx); err != nil {
		if !printPayloads {
			return fmt.Errorf("postgres unavailable and --print not set: %w", err)
		}
		slog.Warn("postgres unavailable, transcripts disabled", "error", err)
	} else {
		defer db.Close()
		transcripts = store.New(db)
		checker.Register("postgres", health.Ping(printPayloads, db.Ping))
	}

	p, err := a.pipeline(m)
	if err != nil {
		return err
	}
	var mu sync.Mutex
	sink := relay.SinkFunc(func(ctx context.Context, msg *relay.Message, payload []byte) error {
		if transcripts != nil {
			err := transcripts.Record(ctx, &store.Transcript{
				ID:          msg.ID,
				Direction:   store.DirectionReceived,
				Fingerprint: p.Dictionary().Fingerprint(),
				Sentences:   msg.Lines,
				Payload:     payload,
			})
			if err != nil {
				return err
			}
		}
		if printPayloads {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "# message %s\n", msg.ID)
			if _, err := out.Write(payload); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		return nil
	})

	listener := relay.NewListener(relay.NewReassembler(ttl, chunk.Count(cfg.Server.MaxPayloadBytes)), p, sink, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Sentences, listener.Handle)
	slog.Info("listening for sentences",
		"topic", cfg.Kafka.Topics.Sentences,
		"group", cfg.Kafka.ConsumerGroup,
		"fingerprint", p.Dictionary().Fingerprint()[:12],
	)
	return consumer.Start(ctx)
}
