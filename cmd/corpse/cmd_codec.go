package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/sentence"
)

func newEncodeCmd(a *app) *cobra.Command {
	var prose bool
	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode bytes from a file or stdin into sentences",
		Long: `Encode reads a payload and writes one wire sentence per line.

With --prose each wire line is preceded by a readable rendering as a
'#' comment, which decode ignores.`,
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

			sentences, err := p.Encode(ctx, payload)
			if err != nil {
				return fmt.Errorf("encoding: %w", err)
			}
			w := bufio.NewWriter(cmd.OutOrStdout())
			for _, s := range sentences {
				if prose || a.cfg.Codec.Prose {
					fmt.Fprintf(w, "# %s\n", s.Render())
				}
				fmt.Fprintln(w, s.Annotated())
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&prose, "prose", false, "also print a readable rendering of each sentence")
	return cmd
}

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode wire sentences from a file or stdin back into bytes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closeFn, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer closeFn()
			p, err := a.pipeline(nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			payload, err := p.DecodeReader(ctx, r)
			if err != nil {
				return fmt.Errorf("decoding: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(payload)
			return err
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dictionary cardinalities and sentence capacities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dict, err := loadDictionary(a.cfg.Dictionary, nil)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statsReport(dict))
			}
			return writeStats(cmd.OutOrStdout(), dict)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

type formReport struct {
	Form     string `json:"form"`
	Order    string `json:"order"`
	Capacity string `json:"capacity"`
}

type dictionaryReport struct {
	Fingerprint string                  `json:"fingerprint"`
	Categories  []lexicon.CategoryStats `json:"categories"`
	Forms       []formReport            `json:"forms"`
}

func statsReport(dict *lexicon.Dictionary) dictionaryReport {
	r := dictionaryReport{Fingerprint: dict.Fingerprint(), Categories: dict.Stats()}
	for _, f := range sentence.Forms {
		tags := make([]string, 0, 6)
		for _, c := range f.Categories() {
			tags = append(tags, c.Tag())
		}
		r.Forms = append(r.Forms, formReport{
			Form:     f.String(),
			Order:    strings.Join(tags, " "),
			Capacity: sentence.CapacityOf(dict, f).String(),
		})
	}
	return r
}

func writeStats(out io.Writer, dict *lexicon.Dictionary) error {
	r := statsReport(dict)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "fingerprint\t%s\n\n", r.Fingerprint)
	fmt.Fprintln(tw, "CATEGORY\tTAG\tLEMMAS\tFORMS\tCARDINALITY")
	for _, c := range r.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", c.Category, c.Tag, c.Lemmas, c.Forms, c.Cardinality)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "FORM\tORDER\tCAPACITY")
	for _, f := range r.Forms {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Form, f.Order, f.Capacity)
	}
	return tw.Flush()
}

func newSnapshotCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "snapshot <output>",
		Short: "Compile the configured word lists into a snapshot file",
		Long: `Snapshot loads dictionary.sources and writes a binary snapshot that
pins every lemma index. Point dictionary.snapshot at the file on both
peers to guarantee they agree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := args[0]
			if fileExists(out) && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", out)
			}
			dict, err := buildDictionary(a.cfg.Dictionary)
			if err != nil {
				return err
			}
			if err := lexicon.WriteSnapshot(out, dict); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (fingerprint %s)\n", out, dict.Fingerprint())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing snapshot")
	return cmd
}

// readInput returns the whole of args[0], or of stdin when no file is
// given.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	r, closeFn, err := openInput(cmd, args)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, func() { f.Close() }, nil
}
