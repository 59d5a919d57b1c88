package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/exchange"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/pipeline"
)

func newKeygenCmd(a *app) *cobra.Command {
	var keyPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a key pair and print the public key as sentences",
		Long: `Keygen writes a new P-256 private key to --key and prints the public key
as wire sentences. Send those sentences to your peer; they pass them to
seal and open with --peer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fileExists(keyPath) && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", keyPath)
			}
			kx := exchange.NewECDH()
			pub, err := kx.GenerateKeyPair()
			if err != nil {
				return err
			}
			if err := kx.SavePrivateKeyFile(keyPath); err != nil {
				return err
			}
			p, err := a.pipeline(nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()
			lines, err := p.EncodeWire(ctx, pub)
			if err != nil {
				return fmt.Errorf("encoding public key: %w", err)
			}
			return writeLines(cmd.OutOrStdout(), "public key, "+p.Dictionary().Fingerprint()[:12], lines)
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "corpse.key", "where to write the private key (PEM)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing key")
	return cmd
}

// sessionFlags are shared by seal and open.
type sessionFlags struct {
	keyPath  string
	peerPath string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keyPath, "key", "corpse.key", "local private key (PEM) written by keygen")
	cmd.Flags().StringVar(&f.peerPath, "peer", "", "file holding the peer's public key sentences")
	cmd.MarkFlagRequired("peer")
}

// load returns the local key and the decoded peer public key.
func (f *sessionFlags) load(ctx context.Context, p *pipeline.Pipeline) (*exchange.ECDH, []byte, error) {
	kx, err := exchange.LoadPrivateKeyFile(f.keyPath)
	if err != nil {
		return nil, nil, err
	}
	peerFile, err := os.Open(f.peerPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening peer key: %w", err)
	}
	defer peerFile.Close()
	peer, err := p.DecodeReader(ctx, peerFile)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding peer key: %w", err)
	}
	return kx, peer, nil
}

func newSealCmd(a *app) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "seal [file]",
		Short: "Encrypt bytes for a peer and print the ciphertext as sentences",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			p, err := a.pipeline(nil)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			kx, peer, err := flags.load(ctx, p)
			if err != nil {
				return err
			}
			ciphertext, err := exchange.Seal(kx, exchange.NewAESGCM(), peer, plaintext)
			if err != nil {
				return err
			}
			lines, err := p.EncodeWire(ctx, ciphertext)
			if err != nil {
				return fmt.Errorf("encoding ciphertext: %w", err)
			}
			return writeLines(cmd.OutOrStdout(), "", lines)
		},
	}
	flags.register(cmd)
	return cmd
}

func newOpenCmd(a *app) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "open [file]",
		Short: "Decrypt ciphertext sentences from a peer",
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

			kx, peer, err := flags.load(ctx, p)
			if err != nil {
				return err
			}
			ciphertext, err := p.DecodeReader(ctx, r)
			if err != nil {
				return fmt.Errorf("decoding ciphertext: %w", err)
			}
			plaintext, err := exchange.Open(kx, exchange.NewAESGCM(), peer, ciphertext)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(plaintext)
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

// writeLines prints wire lines, preceded by a '#' comment when header is
// set.
func writeLines(out io.Writer, header string, lines []string) error {
	w := bufio.NewWriter(out)
	if header != "" {
		fmt.Fprintf(w, "# %s\n", header)
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	return w.Flush()
}
