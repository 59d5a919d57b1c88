// Package store records sent and received transcripts in PostgreSQL.
//
// It requires a `transcripts` table (created by EnsureSchema):
//
//	CREATE TABLE transcripts (
//	    id             UUID PRIMARY KEY,
//	    direction      TEXT NOT NULL,
//	    fingerprint    TEXT NOT NULL,
//	    sentences      TEXT[] NOT NULL,
//	    payload        BYTEA NOT NULL,
//	    payload_sha256 TEXT NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/postgres"
)

type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// ErrNotFound is returned by Get for an unknown transcript ID.
var ErrNotFound = errors.New("transcript not found")

const schema = `CREATE TABLE IF NOT EXISTS transcripts (
	id             UUID PRIMARY KEY,
	direction      TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	sentences      TEXT[] NOT NULL,
	payload        BYTEA NOT NULL,
	payload_sha256 TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS transcripts_created_at_idx ON transcripts (created_at DESC);`

// Transcript is one message as it crossed the wire.
type Transcript struct {
	ID            string    `json:"id"`
	Direction     Direction `json:"direction"`
	Fingerprint   string    `json:"fingerprint"`
	Sentences     []string  `json:"sentences"`
	Payload       []byte    `json:"payload"`
	PayloadSHA256 string    `json:"payload_sha256"`
	CreatedAt     time.Time `json:"created_at"`
}

// Prepare fills in the ID, digest and timestamp, and validates the rest.
func (t *Transcript) Prepare(now time.Time) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if _, err := uuid.Parse(t.ID); err != nil {
		return fmt.Errorf("transcript id %q: %w", t.ID, apperrors.ErrInvalidInput)
	}
	if t.Direction != DirectionSent && t.Direction != DirectionReceived {
		return fmt.Errorf("transcript direction %q: %w", t.Direction, apperrors.ErrInvalidInput)
	}
	if t.Fingerprint == "" {
		return fmt.Errorf("transcript without dictionary fingerprint: %w", apperrors.ErrInvalidInput)
	}
	if t.Sentences == nil {
		t.Sentences = []string{}
	}
	if t.Payload == nil {
		t.Payload = []byte{}
	}
	sum := sha256.Sum256(t.Payload)
	t.PayloadSHA256 = hex.EncodeToString(sum[:])
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now.UTC()
	}
	return nil
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "transcript-store"),
	}
}

// EnsureSchema creates the transcripts table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating transcripts schema: %w", err)
	}
	return nil
}

// Record stores t. Recording the same ID twice keeps the first copy, so
// redelivered relay messages are harmless.
func (s *Store) Record(ctx context.Context, t *Transcript) error {
	if err := t.Prepare(time.Now()); err != nil {
		return err
	}
	var inserted bool
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transcripts (id, direction, fingerprint, sentences, payload, payload_sha256, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
			t.ID, string(t.Direction), t.Fingerprint, pq.Array(t.Sentences), t.Payload, t.PayloadSHA256, t.CreatedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n == 1
		return nil
	})
	if err != nil {
		return fmt.Errorf("inserting transcript %s: %w", t.ID, err)
	}
	s.logger.Debug("transcript recorded",
		"id", t.ID,
		"direction", t.Direction,
		"sentences", len(t.Sentences),
		"duplicate", !inserted,
	)
	return nil
}

// Get loads one transcript by ID.
func (s *Store) Get(ctx context.Context, id string) (*Transcript, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("transcript id %q: %w", id, apperrors.ErrInvalidInput)
	}
	var t Transcript
	var direction string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, direction, fingerprint, sentences, payload, payload_sha256, created_at
		FROM transcripts WHERE id = $1`, id,
	).Scan(&t.ID, &direction, &t.Fingerprint, pq.Array(&t.Sentences), &t.Payload, &t.PayloadSHA256, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transcript %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying transcript %s: %w", id, err)
	}
	t.Direction = Direction(direction)
	return &t, nil
}

// Recent lists the newest transcripts without their payloads.
func (s *Store) Recent(ctx context.Context, limit int) ([]Transcript, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, direction, fingerprint, sentences, payload_sha256, created_at
		FROM transcripts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}
	defer rows.Close()

	var out []Transcript
	for rows.Next() {
		var t Transcript
		var direction string
		if err := rows.Scan(&t.ID, &direction, &t.Fingerprint, pq.Array(&t.Sentences), &t.PayloadSHA256, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transcript: %w", err)
		}
		t.Direction = Direction(direction)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transcripts: %w", err)
	}
	return out, nil
}
