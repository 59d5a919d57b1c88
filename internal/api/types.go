// Package api serves the codec over HTTP: payloads in, sentences out, and
// back again.
package api

import "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/lexicon"

// EncodeRequest is the body of POST /api/v1/encode. Payload travels as
// base64 in JSON.
type EncodeRequest struct {
	Payload []byte `json:"payload"`
	Prose   bool   `json:"prose"`
}

type EncodeResponse struct {
	TranscriptID string   `json:"transcript_id,omitempty"`
	Sentences    []string `json:"sentences"`
	Prose        []string `json:"prose,omitempty"`
	Forms        []string `json:"forms"`
	Fallbacks    int      `json:"fallbacks"`
	Bytes        int      `json:"bytes"`
}

// DecodeRequest is the body of POST /api/v1/decode. Either Sentences or
// Text (one sentence per line, '#' comments allowed) must be set.
type DecodeRequest struct {
	Sentences []string `json:"sentences"`
	Text      string   `json:"text"`
}

type DecodeResponse struct {
	TranscriptID string `json:"transcript_id,omitempty"`
	Payload      []byte `json:"payload"`
	Bytes        int    `json:"bytes"`
}

type FormCapacity struct {
	Form      string   `json:"form"`
	Order     []string `json:"order"`
	Capacity  string   `json:"capacity"`
	Saturated bool     `json:"saturated"`
}

type DictionaryResponse struct {
	Fingerprint     string                  `json:"fingerprint"`
	Categories      []lexicon.CategoryStats `json:"categories"`
	Forms           []FormCapacity          `json:"forms"`
	MaxPayloadBytes int                     `json:"max_payload_bytes"`
}
