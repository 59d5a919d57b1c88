package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/sentence"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/tracing"
)

// TranscriptStore is satisfied by *store.Store.
type TranscriptStore interface {
	Record(ctx context.Context, t *store.Transcript) error
	Get(ctx context.Context, id string) (*store.Transcript, error)
	Recent(ctx context.Context, limit int) ([]store.Transcript, error)
}

type Handler struct {
	pipeline        *pipeline.Pipeline
	transcripts     TranscriptStore
	maxPayloadBytes int
	logger          *slog.Logger
}

// New builds a Handler. transcripts may be nil, in which case nothing is
// recorded and the transcript endpoints answer 503.
func New(p *pipeline.Pipeline, transcripts TranscriptStore, maxPayloadBytes int) *Handler {
	return &Handler{
		pipeline:        p,
		transcripts:     transcripts,
		maxPayloadBytes: maxPayloadBytes,
		logger:          slog.Default().With("component", "api-handler"),
	}
}

func (h *Handler) Encode(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	ctx, span := tracing.Start(r.Context(), "api.encode", logger.RequestID(r.Context()))
	defer func() {
		span.End()
		span.Log(log)
	}()

	var req EncodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.bodyLimit())).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := ValidateEncodeRequest(&req, h.maxPayloadBytes); err != nil {
		h.writeValidationError(w, err)
		return
	}

	span.SetAttr("bytes", len(req.Payload))
	encodeCtx, encodeSpan := tracing.StartChild(ctx, "pipeline.encode")
	sentences, err := h.pipeline.Encode(encodeCtx, req.Payload)
	encodeSpan.End()
	if err != nil {
		log.Error("encode failed", "bytes", len(req.Payload), "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	resp := EncodeResponse{
		Sentences: make([]string, len(sentences)),
		Forms:     make([]string, len(sentences)),
		Bytes:     len(req.Payload),
	}
	if req.Prose {
		resp.Prose = make([]string, len(sentences))
	}
	for i, s := range sentences {
		resp.Sentences[i] = s.Annotated()
		resp.Forms[i] = s.Form.String()
		resp.Fallbacks += len(s.Fallbacks)
		if req.Prose {
			resp.Prose[i] = s.Render()
		}
	}
	resp.TranscriptID = h.record(ctx, store.DirectionSent, resp.Sentences, req.Payload)

	log.Info("payload encoded",
		"bytes", resp.Bytes,
		"sentences", len(resp.Sentences),
		"fallbacks", resp.Fallbacks,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	ctx, span := tracing.Start(r.Context(), "api.decode", logger.RequestID(r.Context()))
	defer func() {
		span.End()
		span.Log(log)
	}()

	var req DecodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.bodyLimit())).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := ValidateDecodeRequest(&req, h.maxPayloadBytes); err != nil {
		h.writeValidationError(w, err)
		return
	}

	span.SetAttr("sentences", len(req.Sentences))
	decodeCtx, decodeSpan := tracing.StartChild(ctx, "pipeline.decode")
	payload, err := h.pipeline.Decode(decodeCtx, req.Sentences)
	decodeSpan.End()
	if err != nil {
		log.Warn("decode failed",
			"sentences", len(req.Sentences),
			"reason", apperrors.Reason(err),
			"error", err,
		)
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	if payload == nil {
		payload = []byte{}
	}
	id := h.record(ctx, store.DirectionReceived, req.Sentences, payload)

	log.Info("payload decoded", "sentences", len(req.Sentences), "bytes", len(payload))
	h.writeJSON(w, http.StatusOK, DecodeResponse{TranscriptID: id, Payload: payload, Bytes: len(payload)})
}

func (h *Handler) Dictionary(w http.ResponseWriter, r *http.Request) {
	dict := h.pipeline.Dictionary()
	resp := DictionaryResponse{
		Fingerprint:     dict.Fingerprint(),
		Categories:      dict.Stats(),
		MaxPayloadBytes: h.maxPayloadBytes,
	}
	for _, f := range sentence.Forms {
		capacity := sentence.CapacityOf(dict, f)
		cats := f.Categories()
		order := make([]string, len(cats))
		for i, c := range cats {
			order[i] = c.Tag()
		}
		resp.Forms = append(resp.Forms, FormCapacity{
			Form:      f.String(),
			Order:     order,
			Capacity:  capacity.String(),
			Saturated: capacity.Saturated,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		h.writeError(w, http.StatusServiceUnavailable, "transcript store is disabled")
		return
	}
	t, err := h.transcripts.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "transcript not found")
		return
	case err != nil:
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("transcript lookup failed", "error", err)
			h.writeError(w, status, "transcript lookup failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		h.writeError(w, http.StatusServiceUnavailable, "transcript store is disabled")
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	list, err := h.transcripts.Recent(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("listing transcripts failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "listing transcripts failed")
		return
	}
	if list == nil {
		list = []store.Transcript{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"transcripts": list, "count": len(list)})
}

// DictionaryCheck reports the codec down when any category is empty, since
// nothing can then be encoded.
func (h *Handler) DictionaryCheck(ctx context.Context) health.ComponentHealth {
	for _, st := range h.pipeline.Dictionary().Stats() {
		if st.Cardinality == 0 {
			return health.ComponentHealth{
				Status:  health.StatusDown,
				Message: st.Category + " category is empty",
			}
		}
	}
	return health.ComponentHealth{Status: health.StatusUp}
}

// record stores a transcript and returns its ID. Failures are logged and
// do not fail the request.
func (h *Handler) record(ctx context.Context, dir store.Direction, sentences []string, payload []byte) string {
	if h.transcripts == nil {
		return ""
	}
	ctx, span := tracing.StartChild(ctx, "transcript.record")
	defer span.End()
	t := &store.Transcript{
		Direction:   dir,
		Fingerprint: h.pipeline.Dictionary().Fingerprint(),
		Sentences:   sentences,
		Payload:     payload,
	}
	if err := h.transcripts.Record(ctx, t); err != nil {
		logger.FromContext(ctx).Error("recording transcript failed", "direction", dir, "error", err)
		return ""
	}
	return t.ID
}

// bodyLimit bounds request bodies. A 7-byte chunk encodes to far less than
// 448 bytes of wire text.
func (h *Handler) bodyLimit() int64 {
	return int64(h.maxPayloadBytes)*64 + 64<<10
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}
