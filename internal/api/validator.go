package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/chunk"
	"github.com/Adithya-Monish-Kumar-K/exquisite-corpse/internal/pipeline"
)

const maxSentenceLength = 4096

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%s", k, e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// ValidateEncodeRequest bounds the payload size.
func ValidateEncodeRequest(req *EncodeRequest, maxPayloadBytes int) error {
	if len(req.Payload) > maxPayloadBytes {
		return &ValidationError{Fields: map[string]string{
			"payload": fmt.Sprintf("payload must be at most %d bytes", maxPayloadBytes),
		}}
	}
	return nil
}

// ValidateDecodeRequest resolves Text into Sentences and bounds the number
// of sentences by what a maximal payload would need.
func ValidateDecodeRequest(req *DecodeRequest, maxPayloadBytes int) error {
	errs := make(map[string]string)

	if len(req.Sentences) > 0 && req.Text != "" {
		errs["text"] = "set either sentences or text, not both"
	} else if req.Text != "" {
		lines, err := pipeline.ReadSentences(strings.NewReader(req.Text))
		if err != nil {
			errs["text"] = err.Error()
		}
		req.Sentences = lines
	}

	if maxSentences := chunk.Count(maxPayloadBytes); len(req.Sentences) > maxSentences {
		errs["sentences"] = fmt.Sprintf("at most %d sentences are accepted", maxSentences)
	}
	for i, s := range req.Sentences {
		if len(s) > maxSentenceLength {
			errs[fmt.Sprintf("sentences[%d]", i)] = fmt.Sprintf("sentence must be at most %d characters", maxSentenceLength)
			break
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
