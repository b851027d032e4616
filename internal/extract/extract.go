// Package extract turns free-text clinical transcripts into structured
// symptom entities. Extraction is an edge concern: the scoring pipeline
// never calls it, it only ever enriches an encounter's inputs before
// scoring is requested.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// Extractor derives symptom entities from a narrative transcript.
type Extractor interface {
	Extract(ctx context.Context, transcript string) ([]patient.SymptomEntity, error)
}

// entityDoc is the wire shape the model is asked to emit.
type entityDoc struct {
	Code          string   `json:"code"`
	RawLabel      string   `json:"raw_label,omitempty"`
	SeverityHint  *float64 `json:"severity_hint,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	DurationHours float64  `json:"duration_hours,omitempty"`
}

// ParseEntities decodes a model response into symptom entities. The
// response must be a JSON array, optionally wrapped in a markdown code
// fence. Entities without a code are rejected rather than silently
// dropped: a response we cannot trust is a response we do not use.
func ParseEntities(raw string) ([]patient.SymptomEntity, error) {
	raw = stripFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil, errors.New("empty extraction response")
	}

	var docs []entityDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}

	out := make([]patient.SymptomEntity, 0, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Code) == "" {
			return nil, fmt.Errorf("entity %d: missing code", i)
		}
		out = append(out, patient.SymptomEntity{
			Code:          strings.ToLower(strings.TrimSpace(d.Code)),
			RawLabel:      d.RawLabel,
			SeverityHint:  d.SeverityHint,
			Confidence:    d.Confidence,
			DurationHours: int(d.DurationHours),
		})
	}
	return out, nil
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
