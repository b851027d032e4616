package triageapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

// handleBatch scores a collection of records, one encounter each.
// Records are decoded individually so a single undecodable record
// produces a per-record error instead of rejecting the whole batch.
func (a *API) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("acuity.batch.size", len(req.Records)))

	records := make([]*patient.Record, len(req.Records))
	decodeErrs := make([]string, len(req.Records))
	for i, raw := range req.Records {
		var rec patient.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			decodeErrs[i] = "undecodable record: " + err.Error()
			continue
		}
		records[i] = &rec
	}

	results := a.svc.Batch(r.Context(), records)

	for i := range results {
		if decodeErrs[i] != "" {
			results[i] = triage.BatchResult{Index: i, Status: "error", Error: decodeErrs[i]}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
