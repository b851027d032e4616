package triageapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

func (a *API) handleCreateEncounter(w http.ResponseWriter, r *http.Request) {
	var rec patient.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	enc, err := a.svc.Create(r.Context(), rec.Age, rec.Gender, &rec)
	if err != nil {
		a.writeError(w, r, err, "failed to create encounter")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.encounter.id", enc.ID))

	writeJSON(w, http.StatusCreated, enc)
}

func (a *API) handleAddInputs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.encounter.id", id))

	var rec patient.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	enc, err := a.svc.AddInputs(r.Context(), id, &rec)
	if err != nil {
		a.writeError(w, r, err, "failed to add inputs")
		return
	}

	writeJSON(w, http.StatusOK, enc)
}

// handleAddTranscript extracts symptom entities from a free-text
// transcript and merges them into the encounter's inputs. Extraction
// runs at the API edge only; the scoring pipeline never sees raw text.
func (a *API) handleAddTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.encounter.id", id))

	if a.extractor == nil {
		http.Error(w, `{"error":"transcript extraction not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		http.Error(w, `{"error":"empty transcript"}`, http.StatusBadRequest)
		return
	}

	entities, err := a.extractor.Extract(r.Context(), req.Transcript)
	if err != nil {
		a.logger.Error(r.Context(), err, "transcript extraction failed", "id", id)
		http.Error(w, `{"error":"extraction failed"}`, http.StatusBadGateway)
		return
	}

	span.SetAttributes(attribute.Int("acuity.extract.entities", len(entities)))

	enc, err := a.svc.AddInputs(r.Context(), id, &patient.Record{
		Symptoms:   entities,
		Transcript: req.Transcript,
	})
	if err != nil {
		a.writeError(w, r, err, "failed to merge extracted entities")
		return
	}

	writeJSON(w, http.StatusOK, enc)
}

func (a *API) handleScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.encounter.id", id))

	assessment, decision, err := a.svc.Score(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to score encounter")
		return
	}

	span.SetAttributes(
		attribute.String("acuity.triage.tier", assessment.Tier.String()),
		attribute.String("acuity.triage.action", string(assessment.Action)),
		attribute.Float64("acuity.triage.score", assessment.Score),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"assessment":      assessment,
		"decision":        decision,
		"recommendations": triage.Recommendations(assessment.Action),
	})
}

func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.encounter.id", id))

	if err := a.svc.Cancel(r.Context(), id); err != nil {
		a.writeError(w, r, err, "failed to cancel encounter")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
