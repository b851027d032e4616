// Package triageapi exposes the triage service over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/acuity/internal/extract"
	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

// TriageService defines the business operations triageapi needs.
type TriageService interface {
	Create(ctx context.Context, age int, gender string, inputs *patient.Record) (*triage.Encounter, error)
	AddInputs(ctx context.Context, id string, rec *patient.Record) (*triage.Encounter, error)
	Score(ctx context.Context, id string) (*triage.RiskAssessment, *triage.EscalationDecision, error)
	Cancel(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*triage.Encounter, bool, error)
	Assessments(ctx context.Context, id string) ([]*triage.RiskAssessment, error)
	Batch(ctx context.Context, records []*patient.Record) []triage.BatchResult
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger    log.Logger
	svc       TriageService
	extractor extract.Extractor
}

// New creates a new API handler. extractor may be nil, which disables the
// transcript endpoint.
func New(logger log.Logger, svc TriageService, extractor extract.Extractor) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	return &API{
		logger:    logger,
		svc:       svc,
		extractor: extractor,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/encounters", func(r chi.Router) {
			r.Post("/", a.handleCreateEncounter)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetEncounter)
				r.Get("/assessments", a.handleGetAssessments)
				r.Post("/inputs", a.handleAddInputs)
				r.Post("/transcript", a.handleAddTranscript)
				r.Post("/score", a.handleScore)
				r.Post("/cancel", a.handleCancel)
			})
		})
		r.Post("/triage/batch", a.handleBatch)
	})
}

func (a *API) handleGetEncounter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.encounter.id", id))

	enc, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get encounter", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("acuity.encounter.state", string(enc.State)))

	writeJSON(w, http.StatusOK, enc)
}

func (a *API) handleGetAssessments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("acuity.encounter.id", id))

	trail, err := a.svc.Assessments(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "failed to list assessments")
		return
	}
	if trail == nil {
		trail = []*triage.RiskAssessment{}
	}

	writeJSON(w, http.StatusOK, trail)
}

// writeError maps service errors onto HTTP statuses.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, triage.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, triage.ErrIncoherentState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, triage.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		a.logger.Error(r.Context(), err, msg)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
