// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/acuity/internal/patient"
	"github.com/linnemanlabs/acuity/internal/triage"
)

// Store holds encounters and their assessment trails in memory. Suitable
// for dev/testing. Appends are serialized under the lock so concurrent
// encounters never interleave audit records.
type Store struct {
	mu          sync.RWMutex
	encounters  map[string]*triage.Encounter
	assessments map[string][]*triage.RiskAssessment // encounter ID -> append-only trail
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		encounters:  make(map[string]*triage.Encounter),
		assessments: make(map[string][]*triage.RiskAssessment),
	}
}

// Put stores a copy of the encounter.
func (s *Store) Put(_ context.Context, e *triage.Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encounters[e.ID] = copyEncounter(e)
	return nil
}

// Get retrieves an encounter by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Encounter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.encounters[id]
	if !ok {
		return nil, false, nil
	}
	return copyEncounter(e), true, nil
}

// AppendAssessment appends to the encounter's immutable audit trail.
func (s *Store) AppendAssessment(_ context.Context, encounterID string, a *triage.RiskAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Signals = append([]triage.Signal(nil), a.Signals...)
	s.assessments[encounterID] = append(s.assessments[encounterID], &cp)
	return nil
}

// Assessments returns copies of the trail in append order.
func (s *Store) Assessments(_ context.Context, encounterID string) ([]*triage.RiskAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.assessments[encounterID]
	out := make([]*triage.RiskAssessment, 0, len(trail))
	for _, a := range trail {
		cp := *a
		cp.Signals = append([]triage.Signal(nil), a.Signals...)
		out = append(out, &cp)
	}
	return out, nil
}

func copyEncounter(e *triage.Encounter) *triage.Encounter {
	cp := *e
	cp.Signals = append([]triage.Signal(nil), e.Signals...)
	if e.Inputs != nil {
		rec := *e.Inputs
		rec.Symptoms = append([]patient.SymptomEntity(nil), e.Inputs.Symptoms...)
		rec.Imaging = append([]patient.ImagingFinding(nil), e.Inputs.Imaging...)
		rec.Labs = append([]patient.LabFinding(nil), e.Inputs.Labs...)
		if e.Inputs.Vitals != nil {
			rec.Vitals = make(map[string]float64, len(e.Inputs.Vitals))
			for k, v := range e.Inputs.Vitals {
				rec.Vitals[k] = v
			}
		}
		cp.Inputs = &rec
	}
	return &cp
}
