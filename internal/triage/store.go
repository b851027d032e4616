package triage

import "context"

// Store is the persistence interface for encounters and their audit
// trail. Assessments are append-only and immutable once written; the
// implementation must keep concurrent appends for different encounters
// from interleaving (memstore serializes under a lock, pgstore through
// transactions).
type Store interface {
	Put(ctx context.Context, e *Encounter) error
	Get(ctx context.Context, id string) (*Encounter, bool, error)
	AppendAssessment(ctx context.Context, encounterID string, a *RiskAssessment) error
	Assessments(ctx context.Context, encounterID string) ([]*RiskAssessment, error)
}
