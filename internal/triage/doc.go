// Package triage provides the business boundary for Acuity's multi-modal
// patient triage engine. It defines the Service (encounter state machine,
// re-scoring, batch processing), Engine (pure normalize/evaluate/score/
// classify pipeline), Store interface (persistence + audit trail), and
// domain models.
package triage
