package triage

import (
	"errors"
	"fmt"
)

// Sentinel errors for the triage error taxonomy. Per-modality and per-rule
// failures degrade inside the pipeline and never surface as errors; only
// state violations and missing encounters are reported to the caller.
var (
	// ErrIncoherentState means an attempted transition is not legal for
	// the encounter's current state. The encounter is left unchanged.
	ErrIncoherentState = errors.New("incoherent encounter state")

	// ErrNotFound means the encounter does not exist.
	ErrNotFound = errors.New("encounter not found")

	// ErrInvalidInput means a record failed structural validation before
	// reaching the pipeline.
	ErrInvalidInput = errors.New("invalid input record")
)

// MalformedInputError describes a modality payload that could not be
// normalized. The modality's signals are dropped; other modalities proceed.
type MalformedInputError struct {
	Source Source
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s input: %s", e.Source, e.Reason)
}
