// Package patient defines the structured inputs the triage engine consumes
// from upstream collaborators: symptom extraction results, vital signs,
// imaging findings, and lab findings. Recognition itself (speech, NLP,
// image analysis) happens outside this service; these types are the wire
// contract for its already-extracted outputs.
package patient

import (
	"errors"
	"fmt"
	"math"
)

// SymptomEntity is one extracted symptom mention.
// SeverityHint and Confidence are optional; absent values are resolved by
// the normalizer (severity defaults to moderate, confidence to 1.0).
type SymptomEntity struct {
	Code          string   `json:"code"`
	RawLabel      string   `json:"raw_label,omitempty"`
	SeverityHint  *float64 `json:"severity_hint,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	DurationHours int      `json:"duration_hours,omitempty"`
}

// ImagingFinding is one scored finding from the imaging analysis pipeline.
type ImagingFinding struct {
	Code       string  `json:"code"`
	Severity   float64 `json:"severity"`
	Confidence float64 `json:"confidence"`
	Modality   string  `json:"modality,omitempty"`
}

// LabFinding is one scored finding from the lab analysis pipeline.
type LabFinding struct {
	Code               string  `json:"code"`
	Severity           float64 `json:"severity"`
	Confidence         float64 `json:"confidence"`
	ReferenceRangeFlag string  `json:"reference_range_flag,omitempty"`
}

// Record is the full per-encounter input payload. Any modality may be
// empty; an entirely absent modality contributes nothing to scoring.
type Record struct {
	Age        int                `json:"age"`
	Gender     string             `json:"gender,omitempty"`
	Symptoms   []SymptomEntity    `json:"symptoms,omitempty"`
	Vitals     map[string]float64 `json:"vitals,omitempty"`
	Imaging    []ImagingFinding   `json:"imaging,omitempty"`
	Labs       []LabFinding       `json:"labs,omitempty"`
	Transcript string             `json:"transcript,omitempty"`
}

// Validate checks record-level well-formedness. A failing record is
// rejected as a whole (per-record error in batch processing); modality
// internals that are structurally valid but unmappable are handled later
// by the normalizer, not here.
func (r *Record) Validate() error {
	var errs []error

	if r.Age < 0 || r.Age > 150 {
		errs = append(errs, fmt.Errorf("age %d out of range 0..150", r.Age))
	}
	for key, v := range r.Vitals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("vital %q is not a finite number", key))
		}
	}
	for i, s := range r.Symptoms {
		if s.Code == "" {
			errs = append(errs, fmt.Errorf("symptom %d has empty code", i))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Empty reports whether the record carries no evidence in any modality.
func (r *Record) Empty() bool {
	return len(r.Symptoms) == 0 && len(r.Vitals) == 0 && len(r.Imaging) == 0 && len(r.Labs) == 0
}

// Merge appends the other record's modality payloads onto r. Age and
// gender are taken from the original record; later inputs only add
// evidence.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	r.Symptoms = append(r.Symptoms, other.Symptoms...)
	if len(other.Vitals) > 0 {
		if r.Vitals == nil {
			r.Vitals = make(map[string]float64, len(other.Vitals))
		}
		for k, v := range other.Vitals {
			r.Vitals[k] = v
		}
	}
	r.Imaging = append(r.Imaging, other.Imaging...)
	r.Labs = append(r.Labs, other.Labs...)
	if other.Transcript != "" {
		r.Transcript = other.Transcript
	}
}
