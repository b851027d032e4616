package triage

import (
	"fmt"
	"sort"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// defaultSymptomSeverity is used when the extractor provides no hint.
const defaultSymptomSeverity = 5.0

// vitalBand maps a half-open measurement range [Lo, Hi) to a canonical
// code and severity. Bands are checked in order; first match wins.
type vitalBand struct {
	Lo, Hi   float64
	Code     string
	Severity float64
}

const (
	negInf = -1e308
	posInf = 1e308
)

// vitalBands holds the fixed deviation-from-normal-range mappings per
// vital-sign key. Severity 0 bands keep normal readings visible in the
// audit trail without contributing to the score.
var vitalBands = map[string][]vitalBand{
	"temperature": {
		{negInf, 95, "hypothermia", 8},
		{95, 99, "temperature", 0},
		{99, 100.4, "fever", 2},
		{100.4, 102, "fever", 5},
		{102, 103, "fever", 7},
		{103, posInf, "fever", 9},
	},
	"heart_rate": {
		{negInf, 40, "bradycardia", 8},
		{40, 50, "bradycardia", 6},
		{50, 60, "bradycardia", 3},
		{60, 100, "heart_rate", 0},
		{100, 120, "tachycardia", 4},
		{120, 150, "tachycardia", 7},
		{150, posInf, "tachycardia", 9},
	},
	"systolic_bp": {
		{negInf, 80, "hypotension", 8},
		{80, 90, "hypotension", 6},
		{90, 100, "hypotension", 3},
		{100, 140, "systolic_bp", 0},
		{140, 160, "hypertension", 3},
		{160, 180, "hypertension", 6},
		{180, posInf, "hypertensive_crisis", 9},
	},
	"diastolic_bp": {
		{negInf, 50, "hypotension", 5},
		{50, 60, "hypotension", 2},
		{60, 90, "diastolic_bp", 0},
		{90, 110, "hypertension", 3},
		{110, 120, "hypertension", 6},
		{120, posInf, "hypertensive_crisis", 9},
	},
	"respiratory_rate": {
		{negInf, 8, "bradypnea", 8},
		{8, 12, "bradypnea", 4},
		{12, 20, "respiratory_rate", 0},
		{20, 30, "tachypnea", 5},
		{30, posInf, "tachypnea", 8},
	},
	"oxygen_saturation": {
		{negInf, 85, "hypoxia", 10},
		{85, 90, "hypoxia", 8},
		{90, 94, "hypoxia", 5},
		{94, posInf, "oxygen_saturation", 0},
	},
}

// Normalize translates the per-modality payloads of a record into a flat,
// deterministically ordered signal sequence. A modality that cannot be
// normalized is dropped as a whole and reported; the others proceed.
// This is pure format/unit translation, no clinical judgment.
func Normalize(rec *patient.Record) (signals []Signal, dropped []Source) {
	if rec == nil {
		return nil, nil
	}

	if s, err := normalizeSymptoms(rec.Symptoms); err != nil {
		dropped = append(dropped, SourceSymptom)
	} else {
		signals = append(signals, s...)
	}

	signals = append(signals, normalizeVitals(rec.Vitals)...)

	if s, err := normalizeImaging(rec.Imaging); err != nil {
		dropped = append(dropped, SourceImaging)
	} else {
		signals = append(signals, s...)
	}

	if s, err := normalizeLabs(rec.Labs); err != nil {
		dropped = append(dropped, SourceLab)
	} else {
		signals = append(signals, s...)
	}

	return signals, dropped
}

func normalizeSymptoms(entities []patient.SymptomEntity) ([]Signal, error) {
	signals := make([]Signal, 0, len(entities))
	for i, e := range entities {
		if e.Code == "" {
			return nil, &MalformedInputError{Source: SourceSymptom, Reason: fmt.Sprintf("entity %d missing code", i)}
		}

		severity := defaultSymptomSeverity
		if e.SeverityHint != nil {
			severity = clampSeverity(*e.SeverityHint)
		}
		// Sources without explicit confidence count as fully confident.
		confidence := 1.0
		if e.Confidence != nil {
			confidence = clampConfidence(*e.Confidence)
		}

		signals = append(signals, Signal{
			Source:        SourceSymptom,
			Code:          e.Code,
			Severity:      severity,
			Confidence:    confidence,
			RawLabel:      e.RawLabel,
			DurationHours: e.DurationHours,
		})
	}
	return signals, nil
}

// normalizeVitals maps each measurement through its band table. Keys are
// sorted so the output order is stable across runs. Unknown keys are
// retained at severity 0, confidence 0 rather than dropped.
func normalizeVitals(vitals map[string]float64) []Signal {
	if len(vitals) == 0 {
		return nil
	}

	keys := make([]string, 0, len(vitals))
	for k := range vitals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	signals := make([]Signal, 0, len(keys))
	for _, key := range keys {
		value := vitals[key]
		raw := fmt.Sprintf("%s=%g", key, value)

		bands, ok := vitalBands[key]
		if !ok {
			signals = append(signals, Signal{
				Source:   SourceVital,
				Code:     key,
				RawLabel: raw,
			})
			continue
		}

		for _, b := range bands {
			if value >= b.Lo && value < b.Hi {
				signals = append(signals, Signal{
					Source:     SourceVital,
					Code:       b.Code,
					Severity:   b.Severity,
					Confidence: 1.0,
					RawLabel:   raw,
				})
				break
			}
		}
	}
	return signals
}

func normalizeImaging(findings []patient.ImagingFinding) ([]Signal, error) {
	signals := make([]Signal, 0, len(findings))
	for i, f := range findings {
		if f.Code == "" {
			return nil, &MalformedInputError{Source: SourceImaging, Reason: fmt.Sprintf("finding %d missing code", i)}
		}
		signals = append(signals, Signal{
			Source:     SourceImaging,
			Code:       f.Code,
			Severity:   clampSeverity(f.Severity),
			Confidence: clampConfidence(f.Confidence),
			RawLabel:   f.Modality,
		})
	}
	return signals, nil
}

func normalizeLabs(findings []patient.LabFinding) ([]Signal, error) {
	signals := make([]Signal, 0, len(findings))
	for i, f := range findings {
		if f.Code == "" {
			return nil, &MalformedInputError{Source: SourceLab, Reason: fmt.Sprintf("finding %d missing code", i)}
		}
		signals = append(signals, Signal{
			Source:     SourceLab,
			Code:       f.Code,
			Severity:   clampSeverity(f.Severity),
			Confidence: clampConfidence(f.Confidence),
			RawLabel:   f.ReferenceRangeFlag,
		})
	}
	return signals, nil
}

func clampSeverity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
