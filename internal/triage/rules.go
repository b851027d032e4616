package triage

import "fmt"

// Rule is a named predicate over the signal set. A rule with TierFloor
// above TierRoutine is tier-forcing: matching it raises the urgency floor
// regardless of score. Non-forcing rules contribute Weight to the raw
// score instead. Rules are immutable once built and are evaluated in
// slice order, forcing rules first.
type Rule struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`

	// Predicate: one or more qualifying codes at or above MinSeverity.
	// RequireAll demands a qualifying signal for every listed code
	// (co-occurrence); otherwise any one code suffices.
	Codes            []string `yaml:"codes"`
	RequireAll       bool     `yaml:"require_all,omitempty"`
	MinSeverity      float64  `yaml:"min_severity"`
	MinConfidence    float64  `yaml:"min_confidence,omitempty"`
	MinDurationHours int      `yaml:"min_duration_hours,omitempty"`

	// Optional patient conditions.
	MinAge *int   `yaml:"min_age,omitempty"`
	MaxAge *int   `yaml:"max_age,omitempty"`
	Gender string `yaml:"gender,omitempty"`

	TierFloor UrgencyTier `yaml:"-"`
	Weight    float64     `yaml:"weight,omitempty"`
}

// RuleSet is an immutable, versioned, priority-ordered rule table. It is
// read-only during evaluation and safe to share across concurrent
// encounters.
type RuleSet struct {
	Version string
	Rules   []Rule
}

// Evaluation is the outcome of one pass over the rule table.
type Evaluation struct {
	// Triggered rule IDs in evaluation order (the audit record).
	Triggered []string
	// Errors lists rules skipped due to invalid definitions.
	Errors []string
	// TierFloor is the highest floor among triggered forcing rules.
	TierFloor UrgencyTier
	// WeightSum is the total weight of triggered non-forcing rules.
	WeightSum float64
}

func (r *Rule) validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule has empty id")
	}
	if len(r.Codes) == 0 {
		return fmt.Errorf("rule %s has no qualifying codes", r.ID)
	}
	if r.MinSeverity < 0 || r.MinSeverity > 10 {
		return fmt.Errorf("rule %s min_severity %g out of range 0..10", r.ID, r.MinSeverity)
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("rule %s min_confidence %g out of range 0..1", r.ID, r.MinConfidence)
	}
	if r.Weight < 0 {
		return fmt.Errorf("rule %s has negative weight", r.ID)
	}
	return nil
}

// qualifies reports whether a single signal satisfies the rule's severity,
// confidence and duration conditions for the given code. Zero-confidence
// signals never qualify; they exist for the audit trail only.
func (r *Rule) qualifies(sig *Signal, code string) bool {
	if sig.Code != code {
		return false
	}
	if sig.Confidence <= 0 || sig.Confidence < r.MinConfidence {
		return false
	}
	if sig.Severity < r.MinSeverity {
		return false
	}
	if r.MinDurationHours > 0 && sig.DurationHours < r.MinDurationHours {
		return false
	}
	return true
}

// matches evaluates the full predicate against the signal set and patient
// attributes.
func (r *Rule) matches(signals []Signal, age int, gender string) bool {
	if r.MinAge != nil && age < *r.MinAge {
		return false
	}
	if r.MaxAge != nil && age > *r.MaxAge {
		return false
	}
	if r.Gender != "" && r.Gender != gender {
		return false
	}

	if r.RequireAll {
		for _, code := range r.Codes {
			found := false
			for i := range signals {
				if r.qualifies(&signals[i], code) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	for _, code := range r.Codes {
		for i := range signals {
			if r.qualifies(&signals[i], code) {
				return true
			}
		}
	}
	return false
}

// Evaluate runs a single deterministic pass over the rule table. A
// tier-forcing match raises only the floor; evaluation always continues
// through all rules so the triggered-rule audit record is complete.
// Invalid rules are skipped and recorded, never aborting the pass.
func (rs *RuleSet) Evaluate(signals []Signal, age int, gender string) Evaluation {
	var ev Evaluation
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if err := r.validate(); err != nil {
			id := r.ID
			if id == "" {
				id = fmt.Sprintf("rule_%d", i)
			}
			ev.Errors = append(ev.Errors, id)
			continue
		}
		if !r.matches(signals, age, gender) {
			continue
		}

		ev.Triggered = append(ev.Triggered, r.ID)
		if r.TierFloor > TierRoutine {
			if r.TierFloor > ev.TierFloor {
				ev.TierFloor = r.TierFloor
			}
		} else {
			ev.WeightSum += r.Weight
		}
	}
	return ev
}

func intPtr(v int) *int { return &v }

// DefaultRules is the built-in rule table, tier-forcing rules first.
// Thresholds follow the red-flag ladder of the clinical source material;
// weighted rules add score pressure without forcing a tier.
func DefaultRules() *RuleSet {
	return &RuleSet{
		Version: "2026-02",
		Rules: []Rule{
			{
				ID:          "cardiac_emergency",
				Description: "chest pain co-occurring with breathing difficulty",
				Codes:       []string{"chest_pain", "breathing_difficulty"},
				RequireAll:  true,
				MinSeverity: 6,
				TierFloor:   TierEmergency,
			},
			{
				ID:          "loss_of_consciousness",
				Codes:       []string{"unconscious", "unresponsive", "cardiac_arrest"},
				MinSeverity: 3,
				TierFloor:   TierEmergency,
			},
			{
				ID:          "stroke_signs",
				Codes:       []string{"stroke_symptoms", "facial_droop", "slurred_speech", "paralysis"},
				MinSeverity: 4,
				TierFloor:   TierEmergency,
			},
			{
				ID:          "severe_bleeding",
				Codes:       []string{"severe_bleeding", "hemorrhage"},
				MinSeverity: 5,
				TierFloor:   TierEmergency,
			},
			{
				ID:          "severe_hypoxia",
				Codes:       []string{"hypoxia"},
				MinSeverity: 8,
				TierFloor:   TierEmergency,
			},
			{
				ID:          "hypertensive_crisis",
				Codes:       []string{"hypertensive_crisis"},
				MinSeverity: 8,
				TierFloor:   TierHigh,
			},
			{
				ID:          "severe_chest_pain",
				Codes:       []string{"chest_pain"},
				MinSeverity: 7,
				TierFloor:   TierHigh,
			},
			{
				ID:          "severe_breathing_difficulty",
				Codes:       []string{"breathing_difficulty"},
				MinSeverity: 7,
				TierFloor:   TierHigh,
			},
			{
				ID:          "pediatric_high_fever",
				Codes:       []string{"fever"},
				MinSeverity: 7,
				MaxAge:      intPtr(5),
				TierFloor:   TierHigh,
			},

			// Weighted rules.
			{
				ID:          "chest_pain_present",
				Codes:       []string{"chest_pain"},
				MinSeverity: 4,
				Weight:      2.5,
			},
			{
				ID:          "breathing_difficulty_present",
				Codes:       []string{"breathing_difficulty"},
				MinSeverity: 4,
				Weight:      2.5,
			},
			{
				ID:          "high_fever",
				Codes:       []string{"fever"},
				MinSeverity: 7,
				Weight:      2.0,
			},
			{
				ID:               "persistent_cough",
				Codes:            []string{"cough"},
				MinSeverity:      4,
				MinDurationHours: 72,
				Weight:           1.5,
			},
			{
				ID:          "severe_headache",
				Codes:       []string{"headache"},
				MinSeverity: 7,
				Weight:      2.0,
			},
			{
				ID:          "unstable_vitals",
				Codes:       []string{"tachycardia", "bradycardia", "hypotension", "hypertension", "tachypnea"},
				MinSeverity: 6,
				Weight:      1.5,
			},
		},
	}
}
