package triage

import "fmt"

// Boundaries holds the lower score bound of each tier above ROUTINE.
// They must be strictly increasing and within (0,10].
type Boundaries struct {
	Low       float64 `yaml:"low"`
	Medium    float64 `yaml:"medium"`
	High      float64 `yaml:"high"`
	Emergency float64 `yaml:"emergency"`
}

// DefaultBoundaries returns the built-in tier boundaries. Calibration is
// configurable; the binding contract is monotonic, non-overlapping ranges.
func DefaultBoundaries() Boundaries {
	return Boundaries{Low: 2, Medium: 4, High: 6, Emergency: 8}
}

// Validate rejects non-monotonic or out-of-range boundary sets.
func (b Boundaries) Validate() error {
	if b.Low <= 0 || b.Low >= b.Medium || b.Medium >= b.High || b.High >= b.Emergency || b.Emergency > 10 {
		return fmt.Errorf("tier boundaries must satisfy 0 < low < medium < high < emergency <= 10, got %+v", b)
	}
	return nil
}

func (b Boundaries) tierForScore(score float64) UrgencyTier {
	switch {
	case score >= b.Emergency:
		return TierEmergency
	case score >= b.High:
		return TierHigh
	case score >= b.Medium:
		return TierMedium
	case score >= b.Low:
		return TierLow
	default:
		return TierRoutine
	}
}

// Classifier maps (score, triggered rules, age) to a tier, action and
// follow-up bound through a deterministic decision table.
type Classifier struct {
	Bounds Boundaries

	// Patients below PediatricAge or above ElderlyAge get their tier
	// floor raised one level; the numeric score is left untouched so it
	// stays comparable across age groups.
	PediatricAge int
	ElderlyAge   int
}

// NewClassifier builds a classifier, falling back to defaults for zero
// values.
func NewClassifier(bounds Boundaries, pediatricAge, elderlyAge int) (*Classifier, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if pediatricAge <= 0 {
		pediatricAge = 5
	}
	if elderlyAge <= 0 {
		elderlyAge = 65
	}
	return &Classifier{Bounds: bounds, PediatricAge: pediatricAge, ElderlyAge: elderlyAge}, nil
}

// followUpHours per tier; ROUTINE carries none.
var followUpHours = map[UrgencyTier]int{
	TierLow:       48,
	TierMedium:    24,
	TierHigh:      2,
	TierEmergency: 1,
}

// Classify is the decision table. Rules dominate the numeric score: any
// tier-forcing match raises the tier to at least its floor. usable=false
// means score computation failed upstream or the signal set was empty; the
// classifier then fails closed to at least MEDIUM with a scheduled
// follow-up, since absence of evidence is not evidence of low risk.
func (c *Classifier) Classify(score float64, ev Evaluation, age int, usable bool) (UrgencyTier, Action, *int) {
	tier := c.Bounds.tierForScore(score)

	if ev.TierFloor > tier {
		tier = ev.TierFloor
	}
	if !usable && tier < TierMedium {
		tier = TierMedium
	}

	// Fixed post-processing: higher baseline vulnerability at the age
	// extremes raises the floor one level.
	if (age < c.PediatricAge || age > c.ElderlyAge) && tier < TierEmergency {
		tier++
	}

	action := c.actionFor(tier, ev, usable)

	if h, ok := followUpHours[tier]; ok {
		hours := h
		return tier, action, &hours
	}
	return tier, action, nil
}

// Recommendations returns the patient-facing guidance for an action.
// Advisory text only; it never feeds back into scoring.
func Recommendations(a Action) []string {
	switch a {
	case ActionImmediateEscalation:
		return []string{
			"Call emergency services now",
			"Do not delay seeking care",
			"Have someone stay with the patient",
		}
	case ActionUrgentConsult:
		return []string{
			"Visit an emergency department within 1-2 hours",
			"Bring medical records",
			"Have someone accompany the patient",
		}
	case ActionSpecialistReferral:
		return []string{
			"Schedule a specialist appointment within 24 hours",
			"Monitor symptoms closely",
			"Rest and stay hydrated",
		}
	case ActionScheduleFollowup:
		return []string{
			"Schedule a doctor appointment within 24 hours",
			"Monitor symptoms closely",
			"Keep a symptom diary",
		}
	default:
		return []string{
			"Monitor symptoms",
			"Rest and home care",
			"Consult a doctor if symptoms worsen",
		}
	}
}

func (c *Classifier) actionFor(tier UrgencyTier, ev Evaluation, usable bool) Action {
	switch tier {
	case TierEmergency:
		return ActionImmediateEscalation
	case TierHigh:
		return ActionUrgentConsult
	case TierMedium:
		// A rule-qualified medium goes to a specialist; a fail-closed or
		// purely numeric medium gets a scheduled follow-up.
		if usable && len(ev.Triggered) > 0 {
			return ActionSpecialistReferral
		}
		return ActionScheduleFollowup
	default:
		return ActionSelfCare
	}
}
