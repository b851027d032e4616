package triage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/linnemanlabs/acuity/internal/patient"
)

// Source identifies which modality produced a signal.
type Source string

const (
	SourceSymptom Source = "symptom"
	SourceVital   Source = "vital"
	SourceImaging Source = "imaging"
	SourceLab     Source = "lab"
)

// Signal is a normalized unit of evidence on the common scale.
// Severity is 0..10, confidence 0..1. A confidence of 0 keeps the signal
// visible in the audit trail but excludes it from scoring. RawLabel is the
// original modality label and is never used in scoring.
type Signal struct {
	Source        Source  `json:"source"`
	Code          string  `json:"code"`
	Severity      float64 `json:"severity"`
	Confidence    float64 `json:"confidence"`
	RawLabel      string  `json:"raw_label,omitempty"`
	DurationHours int     `json:"duration_hours,omitempty"`
}

// UrgencyTier is the ordered urgency classification.
// Higher values are more urgent.
type UrgencyTier int

const (
	TierRoutine UrgencyTier = iota
	TierLow
	TierMedium
	TierHigh
	TierEmergency
)

var tierNames = map[UrgencyTier]string{
	TierRoutine:   "routine",
	TierLow:       "low",
	TierMedium:    "medium",
	TierHigh:      "high",
	TierEmergency: "emergency",
}

func (t UrgencyTier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier converts a tier name back to its ordered value.
func ParseTier(s string) (UrgencyTier, error) {
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return TierRoutine, fmt.Errorf("unknown urgency tier %q", s)
}

// MarshalJSON encodes the tier by name so stored assessments stay readable.
func (t UrgencyTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *UrgencyTier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Action is the escalation action attached to an assessment.
type Action string

const (
	ActionSelfCare            Action = "self_care"
	ActionScheduleFollowup    Action = "schedule_followup"
	ActionSpecialistReferral  Action = "specialist_referral"
	ActionUrgentConsult       Action = "urgent_consult"
	ActionImmediateEscalation Action = "immediate_escalation"
)

// State tracks where an encounter is in its lifecycle.
type State string

const (
	// StateIntake means the encounter is collecting signals.
	StateIntake State = "intake"

	// StateScoring means the pipeline is running.
	StateScoring State = "scoring"

	// StateDecided means a risk assessment is attached.
	StateDecided State = "decided"

	// Terminal dispositions reached from StateDecided.
	StateRoutineClosed     State = "routine_closed"
	StateFollowupScheduled State = "followup_scheduled"
	StateEscalated         State = "escalated"

	// StateCancelled is reachable from intake/scoring only.
	StateCancelled State = "cancelled"
)

// legalTransitions is the full transition table of the encounter state
// machine. Re-scoring re-enters scoring from decided and terminal states;
// cancellation is rejected once an assessment exists.
var legalTransitions = map[State][]State{
	StateIntake:            {StateScoring, StateCancelled},
	StateScoring:           {StateDecided, StateCancelled},
	StateDecided:           {StateRoutineClosed, StateFollowupScheduled, StateEscalated, StateScoring},
	StateRoutineClosed:     {StateScoring},
	StateFollowupScheduled: {StateScoring},
	StateEscalated:         {StateScoring},
	StateCancelled:         {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RiskAssessment is the immutable output artifact of one scoring run.
// Re-scoring appends a new assessment with the next version; prior
// assessments are preserved in the audit trail.
type RiskAssessment struct {
	Version        int         `json:"version"`
	Score          float64     `json:"score"`
	Tier           UrgencyTier `json:"urgency_tier"`
	Action         Action      `json:"action"`
	FollowUpHours  *int        `json:"follow_up_hours,omitempty"`
	TriggeredRules []string    `json:"triggered_rules,omitempty"`
	RuleErrors     []string    `json:"rule_errors,omitempty"`
	DroppedSources []Source    `json:"dropped_sources,omitempty"`
	FailClosed     bool        `json:"fail_closed,omitempty"`
	Signals        []Signal    `json:"signals,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// EscalationDecision is derived from a RiskAssessment and consumed by the
// notification subsystem. Never mutated after creation.
type EscalationDecision struct {
	EncounterID       string      `json:"encounter_id"`
	AssessmentVersion int         `json:"assessment_version"`
	Notify            bool        `json:"notify"`
	DeadlineHours     int         `json:"deadline_hours"`
	Tier              UrgencyTier `json:"urgency_tier"`
	Action            Action      `json:"action"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Encounter is one patient triage session, the unit of state and audit.
// Inputs accumulate during intake; Signals hold the normalized set from
// the most recent scoring run.
type Encounter struct {
	ID            string          `json:"id"`
	Age           int             `json:"age"`
	Gender        string          `json:"gender,omitempty"`
	State         State           `json:"state"`
	Inputs        *patient.Record `json:"inputs,omitempty"`
	Signals       []Signal        `json:"signals,omitempty"`
	LatestVersion int             `json:"latest_version,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
