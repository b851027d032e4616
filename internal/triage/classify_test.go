package triage

import (
	"strings"
	"testing"
)

func mustClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultBoundaries(), 5, 65)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestBoundaries_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		b       Boundaries
		wantErr bool
	}{
		{"defaults", DefaultBoundaries(), false},
		{"custom", Boundaries{Low: 1, Medium: 3, High: 5.5, Emergency: 9}, false},
		{"zero low", Boundaries{Low: 0, Medium: 4, High: 6, Emergency: 8}, true},
		{"not increasing", Boundaries{Low: 4, Medium: 4, High: 6, Emergency: 8}, true},
		{"inverted", Boundaries{Low: 6, Medium: 4, High: 8, Emergency: 9}, true},
		{"emergency above scale", Boundaries{Low: 2, Medium: 4, High: 6, Emergency: 11}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.b.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%+v) = %v, wantErr %v", tt.b, err, tt.wantErr)
			}
		})
	}
}

func TestTierForScore_LowerBoundsInclusive(t *testing.T) {
	t.Parallel()

	b := DefaultBoundaries()

	tests := []struct {
		score float64
		want  UrgencyTier
	}{
		{0, TierRoutine},
		{1.99, TierRoutine},
		{2, TierLow},
		{3.99, TierLow},
		{4, TierMedium},
		{5.99, TierMedium},
		{6, TierHigh},
		{7.99, TierHigh},
		{8, TierEmergency},
		{10, TierEmergency},
	}

	for _, tt := range tests {
		if got := b.tierForScore(tt.score); got != tt.want {
			t.Errorf("tierForScore(%g) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestNewClassifier(t *testing.T) {
	t.Parallel()

	if _, err := NewClassifier(Boundaries{Low: 5, Medium: 2, High: 6, Emergency: 8}, 5, 65); err == nil {
		t.Error("expected error for invalid boundaries")
	}

	c, err := NewClassifier(DefaultBoundaries(), 0, 0)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	if c.PediatricAge != 5 || c.ElderlyAge != 65 {
		t.Errorf("age defaults = %d/%d, want 5/65", c.PediatricAge, c.ElderlyAge)
	}
}

func TestClassify_ScoreOnly(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	tier, action, hours := c.Classify(2.8, Evaluation{}, 30, true)
	if tier != TierLow || action != ActionSelfCare {
		t.Errorf("got %s/%s, want low/self_care", tier, action)
	}
	if hours == nil || *hours != 48 {
		t.Errorf("follow-up = %v, want 48h", hours)
	}
}

func TestClassify_RoutineHasNoFollowUp(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	tier, action, hours := c.Classify(0.5, Evaluation{}, 30, true)
	if tier != TierRoutine || action != ActionSelfCare {
		t.Errorf("got %s/%s, want routine/self_care", tier, action)
	}
	if hours != nil {
		t.Errorf("follow-up = %d, want none", *hours)
	}
}

func TestClassify_TierFloorDominatesScore(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	tier, action, hours := c.Classify(1.0, Evaluation{
		Triggered: []string{"loss_of_consciousness"},
		TierFloor: TierEmergency,
	}, 30, true)
	if tier != TierEmergency {
		t.Errorf("tier = %s, want emergency (forcing rule beats a low score)", tier)
	}
	if action != ActionImmediateEscalation {
		t.Errorf("action = %s, want immediate_escalation", action)
	}
	if hours == nil || *hours != 1 {
		t.Errorf("follow-up = %v, want 1h", hours)
	}
}

func TestClassify_FloorNeverLowers(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	tier, _, _ := c.Classify(9.0, Evaluation{TierFloor: TierMedium, Triggered: []string{"x"}}, 30, true)
	if tier != TierEmergency {
		t.Errorf("tier = %s, want emergency (floor must not lower a high score)", tier)
	}
}

func TestClassify_FailClosed(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	tier, action, hours := c.Classify(0, Evaluation{}, 30, false)
	if tier != TierMedium {
		t.Errorf("tier = %s, want medium floor when evidence is unusable", tier)
	}
	if action != ActionScheduleFollowup {
		t.Errorf("action = %s, want schedule_followup", action)
	}
	if hours == nil || *hours != 24 {
		t.Errorf("follow-up = %v, want 24h", hours)
	}
}

func TestClassify_FailClosedKeepsHigherTier(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	// A forcing rule above MEDIUM still wins over the fail-closed floor.
	tier, _, _ := c.Classify(0, Evaluation{TierFloor: TierHigh, Triggered: []string{"x"}}, 30, false)
	if tier != TierHigh {
		t.Errorf("tier = %s, want high", tier)
	}
}

func TestClassify_AgeBump(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	tests := []struct {
		name string
		age  int
		want UrgencyTier
	}{
		{"pediatric", 3, TierMedium},
		{"at pediatric threshold", 5, TierLow},
		{"adult", 40, TierLow},
		{"at elderly threshold", 65, TierLow},
		{"elderly", 70, TierMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tier, _, _ := c.Classify(2.8, Evaluation{}, tt.age, true)
			if tier != tt.want {
				t.Errorf("age %d tier = %s, want %s", tt.age, tier, tt.want)
			}
		})
	}
}

func TestClassify_AgeBumpCappedAtEmergency(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	tier, _, _ := c.Classify(9.0, Evaluation{}, 80, true)
	if tier != TierEmergency {
		t.Errorf("tier = %s, want emergency (bump never exceeds the scale)", tier)
	}
}

func TestClassify_MediumActionSplit(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)

	_, withRules, _ := c.Classify(4.5, Evaluation{Triggered: []string{"high_fever"}}, 30, true)
	if withRules != ActionSpecialistReferral {
		t.Errorf("rule-qualified medium = %s, want specialist_referral", withRules)
	}

	_, numericOnly, _ := c.Classify(4.5, Evaluation{}, 30, true)
	if numericOnly != ActionScheduleFollowup {
		t.Errorf("numeric-only medium = %s, want schedule_followup", numericOnly)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	c := mustClassifier(t)
	ev := Evaluation{Triggered: []string{"a", "b"}, TierFloor: TierHigh, WeightSum: 3}

	t1, a1, h1 := c.Classify(5.2, ev, 54, true)
	for i := 0; i < 10; i++ {
		t2, a2, h2 := c.Classify(5.2, ev, 54, true)
		if t1 != t2 || a1 != a2 || *h1 != *h2 {
			t.Fatalf("run %d: %s/%s/%d vs %s/%s/%d", i, t1, a1, *h1, t2, a2, *h2)
		}
	}
}

func TestRecommendations_CoverEveryAction(t *testing.T) {
	t.Parallel()

	actions := []Action{
		ActionSelfCare,
		ActionScheduleFollowup,
		ActionSpecialistReferral,
		ActionUrgentConsult,
		ActionImmediateEscalation,
	}
	seen := map[string]bool{}
	for _, a := range actions {
		recs := Recommendations(a)
		if len(recs) == 0 {
			t.Errorf("action %s has no recommendations", a)
			continue
		}
		seen[recs[0]] = true
	}
	if len(seen) != len(actions) {
		t.Errorf("distinct leading recommendations = %d, want %d", len(seen), len(actions))
	}
}

func TestBoundariesValidate_ErrorMentionsContract(t *testing.T) {
	t.Parallel()

	err := Boundaries{Low: 9, Medium: 4, High: 6, Emergency: 8}.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "low < medium < high < emergency") {
		t.Errorf("error = %q, want the ordering contract spelled out", err)
	}
}
