package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/acuity/internal/triage"
)

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	decision := &triage.EscalationDecision{
		EncounterID:       "01JN123",
		AssessmentVersion: 1,
		Notify:            true,
		DeadlineHours:     1,
		Tier:              triage.TierEmergency,
		Action:            triage.ActionImmediateEscalation,
		CreatedAt:         time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}
	assessment := &triage.RiskAssessment{
		Version:        1,
		Score:          8.46,
		Tier:           triage.TierEmergency,
		Action:         triage.ActionImmediateEscalation,
		TriggeredRules: []string{"cardiac_emergency"},
	}

	if err := n.Send(context.Background(), decision, assessment); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, rules, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "emergency") {
		t.Errorf("header text = %q, want to contain emergency", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain red circle for emergency tier")
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", log.Nop())
	err := n.Send(context.Background(), &triage.EscalationDecision{}, &triage.RiskAssessment{})
	if err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_TruncatesLongRuleList(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rules := make([]string, 200)
	for i := range rules {
		rules[i] = strings.Repeat("r", 40)
	}

	n := New(srv.URL, log.Nop())
	err := n.Send(context.Background(),
		&triage.EscalationDecision{EncounterID: "01JN456", Tier: triage.TierHigh},
		&triage.RiskAssessment{TriggeredRules: rules})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	rulesSection := blocks[4].(map[string]any)
	text := rulesSection["text"].(map[string]any)["text"].(string)

	if len(text) > maxRulesLen+len("*Triggered rules*\n\n") {
		t.Errorf("rules text length = %d, expected <= %d", len(text), maxRulesLen+len("*Triggered rules*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated rule list to end with ...")
	}
}

func TestTruncate_KeepsValidUTF8(t *testing.T) {
	t.Parallel()

	// A limit landing inside a multi-byte rune must back off to the
	// previous boundary rather than emit a broken sequence.
	s := strings.Repeat("é", 20) // 2 bytes per rune
	for limit := 4; limit < len(s); limit++ {
		got := truncate(s, limit)
		if len(got) > limit {
			t.Fatalf("limit %d: len = %d", limit, len(got))
		}
		if !utf8.ValidString(got) {
			t.Fatalf("limit %d: truncate produced invalid UTF-8: %q", limit, got)
		}
		if !strings.HasSuffix(got, "...") {
			t.Fatalf("limit %d: missing ellipsis: %q", limit, got)
		}
	}

	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate below limit = %q, want unchanged", got)
	}
}

func TestTierEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tier triage.UrgencyTier
		want string
	}{
		{"emergency", triage.TierEmergency, "\U0001f534"},
		{"high", triage.TierHigh, "\U0001f534"},
		{"medium", triage.TierMedium, "\U0001f7e1"},
		{"low", triage.TierLow, "\U0001f7e2"},
		{"routine", triage.TierRoutine, "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tierEmoji(tt.tier)
			if got != tt.want {
				t.Errorf("tierEmoji(%s) = %q, want %q", tt.tier, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("01JN1", "cardiac_emergency", 8.5, 1)
	f.Add("", "", 0.0, 0)
	f.Add("enc\x00\x01", "*bold* _italic_ ~strike~", 10.0, 4)
	f.Add(strings.Repeat("A", 5000), strings.Repeat("r", 10000), -1.0, 99)

	f.Fuzz(func(t *testing.T, id, rule string, score float64, tier int) {
		decision := &triage.EscalationDecision{
			EncounterID:       id,
			AssessmentVersion: 1,
			Tier:              triage.UrgencyTier(tier),
			Action:            triage.ActionUrgentConsult,
			CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		assessment := &triage.RiskAssessment{
			Score:          score,
			TriggeredRules: []string{rule},
		}

		// Must not panic
		msg := buildMessage(decision, assessment)

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Send(context.Background(),
		&triage.EscalationDecision{EncounterID: "01JN789", Tier: triage.TierHigh},
		&triage.RiskAssessment{})
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
