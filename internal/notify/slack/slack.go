// Package slack sends escalation notices to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/acuity/internal/triage"
)

const (
	maxRulesLen = 3000
	httpTimeout = 10 * time.Second
)

// Notifier sends escalation decisions to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Send posts an escalation notice to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, d *triage.EscalationDecision, a *triage.RiskAssessment) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(d, a)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "escalation notice sent",
		"encounter_id", d.EncounterID, "tier", d.Tier.String())
	return nil
}

func buildMessage(d *triage.EscalationDecision, a *triage.RiskAssessment) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(d),
			{"type": "divider"},
			fieldsBlock(d, a),
			{"type": "divider"},
			rulesBlock(a),
			{"type": "divider"},
			contextBlock(d),
		},
	}
}

func headerBlock(d *triage.EscalationDecision) map[string]any {
	text := fmt.Sprintf("%s Escalation: %s", tierEmoji(d.Tier), d.Tier.String())

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(d *triage.EscalationDecision, a *triage.RiskAssessment) map[string]any {
	deadline := "none"
	if d.DeadlineHours > 0 {
		deadline = fmt.Sprintf("%dh", d.DeadlineHours)
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Tier:* %s", d.Tier.String()),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Action:* %s", d.Action),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Score:* %.2f", a.Score),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Deadline:* %s", deadline),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Assessment:* v%d", d.AssessmentVersion),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Fail-closed:* %t", a.FailClosed),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func rulesBlock(a *triage.RiskAssessment) map[string]any {
	text := truncate(strings.Join(a.TriggeredRules, ", "), maxRulesLen)
	if text == "" {
		text = "_No rules triggered._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Triggered rules*\n\n%s", text),
		},
	}
}

func contextBlock(d *triage.EscalationDecision) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("acuity • encounter %s • %s", d.EncounterID, d.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func tierEmoji(tier triage.UrgencyTier) string {
	switch tier {
	case triage.TierEmergency, triage.TierHigh:
		return "\U0001f534" // red circle
	case triage.TierMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	// Back off to a rune boundary so the cut never splits a UTF-8 sequence.
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
