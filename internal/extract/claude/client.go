// Package claude implements transcript entity extraction on the Claude API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/acuity/internal/extract"
	"github.com/linnemanlabs/acuity/internal/patient"
)

const systemPrompt = `You extract clinical symptoms from triage transcripts.
Respond with ONLY a JSON array. Each element:
{"code": "snake_case_symptom", "raw_label": "verbatim phrase", "severity_hint": 0-10, "confidence": 0-1, "duration_hours": number}
Omit severity_hint or confidence when the transcript gives no basis for them.
Return [] when no symptoms are mentioned. No prose, no markdown.`

const maxTokens = 1024

// Client extracts symptom entities via the Claude messages API.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates a new extraction client with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Extract implements extract.Extractor.
func (c *Client) Extract(ctx context.Context, transcript string) ([]patient.SymptomEntity, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.New("empty transcript")
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(transcript)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude messages: %w", err)
	}

	entities, err := extract.ParseEntities(textContent(msg))
	if err != nil {
		return nil, fmt.Errorf("parse extraction: %w", err)
	}
	return entities, nil
}

// textContent joins the text blocks of a response.
func textContent(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
