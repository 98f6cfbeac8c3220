package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/testreport"
)

// RejectSuggestion is the model's proposal for declining an update.
type RejectSuggestion struct {
	Reasons []models.RejectReason
	Message string
}

type rawSuggestion struct {
	Reasons []string `json:"reasons"`
	Message string   `json:"message"`
}

// Client wraps the Anthropic API for reject reason suggestions.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// Model is the model the client asks.
func (c *Client) Model() string { return string(c.model) }

// buildRejectPrompt constructs the system and user prompts for reason suggestion.
func buildRejectPrompt(report *testreport.Report) (system string, user string) {
	var reasons strings.Builder
	for _, r := range models.RejectReasons {
		fmt.Fprintf(&reasons, "- %q: %s\n", r.Flag, r.Text)
	}

	system = `You help QA engineers decline maintenance updates. Given the header and comment of a failed test report, return a JSON object with exactly two fields:

- "reasons": a list with one or more of these reject reason flags:
` + reasons.String() + `
- "message": 1-3 sentences for the maintenance coordinator explaining why the update is declined, based only on the report comment

Rules:
- Use only the flags listed above
- Prefer a single reason unless the comment clearly describes several problems
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if report.RRID != "" {
		fmt.Fprintf(&sb, "Request: %s\n", report.RRID)
	}
	if len(report.SRCRPMs) > 0 {
		fmt.Fprintf(&sb, "Packages: %s\n", strings.Join(report.SRCRPMs, ", "))
	}
	if len(report.Products) > 0 {
		fmt.Fprintf(&sb, "Products: %s\n", strings.Join(report.Products, ", "))
	}
	fmt.Fprintf(&sb, "Summary: %s\n", report.Summary)
	sb.WriteString("\nComment:\n")
	sb.WriteString(report.Comment)
	user = sb.String()
	return
}

// SuggestRejectReasons asks the model which reject reasons fit the report.
func (c *Client) SuggestRejectReasons(ctx context.Context, report *testreport.Report) (*RejectSuggestion, error) {
	if strings.TrimSpace(report.Comment) == "" {
		return nil, fmt.Errorf("testreport has no comment to suggest reasons from")
	}
	systemPrompt, userPrompt := buildRejectPrompt(report)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}
	return parseSuggestion(text)
}

// parseSuggestion decodes the model output, keeping only known reasons.
func parseSuggestion(text string) (*RejectSuggestion, error) {
	text = stripFence(text)

	var raw rawSuggestion
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	s := &RejectSuggestion{Message: strings.TrimSpace(raw.Message)}
	seen := make(map[string]bool)
	for _, v := range raw.Reasons {
		r, err := models.ParseRejectReason(v)
		if err != nil || seen[r.Flag] {
			continue
		}
		seen[r.Flag] = true
		s.Reasons = append(s.Reasons, r)
	}
	if len(s.Reasons) == 0 {
		return nil, fmt.Errorf("no known reject reason in LLM response: %s", text)
	}
	return s, nil
}

// stripFence removes markdown fencing if present.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
