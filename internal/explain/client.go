package explain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"equipment-monitor/internal/models"
)

const systemPrompt = "You assist semiconductor back-end equipment engineers. " +
	"Given an equipment alert, reply with at most three short sentences: the likely cause and the first check to make. " +
	"Do not repeat the numbers in the alert."

// Client asks an OpenAI-compatible chat completions endpoint to explain events.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient points the client at baseURL, e.g. https://api.openai.com/v1.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Prompt describes an event for the model.
func Prompt(ev models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Equipment: %s, type %s", ev.Device.ID, ev.Device.Type)
	if ev.Device.Area != "" {
		fmt.Fprintf(&b, ", area %s", ev.Device.Area)
	}
	b.WriteString("\n")
	switch {
	case ev.Alert != nil:
		fmt.Fprintf(&b, "Alert: %s severity %s, value %g", ev.Alert.MetricType, ev.Alert.Severity, ev.Alert.Value)
		if ev.Threshold != nil {
			fmt.Fprintf(&b, " outside nominal range %g..%g", ev.Threshold.Min, ev.Threshold.Max)
		}
		fmt.Fprintf(&b, " (deviation %.1f%%)", ev.Alert.Deviation*100)
	case ev.Notice != nil:
		fmt.Fprintf(&b, "Batch %s has been running %s against a budget of %s",
			ev.Notice.BatchID, ev.Notice.Elapsed.Round(time.Minute), ev.Notice.Budget)
	}
	return b.String()
}

// Explain returns a short explanation of the event. Every failure wraps models.ErrEnrichment.
func (c *Client) Explain(ctx context.Context, ev models.Event) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(ev)},
		},
		MaxTokens:   200,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion failed: %w", models.ErrEnrichment, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", models.ErrEnrichment)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrEnrichment)
	}
	return text, nil
}
