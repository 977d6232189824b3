package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"segue/internal/analysis"
	"segue/internal/decision"
	"segue/internal/services"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 12 * time.Second
)

// Config captures the runtime settings required to talk to the reasoning
// service.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps an OpenRouter-style chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a reasoning client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Configured reports whether the client has an API key to work with.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Propose sends the analysis bundle and user preferences to the model and
// parses the response into a candidate decision. The candidate is not
// validated here; the caller owns that.
func (c *Client) Propose(ctx context.Context, bundle analysis.Bundle, prefs decision.Preferences) (decision.MixDecision, error) {
	var empty decision.MixDecision
	if !c.Configured() {
		return empty, services.Wrap(services.ErrConfiguration, "reasoning", "propose", "api key required", nil)
	}
	userMsg, err := buildUserMessage(bundle, prefs)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, "reasoning", "propose", "encode bundle", err)
	}
	content, err := c.completeJSON(ctx, systemPrompt, userMsg)
	if err != nil {
		return empty, err
	}
	var envelope struct {
		MixDecision decision.MixDecision `json:"mix_decision"`
	}
	if err := DecodeJSON(content, &envelope); err != nil {
		return empty, services.Wrap(services.ErrValidation, "reasoning", "propose", "parse model payload", err)
	}
	d := envelope.MixDecision
	if d.TrackA.TempoStretchFactor == 0 {
		d.TrackA.TempoStretchFactor = 1
	}
	if d.TrackB.TempoStretchFactor == 0 {
		d.TrackB.TempoStretchFactor = 1
	}
	return d, nil
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "reasoning", "health", "api key required", nil)
	}
	content, err := c.completeJSON(ctx, "You must respond with JSON only.", "Respond with {\"ok\":true}")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return services.Wrap(services.ErrExternalTool, "reasoning", "health", "parse payload", err)
	}
	if !parsed.OK {
		return services.Wrap(services.ErrExternalTool, "reasoning", "health", "unexpected response", nil)
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		// Some providers return the streaming schema even when stream=false.
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// completeJSON issues exactly one JSON-mode chat completion request.
func (c *Client) completeJSON(ctx context.Context, system, user string) (string, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.7,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "reasoning", "request", "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "reasoning", "request", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return "", services.Wrap(services.ErrTimeout, "reasoning", "request", "deadline exceeded", err)
		}
		return "", services.Wrap(services.ErrExternalTool, "reasoning", "request", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "reasoning", "request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrExternalTool, "reasoning", "request",
			fmt.Sprintf("http %d: %s", resp.StatusCode, summarizeSnippet(string(body))), nil)
	}
	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "reasoning", "request", "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrExternalTool, "reasoning", "request",
			"api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}
	for _, choice := range completion.Choices {
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, nil
		}
	}
	return "", services.Wrap(services.ErrExternalTool, "reasoning", "request",
		"empty content: "+summarizeSnippet(string(body)), nil)
}

func buildUserMessage(bundle analysis.Bundle, prefs decision.Preferences) (string, error) {
	trimmed := bundle
	trimmed.TrackA = trimRecord(bundle.TrackA)
	trimmed.TrackB = trimRecord(bundle.TrackB)
	encoded, err := json.MarshalIndent(trimmed, "", "  ")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Analysis data:\n")
	b.Write(encoded)
	if prefs.TransitionStartMS > 0 {
		fmt.Fprintf(&b, "\n\nUser wants the transition to start around %.0fms in track A.", prefs.TransitionStartMS)
	}
	if prefs.TrackBInPointMS > 0 {
		fmt.Fprintf(&b, "\n\nUser wants track B to enter around %.0fms (the in-point for track B).", prefs.TrackBInPointMS)
	}
	if prefs.Strategy != "" {
		fmt.Fprintf(&b, "\n\nUser prefers transition strategy: %s", prefs.Strategy)
	}
	return b.String(), nil
}

// trimRecord thins the beat grid and energy curve so the payload stays small
// without losing the musical shape.
func trimRecord(r analysis.Record) analysis.Record {
	out := r
	if len(r.BeatsMS) > 0 {
		beats := make([]float64, 0, len(r.BeatsMS)/4+1)
		for i := 0; i < len(r.BeatsMS); i += 4 {
			beats = append(beats, r.BeatsMS[i])
		}
		out.BeatsMS = beats
	}
	if len(r.EnergyCurve) > 0 {
		curve := make([]analysis.EnergyPoint, 0, len(r.EnergyCurve)/2+1)
		for i := 0; i < len(r.EnergyCurve); i += 2 {
			curve = append(curve, r.EnergyCurve[i])
		}
		out.EnergyCurve = curve
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// DecodeJSON decodes JSON from a model response, handling common formatting
// quirks like code fences and surrounding prose.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizeSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizeSnippet(sanitized))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizeSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := strings.Join(strings.Fields(replacer.Replace(trimmed)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
