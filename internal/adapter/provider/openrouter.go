package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
	"websearch/internal/infra/tracer"
)

// Compile-time interface assertion.
var _ domain.AnswerProvider = (*OpenRouterClient)(nil)

// systemPrompt instructs the model to answer with sources. The
// citation suffix is appended when citations are enabled.
const (
	systemPrompt    = "You are a helpful search assistant. Please provide accurate answers and cite your sources."
	citationsPrompt = " Include markdown citations [1], [2] referencing the URLs you used."
)

// emptyContentFallback is returned when the API responds 200 but the
// payload carries no message content.
const emptyContentFallback = "No response content found."

// attributionTransport is a custom http.RoundTripper that injects
// OpenRouter attribution headers (HTTP-Referer and X-Title) into every
// request. Empty values are omitted.
type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid mutating the original.
	clone := req.Clone(req.Context())
	if t.referer != "" {
		clone.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		clone.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(clone)
}

// OpenRouterClient implements domain.AnswerProvider by routing
// Perplexity models through the OpenRouter chat completions API.
type OpenRouterClient struct {
	apiKey      string
	baseURL     string
	model       string
	citations   bool
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      *slog.Logger
}

// NewOpenRouterClient creates a client with configured timeouts and an
// attribution-injecting transport.
func NewOpenRouterClient(cfg config.PerplexityConfig, logger *slog.Logger) *OpenRouterClient {
	client := NewHTTPClient(cfg.ConnTimeout, cfg.RespTimeout)
	client.Transport = &attributionTransport{
		base:    client.Transport,
		referer: cfg.Referer,
		title:   cfg.Title,
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}

	return &OpenRouterClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		citations:   cfg.Citations,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      client,
		logger:      logger,
	}
}

// Answer implements domain.AnswerProvider.
func (c *OpenRouterClient) Answer(ctx context.Context, query string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "perplexity.answer")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("search.query", query),
		tracer.StringAttr("llm.model", c.model),
	)

	if c.apiKey == "" {
		err := domain.WrapOp("perplexity", domain.ErrMissingAPIKey)
		tracer.RecordError(span, err)
		return "", err
	}

	system := systemPrompt
	if c.citations {
		system += citationsPrompt
	}

	temp := c.temperature
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: query},
		},
		MaxTokens:   c.maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}

	respBody, err := doJSONRequest(ctx, c.client, c.baseURL+"/chat/completions", body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	content := emptyContentFallback
	if len(chatResp.Choices) > 0 && chatResp.Choices[0].Message.Content != "" {
		content = chatResp.Choices[0].Message.Content
	}

	tracer.SetOK(span)
	c.logger.Debug("perplexity answer completed",
		"model", c.model,
		"tokens", chatResp.Usage.TotalTokens,
	)

	return content, nil
}

// Model implements domain.AnswerProvider.
func (c *OpenRouterClient) Model() string { return c.model }

// Name implements domain.AnswerProvider.
func (c *OpenRouterClient) Name() string { return "openrouter" }

// --- OpenRouter chat completions wire types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index   int         `json:"index"`
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
