package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
)

func openRouterTestConfig(baseURL string) config.PerplexityConfig {
	return config.PerplexityConfig{
		APIKey:      "test-or-key",
		BaseURL:     baseURL,
		Model:       "perplexity/sonar",
		Citations:   true,
		Temperature: 0.1,
		MaxTokens:   1024,
		Title:       "websearch",
	}
}

func answerResponse(content string) chatResponse {
	return chatResponse{
		ID:    "gen-123",
		Model: "perplexity/sonar",
		Choices: []chatChoice{
			{Message: chatMessage{Role: "assistant", Content: content}},
		},
		Usage: chatUsage{PromptTokens: 30, CompletionTokens: 120, TotalTokens: 150},
	}
}

func TestAttributionTransport(t *testing.T) {
	var capturedReq *http.Request
	inner := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedReq = req
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       http.NoBody,
			Header:     make(http.Header),
		}, nil
	})

	transport := &attributionTransport{base: inner, referer: "https://example.com/tool", title: "websearch"}

	origReq, _ := http.NewRequest("POST", "https://openrouter.ai/api/v1/chat/completions", nil)
	origReq.Header.Set("Authorization", "Bearer test-key")

	if _, err := transport.RoundTrip(origReq); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	if got := capturedReq.Header.Get("HTTP-Referer"); got != "https://example.com/tool" {
		t.Errorf("HTTP-Referer = %q", got)
	}
	if got := capturedReq.Header.Get("X-Title"); got != "websearch" {
		t.Errorf("X-Title = %q", got)
	}
	// Existing headers should be preserved.
	if got := capturedReq.Header.Get("Authorization"); got != "Bearer test-key" {
		t.Errorf("Authorization = %q", got)
	}

	// Original request should NOT be mutated.
	if origReq.Header.Get("HTTP-Referer") != "" {
		t.Error("original request was mutated: HTTP-Referer set")
	}
	if origReq.Header.Get("X-Title") != "" {
		t.Error("original request was mutated: X-Title set")
	}
}

func TestAttributionTransportOmitsEmptyReferer(t *testing.T) {
	var capturedReq *http.Request
	inner := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedReq = req
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: make(http.Header)}, nil
	})

	transport := &attributionTransport{base: inner, title: "websearch"}
	req, _ := http.NewRequest("POST", "https://openrouter.ai/api/v1/chat/completions", nil)
	if _, err := transport.RoundTrip(req); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	if capturedReq.Header.Get("HTTP-Referer") != "" {
		t.Error("empty referer must not produce a header")
	}
	if capturedReq.Header.Get("X-Title") != "websearch" {
		t.Error("X-Title missing")
	}
}

func TestOpenRouterAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-or-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "websearch" {
			t.Errorf("X-Title = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "perplexity/sonar" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("messages = %d, want system + user", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("first role = %q", req.Messages[0].Role)
		}
		if !strings.Contains(req.Messages[0].Content, "cite your sources") {
			t.Errorf("system prompt = %q", req.Messages[0].Content)
		}
		if !strings.Contains(req.Messages[0].Content, "markdown citations [1], [2]") {
			t.Errorf("citations enabled but suffix missing: %q", req.Messages[0].Content)
		}
		if req.Messages[1].Role != "user" || req.Messages[1].Content != "what is a goroutine" {
			t.Errorf("user message = %+v", req.Messages[1])
		}
		if req.MaxTokens != 1024 {
			t.Errorf("max_tokens = %d", req.MaxTokens)
		}
		if req.Temperature == nil || *req.Temperature != 0.1 {
			t.Errorf("temperature = %v", req.Temperature)
		}

		json.NewEncoder(w).Encode(answerResponse("A goroutine is a lightweight thread [1]."))
	}))
	defer server.Close()

	client := NewOpenRouterClient(openRouterTestConfig(server.URL), testLogger())
	answer, err := client.Answer(context.Background(), "what is a goroutine")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "A goroutine is a lightweight thread [1]." {
		t.Errorf("answer = %q", answer)
	}
}

func TestOpenRouterAnswerCitationsDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Messages[0].Content, "markdown citations") {
			t.Errorf("citations disabled but suffix present: %q", req.Messages[0].Content)
		}
		json.NewEncoder(w).Encode(answerResponse("plain answer"))
	}))
	defer server.Close()

	cfg := openRouterTestConfig(server.URL)
	cfg.Citations = false
	client := NewOpenRouterClient(cfg, testLogger())
	if _, err := client.Answer(context.Background(), "q"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
}

func TestOpenRouterAnswerEmptyContentFallback(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"id":"gen-1","choices":[]}`},
		{"empty content", `{"id":"gen-2","choices":[{"message":{"role":"assistant","content":""}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenRouterClient(openRouterTestConfig(server.URL), testLogger())
			answer, err := client.Answer(context.Background(), "q")
			if err != nil {
				t.Fatalf("Answer: %v", err)
			}
			if answer != "No response content found." {
				t.Errorf("answer = %q, want fallback text", answer)
			}
		})
	}
}

func TestOpenRouterAnswerAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer server.Close()

	client := NewOpenRouterClient(openRouterTestConfig(server.URL), testLogger())
	_, err := client.Answer(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}

	var statusErr *domain.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *domain.StatusError, got %T", err)
	}
	if statusErr.StatusCode != 401 {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if statusErr.Kind() != domain.KindClient {
		t.Errorf("Kind = %v, want KindClient (not retryable)", statusErr.Kind())
	}
}

func TestOpenRouterAnswerMissingKey(t *testing.T) {
	cfg := openRouterTestConfig("")
	cfg.APIKey = ""
	client := NewOpenRouterClient(cfg, testLogger())

	_, err := client.Answer(context.Background(), "q")
	if !errors.Is(err, domain.ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestOpenRouterModelReported(t *testing.T) {
	client := NewOpenRouterClient(openRouterTestConfig(""), testLogger())
	if client.Model() != "perplexity/sonar" {
		t.Errorf("Model() = %q", client.Model())
	}
	if client.Name() != "openrouter" {
		t.Errorf("Name() = %q", client.Name())
	}
}
