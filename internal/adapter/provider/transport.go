// Package provider implements the search engine adapters: Brave web
// search and the Perplexity answer gateways (OpenRouter, Bedrock),
// plus the circuit breaker decorators around them.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"websearch/internal/domain"
)

// maxResponseBody caps how much of an API response body we read.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// Connection pool settings for search API usage: few hosts, moderate
// concurrency, long-lived connections.
const (
	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second
)

// Fallback timeouts when the config leaves them zero.
const (
	defaultConnTimeout = 10 * time.Second
	defaultRespTimeout = 30 * time.Second
)

// NewPooledTransport creates an http.Transport with connection pooling
// and the given per-connection timeouts.
func NewPooledTransport(connTimeout, respTimeout time.Duration) *http.Transport {
	if connTimeout == 0 {
		connTimeout = defaultConnTimeout
	}
	if respTimeout == 0 {
		respTimeout = defaultRespTimeout
	}

	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: respTimeout,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:       defaultMaxConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// NewHTTPClient creates an *http.Client with pooled transport. The
// overall client timeout is the connect budget plus the response
// budget, mirroring the split configured per provider.
func NewHTTPClient(connTimeout, respTimeout time.Duration) *http.Client {
	if connTimeout == 0 {
		connTimeout = defaultConnTimeout
	}
	if respTimeout == 0 {
		respTimeout = defaultRespTimeout
	}

	return &http.Client{
		Transport: NewPooledTransport(connTimeout, respTimeout),
		Timeout:   connTimeout + respTimeout,
	}
}

// doJSONRequest performs a JSON POST request and returns the response
// body. It handles: create request, set headers, execute, read body
// (with limit), and check the HTTP status. A non-200 response becomes
// a *domain.StatusError carrying the code and body so the retry layer
// can classify it.
func doJSONRequest(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	return execute(client, httpReq)
}

// doGetRequest performs a GET request with the given headers and the
// query already encoded into url. Status handling matches doJSONRequest.
func doGetRequest(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	return execute(client, httpReq)
}

func execute(client *http.Client, req *http.Request) ([]byte, error) {
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, domain.NewStatusError(httpResp.StatusCode, respBody)
	}

	return respBody, nil
}
