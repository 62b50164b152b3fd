package domain

import (
	"fmt"
	"net/http"
)

// Sentinel errors for the domain layer.
var (
	ErrMissingAPIKey = fmt.Errorf("api key not configured")
	ErrBlockedURL    = fmt.Errorf("request to private/reserved address blocked")
	ErrInvalidEngine = fmt.Errorf("unknown engine")
	ErrEmptyQuery    = fmt.Errorf("query must not be empty")
	ErrCircuitOpen   = fmt.Errorf("provider circuit open")
	ErrCacheCorrupt  = fmt.Errorf("cache entry corrupt")
	ErrNotFound      = fmt.Errorf("not found")
)

// ErrorKind classifies a provider failure for the retry loop. The set is
// closed: every failure lands in exactly one kind, and only Transport and
// Server are worth retrying.
type ErrorKind int

const (
	// KindUnknown covers failures that fit no other kind, including
	// parse errors and programming mistakes. Never retried.
	KindUnknown ErrorKind = iota
	// KindTransport covers network-level failures where no HTTP
	// response arrived: dial errors, resets, timeouts.
	KindTransport
	// KindServer covers responses that indicate a transient provider
	// problem: any 5xx, plus 429 which signals pressure rather than a
	// malformed request.
	KindServer
	// KindClient covers 4xx responses other than 429. The request
	// itself is wrong; retrying the same bytes cannot help.
	KindClient
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	return k == KindTransport || k == KindServer
}

// ClassifyStatus maps an HTTP status code to an ErrorKind. 429 is
// deliberately grouped with 5xx: rate pressure is transient and backs
// off the same way a server outage does.
func ClassifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindServer
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindClient
	default:
		return KindUnknown
	}
}

// StatusError is a non-2xx HTTP response from a provider, carrying the
// status and response body for diagnostics. Adapters return it from a
// single attempt; the retry loop classifies it via Kind.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// Kind classifies the response status.
func (e *StatusError) Kind() ErrorKind { return ClassifyStatus(e.StatusCode) }

// NewStatusError builds a StatusError from a response status and body.
func NewStatusError(code int, body []byte) *StatusError {
	return &StatusError{StatusCode: code, Body: string(body)}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
