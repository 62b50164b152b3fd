package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateBrave(cfg, ve)
	validatePerplexity(cfg, ve)
	validateCache(cfg, ve)
	validateFetch(cfg, ve)
	validateHistory(cfg, ve)
	validateBreaker(cfg, ve)
	validateServe(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validSafeSearch = map[string]bool{
	"off":      true,
	"moderate": true,
	"strict":   true,
}

var validFreshness = map[string]bool{
	"":   true,
	"pd": true,
	"pw": true,
	"pm": true,
	"py": true,
}

func validateBrave(cfg *Config, ve *ValidationError) {
	b := cfg.Brave
	if b.BaseURL == "" {
		ve.Add("brave.base_url must not be empty")
	}
	if b.RequestsPerSecond < 0 {
		ve.Add("brave.requests_per_second must be >= 0")
	}
	if b.MaxRetries < 0 {
		ve.Add("brave.max_retries must be >= 0")
	}
	if b.RetryBaseDelay <= 0 {
		ve.Add("brave.retry_base_delay must be > 0")
	}
	if b.Count <= 0 || b.Count > 20 {
		ve.Add("brave.count must be in 1..20, got %d", b.Count)
	}
	if !validSafeSearch[b.SafeSearch] {
		ve.Add("brave.safesearch must be off, moderate, or strict, got %q", b.SafeSearch)
	}
	if !validFreshness[b.Freshness] {
		ve.Add("brave.freshness must be empty, pd, pw, pm, or py, got %q", b.Freshness)
	}
	if b.ConnTimeout <= 0 {
		ve.Add("brave.conn_timeout must be > 0")
	}
	if b.RespTimeout <= 0 {
		ve.Add("brave.resp_timeout must be > 0")
	}
}

var validAnswerProviders = map[string]bool{
	"openrouter": true,
	"bedrock":    true,
}

func validatePerplexity(cfg *Config, ve *ValidationError) {
	p := cfg.Perplexity
	if !validAnswerProviders[p.Provider] {
		ve.Add("perplexity.provider must be openrouter or bedrock, got %q", p.Provider)
	}
	if p.BaseURL == "" && p.Provider == "openrouter" {
		ve.Add("perplexity.base_url must not be empty")
	}
	if p.Model == "" {
		ve.Add("perplexity.model must not be empty")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		ve.Add("perplexity.temperature must be in 0..2, got %v", p.Temperature)
	}
	if p.MaxTokens <= 0 {
		ve.Add("perplexity.max_tokens must be > 0")
	}
	if p.RequestsPerSecond < 0 {
		ve.Add("perplexity.requests_per_second must be >= 0")
	}
	if p.MaxRetries < 0 {
		ve.Add("perplexity.max_retries must be >= 0")
	}
	if p.RetryBaseDelay <= 0 {
		ve.Add("perplexity.retry_base_delay must be > 0")
	}
	if p.Provider == "bedrock" && p.AWSRegion == "" {
		ve.Add("perplexity.aws_region must be set when provider is bedrock")
	}
}

func validateCache(cfg *Config, ve *ValidationError) {
	if !cfg.Cache.Enabled {
		return
	}
	if cfg.Cache.Dir == "" {
		ve.Add("cache.dir must not be empty when cache is enabled")
	}
	if cfg.Cache.TTLMinutes < 0 {
		ve.Add("cache.ttl_minutes must be >= 0")
	}
}

var validFetchBackends = map[string]bool{
	"http":    true,
	"browser": true,
}

func validateFetch(cfg *Config, ve *ValidationError) {
	f := cfg.Fetch
	if !validFetchBackends[f.Backend] {
		ve.Add("fetch.backend must be http or browser, got %q", f.Backend)
	}
	if f.Timeout <= 0 {
		ve.Add("fetch.timeout must be > 0")
	}
	if f.MaxBodyBytes <= 0 {
		ve.Add("fetch.max_body_bytes must be > 0")
	}
	if f.MaxChars < 0 {
		ve.Add("fetch.max_chars must be >= 0")
	}
	if f.MaxRetries < 0 {
		ve.Add("fetch.max_retries must be >= 0")
	}
	if f.RetryBaseDelay <= 0 {
		ve.Add("fetch.retry_base_delay must be > 0")
	}
	if f.Backend == "browser" && f.BrowserTimeout <= 0 {
		ve.Add("fetch.browser_timeout must be > 0 when the browser backend is selected")
	}
}

func validateHistory(cfg *Config, ve *ValidationError) {
	if !cfg.History.Enabled {
		return
	}
	if cfg.History.Path == "" {
		ve.Add("history.path must not be empty when history is enabled")
	}
	if cfg.History.KeepDays < 0 {
		ve.Add("history.keep_days must be >= 0")
	}
}

func validateBreaker(cfg *Config, ve *ValidationError) {
	if !cfg.Breaker.Enabled {
		return
	}
	if cfg.Breaker.MaxFailures <= 0 {
		ve.Add("breaker.max_failures must be > 0 when breaker is enabled")
	}
	if cfg.Breaker.Timeout <= 0 {
		ve.Add("breaker.timeout must be > 0 when breaker is enabled")
	}
}

func validateServe(cfg *Config, ve *ValidationError) {
	if cfg.Serve.RatePerMinute <= 0 {
		ve.Add("serve.rate_per_minute must be > 0")
	}
	if cfg.Serve.Burst <= 0 {
		ve.Add("serve.burst must be > 0")
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

var validLogFormats = map[string]bool{
	"text": true, "json": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level must be debug, info, warn, or error, got %q", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format must be text or json, got %q", cfg.Logger.Format)
	}
}
