package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Brave.RequestsPerSecond != 1.0 {
		t.Errorf("brave rps = %v, want 1.0", cfg.Brave.RequestsPerSecond)
	}
	if cfg.Brave.MaxRetries != 2 {
		t.Errorf("brave max_retries = %d, want 2", cfg.Brave.MaxRetries)
	}
	if cfg.Brave.RetryBaseDelay != time.Second {
		t.Errorf("brave retry_base_delay = %v, want 1s", cfg.Brave.RetryBaseDelay)
	}
	if cfg.Brave.Count != 10 {
		t.Errorf("brave count = %d, want 10", cfg.Brave.Count)
	}
	if cfg.Brave.SafeSearch != "moderate" {
		t.Errorf("brave safesearch = %q, want moderate", cfg.Brave.SafeSearch)
	}
	if cfg.Perplexity.Model != "perplexity/sonar" {
		t.Errorf("perplexity model = %q", cfg.Perplexity.Model)
	}
	if !cfg.Perplexity.Citations {
		t.Error("perplexity citations should default on")
	}
	if cfg.Perplexity.Temperature != 0.1 {
		t.Errorf("perplexity temperature = %v, want 0.1", cfg.Perplexity.Temperature)
	}
	if cfg.Perplexity.MaxTokens != 1024 {
		t.Errorf("perplexity max_tokens = %d, want 1024", cfg.Perplexity.MaxTokens)
	}
	if cfg.Perplexity.RequestsPerSecond != 0 {
		t.Errorf("perplexity rps = %v, want 0 (unthrottled)", cfg.Perplexity.RequestsPerSecond)
	}
	if cfg.Cache.TTLMinutes != 10 {
		t.Errorf("cache ttl_minutes = %d, want 10", cfg.Cache.TTLMinutes)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should default enabled")
	}
	if cfg.Fetch.Backend != "http" {
		t.Errorf("fetch backend = %q, want http", cfg.Fetch.Backend)
	}
	if cfg.Fetch.MaxChars != 8000 {
		t.Errorf("fetch max_chars = %d, want 8000", cfg.Fetch.MaxChars)
	}
	if cfg.Fetch.MaxRetries != 1 {
		t.Errorf("fetch max_retries = %d, want 1", cfg.Fetch.MaxRetries)
	}
	if !cfg.Fetch.Headless {
		t.Error("browser fetches should default to headless")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestCacheTTL(t *testing.T) {
	c := CacheConfig{TTLMinutes: 10}
	if c.TTL() != 10*time.Minute {
		t.Errorf("TTL = %v, want 10m", c.TTL())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brave.Count != 10 {
		t.Errorf("count = %d, want default 10", cfg.Brave.Count)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
brave:
  requests_per_second: 2.5
  count: 5
  freshness: pw
perplexity:
  model: perplexity/sonar-pro
  citations: false
cache:
  ttl_minutes: 30
fetch:
  backend: browser
  max_chars: 500
  cdp_url: ws://localhost:9222
logger:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brave.RequestsPerSecond != 2.5 {
		t.Errorf("rps = %v, want 2.5", cfg.Brave.RequestsPerSecond)
	}
	if cfg.Brave.Count != 5 {
		t.Errorf("count = %d, want 5", cfg.Brave.Count)
	}
	if cfg.Brave.Freshness != "pw" {
		t.Errorf("freshness = %q, want pw", cfg.Brave.Freshness)
	}
	if cfg.Perplexity.Model != "perplexity/sonar-pro" {
		t.Errorf("model = %q", cfg.Perplexity.Model)
	}
	if cfg.Perplexity.Citations {
		t.Error("citations should be disabled by file")
	}
	if cfg.Cache.TTLMinutes != 30 {
		t.Errorf("ttl = %d, want 30", cfg.Cache.TTLMinutes)
	}
	if cfg.Fetch.Backend != "browser" {
		t.Errorf("fetch backend = %q, want browser", cfg.Fetch.Backend)
	}
	if cfg.Fetch.MaxChars != 500 {
		t.Errorf("fetch max_chars = %d, want 500", cfg.Fetch.MaxChars)
	}
	if cfg.Fetch.CDPURL != "ws://localhost:9222" {
		t.Errorf("fetch cdp_url = %q", cfg.Fetch.CDPURL)
	}
	// Untouched fields keep defaults.
	if cfg.Brave.SafeSearch != "moderate" {
		t.Errorf("safesearch = %q, want default moderate", cfg.Brave.SafeSearch)
	}
}

func TestLoadDurationFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
brave:
  retry_base_delay: 250ms
  conn_timeout: 5s
fetch:
  timeout: 45s
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brave.RetryBaseDelay != 250*time.Millisecond {
		t.Errorf("retry_base_delay = %v, want 250ms", cfg.Brave.RetryBaseDelay)
	}
	if cfg.Brave.ConnTimeout != 5*time.Second {
		t.Errorf("conn_timeout = %v, want 5s", cfg.Brave.ConnTimeout)
	}
	if cfg.Fetch.Timeout != 45*time.Second {
		t.Errorf("fetch timeout = %v, want 45s", cfg.Fetch.Timeout)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("brave: [not a map"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadRejectsWorldWritable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logger:\n  level: info\n"), 0666); err != nil {
		t.Fatal(err)
	}
	// WriteFile's mode is narrowed by the umask; force the bits on.
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected permissions error")
	}
	if !strings.Contains(err.Error(), "insecure permissions") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BRAVE_API_KEY", "bk-123")
	t.Setenv("OPENROUTER_API_KEY", "or-456")
	t.Setenv("WEBSEARCH_BRAVE_RPS", "3.5")
	t.Setenv("WEBSEARCH_BRAVE_COUNT", "7")
	t.Setenv("WEBSEARCH_MODEL", "perplexity/sonar-reasoning")
	t.Setenv("WEBSEARCH_CACHE_TTL_MINUTES", "5")
	t.Setenv("WEBSEARCH_CACHE_ENABLED", "false")
	t.Setenv("WEBSEARCH_FETCH_BACKEND", "browser")
	t.Setenv("WEBSEARCH_LOGGER_LEVEL", "debug")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Brave.APIKey != "bk-123" {
		t.Errorf("brave api key = %q", cfg.Brave.APIKey)
	}
	if cfg.Perplexity.APIKey != "or-456" {
		t.Errorf("perplexity api key = %q", cfg.Perplexity.APIKey)
	}
	if cfg.Brave.RequestsPerSecond != 3.5 {
		t.Errorf("rps = %v, want 3.5", cfg.Brave.RequestsPerSecond)
	}
	if cfg.Brave.Count != 7 {
		t.Errorf("count = %d, want 7", cfg.Brave.Count)
	}
	if cfg.Perplexity.Model != "perplexity/sonar-reasoning" {
		t.Errorf("model = %q", cfg.Perplexity.Model)
	}
	if cfg.Cache.TTLMinutes != 5 {
		t.Errorf("ttl = %d, want 5", cfg.Cache.TTLMinutes)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled by env")
	}
	if cfg.Fetch.Backend != "browser" {
		t.Errorf("fetch backend = %q, want browser", cfg.Fetch.Backend)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logger.Level)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("WEBSEARCH_BRAVE_RPS", "not-a-number")
	t.Setenv("WEBSEARCH_BRAVE_COUNT", "-3")
	t.Setenv("WEBSEARCH_CACHE_TTL_MINUTES", "abc")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Brave.RequestsPerSecond != 1.0 {
		t.Errorf("rps = %v, want default 1.0", cfg.Brave.RequestsPerSecond)
	}
	if cfg.Brave.Count != 10 {
		t.Errorf("count = %d, want default 10", cfg.Brave.Count)
	}
	if cfg.Cache.TTLMinutes != 10 {
		t.Errorf("ttl = %d, want default 10", cfg.Cache.TTLMinutes)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := EncryptValue("super-secret-key", "passphrase123")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	if encrypted == "super-secret-key" {
		t.Fatal("value not encrypted")
	}
	if !strings.Contains(encrypted, ":") {
		t.Fatalf("unexpected format: %q", encrypted)
	}

	decrypted, err := DecryptValue(encrypted, "passphrase123")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if decrypted != "super-secret-key" {
		t.Errorf("round trip = %q", decrypted)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptValue(encrypted, "wrong"); err == nil {
		t.Error("expected decryption failure with wrong passphrase")
	}
}

func TestDecryptMalformed(t *testing.T) {
	for _, s := range []string{"", "nocolon", "zz:zz", "abc:"} {
		if _, err := DecryptValue(s, "pw"); err == nil {
			t.Errorf("DecryptValue(%q) should fail", s)
		}
	}
}

func TestLoadDecryptsSecrets(t *testing.T) {
	encrypted, err := EncryptValue("real-brave-key", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "brave:\n  api_key: enc:" + encrypted + "\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WEBSEARCH_CONFIG_KEY", "hunter2")
	// Make sure the plain env key does not shadow the encrypted one.
	t.Setenv("BRAVE_API_KEY", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brave.APIKey != "real-brave-key" {
		t.Errorf("api key = %q, want decrypted value", cfg.Brave.APIKey)
	}
}

func TestLoadBadPassphraseFails(t *testing.T) {
	encrypted, err := EncryptValue("real-key", "correct")
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "perplexity:\n  api_key: enc:" + encrypted + "\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WEBSEARCH_CONFIG_KEY", "incorrect")
	t.Setenv("OPENROUTER_API_KEY", "")

	if _, err := Load(path); err == nil {
		t.Error("expected decrypt failure")
	}
}
