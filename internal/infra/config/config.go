// Package config loads, validates, and defaults the websearch
// configuration. Configuration comes from a YAML file, overridden by
// environment variables; API keys may be stored encrypted with an
// "enc:" prefix and are decrypted at load time.
package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Brave      BraveConfig      `yaml:"brave"`
	Perplexity PerplexityConfig `yaml:"perplexity"`
	Cache      CacheConfig      `yaml:"cache"`
	Fetch      FetchConfig      `yaml:"fetch"`
	History    HistoryConfig    `yaml:"history"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Serve      ServeConfig      `yaml:"serve"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	// APIKey is read from BRAVE_API_KEY when unset; an "enc:" value is
	// decrypted with WEBSEARCH_CONFIG_KEY.
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	Count             int           `yaml:"count"`
	SafeSearch        string        `yaml:"safesearch"` // off | moderate | strict
	Freshness         string        `yaml:"freshness"`  // "" | pd | pw | pm | py
	ConnTimeout       time.Duration `yaml:"conn_timeout"`
	RespTimeout       time.Duration `yaml:"resp_timeout"`
}

// PerplexityConfig holds synthesized-answer provider settings.
// Provider selects the gateway: "openrouter" (default) or "bedrock"
// (requires a binary built with -tags bedrock).
type PerplexityConfig struct {
	Provider          string        `yaml:"provider"`
	APIKey            string        `yaml:"api_key"` // OPENROUTER_API_KEY override
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	Citations         bool          `yaml:"citations"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"max_tokens"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	ConnTimeout       time.Duration `yaml:"conn_timeout"`
	RespTimeout       time.Duration `yaml:"resp_timeout"`
	// Referer and Title are optional attribution headers forwarded to
	// OpenRouter. Referer is only sent when non-empty.
	Referer   string `yaml:"referer"`
	Title     string `yaml:"title"`
	AWSRegion string `yaml:"aws_region"` // bedrock only
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// TTL returns the cache lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// FetchConfig holds page fetch settings.
type FetchConfig struct {
	// Backend selects the fetch implementation: "http" for the plain
	// client, "browser" for headless Chrome rendering of
	// JavaScript-heavy sites.
	Backend      string        `yaml:"backend"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	// MaxChars caps the extracted text length; longer pages are cut
	// and marked truncated. Zero disables the cap.
	MaxChars       int           `yaml:"max_chars"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	// CDPURL connects the browser backend to a remote DevTools
	// endpoint instead of launching Chrome locally.
	CDPURL         string        `yaml:"cdp_url"`
	Headless       bool          `yaml:"headless"`
	BrowserTimeout time.Duration `yaml:"browser_timeout"`
	// AllowPrivate disables the private-address guard. Only for tests
	// and deliberate intranet use.
	AllowPrivate bool `yaml:"allow_private_hosts"`
}

// HistoryConfig holds the local query log settings.
type HistoryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	KeepDays int    `yaml:"keep_days"`
}

// BreakerConfig holds circuit breaker settings for providers.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures int           `yaml:"max_failures"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ServeConfig holds MCP serve mode settings.
type ServeConfig struct {
	// RatePerMinute bounds tool calls accepted per minute; Burst allows
	// short spikes above the sustained rate.
	RatePerMinute int `yaml:"rate_per_minute"`
	Burst         int `yaml:"burst"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// defaultDataDir returns the persistent data directory under $HOME/.websearch.
// Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".websearch")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Brave: BraveConfig{
			BaseURL:           "https://api.search.brave.com/res/v1/web/search",
			RequestsPerSecond: 1.0,
			MaxRetries:        2,
			RetryBaseDelay:    time.Second,
			Count:             10,
			SafeSearch:        "moderate",
			Freshness:         "",
			ConnTimeout:       10 * time.Second,
			RespTimeout:       30 * time.Second,
		},
		Perplexity: PerplexityConfig{
			Provider:          "openrouter",
			BaseURL:           "https://openrouter.ai/api/v1",
			Model:             "perplexity/sonar",
			Citations:         true,
			Temperature:       0.1,
			MaxTokens:         1024,
			RequestsPerSecond: 0,
			MaxRetries:        2,
			RetryBaseDelay:    time.Second,
			ConnTimeout:       10 * time.Second,
			RespTimeout:       60 * time.Second,
			Title:             "websearch",
		},
		Cache: CacheConfig{
			Enabled:    true,
			Dir:        filepath.Join(dataDir, "cache"),
			TTLMinutes: 10,
		},
		Fetch: FetchConfig{
			Backend:        "http",
			Timeout:        30 * time.Second,
			MaxBodyBytes:   1024 * 1024, // 1 MiB
			MaxChars:       8000,
			MaxRetries:     1,
			RetryBaseDelay: time.Second,
			Headless:       true,
			BrowserTimeout: 40 * time.Second,
		},
		History: HistoryConfig{
			Enabled:  true,
			Path:     filepath.Join(dataDir, "history.db"),
			KeepDays: 90,
		},
		Breaker: BreakerConfig{
			Enabled:     false,
			MaxFailures: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
		},
		Serve: ServeConfig{
			RatePerMinute: 60,
			Burst:         10,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults plus env vars apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	passphrase := os.Getenv("WEBSEARCH_CONFIG_KEY")
	if passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps environment variables to config fields. The
// two API keys use their providers' conventional names; everything
// else is namespaced under WEBSEARCH_.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BRAVE_API_KEY"); v != "" {
		cfg.Brave.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Perplexity.APIKey = v
	}

	if v := os.Getenv("WEBSEARCH_BRAVE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Brave.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("WEBSEARCH_BRAVE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Brave.Count = n
		}
	}
	if v := os.Getenv("WEBSEARCH_BRAVE_SAFESEARCH"); v != "" {
		cfg.Brave.SafeSearch = v
	}
	if v := os.Getenv("WEBSEARCH_BRAVE_FRESHNESS"); v != "" {
		cfg.Brave.Freshness = v
	}
	if v := os.Getenv("WEBSEARCH_BRAVE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Brave.MaxRetries = n
		}
	}

	if v := os.Getenv("WEBSEARCH_PERPLEXITY_PROVIDER"); v != "" {
		cfg.Perplexity.Provider = v
	}
	if v := os.Getenv("WEBSEARCH_MODEL"); v != "" {
		cfg.Perplexity.Model = v
	}
	if v := os.Getenv("WEBSEARCH_PERPLEXITY_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Perplexity.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("WEBSEARCH_PERPLEXITY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Perplexity.MaxRetries = n
		}
	}
	if v := os.Getenv("WEBSEARCH_REFERER"); v != "" {
		cfg.Perplexity.Referer = v
	}
	if v := os.Getenv("WEBSEARCH_TITLE"); v != "" {
		cfg.Perplexity.Title = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.Perplexity.AWSRegion == "" {
		cfg.Perplexity.AWSRegion = v
	}

	if v := os.Getenv("WEBSEARCH_CACHE_ENABLED"); v == "false" {
		cfg.Cache.Enabled = false
	} else if v == "true" {
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("WEBSEARCH_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("WEBSEARCH_CACHE_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Cache.TTLMinutes = n
		}
	}

	if v := os.Getenv("WEBSEARCH_FETCH_BACKEND"); v == "http" || v == "browser" {
		cfg.Fetch.Backend = v
	}
	if v := os.Getenv("WEBSEARCH_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Fetch.Timeout = d
		}
	}

	if v := os.Getenv("WEBSEARCH_HISTORY_ENABLED"); v == "false" {
		cfg.History.Enabled = false
	} else if v == "true" {
		cfg.History.Enabled = true
	}
	if v := os.Getenv("WEBSEARCH_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	if v := os.Getenv("WEBSEARCH_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("WEBSEARCH_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("WEBSEARCH_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("WEBSEARCH_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("WEBSEARCH_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// decryptSecrets finds "enc:..." values in API keys and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	if strings.HasPrefix(cfg.Brave.APIKey, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Brave.APIKey, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("brave api_key: %w", err)
		}
		cfg.Brave.APIKey = decrypted
	}
	if strings.HasPrefix(cfg.Perplexity.APIKey, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Perplexity.APIKey, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("perplexity api_key: %w", err)
		}
		cfg.Perplexity.APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts an AES-256-GCM encrypted value.
func DecryptValue(encrypted, passphrase string) (string, error) {
	parts := strings.SplitN(encrypted, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}

	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := deriveKey(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
