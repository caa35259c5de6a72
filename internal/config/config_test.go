package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newsbrief/newsbrief/internal/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Scraper.MaxHeadlines != 40 {
		t.Errorf("expected cap 40, got %d", cfg.Scraper.MaxHeadlines)
	}
	if cfg.Scraper.ListingTimeout != 10*time.Second || cfg.Scraper.ArticleTimeout != 15*time.Second {
		t.Errorf("unexpected timeouts: %s / %s", cfg.Scraper.ListingTimeout, cfg.Scraper.ArticleTimeout)
	}
}

func TestValidateMissingSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = nil

	err := Validate(cfg)
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Field != "sources" {
		t.Errorf("expected field 'sources', got %q", cfgErr.Field)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative listing url", func(c *Config) { c.Sources[0].ListingURL = "/latest" }},
		{"bad fetcher", func(c *Config) { c.Sources[0].Fetcher = "curl" }},
		{"bad include pattern", func(c *Config) { c.Sources[0].IncludePatterns = []string{"("} }},
		{"duplicate source", func(c *Config) { c.Sources[1].Name = c.Sources[0].Name }},
		{"zero cap", func(c *Config) { c.Scraper.MaxHeadlines = 0 }},
		{"zero listing timeout", func(c *Config) { c.Scraper.ListingTimeout = 0 }},
		{"bad provider", func(c *Config) { c.AI.Provider = "gemini-native" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "newsbrief.yaml")
	yaml := `
sources:
  - name: Example
    listing_url: https://news.example.com/latest
    exclude_patterns: ["/sponsored/"]
scraper:
  max_headlines: 10
  source_delay: 250ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "Example" {
		t.Fatalf("expected one Example source, got %+v", cfg.Sources)
	}
	if got := cfg.Sources[0].ExcludePatterns; len(got) != 1 || got[0] != "/sponsored/" {
		t.Errorf("expected per-source exclude pattern, got %v", got)
	}
	if cfg.Scraper.MaxHeadlines != 10 {
		t.Errorf("expected max_headlines 10, got %d", cfg.Scraper.MaxHeadlines)
	}
	if cfg.Scraper.SourceDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms delay, got %s", cfg.Scraper.SourceDelay)
	}
	// Untouched keys keep their defaults.
	if cfg.Scraper.ArticleTimeout != 15*time.Second {
		t.Errorf("expected default article timeout, got %s", cfg.Scraper.ArticleTimeout)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLegacyEnvBinding(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp-secret")

	cfg, err := Load(filepath.Join(writeEmptyConfig(t)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AI.APIKey != "sk-or-test" {
		t.Errorf("expected OpenRouter key from env, got %q", cfg.AI.APIKey)
	}
	if cfg.Payment.KeySecret != "rzp-secret" {
		t.Errorf("expected Razorpay secret from env, got %q", cfg.Payment.KeySecret)
	}
}

func TestGenericAIKeyFallback(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("NEWSBRIEF_AI_API_KEY", "")
	t.Setenv("AI_API_KEY", "gemini-key")
	t.Setenv("AI_MODEL_NAME", "")

	cfg, err := Load(writeEmptyConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AI.Provider != "openai" || cfg.AI.Endpoint != geminiOpenAIEndpoint {
		t.Errorf("expected gemini openai-compatible fallback, got %s %s", cfg.AI.Provider, cfg.AI.Endpoint)
	}
	if cfg.AI.Model != "gemini-pro" {
		t.Errorf("expected default gemini model, got %q", cfg.AI.Model)
	}
}

func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newsbrief.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
