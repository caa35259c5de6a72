package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/newsbrief/newsbrief/internal/types"
)

// Validate checks the configuration for invalid values. Every failure is a
// *types.ConfigError, which is fatal at startup.
func Validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return &types.ConfigError{Field: "sources", Err: errors.New("at least one source is required")}
	}
	seen := make(map[string]bool, len(cfg.Sources))
	for i, src := range cfg.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if src.Name == "" {
			return &types.ConfigError{Field: field + ".name", Err: errors.New("name is required")}
		}
		if seen[src.Name] {
			return &types.ConfigError{Field: field + ".name", Err: fmt.Errorf("duplicate source %q", src.Name)}
		}
		seen[src.Name] = true
		if err := ValidateURL(src.ListingURL); err != nil {
			return &types.ConfigError{Field: field + ".listing_url", Err: err}
		}
		if src.Fetcher != "" && src.Fetcher != "http" && src.Fetcher != "browser" {
			return &types.ConfigError{Field: field + ".fetcher", Err: fmt.Errorf("must be 'http' or 'browser', got %q", src.Fetcher)}
		}
		if err := validatePatterns(field+".include_patterns", src.IncludePatterns); err != nil {
			return err
		}
		if err := validatePatterns(field+".exclude_patterns", src.ExcludePatterns); err != nil {
			return err
		}
	}

	if cfg.Scraper.ListingTimeout <= 0 {
		return &types.ConfigError{Field: "scraper.listing_timeout", Err: errors.New("must be > 0")}
	}
	if cfg.Scraper.ArticleTimeout <= 0 {
		return &types.ConfigError{Field: "scraper.article_timeout", Err: errors.New("must be > 0")}
	}
	if cfg.Scraper.MaxHeadlines < 1 {
		return &types.ConfigError{Field: "scraper.max_headlines", Err: fmt.Errorf("must be >= 1, got %d", cfg.Scraper.MaxHeadlines)}
	}
	if cfg.Scraper.SourceDelay < 0 {
		return &types.ConfigError{Field: "scraper.source_delay", Err: errors.New("must be >= 0")}
	}
	if cfg.Scraper.Concurrency < 1 || cfg.Scraper.Concurrency > 32 {
		return &types.ConfigError{Field: "scraper.concurrency", Err: fmt.Errorf("must be 1-32, got %d", cfg.Scraper.Concurrency)}
	}
	if err := validatePatterns("scraper.include_patterns", cfg.Scraper.IncludePatterns); err != nil {
		return err
	}
	if err := validatePatterns("scraper.exclude_patterns", cfg.Scraper.ExcludePatterns); err != nil {
		return err
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return &types.ConfigError{Field: "fetcher.max_body_size", Err: errors.New("must be > 0")}
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return &types.ConfigError{Field: "fetcher.max_redirects", Err: errors.New("must be >= 0")}
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return &types.ConfigError{Field: "proxy.rotation", Err: fmt.Errorf("must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)}
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return &types.ConfigError{Field: "proxy.urls", Err: fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)}
			}
		}
	}

	if cfg.Extract.SnippetMinLength < 0 || cfg.Extract.SnippetMaxLength < cfg.Extract.SnippetMinLength {
		return &types.ConfigError{Field: "extract.snippet_max_length", Err: errors.New("snippet band is empty")}
	}

	switch cfg.AI.Provider {
	case "openrouter", "openai", "ollama", "custom":
	default:
		return &types.ConfigError{Field: "ai.provider", Err: fmt.Errorf("unsupported provider %q", cfg.AI.Provider)}
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return &types.ConfigError{Field: "server.port", Err: fmt.Errorf("must be 1-65535, got %d", cfg.Server.Port)}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return &types.ConfigError{Field: "logging.level", Err: fmt.Errorf("must be debug/info/warn/error, got %q", cfg.Logging.Level)}
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return &types.ConfigError{Field: "logging.format", Err: fmt.Errorf("must be 'text' or 'json', got %q", cfg.Logging.Format)}
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a listing page.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func validatePatterns(field string, patterns []string) error {
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return &types.ConfigError{Field: field, Err: fmt.Errorf("invalid pattern %q: %w", p, err)}
		}
	}
	return nil
}
