package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrArticleNotFound  = errors.New("article not found")
	ErrQuotaExceeded    = errors.New("free tier limit reached")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrAINotConfigured  = errors.New("AI API key is not configured")
	ErrEmptyResponse    = errors.New("empty response body")
	ErrInvalidURL       = errors.New("invalid URL")
	ErrNoContainer      = errors.New("no content container found")
)

// FetchError wraps network, timeout, and non-2xx failures. Fetch errors are
// recovered where they happen: the source or article is skipped and logged.
type FetchError struct {
	URL        string
	StatusCode int
	Duration   time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseFailure records that an expected container or selector was absent.
type ParseFailure struct {
	URL      string
	Strategy string
	Err      error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse failure for %s (strategy=%q): %v", e.URL, e.Strategy, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// ConfigError is fatal at startup and never retried.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UpstreamError wraps failures from third-party APIs (LLM, payment gateway).
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PipelineError is returned when a headline middleware fails.
type PipelineError struct {
	Stage string
	URL   string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
