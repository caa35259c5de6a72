package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request kinds, used for per-kind timeouts and metrics.
const (
	KindListing = "listing"
	KindArticle = "article"
)

// Request represents a single page fetch.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Kind is KindListing or KindArticle.
	Kind string

	// Timeout bounds the whole fetch. Zero means the fetcher default.
	Timeout time.Duration

	// FetcherType specifies which fetcher to use: "http" or "browser".
	FetcherType string

	// SourceName is the configured source this fetch belongs to.
	SourceName string
}

// NewRequest creates a GET request for rawURL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:         u,
		Headers:     make(http.Header),
		FetcherType: "http",
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
