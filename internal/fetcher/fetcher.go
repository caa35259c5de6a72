package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/newsbrief/newsbrief/internal/types"
)

// Fetcher is the interface for all page fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the page at the request's URL. Failures are returned
	// as *types.FetchError and are never retried.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Router dispatches requests to the HTTP fetcher or, for requests marked
// "browser", to a headless browser started on first use.
type Router struct {
	http Fetcher

	newBrowser func() (Fetcher, error)
	once       sync.Once
	browser    Fetcher
	browserErr error
}

// NewRouter creates a Router. newBrowser may be nil, in which case browser
// requests fall back to HTTP.
func NewRouter(httpFetcher Fetcher, newBrowser func() (Fetcher, error)) *Router {
	return &Router{http: httpFetcher, newBrowser: newBrowser}
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req.FetcherType != "browser" || r.newBrowser == nil {
		return r.http.Fetch(ctx, req)
	}
	r.once.Do(func() {
		r.browser, r.browserErr = r.newBrowser()
	})
	if r.browserErr != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("browser unavailable: %w", r.browserErr)}
	}
	return r.browser.Fetch(ctx, req)
}

// Close closes the HTTP fetcher and the browser if it was started.
func (r *Router) Close() error {
	err := r.http.Close()
	if r.browser != nil {
		if berr := r.browser.Close(); err == nil {
			err = berr
		}
	}
	return err
}

// Type returns the fetcher type identifier.
func (r *Router) Type() string {
	return "router"
}
