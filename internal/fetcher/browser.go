package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/types"
)

// BrowserFetcher renders pages in headless Chromium via Rod, for sources
// whose listings are built client-side.
type BrowserFetcher struct {
	browser        *rod.Browser
	stealth        bool
	userAgents     []string
	defaultTimeout time.Duration
	logger         *slog.Logger
	pagePool       chan *rod.Page
}

// NewBrowserFetcher launches a browser and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		stealth:        cfg.Fetcher.BrowserStealth,
		userAgents:     cfg.Scraper.UserAgents,
		defaultTimeout: cfg.Scraper.ArticleTimeout,
		logger:         logger.With("component", "browser_fetcher"),
		pagePool:       make(chan *rod.Page, max(cfg.Scraper.Concurrency, 1)),
	}

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		if proxyURL := NewProxyManager(&cfg.Proxy, logger).Next(); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
		}
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready", "max_pages", cap(bf.pagePool), "stealth", bf.stealth)
	return bf, nil
}

// Fetch navigates to the request URL and returns the rendered HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = bf.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	fail := func(err error) (*types.Response, error) {
		return nil, &types.FetchError{URL: req.URLString(), Duration: time.Since(start), Err: err}
	}

	page, err := bf.getPage()
	if err != nil {
		return fail(err)
	}
	defer bf.putPage(page)

	if len(bf.userAgents) > 0 {
		ua := bf.userAgents[start.UnixNano()%int64(len(bf.userAgents))]
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	p := page.Context(ctx)
	if err := p.Navigate(req.URLString()); err != nil {
		return fail(err)
	}
	if err := p.WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return fail(err)
	}

	finalURL := req.URLString()
	if info, err := p.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)
	return types.NewBrowserResponse(req, []byte(html), finalURL, duration), nil
}

// Close shuts down the browser and releases pooled pages.
func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

// getPage takes a page from the pool or opens a new one, with stealth
// patches applied when enabled.
func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
	}
	if bf.stealth {
		page, err := stealth.Page(bf.browser)
		if err != nil {
			return nil, fmt.Errorf("stealth page: %w", err)
		}
		return page, nil
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// putPage returns a page to the pool, closing it when the pool is full.
func (bf *BrowserFetcher) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")
	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close()
	}
}
