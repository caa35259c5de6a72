// Package aggregator drives listing scrapes across configured sources and
// fills article content on demand.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/newsbrief/newsbrief/internal/classify"
	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/extract"
	"github.com/newsbrief/newsbrief/internal/fetcher"
	"github.com/newsbrief/newsbrief/internal/observability"
	"github.com/newsbrief/newsbrief/internal/pipeline"
	"github.com/newsbrief/newsbrief/internal/store"
	"github.com/newsbrief/newsbrief/internal/types"
)

// Aggregator turns listing pages into headlines and article records.
type Aggregator struct {
	sources   []types.Source
	bySource  map[string]types.Source
	scraper   config.ScraperConfig
	patterns  *classify.PatternSet
	fetcher   fetcher.Fetcher
	extractor *extract.Extractor
	pipeline  *pipeline.Pipeline
	store     *store.ArticleStore
	metrics   *observability.Metrics
	logger    *slog.Logger
	newID     func() string
}

// New creates an Aggregator. The store and metrics are shared with the API
// layer; metrics may be nil.
func New(cfg *config.Config, f fetcher.Fetcher, st *store.ArticleStore, metrics *observability.Metrics, logger *slog.Logger) (*Aggregator, error) {
	patterns, err := classify.DefaultPatternSet().Override(cfg.Scraper.IncludePatterns, cfg.Scraper.ExcludePatterns)
	if err != nil {
		return nil, &types.ConfigError{Field: "scraper.patterns", Err: err}
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}

	ex := extract.New(extract.OptionsFromConfig(cfg.Extract), logger)
	bySource := make(map[string]types.Source, len(cfg.Sources))
	for _, src := range cfg.Sources {
		bySource[src.Name] = src
	}

	return &Aggregator{
		sources:   cfg.Sources,
		bySource:  bySource,
		scraper:   cfg.Scraper,
		patterns:  patterns,
		fetcher:   f,
		extractor: ex,
		pipeline:  pipeline.Default(ex.Placeholder(), logger),
		store:     st,
		metrics:   metrics,
		logger:    logger.With("component", "aggregator"),
		newID:     uuid.NewString,
	}, nil
}

// Store returns the article store the aggregator populates.
func (a *Aggregator) Store() *store.ArticleStore {
	return a.store
}

type listingResult struct {
	resp *types.Response
	err  error
}

// Aggregate scrapes every source in order and returns at most
// MaxHeadlines headlines with no two sharing a URL. A failing source is
// logged and skipped. When ctx is cancelled the headlines collected so far
// are returned together with ctx.Err().
func (a *Aggregator) Aggregate(ctx context.Context) ([]types.Headline, error) {
	a.metrics.AggregationRuns.Add(1)
	start := time.Now()

	limit := a.scraper.MaxHeadlines
	seen := classify.NewSeenSet(limit)
	run := classify.New(a.patterns, seen, a.logger)
	out := make([]types.Headline, 0, limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	next := a.sequentialListings(ctx)
	if a.scraper.Concurrency > 1 && len(a.sources) > 1 {
		var wait func()
		next, wait = a.prefetchListings(ctx)
		defer wait()
		defer cancel()
	}

	for i, src := range a.sources {
		res, ok := next(i)
		if !ok {
			break
		}
		if res.err != nil {
			a.metrics.ListingFetchErrors.Add(1)
			a.logger.Error("listing fetch failed", "source", src.Name, "url", src.ListingURL, "error", res.err)
			continue
		}
		a.metrics.ListingFetches.Add(1)
		a.metrics.BytesDownloaded.Add(int64(len(res.resp.Body)))

		var full bool
		out, full = a.processListing(run, src, res.resp, out, limit)
		a.logger.Info("source scraped", "source", src.Name, "total", len(out))
		if full {
			break
		}
	}

	a.metrics.HeadlinesEmitted.Add(int64(len(out)))
	a.logger.Info("aggregation complete",
		"headlines", len(out),
		"accepted", run.AcceptedCount(),
		"unique_urls", seen.Count(),
		"rejections", run.Rejections(),
		"duration", time.Since(start),
	)
	if err := ctx.Err(); err != nil && len(out) < limit {
		return out, err
	}
	return out, nil
}

// sequentialListings fetches each listing when asked, pausing for the
// configured delay between sources.
func (a *Aggregator) sequentialListings(ctx context.Context) func(int) (listingResult, bool) {
	return func(i int) (listingResult, bool) {
		if i > 0 && a.scraper.SourceDelay > 0 {
			t := time.NewTimer(a.scraper.SourceDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return listingResult{}, false
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			return listingResult{}, false
		}
		return a.fetchListing(ctx, a.sources[i]), true
	}
}

// prefetchListings fetches listings concurrently, bounded by Concurrency,
// while results are still consumed in source order. The returned wait
// function blocks until every fetch has returned.
func (a *Aggregator) prefetchListings(ctx context.Context) (func(int) (listingResult, bool), func()) {
	n := len(a.sources)
	results := make([]listingResult, n)
	ready := make([]chan struct{}, n)
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.scraper.Concurrency)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, src := range a.sources {
			i, src := i, src
			g.Go(func() error {
				results[i] = a.fetchListing(gctx, src)
				close(ready[i])
				return nil
			})
		}
	}()

	next := func(i int) (listingResult, bool) {
		select {
		case <-ctx.Done():
			return listingResult{}, false
		case <-ready[i]:
			return results[i], true
		}
	}
	wait := func() {
		<-launched
		_ = g.Wait()
	}
	return next, wait
}

func (a *Aggregator) fetchListing(ctx context.Context, src types.Source) listingResult {
	req, err := types.NewRequest(src.ListingURL)
	if err != nil {
		return listingResult{err: &types.FetchError{URL: src.ListingURL, Err: err}}
	}
	req.Kind = types.KindListing
	req.Timeout = a.scraper.ListingTimeout
	req.SourceName = src.Name
	if src.Fetcher != "" {
		req.FetcherType = src.Fetcher
	}

	resp, err := a.fetcher.Fetch(ctx, req)
	return listingResult{resp: resp, err: err}
}

// processListing classifies every anchor on the page and appends accepted
// headlines to out. full reports that the limit was reached.
func (a *Aggregator) processListing(run *classify.Classifier, src types.Source, resp *types.Response, out []types.Headline, limit int) ([]types.Headline, bool) {
	logger := a.logger.With("source", src.Name)

	doc, err := resp.Document()
	if err != nil {
		logger.Error("listing parse failed", "error", &types.ParseFailure{URL: src.ListingURL, Strategy: "document", Err: err})
		return out, false
	}

	patterns, err := run.PatternsFor(src)
	if err != nil {
		logger.Error("invalid source patterns", "error", err)
		return out, false
	}

	// Links resolve against, and must stay on, the configured listing URL.
	base, err := url.Parse(src.ListingURL)
	if err != nil {
		logger.Error("invalid listing url", "error", err)
		return out, false
	}
	if final := resp.BaseURL(); final != src.ListingURL {
		logger.Debug("listing redirected", "final_url", final)
	}

	full := len(out) >= limit
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if full {
			return false
		}
		a.metrics.AnchorsSeen.Add(1)

		href, _ := sel.Attr("href")
		cand, reason := run.Classify(classify.Anchor{Href: href, Text: sel.Text()}, base, patterns)
		if reason != classify.Accepted {
			a.metrics.RecordRejection(string(reason))
			return true
		}

		card := extract.LocateCard(sel)
		h := &types.Headline{
			ID:         a.newID(),
			Title:      cand.Title,
			URL:        cand.URL,
			SourceName: src.Name,
			Snippet:    types.StringPtr(a.extractor.Snippet(card, cand.Title)),
			ImageURL:   types.StringPtr(a.extractor.ListingImage(card, base)),
		}

		h, err := a.pipeline.Process(h)
		if err != nil {
			logger.Warn("headline pipeline error", "url", cand.URL, "error", err)
		}
		if h == nil {
			a.metrics.HeadlinesDropped.Add(1)
			return true
		}

		out = append(out, *h)
		a.store.Put(types.ArticleFromHeadline(*h))
		a.metrics.ArticlesStored.Add(1)

		full = len(out) >= limit
		return !full
	})

	return out, full
}

// FetchContent returns the article for id, fetching and extracting its body
// the first time it is requested. Later calls return the stored content
// without fetching. Unknown ids yield types.ErrArticleNotFound.
func (a *Aggregator) FetchContent(ctx context.Context, id string) (types.Article, error) {
	art, loaded, err := a.store.EnsureContent(id, func(cur types.Article) types.Article {
		return a.scrapeArticle(ctx, cur)
	})
	if err != nil {
		return types.Article{}, fmt.Errorf("fetch content %s: %w", id, err)
	}
	if !art.HasContent() {
		// Aborted by the caller; nothing was stored.
		return types.Article{}, fmt.Errorf("fetch content %s: %w", id, ctx.Err())
	}
	if loaded {
		a.logger.Info("article content fetched", "id", id, "url", art.URL, "kind", art.ContentKind)
	}
	return art, nil
}

// scrapeArticle fetches the article page once and fills content and page
// metadata from the same document.
func (a *Aggregator) scrapeArticle(ctx context.Context, art types.Article) types.Article {
	logger := a.logger.With("id", art.ID, "url", art.URL)

	outcome, md, err := a.extractArticle(ctx, art, logger)
	if err != nil {
		logger.Info("article fetch aborted", "error", err)
		return art
	}
	art.Content = &outcome.Text
	art.ContentKind = string(outcome.Kind)

	if md != nil {
		art.Description = types.StringPtr(md.Description)
		art.Author = types.StringPtr(md.Author)
		art.LeadSummary = types.StringPtr(md.LeadSummary)
		if md.ImageURL != a.extractor.Placeholder() || art.ImageURL == nil {
			art.ImageURL = types.StringPtr(md.ImageURL)
		}
	}
	return art
}

// extractArticle returns an error only when ctx ended during the fetch; a
// caller abort is not a failure of the article.
func (a *Aggregator) extractArticle(ctx context.Context, art types.Article, logger *slog.Logger) (extract.Outcome, *extract.Metadata, error) {
	req, err := types.NewRequest(art.URL)
	if err != nil {
		logger.Error("invalid article url", "error", err)
		return extract.Unexpected(), nil, nil
	}
	req.Kind = types.KindArticle
	req.Timeout = a.scraper.ArticleTimeout
	req.SourceName = art.SourceName
	if src, ok := a.bySource[art.SourceName]; ok && src.Fetcher != "" {
		req.FetcherType = src.Fetcher
	}

	resp, err := a.fetcher.Fetch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return extract.Outcome{}, nil, ctx.Err()
		}
		a.metrics.ArticleFetchErrors.Add(1)
		logger.Error("article fetch failed", "error", err)
		return extract.FetchFailed(), nil, nil
	}
	a.metrics.ArticleFetches.Add(1)
	a.metrics.BytesDownloaded.Add(int64(len(resp.Body)))

	doc, err := resp.Document()
	if err != nil {
		logger.Error("article parse failed", "error", &types.ParseFailure{URL: art.URL, Strategy: "document", Err: err})
		return extract.Unexpected(), nil, nil
	}

	md := a.extractor.Metadata(doc, resp.Body, req.URL)
	outcome := a.extractor.Content(doc)
	if !outcome.OK() {
		a.metrics.ContentParseFailure.Add(1)
		logger.Warn("no article content found", "error", &types.ParseFailure{URL: art.URL, Strategy: "container", Err: types.ErrNoContainer})
	}
	return outcome, &md, nil
}
