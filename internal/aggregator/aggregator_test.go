package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/extract"
	"github.com/newsbrief/newsbrief/internal/fetcher"
	"github.com/newsbrief/newsbrief/internal/observability"
	"github.com/newsbrief/newsbrief/internal/store"
	"github.com/newsbrief/newsbrief/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const articlePage = `<html><head>
<meta property="og:description" content="Thousands displaced.">
</head><body>
<div class="byline">By Asha Rao</div>
<div class="story-content">
<p>Heavy rain over the weekend displaced thousands of residents across the districts.</p>
<p>Read more on our site.</p>
</div></body></html>`

// newsSite serves listing pages and articles and counts article hits.
type newsSite struct {
	srv          *httptest.Server
	articleHits  atomic.Int32
	listingHTML  map[string]string
	failListings map[string]bool
}

func newNewsSite(t *testing.T) *newsSite {
	t.Helper()
	s := &newsSite{listingHTML: map[string]string{}, failListings: map[string]bool{}}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.failListings[r.URL.Path] {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		if body, ok := s.listingHTML[r.URL.Path]; ok {
			_, _ = w.Write([]byte(body))
			return
		}
		if strings.HasPrefix(r.URL.Path, "/world/") {
			s.articleHits.Add(1)
			_, _ = w.Write([]byte(articlePage))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func listing(paths ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><nav><a href="/login">Login</a></nav><main>`)
	for i, p := range paths {
		fmt.Fprintf(&b, `<article><a href="%s">Story number %d</a><p class="summary">Summary for story number %d here.</p></article>`, p, i, i)
	}
	b.WriteString(`</main></body></html>`)
	return b.String()
}

func newAggregator(t *testing.T, cfg *config.Config) (*Aggregator, *observability.Metrics) {
	t.Helper()
	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	m := observability.NewMetrics(testLogger)
	agg, err := New(cfg, f, store.New(), m, testLogger)
	require.NoError(t, err)
	return agg, m
}

func testConfig(sources ...types.Source) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sources = sources
	cfg.Scraper.SourceDelay = 0
	return cfg
}

func TestAggregateBasic(t *testing.T) {
	site := newNewsSite(t)
	site.listingHTML["/latest"] = listing("/world/2024/05/10/story.html", "/about", "https://other.com/world/x")

	agg, m := newAggregator(t, testConfig(types.Source{Name: "Example", ListingURL: site.srv.URL + "/latest"}))

	headlines, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, headlines, 1)

	h := headlines[0]
	assert.Equal(t, site.srv.URL+"/world/2024/05/10/story.html", h.URL)
	assert.Equal(t, "Story number 0", h.Title)
	assert.Equal(t, "Example", h.SourceName)
	assert.Equal(t, "Summary for story number 0 here.", types.Deref(h.Snippet))
	assert.Equal(t, extract.DefaultPlaceholderImage, types.Deref(h.ImageURL))
	assert.NotEmpty(t, h.ID)

	art, ok := agg.Store().Get(h.ID)
	require.True(t, ok)
	assert.Nil(t, art.Content)
	assert.Equal(t, h.URL, art.URL)

	assert.Equal(t, int64(1), m.ListingFetches.Load())
	assert.Equal(t, int64(1), m.RejectedDomain.Load())
}

func TestAggregateRespectsCap(t *testing.T) {
	site := newNewsSite(t)
	var paths []string
	for i := 0; i < 50; i++ {
		paths = append(paths, fmt.Sprintf("/world/2024/05/10/story-%d.html", i))
	}
	site.listingHTML["/a"] = listing(paths[:30]...)
	site.listingHTML["/b"] = listing(paths[30:]...)

	cfg := testConfig(
		types.Source{Name: "A", ListingURL: site.srv.URL + "/a"},
		types.Source{Name: "B", ListingURL: site.srv.URL + "/b"},
	)
	agg, _ := newAggregator(t, cfg)

	headlines, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, headlines, 40)
	assert.Equal(t, "A", headlines[0].SourceName)
	assert.Equal(t, "B", headlines[39].SourceName)
	assert.Equal(t, 40, agg.Store().Len())
}

func TestAggregateDedupAcrossSources(t *testing.T) {
	site := newNewsSite(t)
	site.listingHTML["/a"] = listing("/world/2024/05/10/shared.html", "/world/2024/05/10/a-only.html")
	site.listingHTML["/b"] = listing("/world/2024/05/10/shared.html", "/world/2024/05/10/b-only.html")

	agg, m := newAggregator(t, testConfig(
		types.Source{Name: "A", ListingURL: site.srv.URL + "/a"},
		types.Source{Name: "B", ListingURL: site.srv.URL + "/b"},
	))

	headlines, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, headlines, 3)

	seen := map[string]bool{}
	for _, h := range headlines {
		assert.False(t, seen[h.URL], "duplicate URL %s", h.URL)
		seen[h.URL] = true
	}
	assert.Equal(t, "A", headlines[0].SourceName, "first occurrence wins")
	assert.Equal(t, int64(1), m.RejectedDuplicate.Load())
}

func TestAggregateSkipsFailingSource(t *testing.T) {
	site := newNewsSite(t)
	site.failListings["/down"] = true
	site.listingHTML["/up"] = listing("/world/2024/05/10/ok.html")

	agg, m := newAggregator(t, testConfig(
		types.Source{Name: "Down", ListingURL: site.srv.URL + "/down"},
		types.Source{Name: "Up", ListingURL: site.srv.URL + "/up"},
	))

	headlines, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, headlines, 1)
	assert.Equal(t, "Up", headlines[0].SourceName)
	assert.Equal(t, int64(1), m.ListingFetchErrors.Load())
}

func TestAggregateAllSourcesFail(t *testing.T) {
	site := newNewsSite(t)
	site.failListings["/down"] = true

	agg, _ := newAggregator(t, testConfig(types.Source{Name: "Down", ListingURL: site.srv.URL + "/down"}))

	headlines, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, headlines)
}

func TestAggregateCancelledDuringDelayReturnsPartial(t *testing.T) {
	site := newNewsSite(t)
	site.listingHTML["/a"] = listing("/world/2024/05/10/first.html")
	site.listingHTML["/b"] = listing("/world/2024/05/10/second.html")

	cfg := testConfig(
		types.Source{Name: "A", ListingURL: site.srv.URL + "/a"},
		types.Source{Name: "B", ListingURL: site.srv.URL + "/b"},
	)
	cfg.Scraper.SourceDelay = time.Hour
	agg, _ := newAggregator(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	headlines, err := agg.Aggregate(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Len(t, headlines, 1)
	assert.Equal(t, "A", headlines[0].SourceName)
}

func TestAggregateConcurrentPrefetchKeepsOrder(t *testing.T) {
	site := newNewsSite(t)
	var sources []types.Source
	for i := 0; i < 4; i++ {
		path := fmt.Sprintf("/s%d", i)
		site.listingHTML[path] = listing(fmt.Sprintf("/world/2024/05/10/s%d.html", i))
		sources = append(sources, types.Source{Name: fmt.Sprintf("S%d", i), ListingURL: site.srv.URL + path})
	}
	cfg := testConfig(sources...)
	cfg.Scraper.Concurrency = 3
	agg, _ := newAggregator(t, cfg)

	headlines, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, headlines, 4)
	for i, h := range headlines {
		assert.Equal(t, fmt.Sprintf("S%d", i), h.SourceName)
	}
}

func TestFetchContentIdempotent(t *testing.T) {
	site := newNewsSite(t)
	site.listingHTML["/latest"] = listing("/world/2024/05/10/story.html")
	agg, _ := newAggregator(t, testConfig(types.Source{Name: "Example", ListingURL: site.srv.URL + "/latest"}))

	headlines, err := agg.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, headlines, 1)
	id := headlines[0].ID

	first, err := agg.FetchContent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Heavy rain over the weekend displaced thousands of residents across the districts.", types.Deref(first.Content))
	assert.Equal(t, string(extract.KindOK), first.ContentKind)
	assert.Equal(t, "Thousands displaced.", types.Deref(first.Description))
	assert.Equal(t, "Asha Rao", types.Deref(first.Author))

	second, err := agg.FetchContent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, int32(1), site.articleHits.Load())
}

func TestFetchContentUnknownID(t *testing.T) {
	agg, _ := newAggregator(t, testConfig(types.Source{Name: "X", ListingURL: "https://news.example.com/"}))

	_, err := agg.FetchContent(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, types.ErrArticleNotFound))
}

func TestFetchContentNetworkFailureStoresSentinel(t *testing.T) {
	agg, _ := newAggregator(t, testConfig(types.Source{Name: "X", ListingURL: "https://news.example.com/"}))
	agg.Store().Put(types.Article{ID: "dead", Title: "Dead link", URL: "http://127.0.0.1:1/world/x", SourceName: "X"})

	art, err := agg.FetchContent(context.Background(), "dead")
	require.NoError(t, err)
	assert.Equal(t, extract.SentinelNetwork, types.Deref(art.Content))
	assert.Equal(t, string(extract.KindFetchError), art.ContentKind)
}

func TestFetchContentCancelledStoresNothing(t *testing.T) {
	site := newNewsSite(t)
	agg, m := newAggregator(t, testConfig(types.Source{Name: "Example", ListingURL: site.srv.URL + "/latest"}))
	agg.Store().Put(types.Article{ID: "a1", Title: "Story", URL: site.srv.URL + "/world/story", SourceName: "Example"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agg.FetchContent(ctx, "a1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	stored, ok := agg.Store().Get("a1")
	require.True(t, ok)
	assert.Nil(t, stored.Content)
	assert.Equal(t, int64(0), m.ArticleFetchErrors.Load())

	art, err := agg.FetchContent(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, string(extract.KindOK), art.ContentKind)
	assert.Equal(t, int32(1), site.articleHits.Load())
}

func TestFetchContentEmptyPageIsParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}))
	defer srv.Close()

	agg, _ := newAggregator(t, testConfig(types.Source{Name: "X", ListingURL: srv.URL + "/"}))
	agg.Store().Put(types.Article{ID: "empty", Title: "Empty", URL: srv.URL + "/world/empty", SourceName: "X"})

	art, err := agg.FetchContent(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, extract.SentinelNoContent, types.Deref(art.Content))
	assert.Equal(t, string(extract.KindParseFailure), art.ContentKind)
}
