package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/extract"
	"github.com/newsbrief/newsbrief/internal/payment"
	"github.com/newsbrief/newsbrief/internal/quota"
	"github.com/newsbrief/newsbrief/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeAggregator struct {
	mu        sync.Mutex
	headlines []types.Headline
	articles  map[string]types.Article
	fetches   map[string]int
}

func (f *fakeAggregator) Aggregate(ctx context.Context) ([]types.Headline, error) {
	return f.headlines, nil
}

func (f *fakeAggregator) FetchContent(ctx context.Context, id string) (types.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	art, ok := f.articles[id]
	if !ok {
		return types.Article{}, fmt.Errorf("fetch content %s: %w", id, types.ErrArticleNotFound)
	}
	f.fetches[id]++
	return art, nil
}

type fakeLLM struct {
	mu       sync.Mutex
	prompts  []string
	err      error
	response string
}

func (f *fakeLLM) Summarize(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, text)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) Chat(ctx context.Context, article, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, article+"|"+question)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakePayments struct {
	orderErr error
}

func (f *fakePayments) CreateOrder(ctx context.Context, amount int64, currency string) (*payment.Order, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	if amount == 0 {
		amount = 50000
	}
	if currency == "" {
		currency = "INR"
	}
	return &payment.Order{ID: "order_1", Amount: amount, Currency: currency, Receipt: payment.Receipt(), Status: "created"}, nil
}

func (f *fakePayments) VerifySignature(orderID, paymentID, signature string) error {
	if signature != payment.Sign("secret", orderID, paymentID) {
		return types.ErrInvalidSignature
	}
	return nil
}

type harness struct {
	srv    *httptest.Server
	client *http.Client
	agg    *fakeAggregator
	llm    *fakeLLM
	quota  *quota.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultConfig()

	okContent := "Heavy rain displaced thousands."
	failed := extract.SentinelNetwork
	agg := &fakeAggregator{
		headlines: []types.Headline{{ID: "a1", Title: "Floods", URL: "https://news.example.com/world/1", SourceName: "Example"}},
		articles: map[string]types.Article{
			"a1":    {ID: "a1", Title: "Floods", URL: "https://news.example.com/world/1", SourceName: "Example", Content: &okContent, ContentKind: string(extract.KindOK)},
			"dead":  {ID: "dead", Title: "Dead", URL: "https://news.example.com/world/2", SourceName: "Example", Content: &failed, ContentKind: string(extract.KindFetchError)},
			"empty": {ID: "empty", Title: "Empty", URL: "https://news.example.com/world/3", SourceName: "Example", Content: types.StringPtr(" ")},
		},
		fetches: map[string]int{},
	}
	llm := &fakeLLM{response: "A short summary."}
	qm := quota.NewManager(cfg.Quota, testLogger)

	s := NewServer(cfg, Deps{Aggregator: agg, LLM: llm, Payments: &fakePayments{}, Quota: qm}, testLogger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{srv: srv, client: &http.Client{Jar: jar}, agg: agg, llm: llm, quota: qm}
}

func (h *harness) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestHomeAndHealth(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AI News Backend API is running!", body["message"])

	status, body = h.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestNotFoundIsJSON(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not found", body["error"])
}

func TestCORSHeader(t *testing.T) {
	h := newHarness(t)
	resp, err := h.client.Get(h.srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ := http.NewRequest(http.MethodOptions, h.srv.URL+"/api/summarize", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err = h.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestNews(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Get(h.srv.URL + "/api/news")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []types.Headline
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "Example", got[0].SourceName)
}

func TestNewsEmpty(t *testing.T) {
	h := newHarness(t)
	h.agg.headlines = nil

	status, body := h.do(t, http.MethodGet, "/api/news", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Could not fetch headlines from any source. Please try again later.", body["message"])
}

func TestArticle(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodGet, "/api/article/a1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a1", body["id"])
	assert.Equal(t, "Example", body["source"])
	assert.Equal(t, "Heavy rain displaced thousands.", body["content"])

	status, body = h.do(t, http.MethodGet, "/api/article/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Article not found.", body["error"])
}

func TestSessionCookieIssuedOnce(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodGet, "/", nil)
	h.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, 1, h.quota.Len())

	// A forged cookie is replaced with a fresh session.
	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "6f1e4c57-3c3a-4c39-9f49-0d1c1e3f2a10.forged"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	var issued bool
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			issued = true
			assert.NotContains(t, c.Value, "forged")
		}
	}
	assert.True(t, issued)
	assert.Equal(t, 2, h.quota.Len())
}

func TestSummarizeByArticleThenQuota(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodPost, "/api/summarize", map[string]string{"article_id": "a1"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "A short summary.", body["summary"])
	assert.Equal(t, []string{"Heavy rain displaced thousands."}, h.llm.prompts)

	status, body = h.do(t, http.MethodPost, "/api/summarize", map[string]string{"text": "Other text."})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, true, body["limit_reached"])
	assert.Equal(t, "summary", body["feature"])
	assert.Equal(t, "Free tier limit reached for summary. Please upgrade to Pro for unlimited access.", body["error"])
}

func TestSummarizeValidation(t *testing.T) {
	cases := []struct {
		name   string
		body   any
		status int
		msg    string
	}{
		{"nothing", map[string]string{}, http.StatusBadRequest, "No article_id or text provided for summarization."},
		{"not json", nil, http.StatusBadRequest, "No article_id or text provided for summarization."},
		{"unknown article", map[string]string{"article_id": "missing"}, http.StatusNotFound, "Article not found for summarization."},
		{"blank text", map[string]string{"text": "   "}, http.StatusBadRequest, "Content to summarize is empty."},
		{"blank stored content", map[string]string{"article_id": "empty"}, http.StatusBadRequest, "Content to summarize is empty."},
		{"failed scrape", map[string]string{"article_id": "dead"}, http.StatusUnprocessableEntity, extract.SentinelNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			status, body := h.do(t, http.MethodPost, "/api/summarize", tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, body["error"])
			assert.Empty(t, h.llm.prompts)
		})
	}
}

func TestSummarizeLLMFailure(t *testing.T) {
	h := newHarness(t)
	h.llm.err = fmt.Errorf("summarize text: %w", types.ErrAINotConfigured)

	status, body := h.do(t, http.MethodPost, "/api/summarize", map[string]string{"text": "Some text."})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.True(t, strings.HasPrefix(body["error"].(string), "Failed to summarize text: "))
}

func TestChat(t *testing.T) {
	h := newHarness(t)
	h.llm.response = "Thousands."

	status, body := h.do(t, http.MethodPost, "/api/chat", map[string]string{"article_id": "a1", "question": "How many?"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Thousands.", body["response"])
	assert.Equal(t, []string{"Heavy rain displaced thousands.|How many?"}, h.llm.prompts)

	status, body = h.do(t, http.MethodPost, "/api/chat", map[string]string{"article_id": "a1", "question": "Again?"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "chat", body["feature"])
}

func TestChatValidation(t *testing.T) {
	cases := []struct {
		name   string
		body   map[string]string
		status int
		msg    string
	}{
		{"no question", map[string]string{"article_id": "a1"}, http.StatusBadRequest, "No question provided for chat."},
		{"no article", map[string]string{"question": "Why?"}, http.StatusBadRequest, "No article_id provided for chat context."},
		{"unknown article", map[string]string{"article_id": "missing", "question": "Why?"}, http.StatusNotFound, "Article not found for chat context."},
		{"empty content", map[string]string{"article_id": "empty", "question": "Why?"}, http.StatusBadRequest, "Article content is empty, cannot provide context for chat."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			status, body := h.do(t, http.MethodPost, "/api/chat", tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, body["error"])
		})
	}
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodPost, "/payment/create-order", map[string]any{})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "order_1", body["id"])
	assert.Equal(t, float64(50000), body["amount"])
	assert.Equal(t, "INR", body["currency"])
}

func TestCreateOrderFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewServer(cfg, Deps{Aggregator: &fakeAggregator{}, LLM: &fakeLLM{}, Payments: &fakePayments{orderErr: payment.ErrNotConfigured}}, testLogger)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment/create-order", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Failed to create order", body["error"])
	assert.Equal(t, payment.ErrNotConfigured.Error(), body["details"])
}

func TestVerifyPaymentGrantsPro(t *testing.T) {
	h := newHarness(t)

	// Use up the free summary first.
	status, _ := h.do(t, http.MethodPost, "/api/summarize", map[string]string{"text": "one"})
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do(t, http.MethodPost, "/api/summarize", map[string]string{"text": "two"})
	require.Equal(t, http.StatusForbidden, status)

	status, body := h.do(t, http.MethodPost, "/payment/verify-payment", map[string]string{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  payment.Sign("secret", "order_1", "pay_1"),
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Payment successful and Pro access granted!", body["message"])

	for i := 0; i < 3; i++ {
		status, _ = h.do(t, http.MethodPost, "/api/summarize", map[string]string{"text": "more"})
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestVerifyPaymentFailures(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodPost, "/payment/verify-payment", map[string]string{"razorpay_order_id": "order_1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing payment verification details", body["error"])

	status, body = h.do(t, http.MethodPost, "/payment/verify-payment", map[string]string{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "bad",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Payment verification failed: Invalid signature.", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/api/summarize", map[string]string{"text": "one"})

	resp, err := h.client.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "newsbrief_summaries_total 1")
}

func TestPanicReturnsJSON500(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewServer(cfg, Deps{Aggregator: panicAggregator{}, LLM: &fakeLLM{}, Payments: &fakePayments{}}, testLogger)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/news", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

type panicAggregator struct{}

func (panicAggregator) Aggregate(context.Context) ([]types.Headline, error) { panic("boom") }

func (panicAggregator) FetchContent(context.Context, string) (types.Article, error) {
	return types.Article{}, types.ErrArticleNotFound
}
