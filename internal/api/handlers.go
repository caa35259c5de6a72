package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/extract"
	"github.com/newsbrief/newsbrief/internal/quota"
	"github.com/newsbrief/newsbrief/internal/types"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "AI News Backend API is running!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	headlines, err := s.deps.Aggregator.Aggregate(r.Context())
	if err != nil {
		s.logger.Warn("aggregation interrupted", "error", err, "headlines", len(headlines))
	}
	if len(headlines) == 0 {
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{
			"message": "Could not fetch headlines from any source. Please try again later.",
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, headlines)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	art, err := s.deps.Aggregator.FetchContent(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, types.ErrArticleNotFound) {
		s.jsonResponse(w, http.StatusNotFound, errorBody("Article not found."))
		return
	}
	if err != nil {
		s.logger.Error("fetch content failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, errorBody("Internal server error"))
		return
	}
	s.jsonResponse(w, http.StatusOK, art)
}

type summarizeRequest struct {
	ArticleID string `json:"article_id"`
	Text      string `json:"text"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var body summarizeRequest
	// A missing or malformed body is the same as an empty one.
	_ = decodeBody(w, r, &body)

	var content string
	switch {
	case body.ArticleID != "":
		art, ok := s.articleContent(w, r, body.ArticleID, "Article not found for summarization.")
		if !ok {
			return
		}
		content = types.Deref(art.Content)
	case body.Text != "":
		content = body.Text
	default:
		s.jsonResponse(w, http.StatusBadRequest, errorBody("No article_id or text provided for summarization."))
		return
	}

	if strings.TrimSpace(content) == "" {
		s.jsonResponse(w, http.StatusBadRequest, errorBody("Content to summarize is empty."))
		return
	}

	summary, err := s.deps.LLM.Summarize(r.Context(), content)
	if err != nil {
		s.aiError(w, "Failed to summarize text: ", err)
		return
	}
	s.deps.Metrics.SummariesServed.Add(1)
	s.jsonResponse(w, http.StatusOK, map[string]string{"summary": summary})
}

type chatRequest struct {
	ArticleID string `json:"article_id"`
	Question  string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	_ = decodeBody(w, r, &body)

	if strings.TrimSpace(body.Question) == "" {
		s.jsonResponse(w, http.StatusBadRequest, errorBody("No question provided for chat."))
		return
	}
	if body.ArticleID == "" {
		s.jsonResponse(w, http.StatusBadRequest, errorBody("No article_id provided for chat context."))
		return
	}

	art, ok := s.articleContent(w, r, body.ArticleID, "Article not found for chat context.")
	if !ok {
		return
	}
	content := types.Deref(art.Content)
	if strings.TrimSpace(content) == "" {
		s.jsonResponse(w, http.StatusBadRequest, errorBody("Article content is empty, cannot provide context for chat."))
		return
	}

	answer, err := s.deps.LLM.Chat(r.Context(), content, body.Question)
	if err != nil {
		s.aiError(w, "Failed to get a response from the chatbot: ", err)
		return
	}
	s.deps.Metrics.ChatsServed.Add(1)
	s.jsonResponse(w, http.StatusOK, map[string]string{"response": answer})
}

// articleContent loads the article for an AI request. Placeholder text from
// a failed scrape is reported to the client instead of being sent to the
// model.
func (s *Server) articleContent(w http.ResponseWriter, r *http.Request, id, notFound string) (types.Article, bool) {
	art, err := s.deps.Aggregator.FetchContent(r.Context(), id)
	if errors.Is(err, types.ErrArticleNotFound) {
		s.jsonResponse(w, http.StatusNotFound, errorBody(notFound))
		return types.Article{}, false
	}
	if err != nil {
		s.logger.Error("fetch content failed", "id", id, "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, errorBody("Internal server error"))
		return types.Article{}, false
	}
	if art.ContentKind != "" && art.ContentKind != string(extract.KindOK) {
		s.jsonResponse(w, http.StatusUnprocessableEntity, map[string]string{
			"error": types.Deref(art.Content),
			"kind":  art.ContentKind,
		})
		return types.Article{}, false
	}
	return art, true
}

func (s *Server) aiError(w http.ResponseWriter, prefix string, err error) {
	s.deps.Metrics.AIErrors.Add(1)
	s.logger.Error("language model call failed", "error", err)

	status := http.StatusBadGateway
	if errors.Is(err, types.ErrAINotConfigured) {
		status = http.StatusServiceUnavailable
	}
	s.jsonResponse(w, status, errorBody(prefix+err.Error()))
}

// requireQuota counts one use of f against the caller's session before the
// handler runs and refuses the request once a free session is at its limit.
func (s *Server) requireQuota(f quota.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := s.deps.Quota.Consume(SessionID(r.Context()), f)
			switch {
			case errors.Is(err, types.ErrSessionNotFound):
				s.jsonResponse(w, http.StatusUnauthorized, errorBody("User not found or session expired. Please refresh."))
				return
			case errors.Is(err, types.ErrQuotaExceeded):
				s.deps.Metrics.QuotaRejections.Add(1)
				s.jsonResponse(w, http.StatusForbidden, map[string]any{
					"error":         "Free tier limit reached for " + string(f) + ". Please upgrade to Pro for unlimited access.",
					"limit_reached": true,
					"feature":       string(f),
				})
				return
			case err != nil:
				s.logger.Error("quota check failed", "error", err)
				s.jsonResponse(w, http.StatusInternalServerError, errorBody("Internal server error"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderRequest
	_ = decodeBody(w, r, &body)

	order, err := s.deps.Payments.CreateOrder(r.Context(), body.Amount, body.Currency)
	if err != nil {
		s.logger.Error("create order failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to create order",
			"details": err.Error(),
		})
		return
	}
	s.jsonResponse(w, http.StatusOK, order)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var body verifyPaymentRequest
	_ = decodeBody(w, r, &body)

	if body.OrderID == "" || body.PaymentID == "" || body.Signature == "" {
		s.jsonResponse(w, http.StatusBadRequest, errorBody("Missing payment verification details"))
		return
	}

	err := s.deps.Payments.VerifySignature(body.OrderID, body.PaymentID, body.Signature)
	if errors.Is(err, types.ErrInvalidSignature) {
		s.deps.Metrics.PaymentsRejected.Add(1)
		s.jsonResponse(w, http.StatusBadRequest, errorBody("Payment verification failed: Invalid signature."))
		return
	}
	if err != nil {
		s.logger.Error("verify payment failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to verify payment",
			"details": err.Error(),
		})
		return
	}

	if err := s.deps.Quota.GrantPro(SessionID(r.Context())); err != nil {
		s.jsonResponse(w, http.StatusUnauthorized, errorBody("User not found or session expired. Please refresh."))
		return
	}
	s.deps.Metrics.PaymentsVerified.Add(1)
	s.logger.Info("payment verified", "order_id", body.OrderID, "payment_id", body.PaymentID)
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Payment successful and Pro access granted!"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}
