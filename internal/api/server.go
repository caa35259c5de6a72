// Package api exposes headlines, articles, AI features and payments over
// REST.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/observability"
	"github.com/newsbrief/newsbrief/internal/payment"
	"github.com/newsbrief/newsbrief/internal/quota"
	"github.com/newsbrief/newsbrief/internal/types"
)

// Aggregator is what the API needs from the headline aggregator.
type Aggregator interface {
	Aggregate(ctx context.Context) ([]types.Headline, error)
	FetchContent(ctx context.Context, id string) (types.Article, error)
}

// LLM answers summary and chat requests.
type LLM interface {
	Summarize(ctx context.Context, text string) (string, error)
	Chat(ctx context.Context, article, question string) (string, error)
}

// Payments creates orders and checks checkout signatures.
type Payments interface {
	CreateOrder(ctx context.Context, amount int64, currency string) (*payment.Order, error)
	VerifySignature(orderID, paymentID, signature string) error
}

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Aggregator Aggregator
	LLM        LLM
	Payments   Payments
	Quota      *quota.Manager
	Metrics    *observability.Metrics
}

// Server provides the REST API.
type Server struct {
	router  chi.Router
	cfg     config.ServerConfig
	deps    Deps
	session *sessionCodec
	logger  *slog.Logger
}

// NewServer creates a new API server and registers its routes. Metrics are
// served on cfg.Metrics.Path when enabled.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics(logger)
	}
	if deps.Quota == nil {
		deps.Quota = quota.NewManager(cfg.Quota, logger)
	}
	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg.Server,
		deps:    deps,
		session: newSessionCodec(cfg.Server.SecretKey),
		logger:  logger.With("component", "api_server"),
	}
	s.registerRoutes(cfg.Metrics)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) registerRoutes(metrics config.MetricsConfig) {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(cors)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.jsonResponse(w, http.StatusNotFound, errorBody("Not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.jsonResponse(w, http.StatusMethodNotAllowed, errorBody("Method not allowed"))
	})

	if metrics.Enabled && metrics.Path != "" {
		r.Method(http.MethodGet, metrics.Path, s.deps.Metrics)
	}
	r.Get("/api/health", s.handleHealth)

	// Everything below runs with a quota session.
	r.Group(func(r chi.Router) {
		r.Use(s.sessions)

		r.Get("/", s.handleHome)
		r.Get("/api/news", s.handleNews)
		r.Get("/api/article/{id}", s.handleArticle)
		r.With(s.requireQuota(quota.FeatureSummary)).Post("/api/summarize", s.handleSummarize)
		r.With(s.requireQuota(quota.FeatureChat)).Post("/api/chat", s.handleChat)

		r.Route("/payment", func(r chi.Router) {
			r.Post("/create-order", s.handleCreateOrder)
			r.Post("/verify-payment", s.handleVerifyPayment)
		})
	})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response failed", "error", err)
	}
}

// cors allows any origin, as the browser front end is served separately.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer turns handler panics into the JSON 500 body.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", rec, "request_id", middleware.GetReqID(r.Context()))
				s.jsonResponse(w, http.StatusInternalServerError, errorBody("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
