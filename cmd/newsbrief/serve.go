package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/newsbrief/newsbrief/internal/ai"
	"github.com/newsbrief/newsbrief/internal/api"
	"github.com/newsbrief/newsbrief/internal/observability"
	"github.com/newsbrief/newsbrief/internal/payment"
	"github.com/newsbrief/newsbrief/internal/quota"
)

var servePort int

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API",
		Long: `Serve headlines, articles, summaries, chat and payments over HTTP.

Routes:
  GET  /                        service banner
  GET  /api/health              liveness
  GET  /api/news                scrape all sources and list headlines
  GET  /api/article/{id}        full article text (fetched on first request)
  POST /api/summarize           summarize an article or raw text (metered)
  POST /api/chat                ask a question about an article (metered)
  POST /payment/create-order    open a Razorpay order
  POST /payment/verify-payment  verify checkout and upgrade the session to pro`,
		RunE: runServe,
	}
	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	metrics := observability.NewMetrics(logger)
	agg, f, err := newAggregator(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer f.Close()

	llm := ai.NewClient(cfg.AI, logger)
	if !llm.Configured() {
		logger.Warn("AI provider not configured; summarize and chat will fail", "provider", cfg.AI.Provider)
	}
	payments := payment.NewClient(cfg.Payment, logger)
	if !payments.Configured() {
		logger.Warn("Razorpay keys not configured; payments will fail")
	}

	srv := api.NewServer(cfg, api.Deps{
		Aggregator: agg,
		LLM:        llm,
		Payments:   payments,
		Quota:      quota.NewManager(cfg.Quota, logger),
		Metrics:    metrics,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting newsbrief", "port", cfg.Server.Port, "sources", len(cfg.Sources))
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	metrics.LogSummary()
	return nil
}
