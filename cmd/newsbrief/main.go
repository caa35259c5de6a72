package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newsbrief/newsbrief/internal/aggregator"
	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/fetcher"
	"github.com/newsbrief/newsbrief/internal/observability"
	"github.com/newsbrief/newsbrief/internal/store"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsbrief",
		Short: "News headline aggregator with AI summaries",
		Long: `newsbrief scrapes headline listing pages from configured news sites,
keeps the discovered articles in memory, and fetches full article text on
demand.

Features:
  • Heuristic article-link detection with per-source pattern overrides
  • Snippet, thumbnail, author and lead extraction from page structure
  • REST API with free/pro usage quotas and Razorpay checkout
  • Summaries and article Q&A via OpenRouter, OpenAI-compatible APIs or Ollama
  • JSON, JSONL, CSV export
  • Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(headlinesCmd())
	rootCmd.AddCommand(articleCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration and builds the logger it
// asks for.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg.Logging), nil
}

// newAggregator wires the fetchers, store and aggregator for one process.
// The returned fetcher must be closed by the caller.
func newAggregator(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*aggregator.Aggregator, fetcher.Fetcher, error) {
	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create fetcher: %w", err)
	}
	var f fetcher.Fetcher = fetcher.NewRouter(httpFetcher, func() (fetcher.Fetcher, error) {
		bf, err := fetcher.NewBrowserFetcher(cfg, logger)
		if err != nil {
			return nil, err
		}
		return bf, nil
	})
	if cfg.Fetcher.RespectRobots {
		f = fetcher.NewRobotsGuard(f, "newsbrief", logger)
	}

	agg, err := aggregator.New(cfg, f, store.New(), metrics, logger)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return agg, f, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("newsbrief %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Sources:\n")
			for _, src := range cfg.Sources {
				fetch := src.Fetcher
				if fetch == "" {
					fetch = "http"
				}
				fmt.Printf("  %-18s %s (%s)\n", src.Name, src.ListingURL, fetch)
			}
			fmt.Printf("\nScraper:\n")
			fmt.Printf("  Max Headlines:     %d\n", cfg.Scraper.MaxHeadlines)
			fmt.Printf("  Listing Timeout:   %s\n", cfg.Scraper.ListingTimeout)
			fmt.Printf("  Article Timeout:   %s\n", cfg.Scraper.ArticleTimeout)
			fmt.Printf("  Source Delay:      %s\n", cfg.Scraper.SourceDelay)
			fmt.Printf("  Concurrency:       %d\n", cfg.Scraper.Concurrency)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Scraper.UserAgents))
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  Respect Robots:    %v\n", cfg.Fetcher.RespectRobots)
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Rotation:          %s\n", cfg.Proxy.Rotation)
			fmt.Printf("  Count:             %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nAI:\n")
			fmt.Printf("  Provider:          %s\n", cfg.AI.Provider)
			fmt.Printf("  Model:             %s\n", cfg.AI.Model)
			fmt.Printf("  API Key:           %s\n", mask(cfg.AI.APIKey))
			fmt.Printf("\nQuota:\n")
			fmt.Printf("  Free Summaries:    %d/day\n", cfg.Quota.FreeSummaryLimit)
			fmt.Printf("  Free Chats:        %d/day\n", cfg.Quota.FreeChatLimit)
			fmt.Printf("\nPayment:\n")
			fmt.Printf("  Key ID:            %s\n", mask(cfg.Payment.KeyID))
			fmt.Printf("  Default Amount:    %d %s\n", cfg.Payment.DefaultAmount, cfg.Payment.Currency)
			fmt.Printf("\nServer:\n")
			fmt.Printf("  Port:              %d\n", cfg.Server.Port)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Path:              %s\n", cfg.Metrics.Path)
			return nil
		},
	}
	return cmd
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// setupLogger creates a structured logger.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
