package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/newsbrief/newsbrief/internal/ai"
	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/extract"
	"github.com/newsbrief/newsbrief/internal/observability"
	"github.com/newsbrief/newsbrief/internal/types"
)

var (
	articleJSON      bool
	articleSummarize bool
	articleSource    string
)

// articleCmd creates the "article" subcommand.
func articleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "article [url]",
		Short: "Fetch one article page and print its text",
		Long: `Fetch an article page, extract its body text and metadata, and print it.

With --summarize the text is also sent to the configured language model.`,
		Args: cobra.ExactArgs(1),
		RunE: runArticle,
	}

	cmd.Flags().BoolVar(&articleJSON, "json", false, "print the article as JSON")
	cmd.Flags().BoolVar(&articleSummarize, "summarize", false, "summarize the article with the configured AI provider")
	cmd.Flags().StringVar(&articleSource, "source", "", "configured source name, selects its fetcher")

	return cmd
}

func runArticle(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateURL(args[0]); err != nil {
		return fmt.Errorf("invalid URL %q: %w", args[0], err)
	}

	metrics := observability.NewMetrics(logger)
	agg, f, err := newAggregator(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	id := uuid.NewString()
	agg.Store().Put(types.Article{ID: id, Title: args[0], URL: args[0], SourceName: articleSource})

	art, err := agg.FetchContent(ctx, id)
	if err != nil {
		return err
	}

	var summary string
	if articleSummarize && art.ContentKind == string(extract.KindOK) {
		summary, err = ai.NewClient(cfg.AI, logger).Summarize(ctx, types.Deref(art.Content))
		if err != nil {
			return fmt.Errorf("failed to summarize text: %w", err)
		}
	}

	if articleJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		out := struct {
			types.Article
			Kind    string `json:"content_kind"`
			Summary string `json:"summary,omitempty"`
		}{Article: art, Kind: art.ContentKind, Summary: summary}
		return enc.Encode(out)
	}

	renderArticle(os.Stdout, art, summary)
	return nil
}
