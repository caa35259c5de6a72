package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsbrief/newsbrief/internal/config"
	"github.com/newsbrief/newsbrief/internal/export"
	"github.com/newsbrief/newsbrief/internal/observability"
)

var (
	outputPath   string
	outputFormat string
	maxHeadlines int
	concurrency  int
	sourceDelay  string
	onlySources  []string
)

// headlinesCmd creates the "headlines" subcommand.
func headlinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "headlines",
		Short: "Scrape all sources once and print the headlines",
		RunE:  runHeadlines,
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text, json, jsonl, csv")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().IntVarP(&maxHeadlines, "max", "m", 0, "maximum headlines (overrides config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "listing pages fetched in parallel (overrides config)")
	cmd.Flags().StringVar(&sourceDelay, "delay", "", "pause between sources, e.g. 500ms (overrides config)")
	cmd.Flags().StringSliceVarP(&onlySources, "source", "s", nil, "only scrape the named sources")

	return cmd
}

func runHeadlines(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	if maxHeadlines > 0 {
		cfg.Scraper.MaxHeadlines = maxHeadlines
	}
	if concurrency > 0 {
		cfg.Scraper.Concurrency = concurrency
	}
	if sourceDelay != "" {
		d, err := time.ParseDuration(sourceDelay)
		if err != nil {
			return fmt.Errorf("invalid --delay: %w", err)
		}
		cfg.Scraper.SourceDelay = d
	}
	if len(onlySources) > 0 {
		want := make(map[string]bool, len(onlySources))
		for _, s := range onlySources {
			want[strings.ToLower(strings.TrimSpace(s))] = true
		}
		filtered := cfg.Sources[:0]
		for _, src := range cfg.Sources {
			if want[strings.ToLower(src.Name)] {
				filtered = append(filtered, src)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("no configured source matches %v", onlySources)
		}
		cfg.Sources = filtered
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	format := strings.ToLower(outputFormat)
	if format != "text" && !slices.Contains(export.Formats, format) {
		return fmt.Errorf("unsupported format %q (want text, %s)", format, strings.Join(export.Formats, ", "))
	}
	if format == "text" && outputPath != "" {
		return fmt.Errorf("--output needs --format json, jsonl or csv")
	}

	metrics := observability.NewMetrics(logger)
	agg, f, err := newAggregator(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	headlines, err := agg.Aggregate(ctx)
	if err != nil {
		logger.Warn("scrape interrupted, writing partial results", "error", err)
	}
	metrics.LogSummary()

	if len(headlines) == 0 {
		return fmt.Errorf("could not fetch headlines from any source")
	}

	if format == "text" {
		renderHeadlines(os.Stdout, headlines)
		fmt.Printf("\n%d headlines from %d sources in %s\n", len(headlines), len(cfg.Sources), time.Since(start).Round(time.Millisecond))
		return nil
	}

	var ex export.Exporter
	if outputPath != "" {
		ex, err = export.NewFile(format, outputPath, logger)
	} else {
		ex, err = export.New(format, os.Stdout, logger)
	}
	if err != nil {
		return err
	}
	if err := ex.Write(headlines); err != nil {
		ex.Close()
		return fmt.Errorf("write headlines: %w", err)
	}
	return ex.Close()
}
