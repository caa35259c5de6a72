package extract

import (
	"log/slog"
	"regexp"
	"sync"

	"github.com/newsbrief/newsbrief/internal/config"
)

// Options tune the extractors. Zero-valued fields fall back to defaults.
type Options struct {
	PlaceholderImage   string
	SnippetMinLength   int
	SnippetMaxLength   int
	TitleFallbackLen   int
	MinImageSize       int
	MinLeadLength      int
	RemoveSelectors    []string
	BoilerplatePhrases []string
	Readability        bool
}

// DefaultPlaceholderImage is shown when no usable image is found.
const DefaultPlaceholderImage = "https://placehold.co/600x400?text=No+Image"

// DefaultRemoveSelectors are stripped from the content container before
// text is collected.
var DefaultRemoveSelectors = []string{
	"script", "style", "noscript", "iframe", "embed", "object",
	"video", "audio", "svg", "header", "footer", "nav", "aside",
	"form", "img", "figure", "figcaption", "button",
	`[class*="social"]`, `[class*="share"]`,
}

// DefaultBoilerplatePhrases mark the start of trailing page furniture.
var DefaultBoilerplatePhrases = []string{
	"read more", "related articles", "also read", "subscribe now",
	"reporting by", "our standards", "also see", "click here to",
	"follow us on", "download the app",
}

// DefaultOptions returns the built-in tuning.
func DefaultOptions() Options {
	return Options{
		PlaceholderImage:   DefaultPlaceholderImage,
		SnippetMinLength:   20,
		SnippetMaxLength:   300,
		TitleFallbackLen:   150,
		MinImageSize:       50,
		MinLeadLength:      50,
		RemoveSelectors:    DefaultRemoveSelectors,
		BoilerplatePhrases: DefaultBoilerplatePhrases,
		Readability:        true,
	}
}

// OptionsFromConfig maps the extract config section onto Options.
func OptionsFromConfig(cfg config.ExtractConfig) Options {
	return Options{
		PlaceholderImage:   cfg.PlaceholderImage,
		SnippetMinLength:   cfg.SnippetMinLength,
		SnippetMaxLength:   cfg.SnippetMaxLength,
		TitleFallbackLen:   cfg.TitleFallbackLen,
		MinImageSize:       cfg.MinImageSize,
		MinLeadLength:      cfg.MinLeadLength,
		RemoveSelectors:    cfg.RemoveSelectors,
		BoilerplatePhrases: cfg.BoilerplatePhrases,
		Readability:        cfg.Readability,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PlaceholderImage == "" {
		o.PlaceholderImage = d.PlaceholderImage
	}
	if o.SnippetMaxLength == 0 {
		o.SnippetMinLength = d.SnippetMinLength
		o.SnippetMaxLength = d.SnippetMaxLength
	}
	if o.TitleFallbackLen == 0 {
		o.TitleFallbackLen = d.TitleFallbackLen
	}
	if o.MinImageSize == 0 {
		o.MinImageSize = d.MinImageSize
	}
	if o.MinLeadLength == 0 {
		o.MinLeadLength = d.MinLeadLength
	}
	if len(o.RemoveSelectors) == 0 {
		o.RemoveSelectors = d.RemoveSelectors
	}
	if len(o.BoilerplatePhrases) == 0 {
		o.BoilerplatePhrases = d.BoilerplatePhrases
	}
	return o
}

// Extractor bundles the listing and article-page extractors.
type Extractor struct {
	opts   Options
	logger *slog.Logger

	boilerplateOnce sync.Once
	boilerplateRe   *regexp.Regexp
}

// New creates an Extractor.
func New(opts Options, logger *slog.Logger) *Extractor {
	return &Extractor{
		opts:   opts.withDefaults(),
		logger: logger.With("component", "extractor"),
	}
}

// Placeholder returns the configured placeholder image URL.
func (e *Extractor) Placeholder() string {
	return e.opts.PlaceholderImage
}
