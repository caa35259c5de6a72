package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind classifies a content extraction outcome.
type Kind string

const (
	KindOK           Kind = "ok"
	KindFetchError   Kind = "fetch_error"
	KindParseFailure Kind = "parse_failure"
)

// Fixed texts stored in place of article content when extraction fails.
const (
	SentinelNoContent  = "Could not scrape article content."
	SentinelNetwork    = "Failed to scrape article content due to network error."
	SentinelUnexpected = "Failed to scrape article content due to an unexpected error."
)

// Outcome is the result of extracting an article body. Text is never empty:
// failures carry one of the sentinel texts.
type Outcome struct {
	Text string
	Kind Kind
}

// OK reports whether the outcome holds real article text.
func (o Outcome) OK() bool { return o.Kind == KindOK }

// FetchFailed is the outcome for a network, timeout or HTTP status failure.
func FetchFailed() Outcome {
	return Outcome{Text: SentinelNetwork, Kind: KindFetchError}
}

// Unexpected is the outcome for a failure other than fetching, such as a
// document that cannot be parsed.
func Unexpected() Outcome {
	return Outcome{Text: SentinelUnexpected, Kind: KindParseFailure}
}

func noContent() Outcome {
	return Outcome{Text: SentinelNoContent, Kind: KindParseFailure}
}

// ContainerClasses name the publisher body wrappers tried before the
// generic article/main/body fallbacks.
var ContainerClasses = []string{
	"article-content", "story-content", "body-content", "news-body",
	"td-post-content", "content-area", "entry-content", "single-post-content",
	"article-body", "story-body", "post-content", "article__content",
}

var containerChain = func() []string {
	var sel []string
	for _, c := range ContainerClasses {
		sel = append(sel, "div."+c+", section."+c)
	}
	return append(sel, "article", "main", "body")
}()

// LocateContainer finds the main body element of an article page. The
// returned selection is empty when nothing qualifies.
func LocateContainer(doc *goquery.Document) *goquery.Selection {
	for _, s := range containerChain {
		if found := doc.Find(s).First(); found.Length() > 0 {
			return found
		}
	}
	return doc.Find("nonexistent")
}

const textSelector = "p, h1, h2, h3, h4, h5, h6, li"

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\r]+`)
	blankLines      = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
)

// Content extracts cleaned body text from doc. The document is not
// modified.
func (e *Extractor) Content(doc *goquery.Document) Outcome {
	container := LocateContainer(doc)
	if container.Length() == 0 {
		return noContent()
	}
	container = container.Clone()
	container.Find(strings.Join(e.opts.RemoveSelectors, ", ")).Remove()

	var parts []string
	container.Find(textSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested text blocks are collected at the innermost level.
		if s.Find(textSelector).Length() > 0 {
			return
		}
		if t := collapseSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		if t := collapseSpace(container.Text()); t != "" {
			parts = append(parts, t)
		}
	}

	text := strings.Join(parts, "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = e.truncateBoilerplate(text)

	if text == "" {
		return noContent()
	}
	return Outcome{Text: text, Kind: KindOK}
}

// ContentFromHTML parses body and extracts its content.
func (e *Extractor) ContentFromHTML(body []byte) Outcome {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("article parse failed", "error", err)
		return Unexpected()
	}
	return e.Content(doc)
}

// truncateBoilerplate cuts text at the first boilerplate phrase, even when
// it starts mid-paragraph, and trims the remainder.
func (e *Extractor) truncateBoilerplate(text string) string {
	if re := e.boilerplate(); re != nil {
		if loc := re.FindStringIndex(text); loc != nil {
			text = text[:loc[0]]
		}
	}
	return strings.TrimSpace(text)
}

func (e *Extractor) boilerplate() *regexp.Regexp {
	e.boilerplateOnce.Do(func() {
		if len(e.opts.BoilerplatePhrases) == 0 {
			return
		}
		quoted := make([]string, len(e.opts.BoilerplatePhrases))
		for i, p := range e.opts.BoilerplatePhrases {
			quoted[i] = regexp.QuoteMeta(p)
		}
		e.boilerplateRe = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	})
	return e.boilerplateRe
}
