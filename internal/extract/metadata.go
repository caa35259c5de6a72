package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/newsbrief/newsbrief/internal/urlutil"
)

// Metadata is the article-page context gathered alongside the body text.
type Metadata struct {
	Description string
	ImageURL    string
	Author      string
	LeadSummary string
}

var byPrefix = regexp.MustCompile(`(?i)^by\s+`)

// maxAuthorLength bounds byline candidates; longer text is a paragraph that
// happened to carry an author class.
const maxAuthorLength = 120

// Metadata extracts description, image, author and lead paragraph from an
// article page. body is the raw HTML used for the readability fallback and
// may be nil.
func (e *Extractor) Metadata(doc *goquery.Document, body []byte, pageURL *url.URL) Metadata {
	pm := ReadPageMeta(doc)
	root := doc.Selection
	fallback := &readabilityFallback{enabled: e.opts.Readability && len(body) > 0 && pageURL != nil, body: body, pageURL: pageURL, ex: e}

	var md Metadata

	descChain := Chain{
		valueStrategy("og:description", pm.OpenGraph["description"]),
		valueStrategy("twitter:description", pm.Twitter["description"]),
		valueStrategy("meta:description", pm.Meta["description"]),
		{Name: "readability:excerpt", Apply: func(*goquery.Selection) (string, bool) {
			v := collapseSpace(fallback.article().Excerpt)
			return v, v != ""
		}},
	}
	md.Description, _, _ = descChain.First(root)

	md.ImageURL = e.articleImage(doc, pm, pageURL)

	authorChain := Chain{
		TextOf(`[rel="author"]`),
		TextOf(".byline"),
		TextOf(".author"),
		TextOf(".author-name"),
		TextOf(`[itemprop="author"]`),
		XPathAttr(`//meta[@name="author"]`, "content"),
		XPathText(`//a[contains(@href, "/author/")]`),
		valueStrategy("json-ld:author", pm.JSONLDAuthor()),
		{Name: "readability:byline", Apply: func(*goquery.Selection) (string, bool) {
			v := collapseSpace(fallback.article().Byline)
			return v, v != ""
		}},
	}.Filter(func(s string) bool {
		s = cleanAuthor(s)
		return s != "" && utf8.RuneCountInString(s) <= maxAuthorLength
	})
	if author, name, ok := authorChain.First(root); ok {
		md.Author = cleanAuthor(author)
		e.logger.Debug("author found", "strategy", name)
	}

	substantial := func(s string) bool { return utf8.RuneCountInString(s) > e.opts.MinLeadLength }
	leadChain := Chain{
		EachTextOf(".lead", substantial),
		EachTextOf(".intro", substantial),
		EachTextOf(".summary", substantial),
		EachTextOf(".story-summary", substantial),
		EachTextOf("article p", substantial),
		EachTextOf("main p", substantial),
		EachTextOf("body p", substantial),
	}
	md.LeadSummary, _, _ = leadChain.First(root)

	return md
}

// articleImage prefers social-preview images, then structural images in
// the main body, then the placeholder.
func (e *Extractor) articleImage(doc *goquery.Document, pm PageMeta, pageURL *url.URL) string {
	for _, candidate := range []string{pm.OpenGraph["image"], pm.Twitter["image"], pm.Twitter["image:src"]} {
		if candidate == "" || IsBlockedImage(candidate) {
			continue
		}
		if abs, err := urlutil.Resolve(pageURL, candidate); err == nil {
			return abs.String()
		}
	}
	if src, _, ok := e.imageChain(bodyImageContainers, pageURL).First(LocateContainer(doc)); ok {
		return src
	}
	return e.opts.PlaceholderImage
}

func cleanAuthor(s string) string {
	return strings.TrimSpace(byPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}

func valueStrategy(name, v string) Strategy {
	return Strategy{
		Name: name,
		Apply: func(*goquery.Selection) (string, bool) {
			return v, v != ""
		},
	}
}

// readabilityFallback runs go-readability at most once per page and only
// when a chain reaches it.
type readabilityFallback struct {
	enabled bool
	body    []byte
	pageURL *url.URL
	ex      *Extractor

	done   bool
	result readability.Article
}

func (r *readabilityFallback) article() readability.Article {
	if !r.enabled || r.done {
		return r.result
	}
	r.done = true
	art, err := readability.FromReader(bytes.NewReader(r.body), r.pageURL)
	if err != nil {
		r.ex.logger.Debug("readability fallback failed", "error", err)
		return r.result
	}
	r.result = art
	return r.result
}
