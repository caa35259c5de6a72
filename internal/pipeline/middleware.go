package pipeline

import (
	"html"
	"regexp"
	"strings"

	"github.com/newsbrief/newsbrief/internal/types"
)

// TrimMiddleware trims whitespace from the headline's text fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(h *types.Headline) (*types.Headline, error) {
	h.Title = strings.TrimSpace(h.Title)
	h.URL = strings.TrimSpace(h.URL)
	if h.Snippet != nil {
		h.Snippet = types.StringPtr(strings.TrimSpace(*h.Snippet))
	}
	return h, nil
}

// HTMLSanitizeMiddleware strips tags and decodes entities in the title and
// snippet. Some publishers double-escape anchor text. Only tag-shaped runs
// are removed, so comparisons such as "3 < 5" survive.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`</?[a-zA-Z][^<>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(h *types.Headline) (*types.Headline, error) {
	h.Title = m.clean(h.Title)
	if h.Snippet != nil {
		h.Snippet = types.StringPtr(m.clean(*h.Snippet))
	}
	return h, nil
}

func (m *HTMLSanitizeMiddleware) clean(s string) string {
	cleaned := html.UnescapeString(s)
	cleaned = m.stripRe.ReplaceAllString(cleaned, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

// RequiredFieldsMiddleware drops headlines without an id, title or URL.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(h *types.Headline) (*types.Headline, error) {
	if h.ID == "" || h.Title == "" || h.URL == "" {
		return nil, nil
	}
	return h, nil
}

// DefaultImageMiddleware fills a missing image with the placeholder.
type DefaultImageMiddleware struct {
	Placeholder string
}

func (m *DefaultImageMiddleware) Name() string { return "default_image" }

func (m *DefaultImageMiddleware) Process(h *types.Headline) (*types.Headline, error) {
	if h.ImageURL == nil && m.Placeholder != "" {
		h.ImageURL = types.StringPtr(m.Placeholder)
	}
	return h, nil
}
