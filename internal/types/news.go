package types

// Source is an operator-configured news listing page.
type Source struct {
	Name       string `mapstructure:"name"       yaml:"name"       json:"name"`
	ListingURL string `mapstructure:"listing_url" yaml:"listing_url" json:"listing_url"`

	// IncludePatterns and ExcludePatterns override the classifier defaults
	// for this source when non-empty.
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns,omitempty" json:"include_patterns,omitempty"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty"`

	// Fetcher selects "http" (default) or "browser" for JS-rendered pages.
	Fetcher string `mapstructure:"fetcher" yaml:"fetcher,omitempty" json:"fetcher,omitempty"`
}

// Headline is one discovered article link on a listing page.
type Headline struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	SourceName string  `json:"source"`
	Snippet    *string `json:"snippet,omitempty"`
	ImageURL   *string `json:"image_url,omitempty"`
}

// Article is the store record paired with a Headline. Content stays nil until
// the first full-content request populates it.
type Article struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	SourceName  string  `json:"source"`
	Content     *string `json:"content"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	Author      *string `json:"author,omitempty"`
	LeadSummary *string `json:"lead_summary,omitempty"`

	// ContentKind records how Content was obtained: "ok", "fetch_error" or
	// "parse_failure". Empty until content is populated.
	ContentKind string `json:"-"`
}

// HasContent reports whether the article body has been fetched.
func (a *Article) HasContent() bool {
	return a.Content != nil
}

// ArticleFromHeadline builds the empty store record for a headline.
func ArticleFromHeadline(h Headline) Article {
	return Article{
		ID:         h.ID,
		Title:      h.Title,
		URL:        h.URL,
		SourceName: h.SourceName,
		ImageURL:   h.ImageURL,
	}
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
