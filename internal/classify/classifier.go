// Package classify decides which anchors on a listing page point at articles.
package classify

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/newsbrief/newsbrief/internal/types"
	"github.com/newsbrief/newsbrief/internal/urlutil"
)

// Reason names why an anchor was rejected. The empty Reason means accepted.
type Reason string

const (
	Accepted        Reason = ""
	RejectEmpty     Reason = "empty"
	RejectInvalid   Reason = "invalid"
	RejectPattern   Reason = "pattern"
	RejectDomain    Reason = "domain"
	RejectDuplicate Reason = "duplicate"
)

// Anchor is a raw link from a listing page.
type Anchor struct {
	Href string
	Text string
}

// Candidate is an accepted article link.
type Candidate struct {
	Title string
	URL   string
}

// Classifier filters anchors for one aggregation run. It is safe for
// concurrent use.
type Classifier struct {
	defaults *PatternSet
	seen     *SeenSet
	logger   *slog.Logger

	mu         sync.Mutex
	perSource  map[string]*PatternSet
	rejections map[Reason]*atomic.Int64
	accepted   atomic.Int64
}

// New creates a Classifier. A nil patterns uses DefaultPatternSet.
func New(patterns *PatternSet, seen *SeenSet, logger *slog.Logger) *Classifier {
	if patterns == nil {
		patterns = DefaultPatternSet()
	}
	if seen == nil {
		seen = NewSeenSet(64)
	}
	c := &Classifier{
		defaults:   patterns,
		seen:       seen,
		logger:     logger.With("component", "classifier"),
		perSource:  make(map[string]*PatternSet),
		rejections: make(map[Reason]*atomic.Int64),
	}
	for _, r := range []Reason{RejectEmpty, RejectInvalid, RejectPattern, RejectDomain, RejectDuplicate} {
		c.rejections[r] = &atomic.Int64{}
	}
	return c
}

// PatternsFor returns the rule set for src, compiling overrides once.
func (c *Classifier) PatternsFor(src types.Source) (*PatternSet, error) {
	if len(src.IncludePatterns) == 0 && len(src.ExcludePatterns) == 0 {
		return c.defaults, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ps, ok := c.perSource[src.Name]; ok {
		return ps, nil
	}
	ps, err := c.defaults.Override(src.IncludePatterns, src.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	c.perSource[src.Name] = ps
	return ps, nil
}

// Classify runs one anchor through the acceptance rules. base is the URL
// the listing page was fetched from.
func (c *Classifier) Classify(a Anchor, base *url.URL, patterns *PatternSet) (Candidate, Reason) {
	if patterns == nil {
		patterns = c.defaults
	}

	href := strings.TrimSpace(a.Href)
	title := CollapseSpace(a.Text)
	if href == "" || title == "" {
		return c.reject(a, RejectEmpty)
	}

	abs, err := urlutil.Resolve(base, href)
	if err != nil {
		return c.reject(a, RejectInvalid)
	}
	absURL := abs.String()

	if !patterns.Match(matchTarget(abs)) {
		return c.reject(a, RejectPattern)
	}

	if !urlutil.SameSite(strings.ToLower(abs.Host), strings.ToLower(base.Host)) {
		return c.reject(a, RejectDomain)
	}

	if !c.seen.MarkIfNew(absURL) {
		return c.reject(a, RejectDuplicate)
	}

	c.accepted.Add(1)
	return Candidate{Title: title, URL: absURL}, Accepted
}

// AcceptedCount returns the number of anchors accepted so far.
func (c *Classifier) AcceptedCount() int64 {
	return c.accepted.Load()
}

// Rejections returns a snapshot of rejection counts by reason.
func (c *Classifier) Rejections() map[Reason]int64 {
	out := make(map[Reason]int64, len(c.rejections))
	for r, n := range c.rejections {
		out[r] = n.Load()
	}
	return out
}

func (c *Classifier) reject(a Anchor, reason Reason) (Candidate, Reason) {
	c.rejections[reason].Add(1)
	c.logger.Debug("anchor rejected", "href", a.Href, "reason", string(reason))
	return Candidate{}, reason
}

// matchTarget is the part of u the patterns see: path, query and fragment
// for web URLs, the whole string for anything else.
func matchTarget(u *url.URL) string {
	s := u.String()
	if u.Host == "" {
		return s
	}
	return strings.TrimPrefix(s, u.Scheme+"://"+u.Host)
}

// CollapseSpace trims s and collapses internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
