package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/newsbrief/newsbrief/internal/types"
)

// ErrDisallowed is wrapped in the FetchError returned for URLs that
// robots.txt forbids.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// robotsTTL bounds how long a parsed robots.txt is trusted.
const robotsTTL = time.Hour

// RobotsGuard wraps a Fetcher and refuses URLs the site's robots.txt
// disallows for our agent. robots.txt is fetched through the wrapped
// fetcher, once per origin per TTL. A missing or unreadable robots.txt
// allows everything.
type RobotsGuard struct {
	next   Fetcher
	agent  string
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotsRules
	now   func() time.Time
}

// robotsRules holds the rules of the group that applies to our agent.
type robotsRules struct {
	allow     []string
	disallow  []string
	fetchedAt time.Time
}

// NewRobotsGuard creates a RobotsGuard. agent is the product token matched
// against User-agent lines, e.g. "newsbrief".
func NewRobotsGuard(next Fetcher, agent string, logger *slog.Logger) *RobotsGuard {
	return &RobotsGuard{
		next:   next,
		agent:  strings.ToLower(agent),
		logger: logger.With("component", "robots"),
		cache:  make(map[string]*robotsRules),
		now:    time.Now,
	}
}

// Fetch implements Fetcher.
func (g *RobotsGuard) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if !g.Allowed(ctx, req.URL) {
		g.logger.Info("blocked by robots.txt", "url", req.URLString())
		return nil, &types.FetchError{URL: req.URLString(), Err: ErrDisallowed}
	}
	return g.next.Fetch(ctx, req)
}

// Close closes the wrapped fetcher.
func (g *RobotsGuard) Close() error { return g.next.Close() }

// Type returns the wrapped fetcher's type.
func (g *RobotsGuard) Type() string { return g.next.Type() }

// Allowed reports whether u may be fetched.
func (g *RobotsGuard) Allowed(ctx context.Context, u *url.URL) bool {
	if u == nil {
		return true
	}
	rules := g.rulesFor(ctx, u)
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return rules.allows(path)
}

func (g *RobotsGuard) rulesFor(ctx context.Context, u *url.URL) *robotsRules {
	origin := u.Scheme + "://" + u.Host

	g.mu.Lock()
	rules, ok := g.cache[origin]
	g.mu.Unlock()
	if ok && g.now().Sub(rules.fetchedAt) < robotsTTL {
		return rules
	}

	rules = g.fetchRules(ctx, origin)

	g.mu.Lock()
	g.cache[origin] = rules
	g.mu.Unlock()
	return rules
}

func (g *RobotsGuard) fetchRules(ctx context.Context, origin string) *robotsRules {
	empty := &robotsRules{fetchedAt: g.now()}

	req, err := types.NewRequest(origin + "/robots.txt")
	if err != nil {
		return empty
	}
	req.Timeout = 10 * time.Second

	resp, err := g.next.Fetch(ctx, req)
	if err != nil {
		g.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
		return empty
	}
	rules := parseRobots(string(resp.Body), g.agent)
	rules.fetchedAt = g.now()
	return rules
}

// parseRobots returns the rules of the group naming agent, or of the "*"
// group when no group names it.
func parseRobots(content, agent string) *robotsRules {
	var (
		specific, wildcard *robotsRules
		current            []*robotsRules
		inAgents           bool
	)

	for _, line := range strings.Split(content, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if !inAgents {
				current = nil
			}
			inAgents = true
			ua := strings.ToLower(value)
			switch {
			case ua == "*":
				if wildcard == nil {
					wildcard = &robotsRules{}
				}
				current = append(current, wildcard)
			case agent != "" && strings.Contains(ua, agent):
				if specific == nil {
					specific = &robotsRules{}
				}
				current = append(current, specific)
			}
		case "allow", "disallow":
			inAgents = false
			if value == "" {
				continue
			}
			for _, r := range current {
				if key == "allow" {
					r.allow = append(r.allow, value)
				} else {
					r.disallow = append(r.disallow, value)
				}
			}
		default:
			inAgents = false
		}
	}

	switch {
	case specific != nil:
		return specific
	case wildcard != nil:
		return wildcard
	default:
		return &robotsRules{}
	}
}

// allows applies longest-match precedence; on a tie allow wins.
func (r *robotsRules) allows(path string) bool {
	best, allowed := -1, true
	for _, p := range r.disallow {
		if matchRobotsPattern(p, path) && len(p) > best {
			best, allowed = len(p), false
		}
	}
	for _, p := range r.allow {
		if matchRobotsPattern(p, path) && len(p) >= best {
			best, allowed = len(p), true
		}
	}
	return allowed
}

// matchRobotsPattern matches a robots.txt path pattern against path.
// Patterns are prefixes that may contain * and may end with $.
func matchRobotsPattern(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	return matchWildcard(strings.TrimSuffix(pattern, "$"), path, anchored)
}

func matchWildcard(p, s string, anchored bool) bool {
	for p != "" {
		if p[0] == '*' {
			p = strings.TrimLeft(p, "*")
			if p == "" {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if matchWildcard(p, s[i:], anchored) {
					return true
				}
			}
			return false
		}
		if s == "" || p[0] != s[0] {
			return false
		}
		p, s = p[1:], s[1:]
	}
	return !anchored || s == ""
}
