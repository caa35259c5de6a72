package classify

import (
	"fmt"
	"regexp"
)

// DefaultIncludePatterns mark a URL as a probable article: a dated path or a
// news-section keyword segment.
var DefaultIncludePatterns = []string{
	`/\d{4}/\d{2}/\d{2}/`,
	`(?i)/(news|articleshow|india|world|business|sports|entertainment|tech|technology|politics|science|health|opinion|lifestyle|national|local|economy|markets)/`,
}

// DefaultExcludePatterns reject navigation, media hubs, account pages and
// non-HTTP links. Keyword patterns only match whole path segments so that
// slugs such as "talks-about-trade" survive.
var DefaultExcludePatterns = []string{
	`(?i)/(photogallery|gallery|videos?|live|liveblog|tags?|topic|author|account|login|signup|register|subscribe|contact|about|privacy|terms|cookie|share|print|search|newsletter|rss)(?:[/?.]|$)`,
	`#`,
	`(?i)^javascript:`,
	`(?i)^mailto:`,
	`(?i)^tel:`,
}

// PatternSet is a compiled pair of inclusion and exclusion rules.
type PatternSet struct {
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp
}

// CompilePatternSet compiles include and exclude expressions.
func CompilePatternSet(include, exclude []string) (*PatternSet, error) {
	ps := &PatternSet{}
	for _, p := range include {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile include pattern %q: %w", p, err)
		}
		ps.Include = append(ps.Include, re)
	}
	for _, p := range exclude {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", p, err)
		}
		ps.Exclude = append(ps.Exclude, re)
	}
	return ps, nil
}

// DefaultPatternSet returns the cross-publisher defaults.
func DefaultPatternSet() *PatternSet {
	ps, err := CompilePatternSet(DefaultIncludePatterns, DefaultExcludePatterns)
	if err != nil {
		panic(err)
	}
	return ps
}

// Override returns a copy of ps where any non-empty list replaces the
// corresponding rule set.
func (ps *PatternSet) Override(include, exclude []string) (*PatternSet, error) {
	if len(include) == 0 && len(exclude) == 0 {
		return ps, nil
	}
	out := &PatternSet{Include: ps.Include, Exclude: ps.Exclude}
	over, err := CompilePatternSet(include, exclude)
	if err != nil {
		return nil, err
	}
	if len(include) > 0 {
		out.Include = over.Include
	}
	if len(exclude) > 0 {
		out.Exclude = over.Exclude
	}
	return out, nil
}

// Match reports whether target satisfies at least one inclusion rule and
// no exclusion rule.
func (ps *PatternSet) Match(target string) bool {
	for _, re := range ps.Exclude {
		if re.MatchString(target) {
			return false
		}
	}
	for _, re := range ps.Include {
		if re.MatchString(target) {
			return true
		}
	}
	return false
}
