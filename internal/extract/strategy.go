// Package extract pulls snippets, images, bylines and body text out of news
// pages using ordered fallback strategies.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one named hypothesis about where a value lives in a page
// fragment. Apply reports false when the hypothesis does not hold.
type Strategy struct {
	Name  string
	Apply func(sel *goquery.Selection) (string, bool)
}

// Chain is an ordered list of strategies. The first success wins.
type Chain []Strategy

// First runs the chain against sel and returns the first value produced,
// along with the name of the strategy that produced it.
func (c Chain) First(sel *goquery.Selection) (value, strategy string, ok bool) {
	if sel == nil || sel.Length() == 0 {
		return "", "", false
	}
	for _, s := range c {
		if v, ok := s.Apply(sel); ok {
			return v, s.Name, true
		}
	}
	return "", "", false
}

// Filter returns a chain whose strategies only succeed when accept holds
// for the produced value.
func (c Chain) Filter(accept func(string) bool) Chain {
	out := make(Chain, len(c))
	for i, s := range c {
		apply := s.Apply
		out[i] = Strategy{
			Name: s.Name,
			Apply: func(sel *goquery.Selection) (string, bool) {
				v, ok := apply(sel)
				if !ok || !accept(v) {
					return "", false
				}
				return v, true
			},
		}
	}
	return out
}

// TextOf succeeds with the collapsed text of the first element matching
// selector that has non-empty text.
func TextOf(selector string) Strategy {
	return Strategy{
		Name: "text:" + selector,
		Apply: func(sel *goquery.Selection) (string, bool) {
			var found string
			sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				found = collapseSpace(s.Text())
				return found == ""
			})
			return found, found != ""
		},
	}
}

// EachTextOf succeeds with the first element matching selector whose
// collapsed text passes accept.
func EachTextOf(selector string, accept func(string) bool) Strategy {
	return Strategy{
		Name: "text:" + selector,
		Apply: func(sel *goquery.Selection) (string, bool) {
			var found string
			sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if t := collapseSpace(s.Text()); t != "" && accept(t) {
					found = t
					return false
				}
				return true
			})
			return found, found != ""
		},
	}
}

// AttrOf succeeds with the trimmed attribute of the first matching element
// carrying a non-empty value.
func AttrOf(selector, attr string) Strategy {
	return Strategy{
		Name: "attr:" + selector + "@" + attr,
		Apply: func(sel *goquery.Selection) (string, bool) {
			var found string
			sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				v, _ := s.Attr(attr)
				found = strings.TrimSpace(v)
				return found == ""
			})
			return found, found != ""
		},
	}
}

// MetaContent reads <meta property|name=key content=...>.
func MetaContent(key string) Strategy {
	return AttrOf(`meta[property="`+key+`"], meta[name="`+key+`"]`, "content")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
