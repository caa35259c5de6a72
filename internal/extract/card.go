package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// CardSelectors are the container hypotheses for a listing card, tried
// from the anchor outwards.
var CardSelectors = []string{
	"article",
	"li",
	`[class*="card"]`,
	`[class*="story"]`,
	`[class*="item"]`,
	`[class*="teaser"]`,
}

// LocateCard returns the closest card-like ancestor of anchor, or the
// anchor's parent when none exists. It never widens to the whole page.
func LocateCard(anchor *goquery.Selection) *goquery.Selection {
	card := anchor.Parent().Closest(strings.Join(CardSelectors, ", "))
	if card.Length() > 0 && !card.Is("body, html") {
		return card.First()
	}
	parent := anchor.Parent()
	if parent.Length() == 0 || parent.Is("body, html") {
		return anchor
	}
	return parent
}

var snippetSelectors = []string{
	".summary",
	".description",
	".excerpt",
	".dek",
	".standfirst",
	".synopsis",
	".teaser",
}

// Snippet finds a short description within card. When none exists the title
// itself is truncated to the configured length.
func (e *Extractor) Snippet(card *goquery.Selection, title string) string {
	inBand := func(s string) bool {
		n := utf8.RuneCountInString(s)
		return n >= e.opts.SnippetMinLength && n <= e.opts.SnippetMaxLength && s != title
	}

	chain := make(Chain, 0, len(snippetSelectors)+1)
	for _, s := range snippetSelectors {
		chain = append(chain, TextOf(s))
	}
	chain = chain.Filter(func(s string) bool { return s != title })
	chain = append(chain, EachTextOf("p", inBand))

	if v, name, ok := chain.First(card); ok {
		e.logger.Debug("snippet found", "strategy", name)
		return v
	}
	return truncateRunes(title, e.opts.TitleFallbackLen)
}

// truncateRunes cuts s to n runes, appending "..." when it was cut.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}
