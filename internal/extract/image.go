package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsbrief/newsbrief/internal/urlutil"
)

// imageBlockList matches decorative or tracking images. Keywords must be
// whole tokens of the URL so that names like "silicon" or "roads" pass.
var imageBlockList = regexp.MustCompile(`(?i)((^|[^a-z])(logo|icon|favicon|spacer|pixel|blank|placeholder|sprite|avatar|ad)s?([^a-z]|$)|\.svg(\?|#|$)|^data:)`)

// imageSourceAttrs are read in order; lazy loaders often keep the real URL
// in a data attribute and a stub in src.
var imageSourceAttrs = []string{"src", "data-src", "data-lazy-src", "data-original", "srcset"}

// listingImageContainers are tried in order inside a card.
var listingImageContainers = []string{
	"figure img",
	"picture img",
	`[class*="thumb"] img`,
	`[class*="image"] img`,
	"img",
}

// bodyImageContainers are tried in order inside an article's main body.
var bodyImageContainers = []string{
	"figure img",
	"picture img",
	`[class*="featured"] img`,
	`[class*="image"] img`,
	"img",
}

// IsBlockedImage reports whether src looks like a logo, icon, tracker or
// inline placeholder.
func IsBlockedImage(src string) bool {
	return imageBlockList.MatchString(src)
}

// ListingImage returns the best thumbnail inside card, resolved against
// base, or the placeholder.
func (e *Extractor) ListingImage(card *goquery.Selection, base *url.URL) string {
	if src, _, ok := e.imageChain(listingImageContainers, base).First(card); ok {
		return src
	}
	return e.opts.PlaceholderImage
}

func (e *Extractor) imageChain(containers []string, base *url.URL) Chain {
	chain := make(Chain, 0, len(containers))
	for _, c := range containers {
		selector := c
		chain = append(chain, Strategy{
			Name: "img:" + selector,
			Apply: func(sel *goquery.Selection) (string, bool) {
				var found string
				sel.Find(selector).EachWithBreak(func(_ int, img *goquery.Selection) bool {
					found = e.usableImage(img, base)
					return found == ""
				})
				return found, found != ""
			},
		})
	}
	return chain
}

// usableImage returns the absolute source of img, or "" when img is too
// small, blocked, or has no source.
func (e *Extractor) usableImage(img *goquery.Selection, base *url.URL) string {
	if tooSmall(img, "width", e.opts.MinImageSize) || tooSmall(img, "height", e.opts.MinImageSize) {
		return ""
	}
	for _, attr := range imageSourceAttrs {
		v, ok := img.Attr(attr)
		if !ok {
			continue
		}
		if attr == "srcset" {
			v = firstSrcsetEntry(v)
		}
		v = strings.TrimSpace(v)
		if v == "" || IsBlockedImage(v) {
			continue
		}
		abs, err := urlutil.Resolve(base, v)
		if err != nil {
			continue
		}
		return abs.String()
	}
	return ""
}

// tooSmall reports whether a declared dimension is at or below min.
// Missing or non-numeric dimensions pass.
func tooSmall(img *goquery.Selection, attr string, min int) bool {
	v, ok := img.Attr(attr)
	if !ok {
		return false
	}
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	n, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	return n <= min
}

// firstSrcsetEntry returns the URL of the first candidate in a srcset.
func firstSrcsetEntry(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
