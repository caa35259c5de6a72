package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// XPathText is a Strategy that evaluates expr against the selection's first
// node and returns the trimmed inner text of the first non-empty match.
func XPathText(expr string) Strategy {
	return xpathStrategy(expr, "", func(s string) string { return collapseSpace(s) })
}

// XPathAttr is a Strategy that returns attr of the first node matching expr.
func XPathAttr(expr, attr string) Strategy {
	return xpathStrategy(expr, attr, strings.TrimSpace)
}

func xpathStrategy(expr, attr string, clean func(string) string) Strategy {
	name := "xpath:" + expr
	if attr != "" {
		name += "@" + attr
	}
	return Strategy{
		Name: name,
		Apply: func(sel *goquery.Selection) (string, bool) {
			if len(sel.Nodes) == 0 {
				return "", false
			}
			nodes, err := htmlquery.QueryAll(sel.Nodes[0], expr)
			if err != nil {
				return "", false
			}
			for _, node := range nodes {
				var val string
				if attr == "" {
					val = htmlquery.InnerText(node)
				} else {
					val = htmlquery.SelectAttr(node, attr)
				}
				if val = clean(val); val != "" {
					return val, true
				}
			}
			return "", false
		},
	}
}
