package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMeta holds the machine-readable metadata a publisher embeds in the
// document head.
type PageMeta struct {
	OpenGraph map[string]string
	Twitter   map[string]string
	Meta      map[string]string
	JSONLD    []map[string]any
}

// ReadPageMeta collects OpenGraph, Twitter card, standard meta and JSON-LD
// data from doc.
func ReadPageMeta(doc *goquery.Document) PageMeta {
	pm := PageMeta{
		OpenGraph: make(map[string]string),
		Twitter:   make(map[string]string),
		Meta:      make(map[string]string),
	}

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		if content = strings.TrimSpace(content); content != "" {
			key := strings.TrimPrefix(property, "og:")
			if _, dup := pm.OpenGraph[key]; !dup {
				pm.OpenGraph[key] = content
			}
		}
	})

	doc.Find(`meta[name^="twitter:"], meta[property^="twitter:"]`).Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		if name == "" {
			name, _ = sel.Attr("property")
		}
		content, _ := sel.Attr("content")
		if content = strings.TrimSpace(content); content != "" {
			key := strings.TrimPrefix(name, "twitter:")
			if _, dup := pm.Twitter[key]; !dup {
				pm.Twitter[key] = content
			}
		}
	})

	for _, name := range []string{"description", "author", "keywords"} {
		content, exists := doc.Find(`meta[name="` + name + `"]`).Attr("content")
		if content = strings.TrimSpace(content); exists && content != "" {
			pm.Meta[name] = content
		}
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			pm.JSONLD = append(pm.JSONLD, flattenGraph(obj)...)
			return
		}

		var arr []map[string]any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			for _, o := range arr {
				pm.JSONLD = append(pm.JSONLD, flattenGraph(o)...)
			}
		}
	})

	return pm
}

// flattenGraph expands a JSON-LD @graph container into its nodes.
func flattenGraph(obj map[string]any) []map[string]any {
	graph, ok := obj["@graph"].([]any)
	if !ok {
		return []map[string]any{obj}
	}
	var out []map[string]any
	for _, n := range graph {
		if m, ok := n.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// JSONLDAuthor returns the first author name declared in JSON-LD. Author
// may be a string, an object with a name, or a list of either.
func (pm PageMeta) JSONLDAuthor() string {
	for _, node := range pm.JSONLD {
		if name := authorName(node["author"]); name != "" {
			return name
		}
	}
	return ""
}

func authorName(v any) string {
	switch a := v.(type) {
	case string:
		return strings.TrimSpace(a)
	case map[string]any:
		if name, ok := a["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	case []any:
		for _, item := range a {
			if name := authorName(item); name != "" {
				return name
			}
		}
	}
	return ""
}
