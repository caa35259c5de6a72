package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/newsbrief/newsbrief/internal/extract"
	"github.com/newsbrief/newsbrief/internal/types"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorText   = lipgloss.AdaptiveColor{Light: "#3D3D3D", Dark: "#DDDDDD"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#D9480F", Dark: "#F25D94"}

	sourceStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	snippetStyle = lipgloss.NewStyle().Foreground(colorText).PaddingLeft(4).Width(88)
	urlStyle     = lipgloss.NewStyle().Foreground(colorDim).PaddingLeft(4)
	indexStyle   = lipgloss.NewStyle().Foreground(colorDim).Width(4)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
	headingStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).
			Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1)
	bodyStyle = lipgloss.NewStyle().Foreground(colorText).Width(88)
)

// renderHeadlines prints headlines grouped under their source names.
func renderHeadlines(w io.Writer, headlines []types.Headline) {
	current := ""
	for i, h := range headlines {
		if h.SourceName != current {
			if current != "" {
				fmt.Fprintln(w)
			}
			current = h.SourceName
			fmt.Fprintln(w, sourceStyle.Render(current))
		}
		fmt.Fprintln(w, indexStyle.Render(fmt.Sprintf("%d.", i+1))+titleStyle.Render(h.Title))
		if s := types.Deref(h.Snippet); s != "" && s != h.Title {
			fmt.Fprintln(w, snippetStyle.Render(s))
		}
		fmt.Fprintln(w, urlStyle.Render(h.URL))
		fmt.Fprintln(w, urlStyle.Render("id: "+h.ID))
	}
}

// renderArticle prints an article with its metadata and body.
func renderArticle(w io.Writer, a types.Article, summary string) {
	fmt.Fprintln(w, headingStyle.Render(a.Title))

	var meta []string
	if a.SourceName != "" {
		meta = append(meta, a.SourceName)
	}
	if author := types.Deref(a.Author); author != "" {
		meta = append(meta, "by "+author)
	}
	if len(meta) > 0 {
		fmt.Fprintln(w, sourceStyle.Render(strings.Join(meta, " · ")))
	}
	fmt.Fprintln(w, urlStyle.UnsetPaddingLeft().Render(a.URL))
	fmt.Fprintln(w)

	if summary != "" {
		fmt.Fprintln(w, titleStyle.Render("Summary"))
		fmt.Fprintln(w, bodyStyle.Render(summary))
		fmt.Fprintln(w)
	}

	if a.ContentKind != "" && a.ContentKind != string(extract.KindOK) {
		fmt.Fprintln(w, warnStyle.Render(types.Deref(a.Content)))
		return
	}
	for _, para := range strings.Split(types.Deref(a.Content), "\n") {
		if para = strings.TrimSpace(para); para != "" {
			fmt.Fprintln(w, bodyStyle.Render(para))
			fmt.Fprintln(w)
		}
	}
}
