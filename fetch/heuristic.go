package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// scriptMarkers are fixed substrings that betray a client-rendered shell:
// framework bootstrap data, empty application root containers, and
// loading placeholders.
var scriptMarkers = []string{
	"__next_data__",
	"data-reactroot",
	"ng-app",
	`id="app"`,
	`id="root"`,
	`id="__next"`,
	"loading...",
	"carregando...",
}

// needsScript applies the incompleteness heuristic: strip script, style
// and noscript nodes, then measure the remaining visible text. Very
// little text means the content almost certainly arrives via script
// execution. A framework/loading marker combined with modest text is
// treated the same way.
func (f *Fetcher) needsScript(markup string) bool {
	visible := visibleTextLength(markup)

	if visible < f.cfg.MinVisibleText {
		return true
	}

	if visible < f.cfg.MarkerVisibleText {
		lower := strings.ToLower(markup)
		for _, marker := range scriptMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}

	return false
}

// visibleTextLength returns the length of the page's visible text after
// removing non-content nodes. A parse failure counts as zero visible
// text, which errs on the side of rendering.
func visibleTextLength(markup string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0
	}
	doc.Find("script, style, noscript").Remove()
	return len(strings.Join(strings.Fields(doc.Text()), " "))
}
