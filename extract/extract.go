// Package extract turns analyzed markup into records. The deterministic
// extractor walks the detected record containers; the hybrid layer adds
// an oracle fallback for pages where selectors under-deliver.
package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/sources"
)

const (
	// minTitleLen is the shortest title accepted for a record. Shorter
	// matches are selector noise (icons, counters, single glyphs).
	minTitleLen = 5

	maxTags   = 10
	maxTagLen = 50
)

// Extractor performs deterministic selector-driven record extraction.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract walks the record containers in document order and builds up
// to limit records. It scans at most 2*limit containers so that skipped
// and duplicate entries can still be compensated for without rescanning
// the whole page.
//
// Without a record container selector there is nothing deterministic to
// do, and the error says so rather than returning a silent empty slice.
func (e *Extractor) Extract(markup string, set models.SelectorSet, src *sources.Source, baseURL string, limit int) ([]models.Record, error) {
	if set.Empty() {
		return nil, models.NewPipelineError(models.ErrCodeStructure,
			"no record container detected", nil)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeExtractionParse,
			"markup did not parse", err)
	}

	containerMatcher, err := cascadia.Compile(set.RecordContainer)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeStructure,
			"record container selector is invalid", err)
	}

	base, _ := url.Parse(baseURL)

	records := make([]models.Record, 0, limit)
	seen := make(map[string]struct{}, limit)
	scanned := 0

	doc.FindMatcher(containerMatcher).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if scanned >= 2*limit || len(records) >= limit {
			return false
		}
		scanned++

		rec, ok := e.buildRecord(sel, set, src, base)
		if !ok {
			return true
		}
		if _, dup := seen[rec.URL]; dup {
			return true
		}
		seen[rec.URL] = struct{}{}
		records = append(records, rec)
		return true
	})

	slog.Debug("deterministic extraction finished",
		"source", src.ID, "scanned", scanned, "records", len(records))
	return records, nil
}

// buildRecord assembles one record from a container element. It returns
// ok=false when the container resolves to no URL or no usable title,
// which drops the container instead of emitting a placeholder record.
func (e *Extractor) buildRecord(sel *goquery.Selection, set models.SelectorSet, src *sources.Source, base *url.URL) (models.Record, bool) {
	href := e.linkHref(sel, set.Link)
	absURL := resolveURL(base, href)
	if absURL == "" {
		return models.Record{}, false
	}

	title := textBySelector(sel, set.Title)
	if len([]rune(title)) < minTitleLen {
		// A link's own text is often the only place the title lives on
		// sparse listings.
		title = linkText(sel, set.Link)
	}
	if len([]rune(title)) < minTitleLen {
		return models.Record{}, false
	}

	rec := models.Record{
		SourceID:  src.ID,
		Title:     title,
		Org:       textBySelector(sel, set.Org),
		Location:  textBySelector(sel, set.Location),
		PriceText: textBySelector(sel, set.Price),
		Tags:      collectTags(sel, set.Tags),
		URL:       absURL,
		Country:   src.Country,
	}
	if rec.Org == "" {
		rec.Org = src.DefaultOrg
	}
	if rec.Location == "" {
		rec.Location = src.DefaultLocation
	}

	rec.ID = models.RecordID(src.ID, rec.URL)
	return rec, true
}

// textBySelector tries each comma-separated alternative in order and
// returns the first non-empty trimmed text inside the scope.
func textBySelector(scope *goquery.Selection, selector string) string {
	for _, alt := range splitSelector(selector) {
		m, err := cascadia.Compile(alt)
		if err != nil {
			continue
		}
		if text := cleanText(scope.FindMatcher(m).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// linkHref finds the record's link href. The container itself being an
// anchor is common on card-style listings and takes priority.
func (e *Extractor) linkHref(scope *goquery.Selection, selector string) string {
	if scope.Is("a") {
		if href, ok := scope.Attr("href"); ok {
			return strings.TrimSpace(href)
		}
	}
	for _, alt := range splitSelector(selector) {
		m, err := cascadia.Compile(alt)
		if err != nil {
			continue
		}
		if href, ok := scope.FindMatcher(m).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			return strings.TrimSpace(href)
		}
	}
	if href, ok := scope.Find("a[href]").First().Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return ""
}

func linkText(scope *goquery.Selection, selector string) string {
	if scope.Is("a") {
		return cleanText(scope.Text())
	}
	for _, alt := range splitSelector(selector) {
		m, err := cascadia.Compile(alt)
		if err != nil {
			continue
		}
		if text := cleanText(scope.FindMatcher(m).First().Text()); text != "" {
			return text
		}
	}
	return cleanText(scope.Find("a[href]").First().Text())
}

func collectTags(scope *goquery.Selection, selector string) []string {
	var tags []string
	for _, alt := range splitSelector(selector) {
		m, err := cascadia.Compile(alt)
		if err != nil {
			continue
		}
		scope.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
			if len(tags) >= maxTags {
				return
			}
			tag := cleanText(s.Text())
			if tag == "" || len([]rune(tag)) >= maxTagLen {
				return
			}
			tags = append(tags, tag)
		})
		if len(tags) > 0 {
			break
		}
	}
	return tags
}

func splitSelector(selector string) []string {
	if selector == "" {
		return nil
	}
	parts := strings.Split(selector, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
