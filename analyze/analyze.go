// Package analyze locates the repeating record container and per-field
// selectors in fetched markup, without hard-coded knowledge of any one
// page layout. It never fails: an empty SelectorSet is a valid,
// reportable outcome that short-circuits extraction downstream.
package analyze

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/sources"
)

// autoDetectPatterns is the fixed, source-agnostic fallback list tried
// when no registered selector matches: attribute markers first, then
// class-substring markers, then link-path markers.
var autoDetectPatterns = []string{
	`[data-job]`,
	`[data-vaga]`,
	`[data-listing]`,
	`[data-testid*="job"]`,
	`[data-testid*="vaga"]`,

	`[class*="job-card"]`,
	`[class*="vaga"]`,
	`[class*="listing"]`,
	`[class*="result-item"]`,

	`a[href*="/job/"]`,
	`a[href*="/vaga/"]`,
	`a[href*="/position/"]`,
	`a[href*="/curso/"]`,
	`a[href*="/oportunidade/"]`,

	`li[class*="job"]`,
	`article[class*="job"]`,
	`div[class*="job"]`,
}

// minAutoDetectMatches rejects accidental single matches: a pattern only
// counts as the record container when it matches at least this many times.
const minAutoDetectMatches = 3

var paginationPatterns = []string{
	`.pagination`,
	`.pager`,
	`[class*="pagination"]`,
	`nav[aria-label*="page"]`,
	`.page-numbers`,
	`a[href*="page="]`,
	`a[href*="pagina="]`,
}

var filterPatterns = []string{
	`[class*="filter"]`,
	`[class*="filtro"]`,
	`select[name*="filter"]`,
	`input[type="checkbox"][name*="filter"]`,
	`[data-filter]`,
}

// Analyzer detects page structure for registered sources.
type Analyzer struct {
	registry        *sources.Registry
	defaultLanguage string
}

// New creates an Analyzer backed by the given source registry.
func New(registry *sources.Registry) *Analyzer {
	return &Analyzer{registry: registry, defaultLanguage: "pt"}
}

// Analyze inspects the markup and returns the detected selectors plus
// page-level signals. Identical markup always yields an identical
// SelectorSet.
func (a *Analyzer) Analyze(markup, sourceID string) (models.SelectorSet, models.PageSignals) {
	signals := models.PageSignals{Language: a.defaultLanguage}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		slog.Warn("analyzer: markup did not parse", "source", sourceID, "error", err)
		return models.SelectorSet{}, signals
	}

	var known sources.Candidates
	if src, ok := a.registry.Get(sourceID); ok {
		known = src.Candidates
	}

	// Known-selector pass: the registered candidate with the highest
	// non-zero match count wins.
	container, count := bestSelector(doc, known.Container)

	// Auto-detect pass runs only when no known selector matched.
	if count == 0 {
		container, count = autoDetect(doc)
		if container != "" {
			slog.Info("analyzer: auto-detected record container",
				"source", sourceID, "selector", container, "matches", count)
		}
	}

	set := models.SelectorSet{RecordContainer: container}

	if container != "" {
		scope := firstContainer(doc, container)
		set.Title = firstMatching(known.Title, scope)
		set.Org = firstMatching(known.Org, scope)
		set.Location = firstMatching(known.Location, scope)
		set.Price = firstMatching(known.Price, scope)
		set.Tags = firstMatching(known.Tags, scope)
		set.Link = firstMatching(known.Link, scope)
	}

	signals.ContainersFound = count
	signals.HasPagination = anyMatches(doc, paginationPatterns)
	signals.HasFilters = anyMatches(doc, filterPatterns)
	signals.Language = a.detectLanguage(doc)

	return set, signals
}

// bestSelector counts matches for each candidate and keeps the one with
// the highest non-zero count. Invalid selectors are skipped.
func bestSelector(doc *goquery.Document, candidates []string) (string, int) {
	best := ""
	bestCount := 0
	for _, sel := range candidates {
		m, err := cascadia.Compile(sel)
		if err != nil {
			continue
		}
		if n := doc.FindMatcher(m).Length(); n > bestCount {
			best = sel
			bestCount = n
		}
	}
	return best, bestCount
}

// autoDetect tries the generic pattern list in order and accepts the
// first pattern meeting the minimum-evidence threshold.
func autoDetect(doc *goquery.Document) (string, int) {
	for _, pattern := range autoDetectPatterns {
		m, err := cascadia.Compile(pattern)
		if err != nil {
			continue
		}
		if n := doc.FindMatcher(m).Length(); n >= minAutoDetectMatches {
			return pattern, n
		}
	}
	return "", 0
}

// firstContainer returns the first element matched by the container
// selector, or nil when the selector is invalid or matches nothing.
func firstContainer(doc *goquery.Document, container string) *goquery.Selection {
	m, err := cascadia.Compile(container)
	if err != nil {
		return nil
	}
	sel := doc.FindMatcher(m).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

// firstMatching returns the first candidate selector that matches inside
// the scope and yields non-empty text. When none verify, it falls back
// to the first declared candidate unverified, so extraction can still
// attempt the field rather than abandoning it permanently.
func firstMatching(candidates []string, scope *goquery.Selection) string {
	if len(candidates) == 0 {
		return ""
	}
	if scope == nil {
		return candidates[0]
	}
	for _, sel := range candidates {
		m, err := cascadia.Compile(sel)
		if err != nil {
			continue
		}
		el := scope.FindMatcher(m).First()
		if el.Length() > 0 && strings.TrimSpace(el.Text()) != "" {
			return sel
		}
	}
	return candidates[0]
}

func anyMatches(doc *goquery.Document, patterns []string) bool {
	for _, pattern := range patterns {
		m, err := cascadia.Compile(pattern)
		if err != nil {
			continue
		}
		if doc.FindMatcher(m).Length() > 0 {
			return true
		}
	}
	return false
}

// detectLanguage reads the page-level language attribute, then the
// content-language meta tag, then falls back to the default.
func (a *Analyzer) detectLanguage(doc *goquery.Document) string {
	if lang, ok := doc.Find("html").Attr("lang"); ok && len(lang) >= 2 {
		return strings.ToLower(lang[:2])
	}
	if content, ok := doc.Find(`meta[http-equiv="content-language"]`).Attr("content"); ok && len(content) >= 2 {
		return strings.ToLower(content[:2])
	}
	return a.defaultLanguage
}
