package analyze

import (
	"strings"
	"testing"

	"github.com/scoutwork/harvest/sources"
)

func listingHTML() string {
	var b strings.Builder
	b.WriteString(`<html lang="pt-BR"><head><title>Vagas</title></head><body>`)
	b.WriteString(`<div class="filters"><select name="filter-city"></select></div>`)
	for i := 0; i < 5; i++ {
		b.WriteString(`<div class="job-card">`)
		b.WriteString(`<h2 class="job-title">Engenheira de Software</h2>`)
		b.WriteString(`<span class="company-name">Acme</span>`)
		b.WriteString(`<span class="job-location">Remoto</span>`)
		b.WriteString(`<a class="job-link" href="/vaga/123">ver vaga</a>`)
		b.WriteString(`</div>`)
	}
	b.WriteString(`<nav class="pagination"><a href="?page=2">2</a></nav>`)
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestAnalyze_KnownSelectorsWin(t *testing.T) {
	a := New(sources.NewRegistry())
	set, signals := a.Analyze(listingHTML(), "geekhunter")

	if set.RecordContainer != ".job-card" {
		t.Fatalf("container = %q, want .job-card", set.RecordContainer)
	}
	if set.Title != "h2" {
		t.Errorf("title selector = %q, want h2 (first verified candidate)", set.Title)
	}
	if signals.ContainersFound != 5 {
		t.Errorf("containers found = %d, want 5", signals.ContainersFound)
	}
	if !signals.HasPagination {
		t.Error("pagination should be detected")
	}
	if !signals.HasFilters {
		t.Error("filters should be detected")
	}
	if signals.Language != "pt" {
		t.Errorf("language = %q, want pt", signals.Language)
	}
}

func TestAnalyze_AutoDetectRequiresThreeMatches(t *testing.T) {
	a := New(sources.NewRegistry())

	// Two matches only: below the evidence threshold, so no container.
	two := `<html><body>` +
		strings.Repeat(`<div data-listing><a href="/job/1">x</a></div>`, 2) +
		`</body></html>`
	set, _ := a.Analyze(two, "unknown-source")
	if set.RecordContainer != "" {
		t.Fatalf("container = %q, want empty (only 2 matches)", set.RecordContainer)
	}

	three := `<html><body>` +
		strings.Repeat(`<div data-listing><a href="/job/1">x</a></div>`, 3) +
		`</body></html>`
	set, signals := a.Analyze(three, "unknown-source")
	if set.RecordContainer != `[data-listing]` {
		t.Fatalf("container = %q, want [data-listing]", set.RecordContainer)
	}
	if signals.ContainersFound != 3 {
		t.Errorf("containers found = %d, want 3", signals.ContainersFound)
	}
}

func TestAnalyze_FieldFallbackToFirstCandidate(t *testing.T) {
	// Containers match but none of the registered title candidates carry
	// text, so the first declared candidate is kept unverified.
	markup := `<html><body>` +
		strings.Repeat(`<div class="job-card"><a href="/vaga/1">abrir</a></div>`, 4) +
		`</body></html>`

	a := New(sources.NewRegistry())
	set, _ := a.Analyze(markup, "geekhunter")

	src, _ := sources.NewRegistry().Get("geekhunter")
	if set.Title != src.Candidates.Title[0] {
		t.Errorf("title selector = %q, want first candidate %q", set.Title, src.Candidates.Title[0])
	}
}

func TestAnalyze_UnparseableAndEmptyMarkup(t *testing.T) {
	a := New(sources.NewRegistry())

	set, signals := a.Analyze("", "geekhunter")
	if !set.Empty() {
		t.Errorf("selector set should be empty, got %+v", set)
	}
	if signals.Language != "pt" {
		t.Errorf("language = %q, want default pt", signals.Language)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := New(sources.NewRegistry())
	markup := listingHTML()

	first, _ := a.Analyze(markup, "geekhunter")
	for i := 0; i < 3; i++ {
		again, _ := a.Analyze(markup, "geekhunter")
		if again != first {
			t.Fatalf("run %d produced %+v, first run produced %+v", i+2, again, first)
		}
	}
}

func TestDetectLanguage_MetaTagFallback(t *testing.T) {
	a := New(sources.NewRegistry())
	markup := `<html><head><meta http-equiv="content-language" content="en-US"></head><body></body></html>`
	_, signals := a.Analyze(markup, "unknown-source")
	if signals.Language != "en" {
		t.Errorf("language = %q, want en", signals.Language)
	}
}
