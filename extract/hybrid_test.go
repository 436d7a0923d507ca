package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/scoutwork/harvest/models"
)

type stubOracle struct {
	calls   int
	records []models.Record
	err     error
}

func (s *stubOracle) ExtractRecords(_ context.Context, _, _ string, _ int) ([]models.Record, error) {
	s.calls++
	return s.records, s.err
}

func rec(title, org, url string) models.Record {
	return models.Record{SourceID: "geekhunter", Title: title, Org: org, URL: url, Country: "br"}
}

func TestHybrid_OracleSkippedWhenEnoughRecords(t *testing.T) {
	markup := page(
		card("Engenheira Backend", "Acme", "/vaga/1"),
		card("Engenheira Frontend", "Acme", "/vaga/2"),
		card("Engenheira de Dados", "Acme", "/vaga/3"),
	)

	oracle := &stubOracle{records: []models.Record{rec("Extra", "Beta", "https://site.test/vaga/9")}}
	h := NewHybrid(New(), oracle, 3)

	records, used, err := h.Extract(context.Background(), markup, testSelectors(), testSource(), "https://site.test", 10)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if oracle.calls != 0 {
		t.Errorf("oracle calls = %d, want 0 (threshold met)", oracle.calls)
	}
	if used {
		t.Error("oracle should not be reported as used")
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestHybrid_MergeDeduplicates(t *testing.T) {
	markup := page(
		card("Engenheira Backend", "Acme", "/vaga/1"),
		card("Engenheira Frontend", "Acme", "/vaga/2"),
	)

	oracle := &stubOracle{records: []models.Record{
		// URL collision with a deterministic record.
		rec("Backend renomeada", "Acme", "https://site.test/vaga/1"),
		// Title/org collision after normalization, no URL.
		{SourceID: "geekhunter", Title: "engenheira  frontend", Org: "ACME"},
		// Genuinely new.
		rec("Engenheira Mobile", "Beta", "https://site.test/vaga/7"),
	}}

	h := NewHybrid(New(), oracle, 3)
	records, used, err := h.Extract(context.Background(), markup, testSelectors(), testSource(), "https://site.test", 10)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if oracle.calls != 1 {
		t.Fatalf("oracle calls = %d, want 1", oracle.calls)
	}
	if !used {
		t.Error("oracle contribution should be reported")
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 unique", len(records))
	}
	// Deterministic records keep their positions.
	if records[0].Title != "Engenheira Backend" || records[1].Title != "Engenheira Frontend" {
		t.Errorf("deterministic order disturbed: %q, %q", records[0].Title, records[1].Title)
	}
	if records[2].Title != "Engenheira Mobile" {
		t.Errorf("records[2].Title = %q, want the new oracle record", records[2].Title)
	}
}

func TestHybrid_DeterministicRecordsNeverDiscarded(t *testing.T) {
	// Two distinct listings sharing title and org: both must survive the
	// merge even though their title|org keys collide.
	markup := page(
		card("Engenheira Backend", "Acme", "/vaga/1"),
		card("Engenheira Backend", "Acme", "/vaga/2"),
	)

	oracle := &stubOracle{records: []models.Record{
		// Key collision with the deterministic pair, no URL.
		{SourceID: "geekhunter", Title: "engenheira backend", Org: "ACME"},
		rec("Engenheira de Plataforma", "Beta", "https://site.test/vaga/7"),
	}}

	h := NewHybrid(New(), oracle, 3)
	records, _, err := h.Extract(context.Background(), markup, testSelectors(), testSource(), "https://site.test", 10)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].URL != "https://site.test/vaga/1" || records[1].URL != "https://site.test/vaga/2" {
		t.Errorf("deterministic urls = %q, %q (both must be kept)", records[0].URL, records[1].URL)
	}
	if records[2].Title != "Engenheira de Plataforma" {
		t.Errorf("records[2].Title = %q, want the new oracle record", records[2].Title)
	}
}

func TestHybrid_MergeRespectsLimit(t *testing.T) {
	markup := page(
		card("Engenheira Backend", "Acme", "/vaga/1"),
		card("Engenheira Frontend", "Acme", "/vaga/2"),
	)

	var extra []models.Record
	for i := 0; i < 5; i++ {
		extra = append(extra, rec(fmt.Sprintf("Vaga oracle %d", i), "Beta", fmt.Sprintf("https://site.test/o/%d", i)))
	}
	oracle := &stubOracle{records: extra}

	h := NewHybrid(New(), oracle, 3)
	records, _, err := h.Extract(context.Background(), markup, testSelectors(), testSource(), "https://site.test", 4)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("got %d records, want limit 4", len(records))
	}
}

func TestHybrid_OracleErrorKeepsDeterministicRecords(t *testing.T) {
	markup := page(card("Engenheira Backend", "Acme", "/vaga/1"))

	oracle := &stubOracle{err: fmt.Errorf("model timeout")}
	h := NewHybrid(New(), oracle, 3)

	records, used, err := h.Extract(context.Background(), markup, testSelectors(), testSource(), "https://site.test", 10)
	if err != nil {
		t.Fatalf("Extract: %v (oracle failure must not discard deterministic records)", err)
	}
	if used {
		t.Error("failed oracle must not be reported as used")
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

func TestHybrid_StructureMissingFallsThroughToOracle(t *testing.T) {
	oracle := &stubOracle{records: []models.Record{rec("Vaga via oracle", "Beta", "https://site.test/o/1")}}
	h := NewHybrid(New(), oracle, 3)

	records, used, err := h.Extract(context.Background(), "<html><body><p>nada aqui</p></body></html>",
		models.SelectorSet{}, testSource(), "https://site.test", 10)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !used {
		t.Error("oracle contribution should be reported")
	}
	if len(records) != 1 || records[0].Title != "Vaga via oracle" {
		t.Errorf("records = %+v", records)
	}
}

func TestHybrid_BothPathsFailing(t *testing.T) {
	oracle := &stubOracle{err: fmt.Errorf("model down")}
	h := NewHybrid(New(), oracle, 3)

	_, _, err := h.Extract(context.Background(), "<html></html>",
		models.SelectorSet{}, testSource(), "https://site.test", 10)
	if err == nil {
		t.Fatal("expected error when both extraction paths fail")
	}
}

func TestHybrid_NilOracle(t *testing.T) {
	markup := page(card("Engenheira Backend", "Acme", "/vaga/1"))
	h := NewHybrid(New(), nil, 3)

	records, used, err := h.Extract(context.Background(), markup, testSelectors(), testSource(), "https://site.test", 10)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if used || len(records) != 1 {
		t.Errorf("used=%v records=%d, want false/1", used, len(records))
	}
}
