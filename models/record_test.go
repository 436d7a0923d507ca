package models

import (
	"strings"
	"testing"
)

func TestRecordID_DeterministicPerURL(t *testing.T) {
	a := RecordID("geekhunter", "https://example.com/vaga/1")
	b := RecordID("geekhunter", "https://example.com/vaga/1")
	c := RecordID("geekhunter", "https://example.com/vaga/2")

	if a != b {
		t.Errorf("same inputs produced different IDs: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("different URLs produced the same ID: %q", a)
	}
	if !strings.HasPrefix(a, "geekhunter-") {
		t.Errorf("ID = %q, want geekhunter- prefix", a)
	}
	if got := len(strings.TrimPrefix(a, "geekhunter-")); got != 12 {
		t.Errorf("hash suffix length = %d, want 12", got)
	}
}

func TestMergeKey_PrefersURL(t *testing.T) {
	withURL := Record{Title: "Engenheira de Software", Org: "ACME", URL: "https://example.com/v/1"}
	if withURL.MergeKey() != withURL.URL {
		t.Errorf("MergeKey = %q, want URL", withURL.MergeKey())
	}

	withoutURL := Record{Title: "Engenheira de Software", Org: "ACME"}
	if withoutURL.MergeKey() != withoutURL.TitleOrgKey() {
		t.Errorf("MergeKey = %q, want title/org key", withoutURL.MergeKey())
	}
}

func TestTitleOrgKey_NormalizesCaseAndSpacing(t *testing.T) {
	a := Record{Title: "Engenheira   de Software", Org: "ACME"}
	b := Record{Title: "engenheira de software", Org: "acme"}
	if a.TitleOrgKey() != b.TitleOrgKey() {
		t.Errorf("keys differ: %q vs %q", a.TitleOrgKey(), b.TitleOrgKey())
	}
}

func TestSearchRequest_Defaults(t *testing.T) {
	var req SearchRequest
	req.Defaults()
	if req.Country != "br" || req.Limit != 50 {
		t.Errorf("defaults = %q/%d, want br/50", req.Country, req.Limit)
	}

	set := SearchRequest{Country: "pt", Limit: 10}
	set.Defaults()
	if set.Country != "pt" || set.Limit != 10 {
		t.Errorf("explicit values overwritten: %q/%d", set.Country, set.Limit)
	}
}
