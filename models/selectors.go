package models

// SelectorSet maps record fields to the CSS selector that resolves them
// on a given page. An empty string means the field is unresolved. A
// selector value may be a comma-separated fallback chain; extraction
// tries each part in order.
//
// RecordContainer is the repeating element that wraps one record. If it
// is empty, no extraction may proceed.
type SelectorSet struct {
	RecordContainer string `json:"record_container"`
	Title           string `json:"title"`
	Org             string `json:"org"`
	Location        string `json:"location"`
	Price           string `json:"price"`
	Tags            string `json:"tags"`
	Link            string `json:"link"`
}

// Empty reports whether no container was detected, which short-circuits
// extraction downstream.
func (s SelectorSet) Empty() bool {
	return s.RecordContainer == ""
}

// PageSignals carries page-level observations made by the analyzer.
type PageSignals struct {
	ContainersFound int    `json:"containers_found"`
	HasPagination   bool   `json:"has_pagination"`
	HasFilters      bool   `json:"has_filters"`
	Language        string `json:"language"`
}
