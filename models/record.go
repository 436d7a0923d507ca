package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Record is a single structured record extracted from a source page
// (a job posting, an institution, or a course). Records are immutable
// once constructed.
type Record struct {
	// ID is derived deterministically from the source ID and a content
	// hash of the URL, so re-scraping the same page yields the same IDs.
	ID string `json:"id"`

	// SourceID identifies the source the record came from (e.g. "geekhunter").
	SourceID string `json:"source_id"`

	Title       string   `json:"title"`
	Org         string   `json:"org"`
	Location    string   `json:"location"`
	PriceText   string   `json:"price_text,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	URL         string   `json:"url"`
	Description string   `json:"description,omitempty"`
	Country     string   `json:"country"`
}

// RecordID builds the deterministic record ID: sourceID plus the first
// 12 hex chars of the URL's SHA-256 hash.
func RecordID(sourceID, url string) string {
	sum := sha256.Sum256([]byte(url))
	return sourceID + "-" + hex.EncodeToString(sum[:])[:12]
}

// MergeKey is the dedup identity used when combining deterministic and
// oracle-derived records. It is the URL when present, otherwise the
// title/org key. Never persisted.
func (r *Record) MergeKey() string {
	if r.URL != "" {
		return r.URL
	}
	return r.TitleOrgKey()
}

// TitleOrgKey is the URL-independent merge identity: normalized title
// and org joined with "|". It lets a URL-less oracle record collide
// with a deterministic record that carries a URL.
func (r *Record) TitleOrgKey() string {
	return normalizeKeyPart(r.Title) + "|" + normalizeKeyPart(r.Org)
}

func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
