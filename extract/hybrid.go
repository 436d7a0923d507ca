package extract

import (
	"context"
	"errors"
	"log/slog"

	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/sources"
)

// Oracle is the language-model collaborator consulted when deterministic
// extraction under-delivers. Implementations must be safe for concurrent
// use and must return an error rather than fabricated records when the
// backing service is unavailable.
type Oracle interface {
	ExtractRecords(ctx context.Context, markup, sourceID string, limit int) ([]models.Record, error)
}

// Hybrid wraps the deterministic extractor with an oracle fallback.
// Deterministic results always come first and are never reordered or
// rewritten by the oracle path.
type Hybrid struct {
	extractor *Extractor
	oracle    Oracle

	// threshold is the deterministic record count below which the oracle
	// is consulted.
	threshold int
}

// NewHybrid builds the hybrid extractor. oracle may be nil, which
// disables the fallback entirely.
func NewHybrid(extractor *Extractor, oracle Oracle, threshold int) *Hybrid {
	return &Hybrid{extractor: extractor, oracle: oracle, threshold: threshold}
}

// Extract runs deterministic extraction and, when the result is thin,
// merges in oracle-derived records. The bool reports whether the oracle
// contributed to the result.
//
// Error policy: a deterministic failure alone is not fatal while the
// oracle can still try; an oracle failure alone is not fatal while
// deterministic records exist. Only both paths failing surfaces an error.
func (h *Hybrid) Extract(ctx context.Context, markup string, set models.SelectorSet, src *sources.Source, baseURL string, limit int) ([]models.Record, bool, error) {
	deterministic, detErr := h.extractor.Extract(markup, set, src, baseURL, limit)
	if detErr != nil {
		var perr *models.PipelineError
		if !errors.As(detErr, &perr) || perr.Code != models.ErrCodeStructure {
			return nil, false, detErr
		}
		slog.Info("deterministic extraction found no structure", "source", src.ID)
	}

	if len(deterministic) >= h.threshold {
		return deterministic, false, nil
	}
	if h.oracle == nil {
		if detErr != nil {
			return nil, false, detErr
		}
		return deterministic, false, nil
	}

	slog.Info("consulting oracle fallback",
		"source", src.ID, "deterministic", len(deterministic), "threshold", h.threshold)

	fromOracle, oracleErr := h.oracle.ExtractRecords(ctx, markup, src.ID, limit)
	if oracleErr != nil {
		slog.Warn("oracle fallback failed", "source", src.ID, "error", oracleErr)
		if detErr != nil {
			return nil, false, detErr
		}
		return deterministic, false, nil
	}

	merged := mergeRecords(deterministic, fromOracle, limit)
	return merged, len(merged) > len(deterministic), nil
}

// mergeRecords appends oracle records to the deterministic ones.
// Deterministic records are kept unconditionally, in order, up to limit;
// the collision checks apply only to oracle entries, which are dropped
// when their URL or normalized title|org key matches anything already
// kept. The result never exceeds limit.
func mergeRecords(deterministic, fromOracle []models.Record, limit int) []models.Record {
	merged := make([]models.Record, 0, limit)
	seenURL := make(map[string]struct{}, limit)
	seenKey := make(map[string]struct{}, limit)

	keep := func(r models.Record) {
		merged = append(merged, r)
		if r.URL != "" {
			seenURL[r.URL] = struct{}{}
		}
		seenKey[r.TitleOrgKey()] = struct{}{}
	}

	for _, r := range deterministic {
		if len(merged) >= limit {
			return merged
		}
		keep(r)
	}

	for _, r := range fromOracle {
		if len(merged) >= limit {
			break
		}
		if r.URL != "" {
			if _, dup := seenURL[r.URL]; dup {
				continue
			}
		}
		if _, dup := seenKey[r.TitleOrgKey()]; dup {
			continue
		}
		keep(r)
	}
	return merged
}
