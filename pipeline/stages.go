package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scoutwork/harvest/analyze"
	"github.com/scoutwork/harvest/extract"
	"github.com/scoutwork/harvest/fetch"
	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/sources"
)

// SearchStage resolves the source and builds the target URL. Critical:
// nothing downstream can run without a URL.
type SearchStage struct {
	Registry *sources.Registry
}

func (s *SearchStage) Name() string   { return "search" }
func (s *SearchStage) Critical() bool { return true }

func (s *SearchStage) Run(_ context.Context, pc *Context) error {
	// Binding tags only guard the HTTP surface; the pipeline revalidates
	// so non-HTTP callers get the same failure mode.
	if strings.TrimSpace(pc.Request.Keyword) == "" {
		return models.NewPipelineError(models.ErrCodeInvalidInput,
			"keyword must not be empty", nil)
	}
	if pc.Request.Source == "" {
		return models.NewPipelineError(models.ErrCodeInvalidInput,
			"source must not be empty", nil)
	}

	src, ok := s.Registry.Get(pc.Request.Source)
	if !ok {
		return models.NewPipelineError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown source %q", pc.Request.Source), nil)
	}
	pc.Source = src
	pc.TargetURL = src.BuildSearchURL(pc.Request.Keyword, pc.Request.Metadata)
	slog.Info("search target resolved",
		"source", src.ID, "keyword", pc.Request.Keyword, "url", pc.TargetURL)
	return nil
}

// FetchStage retrieves the page markup adaptively. Critical: no markup,
// no results.
type FetchStage struct {
	Fetcher *fetch.Fetcher
}

func (s *FetchStage) Name() string   { return "fetch" }
func (s *FetchStage) Critical() bool { return true }

func (s *FetchStage) Run(ctx context.Context, pc *Context) error {
	res, err := s.Fetcher.Fetch(ctx, pc.TargetURL, pc.Source.RequiresRender, pc.Source.WaitSelector)
	if err != nil {
		return err
	}
	pc.Markup = res.HTML
	pc.PageTitle = res.Title
	pc.Rendered = res.Rendered
	return nil
}

// AnalyzeStage detects selectors and page signals. Not critical: a page
// with no detectable structure still reaches extraction, where the
// oracle fallback can take over.
type AnalyzeStage struct {
	Analyzer *analyze.Analyzer
}

func (s *AnalyzeStage) Name() string   { return "analyze" }
func (s *AnalyzeStage) Critical() bool { return false }

func (s *AnalyzeStage) Run(_ context.Context, pc *Context) error {
	set, signals := s.Analyzer.Analyze(pc.Markup, pc.Source.ID)
	pc.Selectors = set
	pc.Signals = signals
	if set.Empty() {
		return models.NewPipelineError(models.ErrCodeStructure,
			"no record container detected", nil)
	}
	return nil
}

// ExtractStage builds records via the hybrid extractor. Not critical: an
// empty result set with a recorded error beats a failed request.
type ExtractStage struct {
	Hybrid *extract.Hybrid
}

func (s *ExtractStage) Name() string   { return "extract" }
func (s *ExtractStage) Critical() bool { return false }

func (s *ExtractStage) Run(ctx context.Context, pc *Context) error {
	records, oracleUsed, err := s.Hybrid.Extract(ctx, pc.Markup, pc.Selectors,
		pc.Source, pc.TargetURL, pc.Request.Limit)
	if err != nil {
		return err
	}

	// The request's country hint fills records whose source declares none.
	for i := range records {
		if records[i].Country == "" {
			records[i].Country = pc.Request.Country
		}
	}

	pc.Records = records
	pc.OracleUsed = oracleUsed
	return nil
}
