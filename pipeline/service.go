package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/scoutwork/harvest/analyze"
	"github.com/scoutwork/harvest/extract"
	"github.com/scoutwork/harvest/fetch"
	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/sources"
)

// Service runs complete search pipelines and shapes their API response.
type Service struct {
	orchestrator *Orchestrator
}

// NewService assembles the standard four-stage search pipeline.
func NewService(registry *sources.Registry, fetcher *fetch.Fetcher, analyzer *analyze.Analyzer, hybrid *extract.Hybrid) *Service {
	return &Service{
		orchestrator: NewOrchestrator(
			&SearchStage{Registry: registry},
			&FetchStage{Fetcher: fetcher},
			&AnalyzeStage{Analyzer: analyzer},
			&ExtractStage{Hybrid: hybrid},
		),
	}
}

// Search executes one search run. It always returns a response: critical
// failures produce Success=false with the error detail, degradations
// produce Success=true with the Errors list populated.
func (s *Service) Search(ctx context.Context, req *models.SearchRequest) *models.SearchResponse {
	req.Defaults()
	started := time.Now()

	pc := &Context{Request: req}
	runErr := s.orchestrator.Run(ctx, pc)

	resp := &models.SearchResponse{
		Success:    runErr == nil,
		Records:    pc.Records,
		Total:      len(pc.Records),
		Errors:     pc.Errors,
		Pipeline:   pc.Trace,
		PageTitle:  pc.PageTitle,
		Signals:    pc.Signals,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if resp.Records == nil {
		resp.Records = []models.Record{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}

	if runErr != nil {
		var perr *models.PipelineError
		if errors.As(runErr, &perr) {
			resp.Error = perr.ToDetail()
		} else {
			resp.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: runErr.Error()}
		}
	}
	return resp
}
