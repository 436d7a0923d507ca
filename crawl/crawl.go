// Package crawl walks every unit of a catalog source (for example the
// regions of a government course index) sequentially, with polite
// pacing and a fixed retry budget per unit. Crawls run in the
// background; callers poll the job store for progress.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/scoutwork/harvest/analyze"
	"github.com/scoutwork/harvest/catalog"
	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/extract"
	"github.com/scoutwork/harvest/fetch"
	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/sources"
)

// defaultPerUnit caps records per unit when the request sets no cap.
const defaultPerUnit = 200

// Service starts and tracks catalog crawls.
type Service struct {
	cfg      config.CrawlConfig
	registry *sources.Registry
	fetcher  *fetch.Fetcher
	analyzer *analyze.Analyzer
	hybrid   *extract.Hybrid
	store    *Store
	catalog  *catalog.Client

	// limiter paces unit requests: one unit per UnitDelay, shared across
	// all running crawls so parallel jobs cannot gang up on a site.
	limiter *rate.Limiter
}

func NewService(cfg config.CrawlConfig, registry *sources.Registry, fetcher *fetch.Fetcher, analyzer *analyze.Analyzer, hybrid *extract.Hybrid) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		fetcher:  fetcher,
		analyzer: analyzer,
		hybrid:   hybrid,
		store:    NewStore(),
		limiter:  rate.NewLimiter(rate.Every(cfg.UnitDelay), 1),
	}
}

// SetCatalog enables per-record comparison against the catalog service.
func (s *Service) SetCatalog(c *catalog.Client) {
	s.catalog = c
}

// Start validates the request, registers a job, and crawls in the
// background. The returned response carries the job ID for polling.
func (s *Service) Start(req *models.CrawlRequest) (*models.CrawlResponse, error) {
	src, ok := s.registry.Get(req.Source)
	if !ok {
		return nil, models.NewPipelineError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown source %q", req.Source), nil)
	}
	if src.Kind != sources.KindCatalog {
		return nil, models.NewPipelineError(models.ErrCodeInvalidInput,
			fmt.Sprintf("source %q is not crawlable", req.Source), nil)
	}

	units, err := resolveUnits(src, req.Units)
	if err != nil {
		return nil, err
	}

	id := s.store.Create(len(units))
	go s.run(id, src, units, req.MaxPerUnit)

	return &models.CrawlResponse{ID: id, Status: "processing"}, nil
}

// Status returns a snapshot of a crawl job.
func (s *Service) Status(id string) (*models.CrawlStatusResponse, bool) {
	job, ok := s.store.Get(id)
	if !ok {
		return nil, false
	}
	return &models.CrawlStatusResponse{
		ID:             job.ID,
		Status:         job.Status,
		UnitsDone:      job.UnitsDone,
		UnitsTotal:     job.UnitsTotal,
		CurrentUnit:    job.CurrentUnit,
		Records:        job.Records,
		Errors:         job.Errors,
		RecordsPerUnit: job.RecordsPerUnit,
	}, true
}

// run crawls the units one by one. A unit that keeps failing after the
// retry budget contributes zero records and an error entry; the crawl
// itself keeps going.
func (s *Service) run(id string, src *sources.Source, units []sources.Unit, maxPerUnit int) {
	ctx := context.Background()
	if maxPerUnit <= 0 {
		maxPerUnit = defaultPerUnit
	}

	failedUnits := 0
	for _, unit := range units {
		s.store.Update(id, func(j *models.CrawlJob) { j.CurrentUnit = unit.Name })

		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		records, err := s.crawlUnit(ctx, src, unit, maxPerUnit)
		s.store.Update(id, func(j *models.CrawlJob) {
			j.UnitsDone++
			j.RecordsPerUnit = append(j.RecordsPerUnit, len(records))
			j.Records = append(j.Records, records...)
			if err != nil {
				j.Errors = append(j.Errors, fmt.Sprintf("%s: %v", unit.Name, err))
			}
		})
		if err != nil {
			failedUnits++
			slog.Warn("unit crawl gave up", "job", id, "unit", unit.Name, "error", err)
			continue
		}
		slog.Info("unit crawled", "job", id, "unit", unit.Name, "records", len(records))
		s.compareUnit(ctx, id, unit.Name, records)
	}

	status := "completed"
	switch {
	case failedUnits == len(units):
		status = "failed"
	case failedUnits > 0:
		status = "partial"
	}
	s.store.Update(id, func(j *models.CrawlJob) {
		j.Status = status
		j.CurrentUnit = ""
	})
	slog.Info("crawl finished", "job", id, "status", status, "units", len(units), "failedUnits", failedUnits)
}

// compareUnit asks the catalog service to classify the unit's records.
// Best-effort: comparison failures are logged, never recorded as crawl
// errors.
func (s *Service) compareUnit(ctx context.Context, jobID, unitName string, records []models.Record) {
	if s.catalog == nil || len(records) == 0 {
		return
	}

	var fresh, changed int
	for i := range records {
		result, err := s.catalog.Compare(ctx, &records[i])
		if err != nil {
			slog.Warn("catalog comparison failed",
				"job", jobID, "unit", unitName, "record", records[i].ID, "error", err)
			continue
		}
		switch result.Status {
		case catalog.StatusNew:
			fresh++
		case catalog.StatusChanged:
			changed++
			slog.Info("record changed in catalog",
				"job", jobID, "record", records[i].ID, "fields", result.ChangedFields)
		}
	}
	slog.Info("unit compared against catalog",
		"job", jobID, "unit", unitName, "new", fresh, "changed", changed)
}

// crawlUnit fetches and extracts one unit, retrying on failure with a
// fixed delay between attempts.
func (s *Service) crawlUnit(ctx context.Context, src *sources.Source, unit sources.Unit, limit int) ([]models.Record, error) {
	unitURL := src.UnitURL(unit.Code)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		records, err := s.extractUnit(ctx, src, unitURL, limit)
		if err == nil {
			return records, nil
		}
		lastErr = err
		slog.Warn("unit attempt failed",
			"unit", unit.Name, "attempt", attempt, "retries", s.cfg.Retries, "error", err)
	}
	return nil, lastErr
}

func (s *Service) extractUnit(ctx context.Context, src *sources.Source, unitURL string, limit int) ([]models.Record, error) {
	res, err := s.fetcher.Fetch(ctx, unitURL, src.RequiresRender, src.WaitSelector)
	if err != nil {
		return nil, err
	}

	set, _ := s.analyzer.Analyze(res.HTML, src.ID)
	records, _, err := s.hybrid.Extract(ctx, res.HTML, set, src, unitURL, limit)
	return records, err
}

// resolveUnits maps requested unit codes to source units, defaulting to
// all units the source declares.
func resolveUnits(src *sources.Source, requested []string) ([]sources.Unit, error) {
	if len(src.Units) == 0 {
		return nil, models.NewPipelineError(models.ErrCodeInvalidInput,
			fmt.Sprintf("source %q declares no units", src.ID), nil)
	}
	if len(requested) == 0 {
		return src.Units, nil
	}

	byCode := make(map[string]sources.Unit, len(src.Units))
	for _, u := range src.Units {
		byCode[u.Code] = u
	}

	units := make([]sources.Unit, 0, len(requested))
	for _, code := range requested {
		u, ok := byCode[code]
		if !ok {
			return nil, models.NewPipelineError(models.ErrCodeInvalidInput,
				fmt.Sprintf("unknown unit %q for source %q", code, src.ID), nil)
		}
		units = append(units, u)
	}
	return units, nil
}
