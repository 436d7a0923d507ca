// Package pipeline wires the search stages together: source resolution,
// adaptive fetch, structure analysis, and record extraction. Stages
// communicate through a shared Context and declare their own
// criticality; the orchestrator aborts on critical failures and keeps
// going on everything else.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scoutwork/harvest/models"
	"github.com/scoutwork/harvest/sources"
)

// Stage statuses as reported in the trace.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Context is the mutable state threaded through the stages of one
// search run. Each stage reads what earlier stages produced and writes
// its own outputs.
type Context struct {
	Request *models.SearchRequest

	// Set by the search stage.
	Source    *sources.Source
	TargetURL string

	// Set by the fetch stage.
	Markup    string
	PageTitle string
	Rendered  bool

	// Set by the analyze stage.
	Selectors models.SelectorSet
	Signals   models.PageSignals

	// Set by the extract stage.
	Records    []models.Record
	OracleUsed bool

	// Accumulated by the orchestrator.
	Trace  []models.StageTrace
	Errors []string
}

// Stage is one unit of pipeline work.
type Stage interface {
	// Name identifies the stage in traces and error prefixes.
	Name() string

	// Critical stages abort the run on failure; non-critical failures
	// are recorded and the run continues.
	Critical() bool

	Run(ctx context.Context, pc *Context) error
}

// Orchestrator executes stages in order, collecting a per-stage trace.
type Orchestrator struct {
	stages []Stage
}

func NewOrchestrator(stages ...Stage) *Orchestrator {
	return &Orchestrator{stages: stages}
}

// Run executes the stages. Every failure lands in pc.Errors prefixed
// with the stage name; a critical failure additionally aborts the run,
// returning its error with the remaining stages marked skipped in the
// trace.
func (o *Orchestrator) Run(ctx context.Context, pc *Context) error {
	for i, stage := range o.stages {
		started := time.Now()
		err := stage.Run(ctx, pc)
		elapsed := time.Since(started)

		trace := models.StageTrace{
			Stage:      stage.Name(),
			Status:     StatusSuccess,
			DurationMs: elapsed.Milliseconds(),
		}

		if err != nil {
			trace.Status = StatusFailed
			trace.Error = errorMessage(err)
			pc.Trace = append(pc.Trace, trace)
			pc.Errors = append(pc.Errors, fmt.Sprintf("%s: %s", stage.Name(), errorMessage(err)))

			if stage.Critical() {
				for _, rest := range o.stages[i+1:] {
					pc.Trace = append(pc.Trace, models.StageTrace{
						Stage:  rest.Name(),
						Status: StatusSkipped,
					})
				}
				slog.Error("critical stage failed, aborting run",
					"stage", stage.Name(), "error", err, "durationMs", elapsed.Milliseconds())
				return err
			}

			slog.Warn("stage degraded, continuing",
				"stage", stage.Name(), "error", err, "durationMs", elapsed.Milliseconds())
			continue
		}

		pc.Trace = append(pc.Trace, trace)
		slog.Debug("stage finished", "stage", stage.Name(), "durationMs", elapsed.Milliseconds())
	}
	return nil
}

// errorMessage prefers the pipeline error's own message over the full
// wrapped chain, which can leak internals into API responses.
func errorMessage(err error) string {
	var perr *models.PipelineError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return err.Error()
}
