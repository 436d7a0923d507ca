// Package tracking posts fire-and-forget run reports to an external
// endpoint. Reporting runs off the request path with its own timeout
// and retries; it can never affect the caller's result.
package tracking

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/models"
)

// RunReport is the payload describing one finished pipeline run.
type RunReport struct {
	Source       string              `json:"source"`
	Keyword      string              `json:"keyword,omitempty"`
	Trigger      string              `json:"trigger"` // "search", "crawl"
	Pipeline     []models.StageTrace `json:"pipeline,omitempty"`
	RecordsFound int                 `json:"records_found"`
	DurationMs   int64               `json:"duration_ms"`
	Timestamp    int64               `json:"timestamp"`
}

// Reporter delivers run reports. A Reporter with no URL configured is
// valid and silently drops reports.
type Reporter struct {
	cfg        config.TrackingConfig
	httpClient *http.Client

	// retryDelays holds the pause before each attempt; index 0 is the
	// immediate first attempt.
	retryDelays []time.Duration
}

func NewReporter(cfg config.TrackingConfig) *Reporter {
	return &Reporter{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Enabled reports whether an endpoint is configured.
func (r *Reporter) Enabled() bool { return r.cfg.URL != "" }

// ReportAsync delivers the report in the background with retries.
func (r *Reporter) ReportAsync(report *RunReport) {
	if !r.Enabled() {
		return
	}
	if report.Timestamp == 0 {
		report.Timestamp = time.Now().Unix()
	}

	go func() {
		for attempt, delay := range r.retryDelays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := r.deliver(ctx, report)
			cancel()
			if err == nil {
				slog.Info("run report delivered",
					"source", report.Source, "trigger", report.Trigger, "attempt", attempt+1)
				return
			}
			slog.Warn("run report delivery failed",
				"source", report.Source, "trigger", report.Trigger, "attempt", attempt+1, "error", err)
		}
		slog.Error("run report delivery exhausted all retries",
			"source", report.Source, "trigger", report.Trigger)
	}()
}

// deliver posts one report. The body is signed with HMAC-SHA256 when a
// secret is configured. Header: X-Harvest-Signature: sha256=<hex>
func (r *Reporter) deliver(ctx context.Context, report *RunReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("tracking: marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("tracking: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Harvest-Tracking/1.0")

	if r.cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(r.cfg.Secret))
		mac.Write(body)
		req.Header.Set("X-Harvest-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tracking: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("tracking: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
