package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/scoutwork/harvest/analyze"
	"github.com/scoutwork/harvest/api"
	"github.com/scoutwork/harvest/api/handler"
	"github.com/scoutwork/harvest/cache"
	"github.com/scoutwork/harvest/catalog"
	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/crawl"
	"github.com/scoutwork/harvest/enrich"
	"github.com/scoutwork/harvest/extract"
	"github.com/scoutwork/harvest/fetch"
	"github.com/scoutwork/harvest/oracle"
	"github.com/scoutwork/harvest/pipeline"
	"github.com/scoutwork/harvest/render"
	"github.com/scoutwork/harvest/sources"
	"github.com/scoutwork/harvest/tracking"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("harvest starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	// ── 3. Initialise render service (launches browser) ─────────────
	// A failed launch degrades the service instead of killing it: the
	// lightweight HTTP path still works for static sources.
	var renderer fetch.Renderer
	var pool handler.PoolStatser
	rs, err := render.NewService(cfg.Browser, cfg.Render)
	if err != nil {
		slog.Error("render service unavailable, continuing without it", "error", err)
	} else {
		defer rs.Close()
		renderer = rs
		pool = rs
	}

	// ── 4. Initialise the pipeline collaborators ────────────────────
	registry := sources.NewRegistry()
	fetcher := fetch.New(cfg.Fetcher, renderer)
	analyzer := analyze.New(registry)

	var oracleClient extract.Oracle
	if oc := oracle.NewClient(cfg.Oracle, nil); oc.Available() {
		oracleClient = oc
		slog.Info("extraction oracle enabled", "baseURL", cfg.Oracle.BaseURL)
	} else {
		slog.Info("extraction oracle disabled")
	}
	hybrid := extract.NewHybrid(extract.New(), oracleClient, cfg.Extractor.FallbackThreshold)

	searchSvc := pipeline.NewService(registry, fetcher, analyzer, hybrid)

	crawlSvc := crawl.NewService(cfg.Crawl, registry, fetcher, analyzer, hybrid)
	if cc := catalog.NewClient(cfg.Catalog); cc != nil {
		crawlSvc.SetCatalog(cc)
		slog.Info("catalog comparison enabled", "url", cfg.Catalog.URL)
	}

	enrichSvc := enrich.NewService(cfg.Enrich, fetcher)
	responseCache := cache.New(cfg.Cache.MaxEntries)
	tracker := tracking.NewReporter(cfg.Tracking)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(api.Deps{
		Search:   searchSvc,
		Crawl:    crawlSvc,
		Enrich:   enrichSvc,
		Registry: registry,
		Cache:    responseCache,
		Tracker:  tracker,
		Pool:     pool,
	}, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// rs.Close() runs via defer: drains the page pool and kills Chrome.
	slog.Info("harvest stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
