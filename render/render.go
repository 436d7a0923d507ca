// Package render drives a headless browser for pages that only produce
// their content under script execution. It owns the browser lifecycle
// and a reusable page pool, and implements the fetch.Renderer contract.
package render

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/fetch"
	"github.com/scoutwork/harvest/models"
)

// Service manages the global browser and the page pool.
// It is safe for concurrent use.
type Service struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	renderCfg   config.RenderConfig
	activePages atomic.Int32
}

// NewService launches a headless browser and initialises the reusable
// page pool.
func NewService(browserCfg config.BrowserConfig, renderCfg config.RenderConfig) (*Service, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRender, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRender, "failed to connect to browser", err)
	}

	pool := rod.NewPagePool(browserCfg.MaxPages)
	slog.Info("page pool created", "maxPages", browserCfg.MaxPages)

	return &Service{
		browser:    browser,
		pagePool:   pool,
		browserCfg: browserCfg,
		renderCfg:  renderCfg,
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (s *Service) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.browserCfg.MaxPages,
		ActivePages: int(s.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Service) Close() {
	slog.Info("render service shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("render service shutting down: closing browser")
	s.browser.MustClose()
	slog.Info("render service shutdown complete")
}

// Render navigates to the URL in a pooled tab and returns the final
// markup after script execution.
//
// Lifecycle:
//
//  1. Timeout guard        – hard deadline on the whole operation
//  2. Acquire page         – borrow a tab from the pool (or create one)
//  3. DEFER: cleanup       – about:blank + return to pool (leak prevention)
//  4. Stealth injection    – mask navigator.webdriver etc. (before navigation!)
//  5. Hijack mount         – block images/CSS/fonts/media (before navigation!)
//  6. Context binding      – propagate timeout to all Rod operations
//  7. Navigate             – triggers page load
//  8. Wait                 – DOM stable, then the hint selector (bounded)
//  9. Extract              – page.HTML() + document.title
//
// Steps 4-5 must precede step 7: stealth JS and resource blocking only
// take effect for navigations installed before they happen. Step 3's
// about:blank uses the ORIGINAL page reference (without request
// context), so cleanup succeeds even when the request context expired.
func (s *Service) Render(ctx context.Context, rawURL, waitSelector string) (*fetch.RenderResult, error) {
	// ── 1. Timeout guard ─────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, s.renderCfg.NavigationTimeout+s.renderCfg.WaitSelectorTimeout)
	defer cancel()

	// ── 2. Acquire page from pool ────────────────────────────────────
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, acquireErr := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewPipelineError(models.ErrCodeRender,
			"failed to acquire page from pool", acquireErr)
	}

	// ── 3. CRITICAL DEFER: prevent DOM memory leak + guarantee pool return
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	// ── 4. Stealth injection ─────────────────────────────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	// ── 4b. Plausible referer ────────────────────────────────────────
	if u, parseErr := url.Parse(rawURL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			}),
		}.Call(page)
	}

	// ── 5. Mount hijack router (blocks Image/Stylesheet/Font/Media) ──
	router := setupHijack(page, s.renderCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 6. Bind request context to page ──────────────────────────────
	p := page.Context(ctx)

	// ── 7. Navigate ──────────────────────────────────────────────────
	if navErr := p.Navigate(rawURL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}

	// ── 8. Wait strategy ─────────────────────────────────────────────
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}
	s.waitForSelector(p, rawURL, waitSelector)

	// ── 9. Extract rendered HTML ─────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = rawURL
	}

	return &fetch.RenderResult{
		HTML:     rawHTML,
		Title:    title,
		FinalURL: finalURL,
	}, nil
}

// waitForSelector waits, bounded, for the hint selector to appear. The
// selector not showing up is logged and tolerated: the page may simply
// have no results, and the current DOM is still worth extracting from.
func (s *Service) waitForSelector(p *rod.Page, rawURL, waitSelector string) {
	if waitSelector == "" {
		return
	}
	bounded := p.Timeout(s.renderCfg.WaitSelectorTimeout)
	if _, err := bounded.Element(waitSelector); err != nil {
		slog.Warn("hint selector did not appear, extracting current DOM",
			"url", rawURL, "selector", waitSelector, "error", err)
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors (useful for optional metadata).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors so upstream stages see a typed error.
func categorizeError(err error, msg string) *models.PipelineError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewPipelineError(models.ErrCodeRender, msg+": timeout", err)
	case errors.Is(err, context.Canceled):
		return models.NewPipelineError(models.ErrCodeRender, "request canceled", err)
	default:
		return models.NewPipelineError(models.ErrCodeRender, msg, err)
	}
}
