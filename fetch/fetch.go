package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/models"
)

// Renderer is the render-service collaborator: it executes page scripts
// in a real browser and returns the final markup. Failures surface as
// errors, never partial results.
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (*RenderResult, error)
}

// RenderResult is the output of a successful rendered fetch.
type RenderResult struct {
	HTML     string
	Title    string
	FinalURL string
}

// Result is the output of one adaptive fetch.
type Result struct {
	HTML        string
	Title       string
	StatusCode  int
	FinalURL    string
	ContentType string

	// Rendered reports whether the render path produced the markup.
	Rendered bool
}

// Fetcher chooses between a lightweight HTTP fetch and a rendered fetch,
// escalating to the render path when the page shows signs of needing
// script execution. Safe for concurrent use; the HTTP client is pooled.
type Fetcher struct {
	client        *http.Client
	renderer      Renderer
	cfg           config.FetcherConfig
	renderDomains map[string]struct{}
}

// New creates a Fetcher. renderer may be nil, in which case escalation
// fails with a render error instead of degrading silently.
func New(cfg config.FetcherConfig, renderer Renderer) *Fetcher {
	domains := make(map[string]struct{}, len(cfg.RenderDomains))
	for _, d := range cfg.RenderDomains {
		domains[strings.ToLower(d)] = struct{}{}
	}
	return &Fetcher{
		client:        newHTTPClient(cfg.HTTPTimeout),
		renderer:      renderer,
		cfg:           cfg,
		renderDomains: domains,
	}
}

// NewWithClient is like New but uses the given HTTP client. Used by tests
// to point the lightweight path at a stub server.
func NewWithClient(cfg config.FetcherConfig, renderer Renderer, client *http.Client) *Fetcher {
	f := New(cfg, renderer)
	f.client = client
	return f
}

// Fetch retrieves the markup for a URL.
//
// Strategy:
//  1. forceRender, or a domain on the script-dependent allowlist, goes
//     straight to the render path.
//  2. Otherwise the lightweight HTTP fetch runs first.
//  3. A non-2xx status, a fetch error, or markup failing the
//     incompleteness heuristic escalates to the render path.
//
// Only the final (render) attempt's error propagates as a fetch failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, forceRender bool, waitHint string) (*Result, error) {
	if forceRender || f.domainRequiresRender(rawURL) {
		slog.Info("using render path", "url", rawURL, "reason", "forced or allowlisted domain")
		return f.render(ctx, rawURL, waitHint)
	}

	res, err := f.fetchHTTP(ctx, rawURL)
	if err != nil {
		slog.Warn("lightweight fetch failed, escalating to render", "url", rawURL, "error", err)
		return f.render(ctx, rawURL, waitHint)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 || !isHTMLContentType(res.ContentType) {
		slog.Warn("lightweight fetch unusable, escalating to render",
			"url", rawURL, "status", res.StatusCode, "contentType", res.ContentType)
		return f.render(ctx, rawURL, waitHint)
	}

	if f.needsScript(res.HTML) {
		slog.Info("markup looks incomplete, escalating to render", "url", rawURL)
		return f.render(ctx, rawURL, waitHint)
	}

	return res, nil
}

func (f *Fetcher) render(ctx context.Context, rawURL, waitHint string) (*Result, error) {
	if f.renderer == nil {
		return nil, models.NewPipelineError(models.ErrCodeRender, "render service not configured", nil)
	}

	rr, err := f.renderer.Render(ctx, rawURL, waitHint)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeRender, "rendered fetch failed", err)
	}

	finalURL := rr.FinalURL
	if finalURL == "" {
		finalURL = rawURL
	}
	return &Result{
		HTML:       rr.HTML,
		Title:      rr.Title,
		StatusCode: http.StatusOK,
		FinalURL:   finalURL,
		Rendered:   true,
	}, nil
}

// domainRequiresRender checks the static script-dependent allowlist.
func (f *Fetcher) domainRequiresRender(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	_, ok := f.renderDomains[host]
	return ok
}
