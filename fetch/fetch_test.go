package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scoutwork/harvest/config"
)

func testConfig() config.FetcherConfig {
	return config.FetcherConfig{
		RenderDomains:     []string{"geekhunter.com.br"},
		MinVisibleText:    500,
		MarkerVisibleText: 1000,
	}
}

type stubRenderer struct {
	calls    int
	lastURL  string
	lastWait string
	html     string
	err      error
}

func (s *stubRenderer) Render(ctx context.Context, url, waitSelector string) (*RenderResult, error) {
	s.calls++
	s.lastURL = url
	s.lastWait = waitSelector
	if s.err != nil {
		return nil, s.err
	}
	return &RenderResult{HTML: s.html, Title: "rendered"}, nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// richHTML builds a page whose visible text comfortably exceeds the
// incompleteness thresholds.
func richHTML() string {
	return "<html><head><title>Jobs</title></head><body><main>" +
		strings.Repeat("<p>Backend engineer position with a detailed description of duties. </p>", 40) +
		"</main></body></html>"
}

func TestFetch_ForcedRenderForAllowlistedDomain(t *testing.T) {
	r := &stubRenderer{html: richHTML()}

	// An HTTP client that fails the test if the lightweight path runs.
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Errorf("lightweight fetch must not run for an allowlisted domain (got request to %s)", req.URL)
		return nil, fmt.Errorf("unexpected http fetch")
	})}

	f := NewWithClient(testConfig(), r, client)
	res, err := f.Fetch(context.Background(), "https://www.geekhunter.com.br/vagas?search=go", false, ".job-card")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if r.calls != 1 {
		t.Errorf("render calls = %d, want 1", r.calls)
	}
	if !res.Rendered {
		t.Error("result should be marked as rendered")
	}
	if r.lastWait != ".job-card" {
		t.Errorf("wait hint = %q, want %q", r.lastWait, ".job-card")
	}
}

func TestFetch_ForceRenderFlag(t *testing.T) {
	r := &stubRenderer{html: richHTML()}
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Error("lightweight fetch must not run when forceRender is set")
		return nil, fmt.Errorf("unexpected http fetch")
	})}

	f := NewWithClient(testConfig(), r, client)
	if _, err := f.Fetch(context.Background(), "https://static.example.com/list", true, ""); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if r.calls != 1 {
		t.Errorf("render calls = %d, want 1", r.calls)
	}
}

func TestFetch_StaticPageStaysOnHTTPPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, richHTML())
	}))
	defer srv.Close()

	r := &stubRenderer{html: "<html></html>"}
	f := NewWithClient(testConfig(), r, srv.Client())

	res, err := f.Fetch(context.Background(), srv.URL, false, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if r.calls != 0 {
		t.Errorf("render calls = %d, want 0", r.calls)
	}
	if res.Rendered {
		t.Error("result should not be marked as rendered")
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
}

func TestFetch_EscalatesOnSparseVisibleText(t *testing.T) {
	// 200 visible characters, well under the 500-char threshold.
	sparse := "<html><body><div>" + strings.Repeat("x", 200) + "</div><script>var a = 1;</script></body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, sparse)
	}))
	defer srv.Close()

	r := &stubRenderer{html: richHTML()}
	f := NewWithClient(testConfig(), r, srv.Client())

	res, err := f.Fetch(context.Background(), srv.URL, false, "")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if r.calls != 1 {
		t.Errorf("render calls = %d, want 1 (sparse markup must escalate)", r.calls)
	}
	if !res.Rendered {
		t.Error("result should come from the render path")
	}
}

func TestFetch_EscalatesOnFrameworkMarker(t *testing.T) {
	// ~600 visible chars: over the sparse threshold, but the app-root
	// marker plus sub-1000 text still signals a client-rendered shell.
	shell := `<html><body><div id="app">` + strings.Repeat("word ", 120) + "</div></body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, shell)
	}))
	defer srv.Close()

	r := &stubRenderer{html: richHTML()}
	f := NewWithClient(testConfig(), r, srv.Client())

	if _, err := f.Fetch(context.Background(), srv.URL, false, ""); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if r.calls != 1 {
		t.Errorf("render calls = %d, want 1 (framework marker must escalate)", r.calls)
	}
}

func TestFetch_EscalatesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := &stubRenderer{html: richHTML()}
	f := NewWithClient(testConfig(), r, srv.Client())

	if _, err := f.Fetch(context.Background(), srv.URL, false, ""); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if r.calls != 1 {
		t.Errorf("render calls = %d, want 1 (5xx must escalate)", r.calls)
	}
}

func TestFetch_EscalatesOnNetworkError(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	})}

	r := &stubRenderer{html: richHTML()}
	f := NewWithClient(testConfig(), r, client)

	if _, err := f.Fetch(context.Background(), "http://unreachable.example.com/", false, ""); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if r.calls != 1 {
		t.Errorf("render calls = %d, want 1 (network error must escalate)", r.calls)
	}
}

func TestFetch_RenderErrorPropagates(t *testing.T) {
	r := &stubRenderer{err: fmt.Errorf("browser crashed")}
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	})}

	f := NewWithClient(testConfig(), r, client)
	if _, err := f.Fetch(context.Background(), "http://unreachable.example.com/", false, ""); err == nil {
		t.Fatal("expected error when both paths fail")
	}
}

func TestNeedsScript_RichContent(t *testing.T) {
	f := New(testConfig(), nil)
	if f.needsScript(richHTML()) {
		t.Error("rich static markup should not be flagged as script-dependent")
	}
}

func TestVisibleTextLength_StripsNonContent(t *testing.T) {
	markup := `<html><body><p>hello world</p><script>` + strings.Repeat("j", 5000) + `</script></body></html>`
	got := visibleTextLength(markup)
	if got != len("hello world") {
		t.Errorf("visibleTextLength = %d, want %d", got, len("hello world"))
	}
}
