package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/models"
)

func oracleConfig(baseURL string) config.OracleConfig {
	return config.OracleConfig{
		Enabled:         true,
		APIKey:          "test-key",
		BaseURL:         baseURL,
		SimpleModel:     "simple-model",
		ComplexModel:    "complex-model",
		MaxContentChars: 8000,
		Timeout:         5 * time.Second,
	}
}

// chatServer fakes the chat-completions endpoint, replying with the
// given message content and counting calls.
func chatServer(t *testing.T, content string, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

const listingText = `<html><body><main><p>` +
	`Vaga de Engenheira de Software na Acme, São Paulo. ` +
	`Vaga de Analista de Dados na Beta, remoto.` +
	`</p></main></body></html>`

func TestExtractRecords_MapsAndFilters(t *testing.T) {
	payload := `{"records":[
		{"title":"Engenheira de Software","org":"Acme","location":"São Paulo","price_text":"","tags":["go"],"url":"https://acme.test/v/1"},
		{"title":"Dev","org":"Beta","location":"","price_text":"","tags":[],"url":""}
	]}`

	var calls int
	srv := chatServer(t, payload, &calls)
	defer srv.Close()

	c := NewClient(oracleConfig(srv.URL), srv.Client())
	records, err := c.ExtractRecords(context.Background(), listingText, "geekhunter", 10)
	if err != nil {
		t.Fatalf("ExtractRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (short title must be dropped)", len(records))
	}
	r := records[0]
	if r.Title != "Engenheira de Software" || r.SourceID != "geekhunter" {
		t.Errorf("record = %+v", r)
	}
	if want := models.RecordID("geekhunter", "https://acme.test/v/1"); r.ID != want {
		t.Errorf("id = %q, want %q", r.ID, want)
	}
}

func TestExtractRecords_CachesByContent(t *testing.T) {
	payload := `{"records":[{"title":"Engenheira de Software","org":"Acme","url":"https://acme.test/v/1"}]}`

	var calls int
	srv := chatServer(t, payload, &calls)
	defer srv.Close()

	c := NewClient(oracleConfig(srv.URL), srv.Client())
	for i := 0; i < 3; i++ {
		if _, err := c.ExtractRecords(context.Background(), listingText, "geekhunter", 10); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (repeat content must hit the cache)", calls)
	}
}

func TestExtractRecords_ToleratesFencesAndBareArray(t *testing.T) {
	cases := []string{
		"```json\n{\"records\":[{\"title\":\"Engenheira de Dados\",\"org\":\"Acme\"}]}\n```",
		`[{"title":"Engenheira de Dados","org":"Acme"}]`,
	}
	for i, payload := range cases {
		var calls int
		srv := chatServer(t, payload, &calls)
		c := NewClient(oracleConfig(srv.URL), srv.Client())
		records, err := c.ExtractRecords(context.Background(),
			fmt.Sprintf("%s case %d", listingText, i), "geekhunter", 10)
		srv.Close()
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if len(records) != 1 || records[0].Title != "Engenheira de Dados" {
			t.Errorf("case %d: records = %+v", i, records)
		}
	}
}

func TestExtractRecords_UnavailableWithoutKey(t *testing.T) {
	cfg := oracleConfig("http://unused.test")
	cfg.APIKey = ""
	c := NewClient(cfg, nil)

	_, err := c.ExtractRecords(context.Background(), listingText, "geekhunter", 10)
	var perr *models.PipelineError
	if !errors.As(err, &perr) || perr.Code != models.ErrCodeOracleUnavailable {
		t.Errorf("error = %v, want code %s", err, models.ErrCodeOracleUnavailable)
	}
	if c.Available() {
		t.Error("client without key must report unavailable")
	}
}

func TestExtractRecords_ErrorClassification(t *testing.T) {
	cases := []struct {
		status   int
		wantCode string
	}{
		{http.StatusTooManyRequests, models.ErrCodeOracleRateLimited},
		{http.StatusUnauthorized, models.ErrCodeOracleUnavailable},
		{http.StatusInternalServerError, models.ErrCodeOracleFailure},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			fmt.Fprint(w, `{"error":{"message":"nope"}}`)
		}))
		c := NewClient(oracleConfig(srv.URL), srv.Client())
		_, err := c.ExtractRecords(context.Background(),
			fmt.Sprintf("%s status %d", listingText, tc.status), "geekhunter", 10)
		srv.Close()

		var perr *models.PipelineError
		if !errors.As(err, &perr) || perr.Code != tc.wantCode {
			t.Errorf("status %d: error = %v, want code %s", tc.status, err, tc.wantCode)
		}
	}
}

func TestCompress_StripsAndCaps(t *testing.T) {
	markup := `<html><body><nav>menu menu</nav><script>var x=1;</script>` +
		`<main><p>` + strings.Repeat("conteúdo real ", 30) + `</p></main></body></html>`

	out := Compress(markup, "https://site.test/page", 50)
	if len([]rune(out)) > 50 {
		t.Errorf("compressed length = %d runes, want <= 50", len([]rune(out)))
	}
	if strings.Contains(out, "var x=1") {
		t.Error("script content must be stripped")
	}
}

func TestCompress_LineDensitySurvivesForTierSelection(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "<tr><td>Curso de Engenharia %d</td><td>Instituto %d</td></tr>\n", i, i)
	}
	b.WriteString("</table></body></html>")

	out := Compress(b.String(), "", 8000)
	if n := strings.Count(out, "\n"); n <= 100 {
		t.Fatalf("newlines after compression = %d, want > 100 (line structure must survive)", n)
	}
	if !isComplex(out) {
		t.Error("line-dense compressed content must select the complex tier")
	}
}

func TestIsComplex(t *testing.T) {
	if isComplex("short and plain text") {
		t.Error("plain short text should be simple")
	}
	if !isComplex(strings.Repeat("a", 5001)) {
		t.Error("long content should be complex")
	}
	if !isComplex(strings.Repeat("line\n", 101)) {
		t.Error("line-dense content should be complex")
	}

	// Two tabular signals: many four-digit codes plus domain keywords.
	coded := "instituição " + strings.Repeat("1234 5678 ", 6)
	if !isComplex(coded) {
		t.Error("coded institutional content should be complex")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty = %d, want 0", got)
	}
	if got := EstimateTokens("ab"); got != 1 {
		t.Errorf("tiny = %d, want 1", got)
	}
	if got := EstimateTokens(strings.Repeat("x", 300)); got != 100 {
		t.Errorf("300 chars = %d, want 100", got)
	}
}
