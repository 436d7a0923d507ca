// Package oracle implements the structured-extraction fallback: an
// OpenAI-compatible chat client that turns compressed page text into
// records when selector-driven extraction under-delivers. It uses
// net/http directly, no provider SDK needed.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"log/slog"

	"github.com/scoutwork/harvest/config"
	"github.com/scoutwork/harvest/models"
)

// Client talks to an OpenAI-compatible chat-completions endpoint and
// caches results by content hash. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	cfg        config.OracleConfig
	cache      *resultCache
}

// NewClient creates the oracle client. Pass nil to use a default
// http.Client bound to the configured timeout.
func NewClient(cfg config.OracleConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		cache:      newResultCache(),
	}
}

// Available reports whether the oracle can serve requests at all.
func (c *Client) Available() bool {
	return c.cfg.Enabled && c.cfg.APIKey != ""
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// chatErrorResponse captures an API error from the provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// oracleRecord is the shape the model is asked to produce per record.
type oracleRecord struct {
	Title     string   `json:"title"`
	Org       string   `json:"org"`
	Location  string   `json:"location"`
	PriceText string   `json:"price_text"`
	Tags      []string `json:"tags"`
	URL       string   `json:"url"`
}

type oracleEnvelope struct {
	Records []oracleRecord `json:"records"`
}

// ExtractRecords compresses the markup, picks a model tier, and asks the
// model for structured records. Results are cached by content hash so a
// re-scrape of an unchanged page costs nothing.
func (c *Client) ExtractRecords(ctx context.Context, markup, sourceID string, limit int) ([]models.Record, error) {
	if !c.Available() {
		return nil, models.NewPipelineError(models.ErrCodeOracleUnavailable,
			"oracle disabled or no API key configured", nil)
	}

	content := Compress(markup, "", c.cfg.MaxContentChars)
	if content == "" {
		return nil, models.NewPipelineError(models.ErrCodeOracleFailure,
			"no content left after compression", nil)
	}

	model := c.cfg.SimpleModel
	if isComplex(content) {
		model = c.cfg.ComplexModel
	}

	key := cacheKey("records", sourceID, content)
	if cached, ok := c.cache.get(key); ok {
		slog.Debug("oracle cache hit", "source", sourceID, "records", len(cached))
		return clampRecords(cached, limit), nil
	}

	slog.Info("oracle call",
		"source", sourceID, "model", model, "estTokens", EstimateTokens(content))

	raw, err := c.chat(ctx, model, buildSystemPrompt(limit), content)
	if err != nil {
		return nil, err
	}

	records, err := parseRecords(raw, sourceID)
	if err != nil {
		return nil, err
	}

	c.cache.set(key, records)
	return clampRecords(records, limit), nil
}

// chat performs one chat-completions round trip and returns the raw
// message content.
func (c *Client) chat(ctx context.Context, model, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewPipelineError(models.ErrCodeOracleFailure, "oracle request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewPipelineError(models.ErrCodeOracleFailure, "failed to read oracle response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyOracleError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewPipelineError(models.ErrCodeOracleFailure, "failed to parse oracle response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", models.NewPipelineError(models.ErrCodeOracleFailure, "oracle returned no choices", nil)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// parseRecords decodes the model output, tolerating markdown fences, and
// maps it to records. Entries with unusable titles are dropped rather
// than failing the whole batch.
func parseRecords(raw, sourceID string) ([]models.Record, error) {
	cleaned := stripFences(raw)

	var env oracleEnvelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		// Some models return a bare array despite instructions.
		var list []oracleRecord
		if err2 := json.Unmarshal([]byte(cleaned), &list); err2 != nil {
			return nil, models.NewPipelineError(models.ErrCodeOracleFailure,
				"oracle returned invalid JSON", err)
		}
		env.Records = list
	}

	records := make([]models.Record, 0, len(env.Records))
	for _, or := range env.Records {
		title := strings.TrimSpace(or.Title)
		if utf8.RuneCountInString(title) < 5 {
			continue
		}
		idKey := or.URL
		if idKey == "" {
			idKey = title
		}
		records = append(records, models.Record{
			ID:        models.RecordID(sourceID, idKey),
			SourceID:  sourceID,
			Title:     title,
			Org:       strings.TrimSpace(or.Org),
			Location:  strings.TrimSpace(or.Location),
			PriceText: strings.TrimSpace(or.PriceText),
			Tags:      or.Tags,
			URL:       strings.TrimSpace(or.URL),
		})
	}
	return records, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clampRecords(records []models.Record, limit int) []models.Record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func buildSystemPrompt(limit int) string {
	return fmt.Sprintf(`You extract structured listings from web page text. Return a JSON object with a "records" array of at most %d entries. Each entry has the fields: title, org, location, price_text, tags (array of strings), url.

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- Use "" for a string field that is not present in the content, and [] for tags.
- Never invent listings that are not in the content.`, limit)
}

// classifyOracleError maps HTTP status codes to pipeline error codes.
func classifyOracleError(statusCode int, body []byte) *models.PipelineError {
	var errResp chatErrorResponse
	msg := "oracle API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewPipelineError(models.ErrCodeOracleUnavailable, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewPipelineError(models.ErrCodeOracleRateLimited, msg, nil)
	default:
		return models.NewPipelineError(models.ErrCodeOracleFailure,
			fmt.Sprintf("oracle API returned %d: %s", statusCode, msg), nil)
	}
}
