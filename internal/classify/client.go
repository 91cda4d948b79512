// Package classify extracts a company name and content summary from OCR text
// using a generative language model.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docflow/internal/config"
	"docflow/internal/textutil"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// ErrMissingAPIKey indicates the classifier is not configured.
var ErrMissingAPIKey = errors.New("classifier api key not configured")

// Analysis is the structured result the model returns for a document.
type Analysis struct {
	CompanyName    string `json:"companyName"`
	ContentSummary string `json:"contentSummary"`
	// Confidence is advisory only; it is recorded for observability and
	// never gates acceptance.
	Confidence int `json:"confidence"`
}

// Client wraps the generative language REST API.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	maxPromptChars int
	httpClient     *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetry overrides retry attempts and backoff delays.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a classifier client from configuration.
func NewClient(cfg config.Classifier, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		apiKey:           strings.TrimSpace(cfg.APIKey),
		baseURL:          strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:            strings.TrimSpace(cfg.Model),
		maxPromptChars:   cfg.MaxPromptChars,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		sleeper:          time.Sleep,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

const promptTemplate = `You are a document analyst. Analyze the OCR text below and return JSON with:
1. companyName: the sender/issuer company found in the document. Fall back to the recipient company. Strip legal suffixes (Inc., Ltd., Co., GmbH) and keep the bare company name.
2. contentSummary: a concise 2-5 word document type summary (e.g. invoice, quotation, purchase order, tax statement, contract).
3. confidence: 0-100 confidence in the analysis.

Do not include dates or document numbers. Provide your best guess even when the text is unclear.

Respond with only this JSON shape:
{"companyName": "...", "contentSummary": "...", "confidence": 85}

---
OCR text:
%s
---`

// Analyze sends OCR text to the model and parses its structured verdict.
func (c *Client) Analyze(ctx context.Context, text string) (Analysis, error) {
	if c.apiKey == "" {
		return Analysis{}, ErrMissingAPIKey
	}

	prompt := fmt.Sprintf(promptTemplate, textutil.Truncate(text, c.maxPromptChars))
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Analysis{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	var raw string
	delay := c.retryBaseDelay
	for attempt := 1; ; attempt++ {
		raw, err = c.send(ctx, endpoint, body)
		if err == nil {
			break
		}
		var statusErr *httpStatusError
		retryable := errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500)
		if !retryable || attempt >= c.retryMaxAttempts {
			return Analysis{}, err
		}
		select {
		case <-ctx.Done():
			return Analysis{}, ctx.Err()
		default:
		}
		c.sleeper(delay)
		if next := delay * 2; next <= c.retryMaxDelay {
			delay = next
		}
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		return Analysis{}, err
	}
	if strings.TrimSpace(analysis.CompanyName) == "" {
		analysis.CompanyName = "Unknown"
	}
	if strings.TrimSpace(analysis.ContentSummary) == "" {
		analysis.ContentSummary = "Document"
	}
	return analysis, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("classifier request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) send(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("classifier returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// parseAnalysis extracts the first JSON object from the completion text.
// Models wrap JSON in prose or code fences often enough that a bare
// json.Unmarshal on the whole text is not reliable.
func parseAnalysis(text string) (Analysis, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Analysis{}, fmt.Errorf("no JSON object in classifier response: %q", textutil.Truncate(text, 200))
	}
	var analysis Analysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("parse classifier response: %w", err)
	}
	return analysis, nil
}
