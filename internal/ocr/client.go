// Package ocr extracts text from scanned documents via the Vision REST API.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docflow/internal/config"
)

// ErrMissingAPIKey indicates the OCR client is not configured.
var ErrMissingAPIKey = errors.New("ocr api key not configured")

// ErrUnsupportedFormat indicates the file extension is not OCR-able.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Client performs document text detection on PDF files.
type Client struct {
	apiKey     string
	baseURL    string
	maxPages   int
	httpClient *http.Client
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

// NewClient constructs an OCR client from configuration.
func NewClient(cfg config.OCR, opts ...Option) *Client {
	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		maxPages:   cfg.MaxPages,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type annotateRequest struct {
	Requests []fileRequest `json:"requests"`
}

type fileRequest struct {
	InputConfig inputConfig `json:"inputConfig"`
	Features    []feature   `json:"features"`
	Pages       []int       `json:"pages,omitempty"`
}

type inputConfig struct {
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
}

type feature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []struct {
		Responses []struct {
			FullTextAnnotation struct {
				Text string `json:"text"`
			} `json:"fullTextAnnotation"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"responses"`
	} `json:"responses"`
}

// ExtractText runs document text detection on the file at path and returns
// the concatenated page text. Only PDF documents are supported.
func (c *Client) ExtractText(ctx context.Context, path string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}

	// Page count is capped to bound per-document API cost.
	pages := make([]int, 0, c.maxPages)
	for i := 1; i <= c.maxPages; i++ {
		pages = append(pages, i)
	}

	payload := annotateRequest{
		Requests: []fileRequest{{
			InputConfig: inputConfig{
				Content:  base64.StdEncoding.EncodeToString(data),
				MimeType: "application/pdf",
			},
			Features: []feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
			Pages:    pages,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed annotateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var builder strings.Builder
	for _, fileResp := range parsed.Responses {
		for _, pageResp := range fileResp.Responses {
			if pageResp.Error != nil && pageResp.Error.Message != "" {
				return "", fmt.Errorf("ocr page error: %s", pageResp.Error.Message)
			}
			if pageResp.FullTextAnnotation.Text != "" {
				builder.WriteString(pageResp.FullTextAnnotation.Text)
				builder.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(builder.String()), nil
}
