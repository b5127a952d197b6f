package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/metrics"
)

const defaultHTTPBackendTimeout = 30 * time.Second

// HTTPBackend calls a generic JSON translation endpoint authenticated with a
// pre-shared API key header.
type HTTPBackend struct {
	url        string
	apiKey     string
	keyHeader  string
	httpClient *http.Client
}

// httpTranslateRequest is the request body sent to the translation endpoint
type httpTranslateRequest struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	Text           string `json:"text"`
	Mode           string `json:"mode"`
	Delimiter      string `json:"delimiter,omitempty"`
	Instructions   string `json:"instructions,omitempty"`
}

// httpTranslateResponse accepts the field names common translation APIs use
type httpTranslateResponse struct {
	TranslatedText string `json:"translated_text"`
	Translation    string `json:"translation"`
	Text           string `json:"text"`
	Error          *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewHTTPBackend creates a backend posting to url. keyHeader defaults to X-API-Key.
func NewHTTPBackend(url, apiKey, keyHeader string, timeout time.Duration) *HTTPBackend {
	if keyHeader == "" {
		keyHeader = "X-API-Key"
	}
	if timeout <= 0 {
		timeout = defaultHTTPBackendTimeout
	}
	return &HTTPBackend{
		url:        url,
		apiKey:     apiKey,
		keyHeader:  keyHeader,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) Name() string { return "http" }

// Translate sends one request and returns the translated text.
func (b *HTTPBackend) Translate(ctx context.Context, req BackendRequest) (string, error) {
	body := httpTranslateRequest{
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Text:           req.Text,
		Mode:           "single",
	}
	if req.Batch {
		body.Mode = "batch"
		body.Delimiter = req.Delimiter
		body.Instructions = batchInstructions(req.Delimiter)
	}

	reqJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(reqJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set(b.keyHeader, b.apiKey)
	}

	startTime := time.Now()
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	metrics.TranslationAPILatency.Observe(time.Since(startTime).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrBackendUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		debugLog("HTTP backend error: status=%d body=%s", resp.StatusCode, truncateText(string(respBody), 200))
		return "", fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}

	return parseHTTPTranslation(resp.Header.Get("Content-Type"), respBody)
}

// parseHTTPTranslation accepts a JSON object or a plain text body.
func parseHTTPTranslation(contentType string, body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	looksJSON := strings.Contains(contentType, "json") || trimmed[0] == '{'
	if !looksJSON {
		return string(trimmed), nil
	}

	var parsed httpTranslateResponse
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.Error != nil {
		if parsed.Error.Code == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %s", ErrRateLimited, parsed.Error.Message)
		}
		return "", fmt.Errorf("%w: API error %d: %s", ErrBackendUnavailable, parsed.Error.Code, parsed.Error.Message)
	}

	for _, candidate := range []string{parsed.TranslatedText, parsed.Translation, parsed.Text} {
		if strings.TrimSpace(candidate) != "" {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no translation field", ErrMalformedResponse)
}
