package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/tally/src/domain/analysis"
)

const maxResponseBytes = 64 << 10

// HTTPGenerator implements analysis.Generator against a JSON endpoint that
// accepts the request payload and answers {"analysis": "..."}.
type HTTPGenerator struct {
	APIKey     string
	URL        string
	HTTPClient *http.Client
}

// NewHTTPGenerator creates a generator with the given request timeout.
func NewHTTPGenerator(apiKey, url string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGenerator{
		APIKey: apiKey,
		URL:    url,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithHTTPClient sets a custom HTTP client.
func (g *HTTPGenerator) WithHTTPClient(client *http.Client) *HTTPGenerator {
	g.HTTPClient = client
	return g
}

type generateResponse struct {
	Analysis string `json:"analysis"`
}

// Generate posts the request and returns the commentary text.
func (g *HTTPGenerator) Generate(ctx context.Context, req analysis.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)
	}

	resp, err := g.HTTPClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: status %d", analysis.ErrGenerationFailed, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", analysis.ErrGenerationFailed, err)
	}
	text := strings.TrimSpace(out.Analysis)
	if text == "" {
		return "", analysis.ErrEmptyAnalysis
	}
	return text, nil
}
