package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Gemini generateContent endpoint root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Client wraps the Gemini generateContent API. The API key travels as a query
// parameter rather than a header so browser-side callers avoid a CORS
// preflight; the server keeps the same contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Gemini client. baseURL is overridable for tests; an
// empty value selects the production endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

// generateRequest is the request body for :generateContent.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

// generateResponse is the subset of the :generateContent response we read.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends a single-turn user prompt at temperature zero and returns the
// raw response text. Transient failures (HTTP 429/5xx or network errors) are
// retried once with jittered backoff, then reported to the caller.
func (c *Client) Generate(ctx context.Context, version, model, apiKey, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: 0},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		c.baseURL, version, url.PathEscape(model), url.QueryEscape(apiKey))

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			// Jittered backoff before the single retry.
			backoff := time.Duration(200+rand.Intn(600)) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, retryable, err := c.doGenerate(ctx, endpoint, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return "", fmt.Errorf("after retries: %w", lastErr)
}

func (c *Client) doGenerate(ctx context.Context, endpoint string, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", true, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 180))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", false, fmt.Errorf("decoding response: %w", err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", false, fmt.Errorf("empty response")
	}
	return genResp.Candidates[0].Content.Parts[0].Text, false, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
