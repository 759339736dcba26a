// Package genai is a minimal HTTP client for the Google Generative Language
// API: text generation for the extraction/tutor stages and text embeddings
// for the similarity engine. Only the two endpoints the engine needs are
// implemented.
package genai

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
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 60 * time.Second
)

// ErrRateLimited is returned when the API answers HTTP 429. Callers decide
// whether to retry; this client never retries on its own.
var ErrRateLimited = errors.New("rate limited")

// ErrUnconfigured is returned when no API key is set. Callers are expected
// to degrade (mock extraction, nil embeddings) rather than fail.
var ErrUnconfigured = errors.New("api key not configured")

// Client communicates with the Generative Language API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client with the given API key. An empty key yields a client
// whose calls return ErrUnconfigured.
func New(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewWithBaseURL(apiKey, baseURL string) *Client {
	c := New(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// GenerateContent sends a single-turn prompt to the given model and returns
// the first candidate's text. When jsonOutput is true the model is asked
// for an application/json response.
func (c *Client) GenerateContent(ctx context.Context, model, prompt string, jsonOutput bool) (string, error) {
	if !c.Configured() {
		return "", ErrUnconfigured
	}

	gr := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	if jsonOutput {
		gr.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}

	var result generateResponse
	if err := c.post(ctx, "/models/"+model+":generateContent", gr, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate: empty candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

type embedRequest struct {
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// EmbedContent returns the embedding vector for the given text.
func (c *Client) EmbedContent(ctx context.Context, model, text string) ([]float32, error) {
	if !c.Configured() {
		return nil, ErrUnconfigured
	}

	er := embedRequest{Content: content{Parts: []part{{Text: text}}}}

	var result embedResponse
	if err := c.post(ctx, "/models/"+model+":embedContent", er, &result); err != nil {
		return nil, err
	}

	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed: empty embedding values")
	}
	return result.Embedding.Values, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", path, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// Quota errors sometimes arrive as 400/403 with this status string.
		if strings.Contains(string(respBody), "RESOURCE_EXHAUSTED") {
			return fmt.Errorf("%s: %w", path, ErrRateLimited)
		}
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
