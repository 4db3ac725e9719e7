// Package runner is an HTTP client for the model-runner process that hosts
// the actual model and tokenizer. The API shape follows llama.cpp-style
// runner servers: /load, /completion, /tokenize, /detokenize.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type Option func(*Client)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	observer   ObserverFunc
}

// Error is returned for any non-200 runner response.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("runner request failed with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("runner request failed with status %d", e.StatusCode)
}

type CompletionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Sample      bool    `json:"sample"`
}

type CompletionResponse struct {
	Content          string
	CompletionTokens int
}

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func New(baseURL, apiKey string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Load asks the runner to load the model and block until it is resident.
func (c *Client) Load(ctx context.Context, model string) error {
	payload := struct {
		Model string `json:"model"`
	}{Model: model}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := c.postJSON(ctx, "load", "/load", payload, &parsed); err != nil {
		return err
	}
	if parsed.Status != "" && parsed.Status != "ok" && parsed.Status != "loaded" {
		return fmt.Errorf("unexpected load status %q", parsed.Status)
	}
	return nil
}

func (c *Client) Completion(ctx context.Context, reqPayload CompletionRequest) (CompletionResponse, error) {
	var parsed struct {
		Content string `json:"content"`
		Usage   *struct {
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage,omitempty"`
	}
	if err := c.postJSON(ctx, "completion", "/completion", reqPayload, &parsed); err != nil {
		return CompletionResponse{}, err
	}

	resp := CompletionResponse{Content: parsed.Content}
	if parsed.Usage != nil {
		resp.CompletionTokens = parsed.Usage.CompletionTokens
	}
	return resp, nil
}

// Tokenize converts text to token ids without inserting special tokens.
func (c *Client) Tokenize(ctx context.Context, model, text string) ([]int, error) {
	payload := struct {
		Model         string `json:"model"`
		Content       string `json:"content"`
		SpecialTokens bool   `json:"special_tokens"`
	}{Model: model, Content: text}

	var parsed struct {
		Tokens []int `json:"tokens"`
	}
	if err := c.postJSON(ctx, "tokenize", "/tokenize", payload, &parsed); err != nil {
		return nil, err
	}
	if parsed.Tokens == nil {
		return nil, fmt.Errorf("invalid tokenize response: missing tokens")
	}
	return parsed.Tokens, nil
}

// Detokenize converts token ids back to text with special tokens stripped.
func (c *Client) Detokenize(ctx context.Context, model string, tokens []int) (string, error) {
	payload := struct {
		Model             string `json:"model"`
		Tokens            []int  `json:"tokens"`
		SkipSpecialTokens bool   `json:"skip_special_tokens"`
	}{Model: model, Tokens: tokens, SkipSpecialTokens: true}

	var parsed struct {
		Content string `json:"content"`
	}
	if err := c.postJSON(ctx, "detokenize", "/detokenize", payload, &parsed); err != nil {
		return "", err
	}
	return parsed.Content, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, payload, out any) error {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe(endpoint, statusCode, time.Since(started)) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{StatusCode: resp.StatusCode, Body: truncateBody(string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("invalid %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}

func truncateBody(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4096 {
		return s
	}
	return s[:4096] + "..."
}
