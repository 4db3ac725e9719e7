package runner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenizeSendsModelAndContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokenize" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		var payload struct {
			Model   string `json:"model"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Model != "gpt2" || payload.Content != "Hello" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"tokens":[15496]}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-key", ts.Client())
	tokens, err := c.Tokenize(context.Background(), "gpt2", "Hello")
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if len(tokens) != 1 || tokens[0] != 15496 {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestTokenizeRejectsMissingTokens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "", ts.Client())
	if _, err := c.Tokenize(context.Background(), "gpt2", "Hello"); err == nil {
		t.Fatal("expected error for response without tokens")
	}
}

func TestCompletionParsesContentAndUsage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if !payload.Sample || payload.MaxTokens != 30 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"content":" continued","usage":{"completion_tokens":12}}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "", ts.Client())
	resp, err := c.Completion(context.Background(), CompletionRequest{
		Model:     "gpt2",
		Prompt:    "hi",
		MaxTokens: 30,
		Sample:    true,
	})
	if err != nil {
		t.Fatalf("Completion() error = %v", err)
	}
	if resp.Content != " continued" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if resp.CompletionTokens != 12 {
		t.Fatalf("unexpected token count: %d", resp.CompletionTokens)
	}
}

func TestDetokenizeSkipsSpecialTokens(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detokenize" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload struct {
			Tokens            []int `json:"tokens"`
			SkipSpecialTokens bool  `json:"skip_special_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if !payload.SkipSpecialTokens {
			t.Fatal("expected skip_special_tokens to be set")
		}
		_, _ = io.WriteString(w, `{"content":"Hello"}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "", ts.Client())
	text, err := c.Detokenize(context.Background(), "gpt2", []int{15496})
	if err != nil {
		t.Fatalf("Detokenize() error = %v", err)
	}
	if text != "Hello" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestLoadReturnsTypedErrorOnFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model weights not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(ts.URL, "", ts.Client())
	err := c.Load(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	runErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if runErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status code: %d", runErr.StatusCode)
	}
	if runErr.Body != "model weights not found" {
		t.Fatalf("unexpected body: %q", runErr.Body)
	}
}

func TestObserverSeesEndpointAndStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer ts.Close()

	var endpoint string
	var status int
	c := New(ts.URL, "", ts.Client(), WithObserver(func(e string, s int, _ time.Duration) {
		endpoint = e
		status = s
	}))

	if err := c.Load(context.Background(), "gpt2"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if endpoint != "load" || status != http.StatusOK {
		t.Fatalf("unexpected observation: endpoint=%q status=%d", endpoint, status)
	}
}
