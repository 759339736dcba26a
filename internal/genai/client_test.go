package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateContent(t *testing.T) {
	var gotPath string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("unexpected request contents: %+v", req.Contents)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("expected JSON response mime type, got %+v", req.GenerationConfig)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": `{"ok":true}`}}}},
			},
		})
	}))
	defer srv.Close()

	c := NewWithBaseURL("test-key", srv.URL)
	got, err := c.GenerateContent(context.Background(), "gemini-2.0-flash", "hello", true)
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("text = %q", got)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
}

func TestGenerateContent_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewWithBaseURL("k", srv.URL)
	_, err := c.GenerateContent(context.Background(), "m", "p", false)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestGenerateContent_ResourceExhaustedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("k", srv.URL)
	_, err := c.GenerateContent(context.Background(), "m", "p", false)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
}

func TestEmbedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-embedding-004:embedContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float32{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	c := NewWithBaseURL("k", srv.URL)
	vec, err := c.EmbedContent(context.Background(), "text-embedding-004", "some text")
	if err != nil {
		t.Fatalf("EmbedContent: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("vec = %v", vec)
	}
}

func TestEmbedContent_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":{"values":[]}}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL("k", srv.URL)
	if _, err := c.EmbedContent(context.Background(), "m", "t"); err == nil {
		t.Error("expected error on empty embedding values")
	}
}

func TestUnconfigured(t *testing.T) {
	c := New("")
	if c.Configured() {
		t.Error("Configured() = true for empty key")
	}
	if _, err := c.GenerateContent(context.Background(), "m", "p", false); !errors.Is(err, ErrUnconfigured) {
		t.Errorf("GenerateContent err = %v, want ErrUnconfigured", err)
	}
	if _, err := c.EmbedContent(context.Background(), "m", "t"); !errors.Is(err, ErrUnconfigured) {
		t.Errorf("EmbedContent err = %v, want ErrUnconfigured", err)
	}
}
