package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiCompleteSuccess(t *testing.T) {
	var seen geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Fatalf("unexpected api key header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"intent\":"},{"text":"\"GREETING\"}"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":5},"modelVersion":"gemini-2.5-flash-001"}`))
	}))
	defer server.Close()

	provider := NewGeminiProvider("test-key", WithGeminiEndpoint(server.URL+"/v1beta/"))
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Model:              "gemini-2.5-flash",
		Messages:           []Message{{Role: RoleUser, Content: "hello"}},
		GenerationSettings: FastSettings,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != `{"intent":"GREETING"}` {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Model != "gemini-2.5-flash-001" || resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 5 {
		t.Fatalf("unexpected response metadata: %+v", resp)
	}
	if len(seen.Contents) != 1 || seen.Contents[0].Role != "user" || seen.Contents[0].Parts[0].Text != "hello" {
		t.Fatalf("unexpected contents: %+v", seen.Contents)
	}
	cfg := seen.GenerationConfig
	if cfg.Temperature != 0.3 || cfg.MaxOutputTokens != 256 || cfg.TopP == nil || *cfg.TopP != 0.9 || cfg.TopK == nil || *cfg.TopK != 20 {
		t.Fatalf("unexpected generation config: %+v", cfg)
	}
}

func TestGeminiCompleteRateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"limit reached","status":"FAILED_PRECONDITION","details":[{"@type":"type.googleapis.com/google.rpc.ErrorInfo","reason":"RATE_LIMIT_EXCEEDED"}]}}`))
	}))
	defer server.Close()

	provider := NewGeminiProvider("test-key", WithGeminiEndpoint(server.URL))
	_, err := provider.Complete(context.Background(), CompletionRequest{
		Model:              "gemini-2.0-flash",
		Messages:           []Message{{Role: RoleUser, Content: "hello"}},
		GenerationSettings: MainSettings,
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != "FAILED_PRECONDITION" || apiErr.Message != "limit reached" || len(apiErr.Details) != 1 {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !IsRateLimit(err) {
		t.Fatalf("expected rate limit classification")
	}
}

func TestGeminiCompleteValidation(t *testing.T) {
	if _, err := NewGeminiProvider("").Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	provider := NewGeminiProvider("k")
	if _, err := provider.Complete(context.Background(), CompletionRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "x"}}}); !errors.Is(err, errMaxTokens) {
		t.Fatalf("expected max tokens error, got %v", err)
	}
}
