package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompleteSuccess(t *testing.T) {
	var seen openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected authorization header: %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithOpenAIEndpoint(server.URL))
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Model:              "gpt-4o-mini",
		SystemPrompt:       "be brief",
		Messages:           []Message{{Role: RoleUser, Content: "hello"}},
		GenerationSettings: MainSettings,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Content != "hi" || resp.StopReason != "stop" || resp.Usage.OutputTokens != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "system" || seen.Messages[1].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", seen.Messages)
	}
	if seen.TopP == nil || *seen.TopP != 0.95 || seen.MaxTokens != 1024 {
		t.Fatalf("unexpected sampling: %+v", seen)
	}
}

func TestOpenAICompleteRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"requests","code":"rate_limit_exceeded","message":"Rate limit reached"}}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", WithOpenAIEndpoint(server.URL))
	_, err := provider.Complete(context.Background(), CompletionRequest{
		Model:              "gpt-4o-mini",
		Messages:           []Message{{Role: RoleUser, Content: "hello"}},
		GenerationSettings: FastSettings,
	})
	if err == nil || !IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}
