package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedProvider struct {
	mu    sync.Mutex
	calls []string
	// outcomes maps model name to the error it returns; missing means success.
	outcomes map[string]error
}

func (p *scriptedProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req.Model)
	if err := p.outcomes[req.Model]; err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{Content: "from " + req.Model}, nil
}

func (p *scriptedProvider) setOutcome(model string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes[model] = err
}

func (p *scriptedProvider) takeCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.calls
	p.calls = nil
	return out
}

type countingObserver struct {
	attempts  map[string]int
	exhausted int
}

func (o *countingObserver) CascadeAttempt(_, _, result string) { o.attempts[result]++ }
func (o *countingObserver) CascadeExhausted(string) { o.exhausted++ }

var rateLimited = &APIError{Provider: "gemini", StatusCode: 429, Message: "quota"}

func newTestCascade(t *testing.T, provider Provider, state TierState, opts ...CascadeOption) *Cascade {
	t.Helper()
	registry := NewRegistry()
	registry.Register(ProviderGemini, provider)
	main := []Backend{{Provider: "gemini", Model: "m0"}, {Provider: "gemini", Model: "m1"}, {Provider: "gemini", Model: "m2"}}
	fast := []Backend{{Provider: "gemini", Model: "f0"}, {Provider: "openai", Model: "unregistered"}}
	opts = append([]CascadeOption{WithTierState(state), WithBackoff(0)}, opts...)
	return NewCascade(registry, DefaultTiers(main, fast), opts...)
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestCascadeRotatesPastRateLimitAndRemembers(t *testing.T) {
	provider := &scriptedProvider{outcomes: map[string]error{"m0": rateLimited}}
	state := NewMemoryTierState(nil)
	observer := &countingObserver{attempts: map[string]int{}}
	cascade := newTestCascade(t, provider, state, WithCascadeObserver(observer))
	ctx := context.Background()

	out, err := cascade.Generate(ctx, TierMain, "hi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "from m1" {
		t.Fatalf("unexpected output %q", out)
	}
	assertCalls(t, provider.takeCalls(), "m0", "m1")
	if idx, _ := state.Index(ctx, TierMain); idx != 1 {
		t.Fatalf("expected stored index 1, got %d", idx)
	}

	// next call starts at the remembered backend
	provider.setOutcome("m0", nil)
	if _, err := cascade.Generate(ctx, TierMain, "again"); err != nil {
		t.Fatalf("generate again: %v", err)
	}
	assertCalls(t, provider.takeCalls(), "m1")
	if observer.attempts["rate_limited"] != 1 || observer.attempts["success"] != 2 {
		t.Fatalf("unexpected observer counts: %+v", observer.attempts)
	}
}

func TestCascadeNonRateLimitErrorReturnsImmediately(t *testing.T) {
	provider := &scriptedProvider{outcomes: map[string]error{"m0": errors.New("invalid argument")}}
	cascade := newTestCascade(t, provider, NewMemoryTierState(nil))

	_, err := cascade.Generate(context.Background(), TierMain, "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatalf("did not expect exhaustion, got %v", err)
	}
	assertCalls(t, provider.takeCalls(), "m0")
}

func TestCascadeExhaustion(t *testing.T) {
	provider := &scriptedProvider{outcomes: map[string]error{"m0": rateLimited, "m1": rateLimited, "m2": rateLimited}}
	state := NewMemoryTierState(nil)
	observer := &countingObserver{attempts: map[string]int{}}
	cascade := newTestCascade(t, provider, state, WithCascadeObserver(observer))

	_, err := cascade.Generate(context.Background(), TierMain, "hi")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 || exhausted.Tier != TierMain || !IsRateLimit(exhausted.Last) {
		t.Fatalf("unexpected exhaustion: %+v", exhausted)
	}
	assertCalls(t, provider.takeCalls(), "m0", "m1", "m2")
	if observer.exhausted != 1 {
		t.Fatalf("expected one exhaustion, got %d", observer.exhausted)
	}
	// every rotation moved the index forward, wrapping back to the start
	if idx, _ := state.Index(context.Background(), TierMain); idx != 0 {
		t.Fatalf("expected wrapped index 0, got %d", idx)
	}
}

func TestCascadeResetsIndexAfterInterval(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	state := NewMemoryTierState(clock)
	provider := &scriptedProvider{outcomes: map[string]error{"m0": rateLimited}}
	cascade := newTestCascade(t, provider, state, WithResetInterval(time.Minute))
	ctx := context.Background()

	if _, err := cascade.Generate(ctx, TierMain, "hi"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	provider.takeCalls()
	provider.setOutcome("m0", nil)

	now = now.Add(30 * time.Second)
	if _, err := cascade.Generate(ctx, TierMain, "hi"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	assertCalls(t, provider.takeCalls(), "m1")

	now = now.Add(31 * time.Second)
	if _, err := cascade.Generate(ctx, TierMain, "hi"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	assertCalls(t, provider.takeCalls(), "m0")
}

func TestCascadeResetRewindsEveryTier(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	state := NewMemoryTierState(func() time.Time { return now })
	provider := &scriptedProvider{outcomes: map[string]error{}}
	registry := NewRegistry()
	registry.Register(ProviderGemini, provider)
	main := []Backend{{Provider: "gemini", Model: "m0"}, {Provider: "gemini", Model: "m1"}}
	fast := []Backend{{Provider: "gemini", Model: "f0"}, {Provider: "gemini", Model: "f1"}}
	cascade := NewCascade(registry, DefaultTiers(main, fast),
		WithTierState(state), WithBackoff(0), WithResetInterval(time.Minute))
	ctx := context.Background()

	if _, err := cascade.Generate(ctx, TierMain, "hi"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	now = now.Add(30 * time.Second)
	provider.setOutcome("f0", rateLimited)
	if _, err := cascade.Generate(ctx, TierFast, "hi"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	provider.setOutcome("f0", nil)
	provider.takeCalls()

	// the main tier call crosses the interval and resets the fast tier too
	now = now.Add(31 * time.Second)
	if _, err := cascade.Generate(ctx, TierMain, "hi"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	now = now.Add(9 * time.Second)
	if _, err := cascade.Generate(ctx, TierFast, "hi"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	assertCalls(t, provider.takeCalls(), "m0", "f0")
}

func TestCascadeSkipsUnregisteredProviders(t *testing.T) {
	provider := &scriptedProvider{outcomes: map[string]error{"f0": rateLimited}}
	cascade := newTestCascade(t, provider, NewMemoryTierState(nil))

	_, err := cascade.Generate(context.Background(), TierFast, "hi")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 1 {
		t.Fatalf("expected single-backend exhaustion, got %v", err)
	}
	if _, err := cascade.Generate(context.Background(), "unknown", "hi"); !errors.Is(err, ErrNoBackends) {
		t.Fatalf("expected ErrNoBackends, got %v", err)
	}
}

func TestCascadeBackoffHonoursContext(t *testing.T) {
	provider := &scriptedProvider{outcomes: map[string]error{"m0": rateLimited, "m1": rateLimited}}
	cascade := newTestCascade(t, provider, NewMemoryTierState(nil), WithBackoff(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := cascade.Generate(ctx, TierMain, "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	assertCalls(t, provider.takeCalls(), "m0")
}
