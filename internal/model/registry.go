package model

import (
	"fmt"
	"strings"
	"sync"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type ProviderFactory func(apiKey string) Provider

type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		factories: make(map[string]ProviderFactory),
	}
}

// NewDefaultRegistry returns a registry with factories for the built-in
// providers and an instance for every provider that has an API key.
func NewDefaultRegistry(apiKeys map[string]string) *Registry {
	registry := NewRegistry()
	registry.RegisterFactory(ProviderGemini, func(apiKey string) Provider { return NewGeminiProvider(apiKey) })
	registry.RegisterFactory(ProviderOpenAI, func(apiKey string) Provider { return NewOpenAIProvider(apiKey) })
	registry.RegisterFactory(ProviderAnthropic, func(apiKey string) Provider { return NewAnthropicProvider(apiKey) })
	for name, key := range apiKeys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if provider, ok := registry.New(name, key); ok {
			registry.Register(name, provider)
		}
	}
	return registry
}

func (r *Registry) Register(name string, provider Provider) {
	if r == nil || provider == nil {
		return
	}
	key := normalizeProviderName(name)
	if key == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[key] = provider
}

func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	key := normalizeProviderName(name)
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[key]
	return provider, ok
}

func (r *Registry) RegisterFactory(name string, factory ProviderFactory) {
	if r == nil || factory == nil {
		return
	}
	key := normalizeProviderName(name)
	if key == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = factory
}

func (r *Registry) New(name, apiKey string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	key := normalizeProviderName(name)
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	factory, ok := r.factories[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	provider := factory(apiKey)
	if provider == nil {
		return nil, false
	}
	return provider, true
}

// Backend is one provider/model pair in a tier's fallback list.
type Backend struct {
	Provider string
	Model    string
}

func (b Backend) String() string {
	return b.Provider + ":" + b.Model
}

// ParseBackend parses "provider:model". A bare model name uses gemini.
func ParseBackend(raw string) (Backend, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Backend{}, fmt.Errorf("empty backend")
	}
	provider, modelName, found := strings.Cut(raw, ":")
	if !found {
		return Backend{Provider: ProviderGemini, Model: raw}, nil
	}
	provider = normalizeProviderName(provider)
	modelName = strings.TrimSpace(modelName)
	if provider == "" || modelName == "" {
		return Backend{}, fmt.Errorf("invalid backend %q", raw)
	}
	return Backend{Provider: provider, Model: modelName}, nil
}

func ParseBackends(raw []string) ([]Backend, error) {
	out := make([]Backend, 0, len(raw))
	for _, entry := range raw {
		backend, err := ParseBackend(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, backend)
	}
	return out, nil
}

func normalizeProviderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
