package model

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/logging"
)

const (
	TierMain = "main"
	TierFast = "fast"

	DefaultResetInterval = 60 * time.Second
	DefaultBackoff       = 500 * time.Millisecond
)

var (
	MainSettings = GenerationSettings{Temperature: 0.7, TopP: 0.95, TopK: 40, MaxTokens: 1024}
	FastSettings = GenerationSettings{Temperature: 0.3, TopP: 0.9, TopK: 20, MaxTokens: 256}
)

// Generator produces a completion for a prompt on a named tier.
type Generator interface {
	Generate(ctx context.Context, tier, prompt string) (string, error)
}

// CascadeObserver receives per-attempt outcomes.
type CascadeObserver interface {
	CascadeAttempt(tier, backend, result string)
	CascadeExhausted(tier string)
}

type Tier struct {
	Name     string
	Backends []Backend
	Settings GenerationSettings
}

// DefaultTiers builds the main and fast tiers with their sampling settings.
func DefaultTiers(main, fast []Backend) []Tier {
	return []Tier{
		{Name: TierMain, Backends: main, Settings: MainSettings},
		{Name: TierFast, Backends: fast, Settings: FastSettings},
	}
}

type CascadeOption func(*Cascade)

func WithTierState(state TierState) CascadeOption {
	return func(c *Cascade) {
		if state != nil {
			c.state = state
		}
	}
}

func WithResetInterval(interval time.Duration) CascadeOption {
	return func(c *Cascade) {
		if interval > 0 {
			c.resetInterval = interval
		}
	}
}

func WithBackoff(backoff time.Duration) CascadeOption {
	return func(c *Cascade) {
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

func WithCascadeLogger(log logrus.FieldLogger) CascadeOption {
	return func(c *Cascade) {
		c.log = logging.OrDiscard(log)
	}
}

func WithCascadeObserver(observer CascadeObserver) CascadeOption {
	return func(c *Cascade) {
		c.observer = observer
	}
}

type resolvedBackend struct {
	Backend
	provider Provider
}

type resolvedTier struct {
	settings GenerationSettings
	backends []resolvedBackend
}

// Cascade tries the backends of a tier in rotation, moving past rate-limited
// ones and remembering which backend last worked.
type Cascade struct {
	tiers         map[string]resolvedTier
	state         TierState
	resetInterval time.Duration
	backoff       time.Duration
	log           logrus.FieldLogger
	observer      CascadeObserver
}

var _ Generator = (*Cascade)(nil)

// NewCascade resolves each tier's backends against registry. Backends whose
// provider is not registered are dropped with a warning.
func NewCascade(registry *Registry, tiers []Tier, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		tiers:         make(map[string]resolvedTier, len(tiers)),
		state:         NewMemoryTierState(nil),
		resetInterval: DefaultResetInterval,
		backoff:       DefaultBackoff,
		log:           logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	for _, tier := range tiers {
		resolved := resolvedTier{settings: tier.Settings}
		for _, backend := range tier.Backends {
			provider, ok := registry.Get(backend.Provider)
			if !ok {
				c.log.WithFields(logrus.Fields{"tier": tier.Name, "backend": backend.String()}).
					Warn("cascade backend skipped: provider not configured")
				continue
			}
			resolved.backends = append(resolved.backends, resolvedBackend{Backend: backend, provider: provider})
		}
		c.tiers[tier.Name] = resolved
	}
	return c
}

func (c *Cascade) Generate(ctx context.Context, tierName, prompt string) (string, error) {
	tier, ok := c.tiers[tierName]
	if !ok || len(tier.backends) == 0 {
		return "", fmt.Errorf("tier %s: %w", tierName, ErrNoBackends)
	}
	n := len(tier.backends)

	if err := c.state.ResetIfDue(ctx, c.resetInterval); err != nil {
		c.log.WithError(err).Warn("cascade reset check failed")
	}
	start, err := c.state.Index(ctx, tierName)
	if err != nil {
		c.log.WithError(err).WithField("tier", tierName).Warn("cascade index read failed")
		start = 0
	}
	if start < 0 || start >= n {
		start = 0
	}

	var lastErr error
	for attempt := 0; attempt < n; attempt++ {
		idx := (start + attempt) % n
		backend := tier.backends[idx]
		c.log.WithFields(logrus.Fields{
			"tier":    tierName,
			"backend": backend.String(),
			"attempt": attempt + 1,
			"of":      n,
		}).Debug("cascade attempt")

		resp, err := backend.provider.Complete(ctx, CompletionRequest{
			Model:              backend.Model,
			Messages:           []Message{{Role: RoleUser, Content: prompt}},
			GenerationSettings: tier.settings,
		})
		if err == nil {
			c.setIndex(ctx, tierName, idx)
			c.observe(tierName, backend.String(), "success")
			return resp.Content, nil
		}

		lastErr = err
		if !IsRateLimit(err) {
			c.observe(tierName, backend.String(), "error")
			return "", fmt.Errorf("%s: %w", backend.String(), err)
		}

		c.observe(tierName, backend.String(), "rate_limited")
		c.log.WithFields(logrus.Fields{"tier": tierName, "backend": backend.String()}).
			WithError(err).Warn("cascade backend rate limited, rotating")
		c.setIndex(ctx, tierName, (idx+1)%n)

		if attempt < n-1 && c.backoff > 0 {
			timer := time.NewTimer(c.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
	}

	if c.observer != nil {
		c.observer.CascadeExhausted(tierName)
	}
	return "", &ExhaustedError{Tier: tierName, Attempts: n, Last: lastErr}
}

func (c *Cascade) setIndex(ctx context.Context, tier string, idx int) {
	if err := c.state.SetIndex(ctx, tier, idx); err != nil {
		c.log.WithError(err).WithField("tier", tier).Warn("cascade index write failed")
	}
}

func (c *Cascade) observe(tier, backend, result string) {
	if c.observer != nil {
		c.observer.CascadeAttempt(tier, backend, result)
	}
}
