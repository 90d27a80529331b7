package customerctx

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/domain"
	"carsa.local/complaints/internal/logging"
	"carsa.local/complaints/internal/store"
)

const Lookback = 90 * 24 * time.Hour

var emailPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

// ExtractEmail returns the first email-looking token in text.
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// Keys are the identity hints available for a turn. Empty keys are skipped.
type Keys struct {
	CustomerID  string
	Email       string
	OrderNumber string
	VehicleReg  string
}

type Resolver struct {
	lookup store.CustomerLookup
	log    logrus.FieldLogger
	now    func() time.Time
}

type Option func(*Resolver)

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) { r.log = logging.OrDiscard(log) }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(lookup store.CustomerLookup, opts ...Option) *Resolver {
	r := &Resolver{lookup: lookup, log: logging.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve tries the conversation's customer, then email, order number and
// vehicle registration. The first hit wins; nil means no identity.
func (r *Resolver) Resolve(ctx context.Context, keys Keys) *domain.CustomerContext {
	since := r.now().Add(-Lookback)
	steps := []struct {
		key    string
		value  string
		lookup func(context.Context, string, time.Time) (domain.CustomerContext, error)
	}{
		{"customer_id", strings.TrimSpace(keys.CustomerID), r.lookup.FindByID},
		{"email", strings.TrimSpace(keys.Email), r.lookup.FindByEmail},
		{"order_number", strings.TrimSpace(keys.OrderNumber), r.lookup.FindByOrderNumber},
		{"vehicle_reg", store.NormalizeReg(keys.VehicleReg), r.lookup.FindByVehicleReg},
	}
	for _, step := range steps {
		if step.value == "" {
			continue
		}
		found, err := step.lookup(ctx, step.value, since)
		if err == nil {
			return &found
		}
		if !errors.Is(err, store.ErrNotFound) {
			r.log.WithError(err).WithField("key", step.key).Warn("customer lookup failed")
		}
	}
	return nil
}
