package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/events"
	"carsa.local/complaints/internal/logging"
	"carsa.local/complaints/internal/subscribers"
)

const (
	DefaultRetryCount   = 3
	DefaultRetryBackoff = 150 * time.Millisecond
)

type FailureObserver interface {
	EventDeliveryFailed(subscriber string)
}

type Option func(*Dispatcher)

func WithRetry(count int, backoff time.Duration) Option {
	return func(d *Dispatcher) {
		if count > 0 {
			d.retryCount = count
		}
		if backoff >= 0 {
			d.retryBackoff = backoff
		}
	}
}

func WithFailureObserver(observer FailureObserver) Option {
	return func(d *Dispatcher) { d.observer = observer }
}

// Dispatcher fans events out to subscribers asynchronously, retrying each
// delivery a bounded number of times.
type Dispatcher struct {
	log          logrus.FieldLogger
	subscribers  []subscribers.Subscriber
	retryCount   int
	retryBackoff time.Duration
	observer     FailureObserver
	wg           sync.WaitGroup
}

func New(log logrus.FieldLogger, subs []subscribers.Subscriber, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:          logging.OrDiscard(log),
		subscribers:  subs,
		retryCount:   DefaultRetryCount,
		retryBackoff: DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, event events.Envelope) {
	if d == nil {
		return
	}
	for _, sub := range d.subscribers {
		d.wg.Add(1)
		go func(sub subscribers.Subscriber) {
			defer d.wg.Done()
			d.dispatchOne(ctx, sub, event)
		}(sub)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) dispatchOne(ctx context.Context, sub subscribers.Subscriber, event events.Envelope) {
	for attempt := 1; attempt <= d.retryCount; attempt++ {
		err := sub.Handle(ctx, event)
		if err == nil {
			return
		}

		d.log.WithError(err).WithFields(logrus.Fields{
			"subscriber": sub.Name(),
			"event_id":   event.EventID,
			"event_type": event.EventType,
			"attempt":    attempt,
		}).Warn("event delivery failed")
		if attempt == d.retryCount {
			if d.observer != nil {
				d.observer.EventDeliveryFailed(sub.Name())
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.retryBackoff):
		}
	}
}
