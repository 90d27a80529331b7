package subscribers

import (
	"context"

	"carsa.local/complaints/internal/events"
)

type Subscriber interface {
	Name() string
	Handle(context.Context, events.Envelope) error
}
