package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/events"
)

type Subscriber struct {
	log logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Subscriber {
	return &Subscriber{log: log}
}

func (s *Subscriber) Name() string {
	return "logging"
}

func (s *Subscriber) Handle(_ context.Context, event events.Envelope) error {
	s.log.WithFields(logrus.Fields{
		"subscriber":      "logging",
		"event_id":        event.EventID,
		"event_type":      event.EventType,
		"trace_id":        event.TraceID,
		"conversation_id": event.ConversationID,
		"payload":         string(event.Payload),
	}).Info("event")
	return nil
}
