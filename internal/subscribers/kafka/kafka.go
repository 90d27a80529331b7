package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/events"
	"carsa.local/complaints/internal/logging"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Subscriber publishes events to a Kafka topic keyed by conversation so a
// conversation's events stay on one partition.
type Subscriber struct {
	writer messageWriter
	topic  string
	log    logrus.FieldLogger
}

func New(brokers []string, topic string, log logrus.FieldLogger) *Subscriber {
	return newWithWriter(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}, topic, log)
}

func newWithWriter(writer messageWriter, topic string, log logrus.FieldLogger) *Subscriber {
	return &Subscriber{writer: writer, topic: topic, log: logging.OrDiscard(log)}
}

func (s *Subscriber) Name() string {
	return "kafka"
}

func (s *Subscriber) Handle(ctx context.Context, event events.Envelope) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"topic":      s.topic,
		"event_id":   event.EventID,
		"event_type": event.EventType,
	}).Debug("sent event to kafka")
	return nil
}

func (s *Subscriber) Close() error {
	return s.writer.Close()
}
