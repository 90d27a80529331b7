// Package webhook forwards selected support events to an HTTP endpoint, such
// as an ops alert channel or a CRM ingest hook.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carsa.local/complaints/internal/events"
	"carsa.local/complaints/internal/logging"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	errorSnippetBytes  = 512

	HeaderEvent        = "X-Carsa-Event"
	HeaderEventID      = "X-Carsa-Event-Id"
	HeaderTrace        = "X-Carsa-Trace-Id"
	HeaderConversation = "X-Carsa-Conversation-Id"
	HeaderTimestamp    = "X-Carsa-Timestamp"
	HeaderSignature    = "X-Carsa-Signature"
)

type Config struct {
	Name string
	URL  string
	// Secret enables signing. The signature is HMAC-SHA256 over
	// "<unix timestamp>.<body>" and is sent as "sha256=<hex>".
	Secret string
	// Events limits delivery to these types. Empty forwards everything.
	Events []events.EventType
}

type Option func(*Subscriber)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Subscriber) {
		if client != nil {
			s.client = client
		}
	}
}

type Subscriber struct {
	name   string
	url    string
	secret []byte
	events map[events.EventType]bool
	client *http.Client
	log    logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger, opts ...Option) *Subscriber {
	s := &Subscriber{
		name:   strings.TrimSpace(cfg.Name),
		url:    strings.TrimSpace(cfg.URL),
		client: &http.Client{Timeout: defaultHTTPTimeout},
		log:    logging.OrDiscard(log),
	}
	if s.name == "" {
		s.name = "webhook"
	}
	if cfg.Secret != "" {
		s.secret = []byte(cfg.Secret)
	}
	if len(cfg.Events) > 0 {
		s.events = make(map[events.EventType]bool, len(cfg.Events))
		for _, t := range cfg.Events {
			s.events[t] = true
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseEvents turns configured event type names into a filter list.
func ParseEvents(names []string) ([]events.EventType, error) {
	out := make([]events.EventType, 0, len(names))
	for _, name := range names {
		t, err := events.ParseType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Subscriber) Name() string {
	return s.name
}

// Wants reports whether the subscriber forwards events of type t.
func (s *Subscriber) Wants(t events.EventType) bool {
	return s.events == nil || s.events[t]
}

func (s *Subscriber) Handle(ctx context.Context, event events.Envelope) error {
	if !s.Wants(event.EventType) {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	s.decorate(req.Header, event, body)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", event.EventType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetBytes))
		return fmt.Errorf("post %s: status %d: %s", event.EventType, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.log.WithFields(logrus.Fields{
		"subscriber": s.name,
		"event_id":   event.EventID,
		"event_type": event.EventType,
	}).Debug("webhook delivered")
	return nil
}

func (s *Subscriber) decorate(h http.Header, event events.Envelope, body []byte) {
	h.Set("Content-Type", "application/json")
	h.Set(HeaderEvent, string(event.EventType))
	h.Set(HeaderEventID, event.EventID)
	h.Set(HeaderTrace, event.TraceID)
	if event.ConversationID != "" {
		h.Set(HeaderConversation, event.ConversationID)
	}
	if s.secret == nil {
		return
	}
	ts := strconv.FormatInt(event.OccurredAt.Unix(), 10)
	h.Set(HeaderTimestamp, ts)
	h.Set(HeaderSignature, "sha256="+Sign(s.secret, ts, body))
}

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>".
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
