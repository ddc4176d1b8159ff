// Package audit records authentication events. Events never carry the
// submitted password or any stored digest.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"
)

const (
	EventLogin           = "login"
	EventRegister        = "register"
	EventPasswordChanged = "password_changed"
	EventPasswordReset   = "password_reset"
	EventMigration       = "credential_migration"
)

// IndexMapping is the Elasticsearch mapping for the audit index.
const IndexMapping = `{
  "mappings": {
    "properties": {
      "type":              {"type": "keyword"},
      "outcome":           {"type": "keyword"},
      "user_id":           {"type": "keyword"},
      "email":             {"type": "keyword"},
      "scheme":            {"type": "keyword"},
      "password_migrated": {"type": "boolean"},
      "ip":                {"type": "ip"},
      "user_agent":        {"type": "text"},
      "request_id":        {"type": "keyword"},
      "@timestamp":        {"type": "date"}
    }
  }
}`

type Event struct {
	Type             string    `json:"type"`
	Outcome          string    `json:"outcome"`
	UserID           string    `json:"user_id,omitempty"`
	Email            string    `json:"email,omitempty"`
	Scheme           string    `json:"scheme,omitempty"`
	PasswordMigrated bool      `json:"password_migrated,omitempty"`
	IP               string    `json:"ip,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	At               time.Time `json:"@timestamp"`
}

// Sink accepts events without blocking the caller.
type Sink interface {
	Record(ev Event)
}

// LogSink writes events to logrus. Used when no Elasticsearch is configured.
type LogSink struct {
	Logger *logrus.Logger
}

func (s LogSink) Record(ev Event) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"event":      ev.Type,
		"outcome":    ev.Outcome,
		"user_id":    ev.UserID,
		"scheme":     ev.Scheme,
		"ip":         ev.IP,
		"request_id": ev.RequestID,
	}).Info("auth event")
}

// ESSink indexes events into Elasticsearch from a single background
// goroutine. When the buffer is full new events are dropped.
type ESSink struct {
	es      *elasticsearch.Client
	index   string
	logger  *logrus.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

func NewESSink(es *elasticsearch.Client, index string, buffer int, logger *logrus.Logger) *ESSink {
	if buffer <= 0 {
		buffer = 1024
	}
	return &ESSink{
		es:      es,
		index:   index,
		logger:  logger,
		timeout: 3 * time.Second,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
	}
}

// Start launches the indexing loop.
func (s *ESSink) Start() {
	go func() {
		defer close(s.done)
		for ev := range s.events {
			if err := s.indexEvent(ev); err != nil && s.logger != nil {
				s.logger.WithError(err).WithField("event", ev.Type).Warn("es audit index failed")
			}
		}
	}()
}

func (s *ESSink) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		if s.logger != nil {
			s.logger.WithField("event", ev.Type).Warn("audit buffer full, event dropped")
		}
	}
}

// Close stops accepting events and waits for the buffer to drain.
func (s *ESSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ESSink) indexEvent(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: s.index, Body: bytes.NewReader(b), Refresh: "false"}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.logger != nil {
		s.logger.WithField("status", res.Status()).Warn("es audit response error")
	}
	return nil
}
