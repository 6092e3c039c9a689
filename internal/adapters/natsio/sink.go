package natsio

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ghalamif/SafeDetector/internal/domain"
	"github.com/ghalamif/SafeDetector/internal/ports"
)

// MsgPublisher is the subset of *nats.Conn used by Sink.
type MsgPublisher interface {
	Publish(subject string, data []byte) error
}

// Sink publishes one JSON message per status.
type Sink struct {
	conn    MsgPublisher
	subject string
}

func NewSink(conn MsgPublisher, subject string) *Sink {
	if subject == "" {
		subject = "safe_detector"
	}
	return &Sink{conn: conn, subject: subject}
}

func (s *Sink) Name() string { return "nats" }

func (s *Sink) WriteBatch(statuses []domain.SafetyStatus) error {
	var errs []error
	for _, status := range statuses {
		data, err := json.Marshal(status)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal status: %w", err))
			continue
		}
		if err := s.conn.Publish(s.subject, data); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", s.subject, err))
		}
	}
	return errors.Join(errs...)
}

var _ ports.Sink = (*Sink)(nil)
