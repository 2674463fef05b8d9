package eventstore

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher fans out appended events to external subscribers. The
// database row remains the system of record; publishing is best-effort
// at-least-once delivery.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// JetStreamPublisher publishes to NATS JetStream, over the same
// embedded-or-external connection App.startNATS establishes. Subjects
// follow "squawk.events.<stream_type>.<stream_id>".
type JetStreamPublisher struct {
	js jetstream.JetStream
}

// NewJetStreamPublisher wraps an already-connected JetStream context.
func NewJetStreamPublisher(js jetstream.JetStream) *JetStreamPublisher {
	return &JetStreamPublisher{js: js}
}

// Publish publishes data to subject, ignoring the resulting ack beyond
// the error it carries.
func (p *JetStreamPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p == nil || p.js == nil {
		return nil
	}
	_, err := p.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subject returns the fan-out subject for a stream.
func Subject(streamType StreamType, streamID string) string {
	return fmt.Sprintf("squawk.events.%s.%s", streamType, streamID)
}
