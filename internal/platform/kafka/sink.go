package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"conforma/pkg/platform/audit"
)

// EventSink adapts the producer to the trail publisher's sink interface.
// Events are keyed by entity id so every consumer sees one record's history
// in order.
type EventSink struct {
	producer *Producer
}

// NewEventSink wraps a producer. A nil producer yields a nil sink, which the
// publisher treats as "no stream configured".
func NewEventSink(producer *Producer) *EventSink {
	if producer == nil {
		return nil
	}
	return &EventSink{producer: producer}
}

// wireEvent is the JSON shape on the topic. Field names follow the API wire
// format so stream consumers and API clients share one vocabulary.
type wireEvent struct {
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Number     string    `json:"number,omitempty"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
}

// Send publishes one trail event to the stream. Client IP and user agent stay
// in the internal trail store; they are not broadcast plant-wide.
func (s *EventSink) Send(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(wireEvent{
		Category:   string(event.Category),
		Timestamp:  event.Timestamp,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Number:     event.Number,
		Action:     event.Action,
		Actor:      event.Actor,
		Detail:     event.Detail,
		RequestID:  event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal trail event: %w", err)
	}
	return s.producer.Produce(ctx, event.EntityType+":"+event.EntityID, payload)
}
