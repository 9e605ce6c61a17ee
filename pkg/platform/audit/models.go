// Package audit defines the quality-trail event model. Every lifecycle
// mutation on a nonconformance report, review board record, or corrective
// action emits one event; the publisher fans events out to a store (the
// queryable trail) and an optional sink (the Kafka stream other plant systems
// consume).
package audit

import (
	"context"
	"time"
)

// EventCategory classifies trail events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance under the
	// plant's quality system (ISO 9001 / AS9100 records). These require
	// tamper-evident storage and long retention.
	// Examples: report creation and closure, disposition approvals, CAPA generation.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers destructive or privileged actions.
	// Examples: admin deletion of board records.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled or aggregated with shorter retention.
	// Examples: field edits, review starts, CAPA task notes.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	EntityType string // "ncr", "mrb" or "capa"
	EntityID   string
	Number     string // human-readable record number, e.g. RCV-20260312-0930
	Action     string
	Actor      string
	Detail     string // action-specific context: target status, decision, linked ids
	RequestID  string // correlation ID from HTTP request context
	ClientIP   string
	UserAgent  string
}

type TrailEvent string

const (
	// NCR lifecycle events
	EventNCRCreated        TrailEvent = "ncr_created"
	EventNCRUpdated        TrailEvent = "ncr_updated"
	EventNCREscalated      TrailEvent = "ncr_escalated"
	EventNCRReviewStarted  TrailEvent = "ncr_review_started"
	EventNCRUnescalated    TrailEvent = "ncr_unescalated"
	EventNCRClosed         TrailEvent = "ncr_closed"
	EventDispositionSet    TrailEvent = "disposition_updated"
	EventApprovalRecorded  TrailEvent = "disposition_approved"

	// MRB events
	EventMRBCreated TrailEvent = "mrb_created"
	EventMRBClosed  TrailEvent = "mrb_closed"
	EventMRBDeleted TrailEvent = "mrb_deleted"

	// CAPA events
	EventCAPACreated       TrailEvent = "capa_created"
	EventCAPAGenerated     TrailEvent = "capa_generated"
	EventCAPAStatusChanged TrailEvent = "capa_status_changed"
	EventCAPAActionAdded   TrailEvent = "capa_action_added"
)

// eventCategories maps each trail event to its category.
// Compliance: quality-record significance, long retention required.
// Security: privileged destructive actions.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[TrailEvent]EventCategory{
	// Compliance events - part of the quality record
	EventNCRCreated:       CategoryCompliance,
	EventNCREscalated:     CategoryCompliance,
	EventNCRUnescalated:   CategoryCompliance,
	EventNCRClosed:        CategoryCompliance,
	EventDispositionSet:   CategoryCompliance,
	EventApprovalRecorded: CategoryCompliance,
	EventCAPACreated:      CategoryCompliance,
	EventCAPAGenerated:    CategoryCompliance,
	EventMRBClosed:        CategoryCompliance,

	// Security events - privileged or destructive
	EventMRBDeleted: CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventNCRUpdated:        CategoryOperations,
	EventNCRReviewStarted:  CategoryOperations,
	EventMRBCreated:        CategoryOperations,
	EventCAPAStatusChanged: CategoryOperations,
	EventCAPAActionAdded:   CategoryOperations,
}

// Category returns the EventCategory for this trail event.
// Unknown events default to CategoryOperations.
func (e TrailEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists trail events and answers trail queries.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink streams events to an external system (Kafka). Sinks are best-effort:
// the publisher guards them with a circuit breaker and never fails the
// emitting operation on sink errors.
type Sink interface {
	Send(ctx context.Context, event Event) error
}
