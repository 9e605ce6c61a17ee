package models

import (
	"fmt"
	"time"

	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
)

// Priority is the urgency band of a corrective/preventive action.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid checks membership in the priority set.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// CAPAType distinguishes fixing a defect that happened from preventing one
// that could.
type CAPAType string

const (
	TypeCorrective CAPAType = "corrective"
	TypePreventive CAPAType = "preventive"
)

// IsValid checks membership in the type set.
func (t CAPAType) IsValid() bool {
	return t == TypeCorrective || t == TypePreventive
}

// ActionType classifies entries in the ordered action list.
type ActionType string

const (
	// ActionStatusChange entries are appended only by the status machine.
	ActionStatusChange ActionType = "status_change"
	ActionTask         ActionType = "task"
	ActionNote         ActionType = "note"
)

// Action is one entry in the ordered action list of a CAPA.
type Action struct {
	Type    ActionType `json:"type"`
	Actor   string     `json:"actor,omitempty"`
	Comment string     `json:"comment,omitempty"`
	Date    time.Time  `json:"date"`
}

// rootCausePlaceholder seeds generated actions until an investigator fills
// in the real cause.
const rootCausePlaceholder = "Pending investigation"

// CAPA is the aggregate root for a corrective/preventive action.
//
// Invariants:
//   - Number, CreatedAt, and ID are immutable after construction
//   - Status moves only along the edges in validTransitions, and every move
//     appends a status_change entry to Actions
//   - Actions is append-only; status_change entries come from the machine,
//     task and note entries from callers
//   - SourceNCRID is set at generation time and never after
//   - Version increments on every store write; a stale Version fails the
//     write (optimistic concurrency)
type CAPA struct {
	ID                  domain.CAPAID  `json:"id"`
	Number              string         `json:"number"`
	Title               string         `json:"title"`
	Description         string         `json:"description,omitempty"`
	Status              Status         `json:"status"`
	Priority            Priority       `json:"priority"`
	Type                CAPAType       `json:"type"`
	Category            string         `json:"category,omitempty"`
	RootCause           string         `json:"rootCause,omitempty"`
	VerificationMethod  string         `json:"verificationMethod,omitempty"`
	ScheduledReviewDate *time.Time     `json:"scheduledReviewDate,omitempty"`
	SourceNCRID         *domain.NCRID  `json:"sourceNcrId,omitempty"`
	Actions             []Action       `json:"actions"`
	Version             int64          `json:"version"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// CreateInput carries the caller-supplied fields for a manually raised
// action. Identity, number, and status are assigned by the constructor.
type CreateInput struct {
	Title               string
	Description         string
	Priority            Priority
	Type                CAPAType
	Category            string
	RootCause           string
	VerificationMethod  string
	ScheduledReviewDate *time.Time
}

// NumberFor derives the human-readable action number from creation time.
func NumberFor(t time.Time) string {
	return "CAPA-" + t.Format("20060102") + "-" + t.Format("1504")
}

// NewCAPA constructs a manually raised action in draft. Priority defaults
// to medium and type to corrective when the caller leaves them blank.
func NewCAPA(capaID domain.CAPAID, in CreateInput, now time.Time) (*CAPA, error) {
	if in.Title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "action title cannot be empty")
	}
	if len(in.Title) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "action title must be 256 characters or less")
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid priority")
	}
	if in.Type == "" {
		in.Type = TypeCorrective
	}
	if !in.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid action type")
	}
	return &CAPA{
		ID:                  capaID,
		Number:              NumberFor(now),
		Title:               in.Title,
		Description:         in.Description,
		Status:              StatusDraft,
		Priority:            in.Priority,
		Type:                in.Type,
		Category:            in.Category,
		RootCause:           in.RootCause,
		VerificationMethod:  in.VerificationMethod,
		ScheduledReviewDate: in.ScheduledReviewDate,
		Actions:             []Action{},
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// GeneratedInput carries what the generator knows about the source report.
type GeneratedInput struct {
	SourceNCRID domain.NCRID
	NCRNumber   string
	NCRTitle    string
	ReviewLead  time.Duration
}

// NewGeneratedCAPA constructs the corrective action spawned from a critical
// nonconformance. It starts at open rather than draft: the critical report
// already established that action is required.
func NewGeneratedCAPA(capaID domain.CAPAID, in GeneratedInput, now time.Time) *CAPA {
	review := now.Add(in.ReviewLead)
	c := &CAPA{
		ID:                  capaID,
		Number:              NumberFor(now),
		Title:               "Corrective action for " + in.NCRNumber,
		Description:         "Auto-generated from critical nonconformance " + in.NCRNumber + ": " + in.NCRTitle,
		Status:              StatusOpen,
		Priority:            PriorityHigh,
		Type:                TypeCorrective,
		RootCause:           rootCausePlaceholder,
		ScheduledReviewDate: &review,
		SourceNCRID:         &in.SourceNCRID,
		Actions:             []Action{},
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return c
}

// CanTransition checks that target is reachable from the current status.
//
// Errors: returns CodeInvalidTransition naming both states otherwise.
func (c *CAPA) CanTransition(target Status) error {
	if !c.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("cannot transition from %s to %s", c.Status, target))
	}
	return nil
}

// ApplyTransition moves the action to target and appends the status_change
// entry. Callers must have checked CanTransition.
func (c *CAPA) ApplyTransition(target Status, actor, comment string, now time.Time) {
	c.Status = target
	c.Actions = append(c.Actions, Action{
		Type:    ActionStatusChange,
		Actor:   actor,
		Comment: comment,
		Date:    now,
	})
	c.UpdatedAt = now
}

// Transition validates and applies in one step, for the Execute callback
// pattern.
func (c *CAPA) Transition(target Status, actor, comment string, now time.Time) error {
	if err := c.CanTransition(target); err != nil {
		return err
	}
	c.ApplyTransition(target, actor, comment, now)
	return nil
}

// AddAction appends a task or note entry. The trail stays writable after
// closure; the status machine owns status_change entries.
//
// Errors: returns CodeInvalidInput for status_change or unknown types.
func (c *CAPA) AddAction(actionType ActionType, actor, comment string, now time.Time) error {
	if actionType != ActionTask && actionType != ActionNote {
		return dErrors.New(dErrors.CodeInvalidInput, "action type must be task or note")
	}
	c.Actions = append(c.Actions, Action{
		Type:    actionType,
		Actor:   actor,
		Comment: comment,
		Date:    now,
	})
	c.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (c *CAPA) Clone() *CAPA {
	clone := *c
	clone.Actions = make([]Action, len(c.Actions))
	copy(clone.Actions, c.Actions)
	if c.ScheduledReviewDate != nil {
		review := *c.ScheduledReviewDate
		clone.ScheduledReviewDate = &review
	}
	if c.SourceNCRID != nil {
		source := *c.SourceNCRID
		clone.SourceNCRID = &source
	}
	return &clone
}

// Filter narrows List results. Zero value matches everything.
type Filter struct {
	Status Status
}

// Matches reports whether the action passes the filter.
func (f Filter) Matches(c *CAPA) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	return true
}
