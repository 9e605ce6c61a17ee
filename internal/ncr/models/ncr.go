package models

import (
	"time"

	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
)

// History entry types.
const (
	HistoryTypeStatus      = "Status"
	HistoryTypeDisposition = "Disposition"
	HistoryTypeEdit        = "Edit"
)

// HistoryEntry is one line in a report's append-only in-document log.
// This log belongs to the record itself (it travels with the document on
// export); the cross-record quality trail is a separate concern.
type HistoryEntry struct {
	Type   string    `json:"type"`
	Action string    `json:"action"`
	Actor  string    `json:"actor,omitempty"`
	Date   time.Time `json:"date"`
	Detail string    `json:"detail,omitempty"`
}

// Attachment is metadata for a file stored in the blob service. The bytes
// never pass through this service; URL is resolved by the storage gateway.
type Attachment struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	URL        string    `json:"url,omitempty"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// NCR is the aggregate root for a nonconformance report.
//
// Invariants:
//   - Number, CreatedAt, and ID are immutable after construction
//   - Status moves only along the edges in validTransitions, and only
//     through the defined operations (never by field patch)
//   - Disposition is never nil; ApprovedBy and History are append-only
//   - Closed is set exclusively by quorum closure
//   - MRBID/MRBNumber are set by escalation and cleared by un-escalation,
//     never patched directly
//   - Version increments on every store write; a stale Version fails the
//     write (optimistic concurrency)
type NCR struct {
	ID               domain.NCRID    `json:"id"`
	Number           string          `json:"number"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Type             string          `json:"type,omitempty"`
	Severity         domain.Severity `json:"severity"`
	Status           Status          `json:"status"`
	Area             string          `json:"area,omitempty"`
	PartNumber       string          `json:"partNumber,omitempty"`
	LotNumber        string          `json:"lotNumber,omitempty"`
	QuantityAffected int             `json:"quantityAffected,omitempty"`
	ReportedBy       string          `json:"reportedBy,omitempty"`
	AssignedTo       string          `json:"assignedTo,omitempty"`
	Disposition      *Disposition    `json:"disposition"`
	LinkedCAPAID     *domain.CAPAID  `json:"linkedCapaId,omitempty"`
	MRBID            string          `json:"mrbId,omitempty"`
	MRBNumber        string          `json:"mrbNumber,omitempty"`
	Attachments      []Attachment    `json:"attachments"`
	History          []HistoryEntry  `json:"history"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	ClosedAt         *time.Time      `json:"closedAt,omitempty"`
}

// CreateInput carries the caller-supplied fields for a new report. Identity,
// number, status, and disposition are assigned by the constructor.
type CreateInput struct {
	Title            string
	Description      string
	Type             string
	Severity         domain.Severity
	Area             string
	PartNumber       string
	LotNumber        string
	QuantityAffected int
	ReportedBy       string
	AssignedTo       string
}

// NewNCR constructs an open report with its number derived from area and
// creation time.
func NewNCR(ncrID domain.NCRID, in CreateInput, now time.Time) (*NCR, error) {
	if in.Title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report title cannot be empty")
	}
	if len(in.Title) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report title must be 256 characters or less")
	}
	if !in.Severity.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid severity")
	}
	if in.QuantityAffected < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "quantity affected cannot be negative")
	}
	return &NCR{
		ID:               ncrID,
		Number:           NumberFor(in.Area, now),
		Title:            in.Title,
		Description:      in.Description,
		Type:             in.Type,
		Severity:         in.Severity,
		Status:           StatusOpen,
		Area:             in.Area,
		PartNumber:       in.PartNumber,
		LotNumber:        in.LotNumber,
		QuantityAffected: in.QuantityAffected,
		ReportedBy:       in.ReportedBy,
		AssignedTo:       in.AssignedTo,
		Disposition:      NewDisposition(),
		Attachments:      []Attachment{},
		History:          []HistoryEntry{},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (n *NCR) IsClosed() bool {
	return n.Status == StatusClosed
}

// OnReviewBoard reports whether this record currently projects a virtual
// board record.
func (n *NCR) OnReviewBoard() bool {
	return n.Status.OnReviewBoard()
}

// VirtualMRBID is the deterministic board id this report projects under.
func (n *NCR) VirtualMRBID() string {
	return "mrb-" + n.ID.String()
}

// CanEscalate checks if the report can move to the review board.
// Returns an error if the transition is not allowed.
// Use with ApplyEscalation in Execute callbacks for proper separation of concerns.
func (n *NCR) CanEscalate() error {
	if !n.Status.CanTransitionTo(StatusPendingDisposition) {
		return dErrors.Newf(dErrors.CodeConflict, "report %s is already on the review board", n.Number)
	}
	return nil
}

// ApplyEscalation moves the report onto the review board: status becomes
// pending_disposition and the board id/number backlinks are set. The board
// number is derived from the report's creation time, so the virtual
// projection is stable across reads.
// Call CanEscalate first to validate the transition.
func (n *NCR) ApplyEscalation(actor string, now time.Time) {
	n.Status = StatusPendingDisposition
	n.MRBID = n.VirtualMRBID()
	if n.MRBNumber == "" {
		n.MRBNumber = MRBNumberFor(n.CreatedAt)
	}
	n.appendHistory(HistoryTypeStatus, "ncr_escalated", actor, now, "escalated to review board as "+n.MRBNumber)
	n.UpdatedAt = now
}

// Escalate validates and applies escalation in one call.
func (n *NCR) Escalate(actor string, now time.Time) error {
	if err := n.CanEscalate(); err != nil {
		return err
	}
	n.ApplyEscalation(actor, now)
	return nil
}

// CanStartReview checks if the board can pull the report into active review.
func (n *NCR) CanStartReview() error {
	if n.Status != StatusPendingDisposition {
		return dErrors.Newf(dErrors.CodeConflict, "report %s is not awaiting disposition", n.Number)
	}
	return nil
}

// ApplyReviewStart moves the report to in_review.
// Call CanStartReview first to validate the transition.
func (n *NCR) ApplyReviewStart(actor string, now time.Time) {
	n.Status = StatusInReview
	n.appendHistory(HistoryTypeStatus, "ncr_review_started", actor, now, "")
	n.UpdatedAt = now
}

// StartReview validates and applies the review start in one call.
func (n *NCR) StartReview(actor string, now time.Time) error {
	if err := n.CanStartReview(); err != nil {
		return err
	}
	n.ApplyReviewStart(actor, now)
	return nil
}

// DispositionInput carries a disposition decision update.
type DispositionInput struct {
	Decision      domain.DispositionDecision
	Justification string
	Conditions    string
}

// CanUpdateDisposition checks that the disposition is still open for edits.
func (n *NCR) CanUpdateDisposition() error {
	if n.IsClosed() {
		return dErrors.Newf(dErrors.CodeConflict, "report %s is closed; its disposition is final", n.Number)
	}
	return nil
}

// ApplyDisposition replaces the decision fields, preserving the approval
// trail already collected.
// Call CanUpdateDisposition first to validate.
func (n *NCR) ApplyDisposition(in DispositionInput, actor string, now time.Time) {
	n.Disposition.Decision = in.Decision
	n.Disposition.Justification = in.Justification
	n.Disposition.Conditions = in.Conditions
	n.appendHistory(HistoryTypeDisposition, "disposition_updated", actor, now, "decision: "+in.Decision.String())
	n.UpdatedAt = now
}

// AppendApproval records one approval on the disposition and in the history
// log. It never closes the report; quorum evaluation is the aggregator's job.
func (n *NCR) AppendApproval(entry ApprovalEntry) {
	n.Disposition.ApprovedBy = append(n.Disposition.ApprovedBy, entry)
	n.appendHistory(HistoryTypeDisposition, "disposition_approval", entry.Approver, entry.Date, entry.Comment)
	n.UpdatedAt = entry.Date
}

// MeetsQuorum reports whether enough distinct approvers have signed.
func (n *NCR) MeetsQuorum(quorum int) bool {
	return n.Disposition.DistinctApprovers() >= quorum
}

// ApplyClosure finalizes the disposition: status closed, approval date
// stamped. Must only be called once quorum is met.
func (n *NCR) ApplyClosure(now time.Time) {
	n.Status = StatusClosed
	n.Disposition.ApprovalDate = &now
	n.ClosedAt = &now
	n.appendHistory(HistoryTypeStatus, "ncr_closed", "", now, "disposition approved by quorum")
	n.UpdatedAt = now
}

// ApplyUnescalation sends the report back to the shop floor: status open,
// board backlinks cleared. Safe to call on a report that never escalated;
// the reset is then a no-op apart from the timestamps.
func (n *NCR) ApplyUnescalation(actor string, now time.Time) {
	n.Status = StatusOpen
	n.MRBID = ""
	n.MRBNumber = ""
	n.appendHistory(HistoryTypeStatus, "ncr_unescalated", actor, now, "removed from review board")
	n.UpdatedAt = now
}

// Patch lists exactly the mutable fields of a report. Nil means "leave
// unchanged"; Attachments replaces the whole list when present. Identity,
// number, status, disposition, and timestamps are not patchable.
type Patch struct {
	Title            *string
	Description      *string
	Type             *string
	Severity         *domain.Severity
	Area             *string
	PartNumber       *string
	LotNumber        *string
	QuantityAffected *int
	ReportedBy       *string
	AssignedTo       *string
	Attachments      *[]Attachment
}

// CanApplyPatch validates the patch against the report's invariants.
func (n *NCR) CanApplyPatch(p Patch) error {
	if p.Title != nil && *p.Title == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "report title cannot be empty")
	}
	if p.Title != nil && len(*p.Title) > 256 {
		return dErrors.New(dErrors.CodeInvariantViolation, "report title must be 256 characters or less")
	}
	if p.Severity != nil && !p.Severity.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "invalid severity")
	}
	if p.QuantityAffected != nil && *p.QuantityAffected < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "quantity affected cannot be negative")
	}
	return nil
}

// ApplyPatch merges the patch. The area may change for bookkeeping but the
// number keeps its original department code; renumbering a live record would
// orphan every paper copy on the floor.
// Call CanApplyPatch first to validate.
func (n *NCR) ApplyPatch(p Patch, actor string, now time.Time) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Type != nil {
		n.Type = *p.Type
	}
	if p.Severity != nil {
		n.Severity = *p.Severity
	}
	if p.Area != nil {
		n.Area = *p.Area
	}
	if p.PartNumber != nil {
		n.PartNumber = *p.PartNumber
	}
	if p.LotNumber != nil {
		n.LotNumber = *p.LotNumber
	}
	if p.QuantityAffected != nil {
		n.QuantityAffected = *p.QuantityAffected
	}
	if p.ReportedBy != nil {
		n.ReportedBy = *p.ReportedBy
	}
	if p.AssignedTo != nil {
		n.AssignedTo = *p.AssignedTo
	}
	if p.Attachments != nil {
		n.Attachments = *p.Attachments
	}
	n.appendHistory(HistoryTypeEdit, "ncr_updated", actor, now, "")
	n.UpdatedAt = now
}

func (n *NCR) appendHistory(entryType, action, actor string, date time.Time, detail string) {
	n.History = append(n.History, HistoryEntry{
		Type:   entryType,
		Action: action,
		Actor:  actor,
		Date:   date,
		Detail: detail,
	})
}

// Clone returns a deep copy of the report.
func (n *NCR) Clone() *NCR {
	clone := *n
	clone.Disposition = n.Disposition.Clone()
	clone.Attachments = make([]Attachment, len(n.Attachments))
	copy(clone.Attachments, n.Attachments)
	clone.History = make([]HistoryEntry, len(n.History))
	copy(clone.History, n.History)
	if n.LinkedCAPAID != nil {
		capaID := *n.LinkedCAPAID
		clone.LinkedCAPAID = &capaID
	}
	if n.ClosedAt != nil {
		closed := *n.ClosedAt
		clone.ClosedAt = &closed
	}
	return &clone
}

// Filter narrows a report listing.
type Filter struct {
	// Status filters to one lifecycle state when non-empty.
	Status Status
	// OnBoard restricts to reports currently projecting a board record.
	OnBoard bool
}

// Matches reports whether the record satisfies the filter.
func (f Filter) Matches(n *NCR) bool {
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	if f.OnBoard && !n.OnReviewBoard() {
		return false
	}
	return true
}
