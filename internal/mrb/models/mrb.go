package models

import (
	"time"

	ncrModels "conforma/internal/ncr/models"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
)

// Status is the lifecycle state of a natively created board record. The
// board opens a record, works it, and closes it when the disposition of the
// backing report is approved; there is no richer machine on the native side
// because review state lives on the report itself.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// MRB is a natively created material review board record. Most board
// entries are virtual projections of escalated reports and never touch this
// type; a native record exists when the board convenes on its own terms,
// optionally backlinked to the report that prompted it.
//
// Invariants:
//   - Number, CreatedAt, and ID are immutable after construction
//   - SourceNCRID and LinkedNCRIDs are set at creation, never patched
//   - Deletion is a soft delete; deleted records stay in the store but
//     leave the board view
//   - Version increments on every store write; a stale Version fails the
//     write (optimistic concurrency)
type MRB struct {
	ID           domain.MRBID   `json:"id"`
	Number       string         `json:"number"`
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	Status       Status         `json:"status"`
	SourceNCRID  *domain.NCRID  `json:"sourceId,omitempty"`
	LinkedNCRIDs []domain.NCRID `json:"linkedNcrIds"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    *time.Time     `json:"deletedAt,omitempty"`
}

// CreateInput carries the caller-supplied fields for a native board record.
type CreateInput struct {
	Title        string
	Description  string
	SourceNCRID  *domain.NCRID
	LinkedNCRIDs []domain.NCRID
}

// NewMRB constructs an open native record with its own number.
func NewMRB(mrbID domain.MRBID, in CreateInput, now time.Time) (*MRB, error) {
	if len(in.Title) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "board record title must be 256 characters or less")
	}
	linked := in.LinkedNCRIDs
	if linked == nil {
		linked = []domain.NCRID{}
	}
	return &MRB{
		ID:           mrbID,
		Number:       ncrModels.MRBNumberFor(now),
		Title:        in.Title,
		Description:  in.Description,
		Status:       StatusOpen,
		SourceNCRID:  in.SourceNCRID,
		LinkedNCRIDs: linked,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsDeleted reports whether the record was soft-deleted.
func (m *MRB) IsDeleted() bool {
	return m.DeletedAt != nil
}

// BacksNCR reports whether this record was opened for the given report.
func (m *MRB) BacksNCR(ncrID domain.NCRID) bool {
	return m.SourceNCRID != nil && *m.SourceNCRID == ncrID
}

// ResetTargets returns every report this record pulls back to the floor
// when it is deleted: the source report plus the linked list, deduplicated.
func (m *MRB) ResetTargets() []domain.NCRID {
	seen := make(map[domain.NCRID]struct{}, len(m.LinkedNCRIDs)+1)
	targets := make([]domain.NCRID, 0, len(m.LinkedNCRIDs)+1)
	if m.SourceNCRID != nil {
		seen[*m.SourceNCRID] = struct{}{}
		targets = append(targets, *m.SourceNCRID)
	}
	for _, id := range m.LinkedNCRIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	return targets
}

// ApplyClosure closes the record when the backing report reaches quorum.
func (m *MRB) ApplyClosure(now time.Time) {
	m.Status = StatusClosed
	m.UpdatedAt = now
}

// ApplySoftDelete removes the record from the board without losing it.
func (m *MRB) ApplySoftDelete(now time.Time) {
	m.DeletedAt = &now
	m.UpdatedAt = now
}

// Clone returns a deep copy.
func (m *MRB) Clone() *MRB {
	clone := *m
	clone.LinkedNCRIDs = make([]domain.NCRID, len(m.LinkedNCRIDs))
	copy(clone.LinkedNCRIDs, m.LinkedNCRIDs)
	if m.SourceNCRID != nil {
		source := *m.SourceNCRID
		clone.SourceNCRID = &source
	}
	if m.DeletedAt != nil {
		deleted := *m.DeletedAt
		clone.DeletedAt = &deleted
	}
	return &clone
}
