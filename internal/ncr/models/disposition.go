package models

import (
	"time"

	"conforma/pkg/domain"
)

// ApprovalEntry is one signature on a disposition. The list is append-only:
// repeat approvals by the same person are recorded for the trail even though
// they do not advance the quorum count.
type ApprovalEntry struct {
	Approver string    `json:"approver"`
	Role     string    `json:"role,omitempty"`
	Date     time.Time `json:"date"`
	Comment  string    `json:"comment,omitempty"`
}

// Disposition is the board's decision for nonconforming material and the
// approval trail that closes it.
//
// Invariants:
//   - Decision is always a valid enum value (defaults to use_as_is)
//   - ApprovedBy is never nil (marshals as [] on a fresh report)
//   - ApprovalDate is set exactly once, by quorum closure
type Disposition struct {
	Decision      domain.DispositionDecision `json:"decision"`
	Justification string                     `json:"justification,omitempty"`
	Conditions    string                     `json:"conditions,omitempty"`
	ApprovedBy    []ApprovalEntry            `json:"approvedBy"`
	ApprovalDate  *time.Time                 `json:"approvalDate,omitempty"`
}

// NewDisposition returns the initial disposition every report starts with.
func NewDisposition() *Disposition {
	return &Disposition{
		Decision:   domain.DispositionUseAsIs,
		ApprovedBy: []ApprovalEntry{},
	}
}

// DistinctApprovers counts unique approver identities in the trail.
// Quorum is measured against this, not the raw entry count.
func (d *Disposition) DistinctApprovers() int {
	seen := make(map[string]struct{}, len(d.ApprovedBy))
	for _, entry := range d.ApprovedBy {
		seen[entry.Approver] = struct{}{}
	}
	return len(seen)
}

// HasApprover reports whether the named approver already signed.
func (d *Disposition) HasApprover(approver string) bool {
	for _, entry := range d.ApprovedBy {
		if entry.Approver == approver {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate shared state through a returned pointer.
func (d *Disposition) Clone() *Disposition {
	if d == nil {
		return nil
	}
	clone := *d
	clone.ApprovedBy = make([]ApprovalEntry, len(d.ApprovedBy))
	copy(clone.ApprovedBy, d.ApprovedBy)
	if d.ApprovalDate != nil {
		date := *d.ApprovalDate
		clone.ApprovalDate = &date
	}
	return &clone
}
