package models

import dErrors "conforma/pkg/domain-errors"

// Status is the lifecycle state of a nonconformance report.
//
// open                the deviation is recorded, work continues locally
// pending_disposition escalated to the review board, awaiting a decision
// in_review           the board has pulled the record into active review
// closed              disposition approved by quorum
type Status string

const (
	StatusOpen               Status = "open"
	StatusPendingDisposition Status = "pending_disposition"
	StatusInReview           Status = "in_review"
	StatusClosed             Status = "closed"
)

// validTransitions is the directed edge set. Every backward edge to open is
// the un-escalation path: deleting a board record sends the report back to
// the shop floor regardless of how far review progressed.
var validTransitions = map[Status][]Status{
	StatusOpen:               {StatusPendingDisposition},
	StatusPendingDisposition: {StatusInReview, StatusClosed, StatusOpen},
	StatusInReview:           {StatusClosed, StatusOpen},
	StatusClosed:             {StatusOpen},
}

// CanTransitionTo reports whether target is a legal next state.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsValid checks membership in the status set.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// OnReviewBoard reports whether a report in this status projects a virtual
// board record. Closed reports stay visible so the board sees its own
// decisions.
func (s Status) OnReviewBoard() bool {
	switch s {
	case StatusPendingDisposition, StatusInReview, StatusClosed:
		return true
	}
	return false
}

// ParseStatus constructs a Status from external input.
//
// Errors: returns CodeInvalidInput when the value is not a known status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid report status")
	}
	return status, nil
}

func (s Status) String() string {
	return string(s)
}
