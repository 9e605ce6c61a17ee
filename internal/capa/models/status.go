package models

import dErrors "conforma/pkg/domain-errors"

// Status is the lifecycle state of a corrective/preventive action. The
// graph is strictly directed with no skipping: an action either walks the
// investigation path to closure or exits through cancellation.
type Status string

const (
	StatusDraft               Status = "draft"
	StatusOpen                Status = "open"
	StatusInProgress          Status = "in_progress"
	StatusPendingReview       Status = "pending_review"
	StatusUnderInvestigation  Status = "under_investigation"
	StatusImplementing        Status = "implementing"
	StatusPendingVerification Status = "pending_verification"
	StatusCompleted           Status = "completed"
	StatusVerified            Status = "verified"
	StatusClosed              Status = "closed"
	StatusCancelled           Status = "cancelled"
)

// validTransitions is the directed edge set. closed and cancelled are
// terminal; reopening means raising a new action.
var validTransitions = map[Status][]Status{
	StatusDraft:               {StatusOpen},
	StatusOpen:                {StatusInProgress, StatusCancelled},
	StatusInProgress:          {StatusPendingReview, StatusUnderInvestigation},
	StatusUnderInvestigation:  {StatusImplementing},
	StatusImplementing:        {StatusPendingVerification},
	StatusPendingVerification: {StatusCompleted},
	StatusCompleted:           {StatusVerified},
	StatusVerified:            {StatusClosed},
	StatusPendingReview:       {StatusImplementing, StatusCancelled},
	StatusClosed:              {},
	StatusCancelled:           {},
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

// IsTerminal reports whether the action can move no further.
func (s Status) IsTerminal() bool {
	return len(validTransitions[s]) == 0 && s.IsValid()
}

// ParseStatus constructs a Status from external input.
//
// Errors: returns CodeInvalidInput when the value is not a known status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid action status")
	}
	return status, nil
}

func (s Status) String() string {
	return string(s)
}
