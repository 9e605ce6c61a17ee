package domain

import dErrors "conforma/pkg/domain-errors"

// DispositionDecision is the outcome a review board records for nonconforming
// material. The decision itself carries no approval weight; approvals are
// collected separately until quorum closes the report.
type DispositionDecision string

const (
	DispositionUseAsIs          DispositionDecision = "use_as_is"
	DispositionRework           DispositionDecision = "rework"
	DispositionScrap            DispositionDecision = "scrap"
	DispositionReturnToSupplier DispositionDecision = "return_to_supplier"
)

var validDispositionDecisions = map[DispositionDecision]bool{
	DispositionUseAsIs:          true,
	DispositionRework:           true,
	DispositionScrap:            true,
	DispositionReturnToSupplier: true,
}

// ParseDispositionDecision constructs a DispositionDecision from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseDispositionDecision(s string) (DispositionDecision, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "disposition decision cannot be empty")
	}
	d := DispositionDecision(s)
	if !d.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid disposition decision")
	}
	return d, nil
}

// IsValid checks if the decision is one of the supported enum values.
func (d DispositionDecision) IsValid() bool {
	return validDispositionDecisions[d]
}

// String returns the string representation of the decision.
func (d DispositionDecision) String() string {
	return string(d)
}
