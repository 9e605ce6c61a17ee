package handler

import (
	"strings"

	"conforma/internal/ncr/models"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
)

// CreateReportRequest is the HTTP request body for POST /ncrs.
type CreateReportRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Type             string `json:"type"`
	Severity         string `json:"severity"`
	Area             string `json:"area"`
	PartNumber       string `json:"partNumber"`
	LotNumber        string `json:"lotNumber"`
	QuantityAffected int    `json:"quantityAffected"`
	ReportedBy       string `json:"reportedBy"`
	AssignedTo       string `json:"assignedTo"`

	// Parsed values (populated by Validate)
	parsedSeverity domain.Severity
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Title) > 256 {
		return dErrors.New(dErrors.CodeValidation, "title must be 256 characters or less")
	}

	severity, err := domain.ParseSeverity(strings.TrimSpace(r.Severity))
	if err != nil {
		return err
	}
	r.parsedSeverity = severity

	if r.QuantityAffected < 0 {
		return dErrors.New(dErrors.CodeValidation, "quantityAffected cannot be negative")
	}
	return nil
}

// Input returns the validated domain input.
func (r *CreateReportRequest) Input() models.CreateInput {
	return models.CreateInput{
		Title:            r.Title,
		Description:      r.Description,
		Type:             r.Type,
		Severity:         r.parsedSeverity,
		Area:             strings.TrimSpace(r.Area),
		PartNumber:       r.PartNumber,
		LotNumber:        r.LotNumber,
		QuantityAffected: r.QuantityAffected,
		ReportedBy:       r.ReportedBy,
		AssignedTo:       r.AssignedTo,
	}
}

// UpdateReportRequest is the HTTP request body for PUT /ncrs/{ncrID}. Every
// field is optional; absent fields leave the record untouched. Status and
// disposition are deliberately missing: they move through their own
// endpoints, never through a field patch.
type UpdateReportRequest struct {
	Title            *string              `json:"title"`
	Description      *string              `json:"description"`
	Type             *string              `json:"type"`
	Severity         *string              `json:"severity"`
	Area             *string              `json:"area"`
	PartNumber       *string              `json:"partNumber"`
	LotNumber        *string              `json:"lotNumber"`
	QuantityAffected *int                 `json:"quantityAffected"`
	ReportedBy       *string              `json:"reportedBy"`
	AssignedTo       *string              `json:"assignedTo"`
	Attachments      *[]models.Attachment `json:"attachments"`

	// Parsed values (populated by Validate)
	parsedSeverity *domain.Severity
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateReportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		if trimmed == "" {
			return dErrors.New(dErrors.CodeValidation, "title cannot be empty")
		}
		if len(trimmed) > 256 {
			return dErrors.New(dErrors.CodeValidation, "title must be 256 characters or less")
		}
		r.Title = &trimmed
	}
	if r.Severity != nil {
		severity, err := domain.ParseSeverity(strings.TrimSpace(*r.Severity))
		if err != nil {
			return err
		}
		r.parsedSeverity = &severity
	}
	if r.QuantityAffected != nil && *r.QuantityAffected < 0 {
		return dErrors.New(dErrors.CodeValidation, "quantityAffected cannot be negative")
	}
	return nil
}

// Patch returns the validated field patch.
func (r *UpdateReportRequest) Patch() models.Patch {
	return models.Patch{
		Title:            r.Title,
		Description:      r.Description,
		Type:             r.Type,
		Severity:         r.parsedSeverity,
		Area:             r.Area,
		PartNumber:       r.PartNumber,
		LotNumber:        r.LotNumber,
		QuantityAffected: r.QuantityAffected,
		ReportedBy:       r.ReportedBy,
		AssignedTo:       r.AssignedTo,
		Attachments:      r.Attachments,
	}
}

// DispositionRequest is the HTTP request body for PUT /ncrs/{ncrID}/disposition.
type DispositionRequest struct {
	Decision      string `json:"decision"`
	Justification string `json:"justification"`
	Conditions    string `json:"conditions"`

	// Parsed values (populated by Validate)
	parsedDecision domain.DispositionDecision
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *DispositionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Decision = strings.TrimSpace(r.Decision)
	if r.Decision == "" {
		return dErrors.New(dErrors.CodeValidation, "decision is required")
	}
	decision, err := domain.ParseDispositionDecision(r.Decision)
	if err != nil {
		return err
	}
	r.parsedDecision = decision
	return nil
}

// Input returns the validated domain input.
func (r *DispositionRequest) Input() models.DispositionInput {
	return models.DispositionInput{
		Decision:      r.parsedDecision,
		Justification: r.Justification,
		Conditions:    r.Conditions,
	}
}
