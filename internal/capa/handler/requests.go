package handler

import (
	"strings"
	"time"

	"conforma/internal/capa/models"
	dErrors "conforma/pkg/domain-errors"
)

// CreateActionRequest is the HTTP request body for POST /capas.
type CreateActionRequest struct {
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Priority            string     `json:"priority"`
	Type                string     `json:"type"`
	Category            string     `json:"category"`
	RootCause           string     `json:"rootCause"`
	VerificationMethod  string     `json:"verificationMethod"`
	ScheduledReviewDate *time.Time `json:"scheduledReviewDate"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateActionRequest) Validate() error {
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

	// Empty priority and type default inside the constructor; non-empty
	// values must be members of their enums.
	if r.Priority != "" && !models.Priority(r.Priority).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "priority must be low, medium, or high")
	}
	if r.Type != "" && !models.CAPAType(r.Type).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "type must be corrective or preventive")
	}
	return nil
}

// Input returns the validated domain input.
func (r *CreateActionRequest) Input() models.CreateInput {
	return models.CreateInput{
		Title:               r.Title,
		Description:         r.Description,
		Priority:            models.Priority(r.Priority),
		Type:                models.CAPAType(r.Type),
		Category:            r.Category,
		RootCause:           r.RootCause,
		VerificationMethod:  r.VerificationMethod,
		ScheduledReviewDate: r.ScheduledReviewDate,
	}
}

// TransitionRequest is the HTTP request body for PUT /capas/{capaID}/status.
type TransitionRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`

	// Parsed values (populated by Validate)
	parsedStatus models.Status
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsedStatus = status
	return nil
}

// ParsedStatus returns the validated target status.
func (r *TransitionRequest) ParsedStatus() models.Status {
	return r.parsedStatus
}

// AddActionRequest is the HTTP request body for POST /capas/{capaID}/actions.
// Type defaults to task; status_change entries belong to the status machine
// and are rejected here.
type AddActionRequest struct {
	Type    string `json:"type"`
	Comment string `json:"comment"`

	// Parsed values (populated by Validate)
	parsedType models.ActionType
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *AddActionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Comment == "" {
		return dErrors.New(dErrors.CodeValidation, "comment is required")
	}

	switch models.ActionType(strings.TrimSpace(r.Type)) {
	case "":
		r.parsedType = models.ActionTask
	case models.ActionTask:
		r.parsedType = models.ActionTask
	case models.ActionNote:
		r.parsedType = models.ActionNote
	default:
		return dErrors.New(dErrors.CodeValidation, "action type must be task or note")
	}
	return nil
}

// ParsedType returns the validated action type.
func (r *AddActionRequest) ParsedType() models.ActionType {
	return r.parsedType
}
