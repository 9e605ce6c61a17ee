package handler

import (
	"strings"
	"time"

	"conforma/internal/mrb/models"
	ncrservice "conforma/internal/ncr/service"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
	strutil "conforma/pkg/platform/strings"
)

// CreateBoardRequest is the HTTP request body for POST /mrb.
type CreateBoardRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	SourceID     string   `json:"sourceId"`
	LinkedNCRIDs []string `json:"linkedNcrIds"`

	// Parsed values (populated by Validate)
	parsedSource *domain.NCRID
	parsedLinked []domain.NCRID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateBoardRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Title = strings.TrimSpace(r.Title)
	if len(r.Title) > 256 {
		return dErrors.New(dErrors.CodeValidation, "title must be 256 characters or less")
	}

	r.SourceID = strings.TrimSpace(r.SourceID)
	if r.SourceID != "" {
		ncrID, err := domain.ParseNCRID(r.SourceID)
		if err != nil {
			return err
		}
		r.parsedSource = &ncrID
	}

	// Duplicate links would make the deletion fan-out reset the same
	// report twice.
	for _, raw := range strutil.DedupeAndTrim(r.LinkedNCRIDs) {
		ncrID, err := domain.ParseNCRID(raw)
		if err != nil {
			return err
		}
		r.parsedLinked = append(r.parsedLinked, ncrID)
	}
	return nil
}

// Input returns the validated domain input.
func (r *CreateBoardRequest) Input() models.CreateInput {
	return models.CreateInput{
		Title:        r.Title,
		Description:  r.Description,
		SourceNCRID:  r.parsedSource,
		LinkedNCRIDs: r.parsedLinked,
	}
}

// ApproveRequest is the HTTP request body for
// POST /mrb/{mrbID}/disposition/approve. ApprovedBy falls back to the
// authenticated actor when omitted; ApprovedAt lets a paper signature keep
// its original date.
type ApproveRequest struct {
	ApprovedBy string     `json:"approvedBy"`
	Role       string     `json:"role"`
	Comment    string     `json:"comment"`
	ApprovedAt *time.Time `json:"approvedAt"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ApproveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ApprovedBy = strings.TrimSpace(r.ApprovedBy)
	r.Role = strings.TrimSpace(r.Role)
	return nil
}

// Input returns the validated approval input.
func (r *ApproveRequest) Input() ncrservice.ApprovalInput {
	return ncrservice.ApprovalInput{
		Approver:   r.ApprovedBy,
		Role:       r.Role,
		Comment:    r.Comment,
		ApprovedAt: r.ApprovedAt,
	}
}
