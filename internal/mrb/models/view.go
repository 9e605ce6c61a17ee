package models

import (
	"time"

	ncrModels "conforma/internal/ncr/models"
	"conforma/pkg/domain"
)

// SourceTypeNCR marks views that project or backlink a nonconformance
// report.
const SourceTypeNCR = "NCR"

// View is one row on the review board, regardless of origin. Virtual rows
// are recomputed from their report on every read and never persisted, so
// their status cannot drift from the report's.
type View struct {
	ID           string                 `json:"id"`
	Number       string                 `json:"number"`
	Title        string                 `json:"title,omitempty"`
	Status       string                 `json:"status"`
	Severity     domain.Severity        `json:"severity,omitempty"`
	SourceType   string                 `json:"sourceType,omitempty"`
	SourceID     string                 `json:"sourceId,omitempty"`
	Disposition  *ncrModels.Disposition `json:"disposition,omitempty"`
	LinkedNCRIDs []string               `json:"linkedNcrIds,omitempty"`
	Virtual      bool                   `json:"virtual"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// ProjectNCR derives the virtual board row for an escalated report. The
// board number is generated from creation time when escalation predates
// number assignment. Disposition is cloned so readers cannot reach back
// into the report.
func ProjectNCR(n *ncrModels.NCR) View {
	number := n.MRBNumber
	if number == "" {
		number = ncrModels.MRBNumberFor(n.CreatedAt)
	}
	return View{
		ID:          n.VirtualMRBID(),
		Number:      number,
		Title:       n.Title,
		Status:      n.Status.String(),
		Severity:    n.Severity,
		SourceType:  SourceTypeNCR,
		SourceID:    n.ID.String(),
		Disposition: n.Disposition.Clone(),
		Virtual:     true,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

// FromMRB derives the board row for a native record. The disposition lives
// on the backing report; clients follow sourceId to reach it.
func FromMRB(m *MRB) View {
	v := View{
		ID:        m.ID.String(),
		Number:    m.Number,
		Title:     m.Title,
		Status:    string(m.Status),
		Virtual:   false,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.SourceNCRID != nil {
		v.SourceType = SourceTypeNCR
		v.SourceID = m.SourceNCRID.String()
	}
	if len(m.LinkedNCRIDs) > 0 {
		v.LinkedNCRIDs = make([]string, 0, len(m.LinkedNCRIDs))
		for _, id := range m.LinkedNCRIDs {
			v.LinkedNCRIDs = append(v.LinkedNCRIDs, id.String())
		}
	}
	return v
}
