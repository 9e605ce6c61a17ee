package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	mrbModels "conforma/internal/mrb/models"
	"conforma/internal/ncr/models"
	"conforma/internal/notify"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
	audit "conforma/pkg/platform/audit"
	"conforma/pkg/platform/sentinel"
	"conforma/pkg/requestcontext"
)

// ApprovalInput carries one signature on a disposition. Approver falls back
// to the request actor when the body omits approvedBy; ApprovedAt lets a
// back-dated paper signature keep its real timestamp.
type ApprovalInput struct {
	Approver   string
	Role       string
	Comment    string
	ApprovedAt *time.Time
}

// approveResult is what one transactional attempt produces: the updated
// report, whether this approval met quorum, and the native board record
// closed alongside it (nil when the board entry is virtual).
type approveResult struct {
	ncr       *models.NCR
	closed    bool
	nativeMRB *mrbModels.MRB
}

// Approve appends one approval to the report's disposition. Once the quorum
// of distinct approvers is met the report closes, and its native board
// record (when one exists) closes in the same transaction; a virtual board
// entry follows the report's status by projection and needs no write.
//
// Two racing approvals on the same report are resolved by the store's
// version check: the loser retries from a fresh read, so both signatures
// land and exactly one of them triggers closure.
func (s *Service) Approve(ctx context.Context, ncrID domain.NCRID, in ApprovalInput) (*models.NCR, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "disposition.approve")
	defer span.End()
	defer s.observeApprove(start)

	approver := in.Approver
	if approver == "" {
		approver = requestcontext.Actor(ctx)
	}
	if approver == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "approvedBy is required")
	}
	role := in.Role
	if role == "" {
		role = requestcontext.ActorRole(ctx)
	}
	when := requestcontext.Now(ctx)
	if in.ApprovedAt != nil {
		when = in.ApprovedAt.UTC()
	}
	entry := models.ApprovalEntry{
		Approver: approver,
		Role:     role,
		Date:     when,
		Comment:  in.Comment,
	}
	span.SetAttributes(
		attribute.String("ncr.id", ncrID.String()),
		attribute.String("approver", approver),
	)

	var res approveResult
	for attempt := 0; ; attempt++ {
		if attempt == maxUpdateAttempts {
			s.incrementConcurrencyConflict()
			return nil, dErrors.New(dErrors.CodeConcurrencyConflict, "approval lost a concurrent update race, retry the request")
		}

		err := s.txRunner.RunInTx(ctx, func(txCtx context.Context) error {
			r, err := s.approveOnce(txCtx, ncrID, entry)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
		if err == nil {
			break
		}
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		span.RecordError(err)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record approval")
	}

	n := res.ncr
	s.emitTrail(ctx, audit.EventApprovalRecorded, n, "approver: "+approver)
	s.incrementApproval()

	if res.closed {
		s.emitTrail(ctx, audit.EventNCRClosed, n, "quorum met: "+n.Disposition.Decision.String())
		if res.nativeMRB != nil {
			s.emitMRBTrail(ctx, audit.EventMRBClosed, res.nativeMRB, "backing report "+n.Number+" closed")
		}
		s.notify(ctx, notify.Notification{
			Kind:         notify.KindDispositionClosed,
			RecordType:   "ncr",
			RecordID:     n.ID.String(),
			RecordNumber: n.Number,
			Message:      n.Number + " disposition " + n.Disposition.Decision.String() + " approved and closed",
			Actor:        approver,
			OccurredAt:   when,
		})
		s.incrementClosed()
	}
	return n, nil
}

// approveOnce is a single transactional attempt: read fresh, append, close
// on quorum, CAS-write. Store conflicts bubble up as sentinel.ErrConflict so
// the caller can retry the whole transaction.
func (s *Service) approveOnce(ctx context.Context, ncrID domain.NCRID, entry models.ApprovalEntry) (approveResult, error) {
	n, err := s.store.FindByID(ctx, ncrID)
	if err != nil {
		return approveResult{}, err
	}
	if err := n.CanUpdateDisposition(); err != nil {
		return approveResult{}, err
	}

	n.AppendApproval(entry)

	res := approveResult{ncr: n}
	if n.MeetsQuorum(s.quorum) {
		n.ApplyClosure(entry.Date)
		m, err := s.closeNativeBoard(ctx, ncrID, entry.Date)
		if err != nil {
			return approveResult{}, err
		}
		res.closed = true
		res.nativeMRB = m
	}

	if err := s.store.Update(ctx, n); err != nil {
		return approveResult{}, err
	}
	return res, nil
}

// closeNativeBoard closes the native board record backing the report, if
// one exists. Virtual board entries are projections and close for free.
func (s *Service) closeNativeBoard(ctx context.Context, ncrID domain.NCRID, now time.Time) (*mrbModels.MRB, error) {
	m, err := s.mrbs.FindBySourceNCR(ctx, ncrID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if m.IsDeleted() || m.Status == mrbModels.StatusClosed {
		return nil, nil
	}
	m.ApplyClosure(now)
	if err := s.mrbs.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) observeApprove(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveApprove(start)
	}
}
