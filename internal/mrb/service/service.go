// Package service implements the material review board projector. The board
// a reviewer sees is the union of natively stored records and a virtual row
// for every escalated report; virtual rows are computed on read and never
// stored, so they cannot drift from the report they project.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"conforma/internal/mrb/models"
	ncrModels "conforma/internal/ncr/models"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
	audit "conforma/pkg/platform/audit"
	"conforma/pkg/platform/sentinel"
	"conforma/pkg/requestcontext"
)

// tracer uses the global provider; the deployment wires an exporter.
var tracer = otel.Tracer("conforma/internal/mrb/service")

// maxUpdateAttempts bounds the version-conflict retry loop on mutations.
const maxUpdateAttempts = 3

type MRBStore interface {
	Create(ctx context.Context, m *models.MRB) error
	FindByID(ctx context.Context, mrbID domain.MRBID) (*models.MRB, error)
	FindBySourceNCR(ctx context.Context, ncrID domain.NCRID) (*models.MRB, error)
	List(ctx context.Context) ([]*models.MRB, error)
	Update(ctx context.Context, m *models.MRB) error
}

// ReportLifecycle is the slice of the report service the board depends on:
// projection reads plus the un-escalation path that board deletions fan out
// to.
type ReportLifecycle interface {
	Get(ctx context.Context, ncrID domain.NCRID) (*ncrModels.NCR, error)
	List(ctx context.Context, filter ncrModels.Filter) ([]*ncrModels.NCR, error)
	Unescalate(ctx context.Context, ncrID domain.NCRID) (*ncrModels.NCR, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service projects and manages the review board.
type Service struct {
	store          MRBStore
	reports        ReportLifecycle
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// New constructs a Service.
func New(store MRBStore, reports ReportLifecycle, opts ...Option) *Service {
	s := &Service{store: store, reports: reports}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAll returns every row on the board: live native records plus a
// virtual row per escalated report. The two sources are independent stores,
// so they are queried concurrently.
func (s *Service) ListAll(ctx context.Context) ([]models.View, error) {
	ctx, span := tracer.Start(ctx, "mrb.list")
	defer span.End()

	var (
		natives []*models.MRB
		reports []*ncrModels.NCR
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.store.List(gctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list board records")
		}
		natives = out
		return nil
	})
	g.Go(func() error {
		out, err := s.reports.List(gctx, ncrModels.Filter{OnBoard: true})
		if err != nil {
			return err
		}
		reports = out
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	views := make([]models.View, 0, len(natives)+len(reports))
	for _, m := range natives {
		views = append(views, models.FromMRB(m))
	}
	for _, n := range reports {
		views = append(views, models.ProjectNCR(n))
	}
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].Number < views[j].Number
	})
	span.SetAttributes(attribute.Int("mrb.rows", len(views)))
	return views, nil
}

// Get returns one board row. A virtual ref resolves through the backing
// report; a report that is not before the board has no row to return.
func (s *Service) Get(ctx context.Context, ref models.Ref) (models.View, error) {
	if ref.IsVirtual() {
		n, err := s.reports.Get(ctx, ref.NCRID)
		if err != nil {
			return models.View{}, err
		}
		if !n.OnReviewBoard() {
			return models.View{}, dErrors.New(dErrors.CodeNotFound, "board record not found")
		}
		return models.ProjectNCR(n), nil
	}
	m, err := s.findLive(ctx, ref.MRBID)
	if err != nil {
		return models.View{}, err
	}
	return models.FromMRB(m), nil
}

// SourceNCR resolves a board ref to the report whose disposition it fronts.
// Approvals arrive addressed to the board; this is where they find their
// report.
func (s *Service) SourceNCR(ctx context.Context, ref models.Ref) (domain.NCRID, error) {
	if ref.IsVirtual() {
		return ref.NCRID, nil
	}
	m, err := s.findLive(ctx, ref.MRBID)
	if err != nil {
		return domain.NCRID{}, err
	}
	if m.SourceNCRID == nil {
		return domain.NCRID{}, dErrors.New(dErrors.CodeValidation, "board record has no backing report")
	}
	return *m.SourceNCRID, nil
}

// CreateNative opens a board record on the board's own initiative. When the
// record backlinks a report via SourceNCRID, the report must exist: the
// closure fan-out depends on that link.
func (s *Service) CreateNative(ctx context.Context, in models.CreateInput) (*models.MRB, error) {
	ctx, span := tracer.Start(ctx, "mrb.create")
	defer span.End()

	if in.SourceNCRID != nil {
		if _, err := s.reports.Get(ctx, *in.SourceNCRID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "sourceId does not reference a known report")
			}
			return nil, err
		}
	}

	m, err := models.NewMRB(domain.NewMRBID(), in, requestcontext.Now(ctx))
	if err != nil {
		span.RecordError(err)
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, m); err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create board record")
	}
	s.emitTrail(ctx, audit.EventMRBCreated, m, "")
	return m, nil
}

// Delete removes a row from the board. A virtual row is deleted by
// un-escalating its report; a native record is soft-deleted and then every
// report it holds is sent back to the floor. The resets after the soft
// delete are best-effort: a report already off the board is skipped, and a
// failed reset is logged for manual follow-up rather than undoing the
// deletion.
func (s *Service) Delete(ctx context.Context, ref models.Ref) error {
	ctx, span := tracer.Start(ctx, "mrb.delete")
	defer span.End()

	if ref.IsVirtual() {
		n, err := s.reports.Unescalate(ctx, ref.NCRID)
		if err != nil {
			span.RecordError(err)
			return err
		}
		s.emitVirtualDeleteTrail(ctx, n)
		return nil
	}

	m, err := s.softDelete(ctx, ref.MRBID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	for _, ncrID := range m.ResetTargets() {
		if _, err := s.reports.Unescalate(ctx, ncrID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue
			}
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "board deletion could not release report",
					"mrb_id", m.ID.String(),
					"ncr_id", ncrID.String(),
					"error", err)
			}
		}
	}
	s.emitTrail(ctx, audit.EventMRBDeleted, m, "released reports: "+strconv.Itoa(len(m.ResetTargets())))
	return nil
}

// softDelete marks the record deleted under the store's version check.
func (s *Service) softDelete(ctx context.Context, mrbID domain.MRBID) (*models.MRB, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		m, err := s.findLive(ctx, mrbID)
		if err != nil {
			return nil, err
		}
		m.ApplySoftDelete(requestcontext.Now(ctx))
		if err := s.store.Update(ctx, m); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "board record not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete board record")
		}
		return m, nil
	}
	return nil, dErrors.New(dErrors.CodeConcurrencyConflict, "board record was modified concurrently, retry the request")
}

func (s *Service) findLive(ctx context.Context, mrbID domain.MRBID) (*models.MRB, error) {
	m, err := s.store.FindByID(ctx, mrbID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "board record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load board record")
	}
	if m.IsDeleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "board record not found")
	}
	return m, nil
}

func (s *Service) emitTrail(ctx context.Context, action audit.TrailEvent, m *models.MRB, detail string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action),
			"mrb_id", m.ID.String(),
			"number", m.Number,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit")
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		EntityType: "mrb",
		EntityID:   m.ID.String(),
		Number:     m.Number,
		Action:     string(action),
		Actor:      requestcontext.Actor(ctx),
		Detail:     detail,
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "trail emit failed", "action", string(action), "error", err)
	}
}

// emitVirtualDeleteTrail records the board-side event for a virtual row
// removal. The report service already recorded the un-escalation on the
// report's own trail.
func (s *Service) emitVirtualDeleteTrail(ctx context.Context, n *ncrModels.NCR) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		EntityType: "mrb",
		EntityID:   n.VirtualMRBID(),
		Number:     n.Number,
		Action:     string(audit.EventMRBDeleted),
		Actor:      requestcontext.Actor(ctx),
		Detail:     "virtual row released report " + n.Number,
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "trail emit failed", "action", string(audit.EventMRBDeleted), "error", err)
	}
}
