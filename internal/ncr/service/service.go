// Package service implements the nonconformance report lifecycle and the
// disposition approval aggregator. Reports are mutated only through the
// operations here; every mutation rides the store's version compare-and-swap
// and leaves a trail event behind.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	capaModels "conforma/internal/capa/models"
	mrbModels "conforma/internal/mrb/models"
	ncrmetrics "conforma/internal/ncr/metrics"
	"conforma/internal/ncr/models"
	"conforma/internal/notify"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
	audit "conforma/pkg/platform/audit"
	"conforma/pkg/platform/sentinel"
	tx "conforma/pkg/platform/tx"
	"conforma/pkg/requestcontext"
)

// tracer uses the global provider; the deployment wires an exporter.
var tracer = otel.Tracer("conforma/internal/ncr/service")

// maxUpdateAttempts bounds the version-conflict retry loop on mutations.
const maxUpdateAttempts = 3

const defaultQuorum = 2

type NCRStore interface {
	Create(ctx context.Context, n *models.NCR) error
	FindByID(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error)
	List(ctx context.Context, filter models.Filter) ([]*models.NCR, error)
	Update(ctx context.Context, n *models.NCR) error
}

// MRBStore is the slice of the board store the closure fan-out needs.
type MRBStore interface {
	FindBySourceNCR(ctx context.Context, ncrID domain.NCRID) (*mrbModels.MRB, error)
	Update(ctx context.Context, board *mrbModels.MRB) error
}

// CAPAGenerator spawns corrective actions for qualifying reports.
type CAPAGenerator interface {
	MaybeGenerate(ctx context.Context, n *models.NCR) (*capaModels.CAPA, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Service orchestrates report lifecycle and disposition approval.
type Service struct {
	store          NCRStore
	mrbs           MRBStore
	txRunner       tx.Runner
	capaGen        CAPAGenerator
	logger         *slog.Logger
	auditPublisher AuditPublisher
	notifier       Notifier
	metrics        *ncrmetrics.Metrics
	quorum         int
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

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithMetrics(m *ncrmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCAPAGenerator attaches the generator invoked on critical creations.
func WithCAPAGenerator(gen CAPAGenerator) Option {
	return func(s *Service) {
		s.capaGen = gen
	}
}

// WithQuorum overrides how many distinct approvers close a disposition.
func WithQuorum(quorum int) Option {
	return func(s *Service) {
		if quorum > 0 {
			s.quorum = quorum
		}
	}
}

// New constructs a Service. mrbs and txRunner serve the approval closure
// path, which must write the report and its native board record together.
func New(store NCRStore, mrbs MRBStore, txRunner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:    store,
		mrbs:     mrbs,
		txRunner: txRunner,
		quorum:   defaultQuorum,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a report. For critical severity the corrective-action
// generator runs first so the backlink rides the only insert; generator
// failure is logged and never fails the creation.
func (s *Service) Create(ctx context.Context, in models.CreateInput) (*models.NCR, error) {
	ctx, span := tracer.Start(ctx, "ncr.create")
	defer span.End()

	n, err := models.NewNCR(domain.NewNCRID(), in, requestcontext.Now(ctx))
	if err != nil {
		span.RecordError(err)
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("ncr.number", n.Number))

	if s.capaGen != nil {
		capa, genErr := s.capaGen.MaybeGenerate(ctx, n)
		switch {
		case genErr != nil:
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "corrective action generation failed",
					"number", n.Number,
					"severity", string(n.Severity),
					"error", genErr)
			}
		case capa != nil:
			n.LinkedCAPAID = &capa.ID
		}
	}

	if err := s.store.Create(ctx, n); err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create report")
	}
	s.emitTrail(ctx, audit.EventNCRCreated, n, "severity: "+string(n.Severity))
	s.incrementCreated()

	return n, nil
}

// Get returns a report by id.
func (s *Service) Get(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error) {
	n, err := s.store.FindByID(ctx, ncrID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report")
	}
	return n, nil
}

// List returns reports matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.NCR, error) {
	out, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	return out, nil
}

// Update applies a field patch. Unknown fields were already rejected at
// decode time; status and disposition have their own operations and are not
// patchable.
func (s *Service) Update(ctx context.Context, ncrID domain.NCRID, patch models.Patch) (*models.NCR, error) {
	actor := requestcontext.Actor(ctx)
	n, err := s.mutate(ctx, ncrID, func(n *models.NCR) error {
		if err := n.CanApplyPatch(patch); err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return err
		}
		n.ApplyPatch(patch, actor, requestcontext.Now(ctx))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitTrail(ctx, audit.EventNCRUpdated, n, "")
	return n, nil
}

// Escalate puts a report in front of the review board.
func (s *Service) Escalate(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error) {
	ctx, span := tracer.Start(ctx, "ncr.escalate")
	defer span.End()

	actor := requestcontext.Actor(ctx)
	n, err := s.mutate(ctx, ncrID, func(n *models.NCR) error {
		return n.Escalate(actor, requestcontext.Now(ctx))
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.emitTrail(ctx, audit.EventNCREscalated, n, "board: "+n.MRBNumber)
	s.notify(ctx, notify.Notification{
		Kind:         notify.KindEscalated,
		RecordType:   "ncr",
		RecordID:     n.ID.String(),
		RecordNumber: n.Number,
		Message:      notify.DisplayName(actor) + " escalated " + n.Number + " to the review board",
		Actor:        actor,
		OccurredAt:   n.UpdatedAt,
	})
	s.incrementEscalated()

	return n, nil
}

// StartReview marks a board record as under active review.
func (s *Service) StartReview(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error) {
	actor := requestcontext.Actor(ctx)
	n, err := s.mutate(ctx, ncrID, func(n *models.NCR) error {
		return n.StartReview(actor, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.emitTrail(ctx, audit.EventNCRReviewStarted, n, "")
	return n, nil
}

// UpdateDisposition sets the disposition decision for a report. Rejected
// once the report is closed.
func (s *Service) UpdateDisposition(ctx context.Context, ncrID domain.NCRID, in models.DispositionInput) (*models.NCR, error) {
	if !in.Decision.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid disposition decision")
	}
	actor := requestcontext.Actor(ctx)
	n, err := s.mutate(ctx, ncrID, func(n *models.NCR) error {
		if err := n.CanUpdateDisposition(); err != nil {
			return err
		}
		n.ApplyDisposition(in, actor, requestcontext.Now(ctx))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitTrail(ctx, audit.EventDispositionSet, n, "decision: "+string(in.Decision))
	return n, nil
}

// Unescalate pulls a report off the review board and back to open. The
// board-record deletion paths call this for every report they release.
func (s *Service) Unescalate(ctx context.Context, ncrID domain.NCRID) (*models.NCR, error) {
	actor := requestcontext.Actor(ctx)
	n, err := s.mutate(ctx, ncrID, func(n *models.NCR) error {
		if !n.OnReviewBoard() {
			return dErrors.New(dErrors.CodeConflict, "report is not on the review board")
		}
		n.ApplyUnescalation(actor, requestcontext.Now(ctx))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitTrail(ctx, audit.EventNCRUnescalated, n, "")
	return n, nil
}

// mutate runs read -> apply -> CAS-update, retrying from a fresh read when
// a concurrent writer won the version race.
func (s *Service) mutate(ctx context.Context, ncrID domain.NCRID, apply func(n *models.NCR) error) (*models.NCR, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		n, err := s.Get(ctx, ncrID)
		if err != nil {
			return nil, err
		}
		if err := apply(n); err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, n); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update report")
		}
		return n, nil
	}
	s.incrementConcurrencyConflict()
	return nil, dErrors.New(dErrors.CodeConcurrencyConflict, "report was modified concurrently, retry the request")
}

func (s *Service) emitTrail(ctx context.Context, action audit.TrailEvent, n *models.NCR, detail string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action),
			"ncr_id", n.ID.String(),
			"number", n.Number,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit")
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		EntityType: "ncr",
		EntityID:   n.ID.String(),
		Number:     n.Number,
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

func (s *Service) emitMRBTrail(ctx context.Context, action audit.TrailEvent, m *mrbModels.MRB, detail string) {
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

func (s *Service) notify(ctx context.Context, n notify.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "notification delivery failed", "kind", n.Kind, "error", err)
	}
}

func (s *Service) incrementCreated() {
	if s.metrics != nil {
		s.metrics.ReportsCreated.Inc()
	}
}

func (s *Service) incrementEscalated() {
	if s.metrics != nil {
		s.metrics.ReportsEscalated.Inc()
	}
}

func (s *Service) incrementClosed() {
	if s.metrics != nil {
		s.metrics.ReportsClosed.Inc()
	}
}

func (s *Service) incrementApproval() {
	if s.metrics != nil {
		s.metrics.ApprovalsRecorded.Inc()
	}
}

func (s *Service) incrementConcurrencyConflict() {
	if s.metrics != nil {
		s.metrics.ConcurrencyConflicts.Inc()
	}
}
