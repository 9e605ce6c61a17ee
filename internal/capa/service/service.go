// Package service implements corrective-action workflows: direct creation,
// generation from critical nonconformance reports, and the status machine
// that gates every status write.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	capametrics "conforma/internal/capa/metrics"
	"conforma/internal/capa/models"
	ncrModels "conforma/internal/ncr/models"
	"conforma/internal/notify"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
	audit "conforma/pkg/platform/audit"
	"conforma/pkg/platform/sentinel"
	"conforma/pkg/requestcontext"
)

// tracer uses the global provider; the deployment wires an exporter.
var tracer = otel.Tracer("conforma/internal/capa/service")

// maxUpdateAttempts bounds the version-conflict retry loop on mutations.
const maxUpdateAttempts = 3

const defaultReviewLead = 7 * 24 * time.Hour

type CAPAStore interface {
	Create(ctx context.Context, c *models.CAPA) error
	FindByID(ctx context.Context, capaID domain.CAPAID) (*models.CAPA, error)
	List(ctx context.Context, filter models.Filter) ([]*models.CAPA, error)
	Update(ctx context.Context, c *models.CAPA) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Service orchestrates corrective-action management.
type Service struct {
	store          CAPAStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	notifier       Notifier
	metrics        *capametrics.Metrics
	reviewLead     time.Duration
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

func WithMetrics(m *capametrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithReviewLead overrides how far out generated actions schedule their
// first review.
func WithReviewLead(lead time.Duration) Option {
	return func(s *Service) {
		if lead > 0 {
			s.reviewLead = lead
		}
	}
}

// New constructs a Service.
func New(store CAPAStore, opts ...Option) *Service {
	s := &Service{store: store, reviewLead: defaultReviewLead}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create raises an action directly. It starts in draft; the status machine
// owns everything after that.
func (s *Service) Create(ctx context.Context, in models.CreateInput) (*models.CAPA, error) {
	c, err := models.NewCAPA(domain.NewCAPAID(), in, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create corrective action")
	}
	s.emitTrail(ctx, audit.EventCAPACreated, c, "")
	s.incrementCreated("manual")

	return c, nil
}

// MaybeGenerate spawns the corrective action a critical report demands.
// Returns nil for non-critical reports, and nil without side effects when
// the report already carries a linked action, so retried creations can
// never spawn twins.
func (s *Service) MaybeGenerate(ctx context.Context, n *ncrModels.NCR) (*models.CAPA, error) {
	if n.Severity != domain.SeverityCritical {
		return nil, nil
	}
	if n.LinkedCAPAID != nil {
		return nil, nil
	}

	c := models.NewGeneratedCAPA(domain.NewCAPAID(), models.GeneratedInput{
		SourceNCRID: n.ID,
		NCRNumber:   n.Number,
		NCRTitle:    n.Title,
		ReviewLead:  s.reviewLead,
	}, requestcontext.Now(ctx))

	if err := s.store.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create generated corrective action")
	}
	s.emitTrail(ctx, audit.EventCAPAGenerated, c, "source: "+n.Number)
	s.notify(ctx, notify.Notification{
		Kind:         notify.KindCAPAAssigned,
		RecordType:   "capa",
		RecordID:     c.ID.String(),
		RecordNumber: c.Number,
		Message:      "Corrective action " + c.Number + " opened for critical report " + n.Number,
		Actor:        requestcontext.Actor(ctx),
		OccurredAt:   c.CreatedAt,
	})
	s.incrementCreated("generated")

	return c, nil
}

// Get returns an action by id.
func (s *Service) Get(ctx context.Context, capaID domain.CAPAID) (*models.CAPA, error) {
	c, err := s.store.FindByID(ctx, capaID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "corrective action not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load corrective action")
	}
	return c, nil
}

// List returns actions matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.CAPA, error) {
	out, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list corrective actions")
	}
	return out, nil
}

// Transition moves an action along the status graph. Every status write in
// the system funnels through here.
func (s *Service) Transition(ctx context.Context, capaID domain.CAPAID, target models.Status, comment string) (*models.CAPA, error) {
	ctx, span := tracer.Start(ctx, "capa.transition")
	defer span.End()
	span.SetAttributes(attribute.String("capa.target_status", string(target)))

	actor := requestcontext.Actor(ctx)
	c, err := s.mutate(ctx, capaID, func(c *models.CAPA) error {
		return c.Transition(target, actor, comment, requestcontext.Now(ctx))
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.emitTrail(ctx, audit.EventCAPAStatusChanged, c, "status: "+string(c.Status))
	s.incrementTransition()
	return c, nil
}

// AddAction appends a task or note to the ordered action list.
func (s *Service) AddAction(ctx context.Context, capaID domain.CAPAID, actionType models.ActionType, comment string) (*models.CAPA, error) {
	actor := requestcontext.Actor(ctx)
	c, err := s.mutate(ctx, capaID, func(c *models.CAPA) error {
		return c.AddAction(actionType, actor, comment, requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, err
	}
	s.emitTrail(ctx, audit.EventCAPAActionAdded, c, string(actionType))
	return c, nil
}

// mutate runs read -> apply -> CAS-update, retrying from a fresh read when
// a concurrent writer won the version race.
func (s *Service) mutate(ctx context.Context, capaID domain.CAPAID, apply func(c *models.CAPA) error) (*models.CAPA, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		c, err := s.Get(ctx, capaID)
		if err != nil {
			return nil, err
		}
		if err := apply(c); err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "corrective action not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update corrective action")
		}
		return c, nil
	}
	return nil, dErrors.New(dErrors.CodeConcurrencyConflict, "corrective action was modified concurrently, retry the request")
}

func (s *Service) emitTrail(ctx context.Context, action audit.TrailEvent, c *models.CAPA, detail string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(action),
			"capa_id", c.ID.String(),
			"number", c.Number,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit")
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Timestamp:  requestcontext.Now(ctx),
		EntityType: "capa",
		EntityID:   c.ID.String(),
		Number:     c.Number,
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

func (s *Service) incrementCreated(origin string) {
	if s.metrics != nil {
		s.metrics.IncrementCreated(origin)
	}
}

func (s *Service) incrementTransition() {
	if s.metrics != nil {
		s.metrics.IncrementTransition()
	}
}
