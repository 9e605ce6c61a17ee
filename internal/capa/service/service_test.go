package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conforma/internal/capa/models"
	"conforma/internal/capa/store"
	ncrModels "conforma/internal/ncr/models"
	"conforma/internal/notify"
	"conforma/pkg/domain"
	dErrors "conforma/pkg/domain-errors"
	audit "conforma/pkg/platform/audit"
	"conforma/pkg/platform/sentinel"
	"conforma/pkg/requestcontext"
)

// Justification for unit tests: the generator's idempotency guard and the
// status machine's rejection paths are awkward to exercise end to end, and
// the concurrency-retry exhaustion cannot be triggered through HTTP at all.

type capturingPublisher struct {
	events []audit.Event
}

func (p *capturingPublisher) Emit(_ context.Context, event audit.Event) error {
	p.events = append(p.events, event)
	return nil
}

type capturingNotifier struct {
	sent []notify.Notification
}

func (n *capturingNotifier) Notify(_ context.Context, notification notify.Notification) error {
	n.sent = append(n.sent, notification)
	return nil
}

// conflictStore always loses the version race, to exhaust the retry loop.
type conflictStore struct {
	*store.InMemoryStore
}

func (c *conflictStore) Update(context.Context, *models.CAPA) error {
	return sentinel.ErrConflict
}

type CAPAServiceSuite struct {
	suite.Suite
	store     *store.InMemoryStore
	publisher *capturingPublisher
	notifier  *capturingNotifier
	service   *Service
	ctx       context.Context
}

func TestCAPAServiceSuite(t *testing.T) {
	suite.Run(t, new(CAPAServiceSuite))
}

func (s *CAPAServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.publisher = &capturingPublisher{}
	s.notifier = &capturingNotifier{}
	s.service = New(s.store,
		WithAuditPublisher(s.publisher),
		WithNotifier(s.notifier),
	)
	ctx := requestcontext.WithActor(context.Background(), "qa.lead@conforma.io", "quality_manager")
	s.ctx = requestcontext.WithTime(ctx, time.Date(2025, 2, 6, 14, 5, 0, 0, time.UTC))
}

func (s *CAPAServiceSuite) newCriticalNCR() *ncrModels.NCR {
	n, err := ncrModels.NewNCR(domain.NewNCRID(), ncrModels.CreateInput{
		Title:    "Cracked casting on lot 8812",
		Severity: domain.SeverityCritical,
		Area:     "receiving",
	}, requestcontext.Now(s.ctx))
	s.Require().NoError(err)
	return n
}

func (s *CAPAServiceSuite) TestCreate() {
	s.Run("creates a draft action", func() {
		c, err := s.service.Create(s.ctx, models.CreateInput{Title: "Supplier audit"})
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, c.Status)

		found, err := s.service.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("Supplier audit", found.Title)
	})

	s.Run("emits a trail event", func() {
		_, err := s.service.Create(s.ctx, models.CreateInput{Title: "Supplier audit"})
		s.Require().NoError(err)
		last := s.publisher.events[len(s.publisher.events)-1]
		s.Equal("capa_created", last.Action)
		s.Equal("capa", last.EntityType)
		s.Equal("qa.lead@conforma.io", last.Actor)
	})

	s.Run("translates invariant violations to validation errors", func() {
		_, err := s.service.Create(s.ctx, models.CreateInput{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *CAPAServiceSuite) TestMaybeGenerate() {
	s.Run("generates for critical reports", func() {
		n := s.newCriticalNCR()
		c, err := s.service.MaybeGenerate(s.ctx, n)
		s.Require().NoError(err)
		s.Require().NotNil(c)

		s.Equal(models.StatusOpen, c.Status)
		s.Equal(models.PriorityHigh, c.Priority)
		s.Equal(models.TypeCorrective, c.Type)
		s.Require().NotNil(c.SourceNCRID)
		s.Equal(n.ID, *c.SourceNCRID)
		s.Require().NotNil(c.ScheduledReviewDate)
		s.Equal(requestcontext.Now(s.ctx).Add(7*24*time.Hour), *c.ScheduledReviewDate)

		stored, err := s.service.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(c.Number, stored.Number)
	})

	s.Run("returns nil for non-critical reports", func() {
		n := s.newCriticalNCR()
		n.Severity = domain.SeverityMajor
		c, err := s.service.MaybeGenerate(s.ctx, n)
		s.Require().NoError(err)
		s.Nil(c)
	})

	s.Run("is idempotent once the report carries a link", func() {
		n := s.newCriticalNCR()
		existing := domain.NewCAPAID()
		n.LinkedCAPAID = &existing

		before := len(s.publisher.events)
		c, err := s.service.MaybeGenerate(s.ctx, n)
		s.Require().NoError(err)
		s.Nil(c, "no second action for an already linked report")
		s.Len(s.publisher.events, before, "no side effects either")
	})

	s.Run("notifies assignment", func() {
		n := s.newCriticalNCR()
		_, err := s.service.MaybeGenerate(s.ctx, n)
		s.Require().NoError(err)

		last := s.notifier.sent[len(s.notifier.sent)-1]
		s.Equal(notify.KindCAPAAssigned, last.Kind)
		s.Contains(last.Message, n.Number)
	})
}

func (s *CAPAServiceSuite) TestTransition() {
	s.Run("moves along a legal edge and records it", func() {
		c, err := s.service.Create(s.ctx, models.CreateInput{Title: "Supplier audit"})
		s.Require().NoError(err)

		updated, err := s.service.Transition(s.ctx, c.ID, models.StatusOpen, "ready for work")
		s.Require().NoError(err)
		s.Equal(models.StatusOpen, updated.Status)
		s.Require().Len(updated.Actions, 1)
		s.Equal(models.ActionStatusChange, updated.Actions[0].Type)
		s.Equal("qa.lead@conforma.io", updated.Actions[0].Actor)
		s.Equal("ready for work", updated.Actions[0].Comment)
	})

	s.Run("rejects an illegal edge", func() {
		c, err := s.service.Create(s.ctx, models.CreateInput{Title: "Supplier audit"})
		s.Require().NoError(err)

		_, err = s.service.Transition(s.ctx, c.ID, models.StatusClosed, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		found, err := s.service.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusDraft, found.Status, "rejected transition does not persist")
	})

	s.Run("returns NotFound for unknown action", func() {
		_, err := s.service.Transition(s.ctx, domain.NewCAPAID(), models.StatusOpen, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CAPAServiceSuite) TestAddAction() {
	c, err := s.service.Create(s.ctx, models.CreateInput{Title: "Supplier audit"})
	s.Require().NoError(err)

	s.Run("appends tasks and notes", func() {
		updated, err := s.service.AddAction(s.ctx, c.ID, models.ActionTask, "schedule on-site visit")
		s.Require().NoError(err)
		s.Require().Len(updated.Actions, 1)
		s.Equal(models.ActionTask, updated.Actions[0].Type)
	})

	s.Run("rejects machine-owned entries", func() {
		_, err := s.service.AddAction(s.ctx, c.ID, models.ActionStatusChange, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *CAPAServiceSuite) TestConcurrencyExhaustion() {
	c, err := s.service.Create(s.ctx, models.CreateInput{Title: "Supplier audit"})
	s.Require().NoError(err)

	racing := New(&conflictStore{s.store})
	_, err = racing.Transition(s.ctx, c.ID, models.StatusOpen, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))
}
