//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conforma/internal/capa/models"
	"conforma/internal/capa/store"
	"conforma/pkg/domain"
	"conforma/pkg/platform/sentinel"
	"conforma/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	err := store.EnsureSchema(context.Background(), s.postgres.DB)
	s.Require().NoError(err)
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "capas")
	s.Require().NoError(err)
}

func newTestAction(createdAt time.Time) *models.CAPA {
	c, err := models.NewCAPA(domain.NewCAPAID(), models.CreateInput{
		Title: "Requalify the anodize bath",
	}, createdAt)
	if err != nil {
		panic(err)
	}
	return c
}

// TestDocumentRoundTrip verifies that the ordered action list and the source
// backlink survive the JSONB round trip.
func (s *PostgresStoreSuite) TestDocumentRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	source := domain.NewNCRID()
	c := models.NewGeneratedCAPA(domain.NewCAPAID(), models.GeneratedInput{
		SourceNCRID: source,
		NCRNumber:   "RCV-20250206-1405",
		NCRTitle:    "Cracked casting",
		ReviewLead:  7 * 24 * time.Hour,
	}, now)
	s.Require().NoError(s.store.Create(ctx, c))

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)
	s.Equal(c.Number, found.Number)
	s.Equal(models.StatusOpen, found.Status, "generated actions start open")
	s.Equal(models.PriorityHigh, found.Priority)
	s.Require().NotNil(found.SourceNCRID)
	s.Equal(source, *found.SourceNCRID)
	s.Require().NotNil(found.ScheduledReviewDate)
	s.Equal(now.Add(7*24*time.Hour).UnixNano(), found.ScheduledReviewDate.UnixNano())
	s.Equal("Pending investigation", found.RootCause)
	s.NotNil(found.Actions, "empty action list must round trip as [], not null")
	s.Empty(found.Actions)
}

// TestStatusColumnTracksDocument verifies the denormalized status column
// follows updates, since List filters on the column rather than the document.
func (s *PostgresStoreSuite) TestStatusColumnTracksDocument() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	c := newTestAction(now)
	s.Require().NoError(s.store.Create(ctx, c))

	s.Require().NoError(c.Transition(models.StatusOpen, "qa.lead@conforma.io", "", now.Add(time.Second)))
	s.Require().NoError(s.store.Update(ctx, c))

	open, err := s.store.List(ctx, models.Filter{Status: models.StatusOpen})
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal(c.ID, open[0].ID)
	s.Require().Len(open[0].Actions, 1, "transition must persist its status_change entry")
	s.Equal(models.ActionStatusChange, open[0].Actions[0].Type)

	draft, err := s.store.List(ctx, models.Filter{Status: models.StatusDraft})
	s.Require().NoError(err)
	s.Empty(draft)
}

// TestListOrdersNewestFirst verifies creation-time ordering.
func (s *PostgresStoreSuite) TestListOrdersNewestFirst() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	older := newTestAction(base)
	s.Require().NoError(s.store.Create(ctx, older))
	newer := newTestAction(base.Add(time.Second))
	s.Require().NoError(s.store.Create(ctx, newer))

	listed, err := s.store.List(ctx, models.Filter{})
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(newer.ID, listed[0].ID)
	s.Equal(older.ID, listed[1].ID)
}

// TestConcurrentCASUpdate verifies exactly one winner per version.
func (s *PostgresStoreSuite) TestConcurrentCASUpdate() {
	ctx := context.Background()
	c := newTestAction(time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, c))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			stale := c.Clone()
			stale.Description = "racing writer"
			err := s.store.Update(ctx, stale)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one update should win the version race")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get conflict")
}

// TestUpdateMissReasons verifies not-found versus version-conflict
// discrimination on a failed CAS.
func (s *PostgresStoreSuite) TestUpdateMissReasons() {
	ctx := context.Background()

	ghost := newTestAction(time.Now().UTC())
	err := s.store.Update(ctx, ghost)
	s.ErrorIs(err, sentinel.ErrNotFound)

	c := newTestAction(time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, c))

	stale := c.Clone()
	s.Require().NoError(s.store.Update(ctx, c))

	err = s.store.Update(ctx, stale)
	s.ErrorIs(err, sentinel.ErrConflict)
}
