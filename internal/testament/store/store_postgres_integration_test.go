//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"testament/internal/testament/models"
	"testament/internal/testament/store"
	id "testament/pkg/domain"
	"testament/pkg/platform/sentinel"
	txcontext "testament/pkg/platform/tx"
	"testament/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB))
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	err := s.postgres.TruncateTables(context.Background(), "testament_outbox", "bequests", "testaments")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newTestament() *models.Testament {
	t, err := models.NewTestament(id.NewTestamentID(), id.AccountID(uuid.New()), id.AccountID(uuid.New()), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), t))
	return t
}

func (s *PostgresStoreSuite) TestCreateConflict() {
	t := s.newTestament()
	s.ErrorIs(s.store.Create(context.Background(), t), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestNotFound() {
	_, err := s.store.FindByID(context.Background(), id.NewTestamentID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSaveRoundTrip() {
	ctx := context.Background()
	t := s.newTestament()
	heirA, heirB := id.AccountID(uuid.New()), id.AccountID(uuid.New())

	evA := t.ApplyBequest(heirA, 700, s.now)
	evB := t.ApplyBequest(heirB, 300, s.now)
	s.Require().NoError(s.store.Save(ctx, t, &evA, &evB))
	evDied := t.ApplyDeath(s.now)
	s.Require().NoError(s.store.Save(ctx, t, &evDied))
	t.ApplyWithdrawal(heirA, s.now)
	s.Require().NoError(s.store.Save(ctx, t))

	loaded, err := s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.False(loaded.IsAlive())
	s.Require().NotNil(loaded.Lifecycle.DiedAt)
	s.Equal(id.Amount(300), loaded.Total)
	s.Equal(id.Zero, loaded.Ledger.Of(heirA))
	s.Equal(id.Amount(300), loaded.Ledger.Of(heirB))
	s.NoError(loaded.CheckConservation())
	s.Equal(t.Version, loaded.Version)

	events, err := s.store.ListEvents(ctx, t.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	for i, ev := range events {
		s.Equal(int64(i+1), ev.Seq)
	}
	s.Equal(models.EventDied, events[2].Kind)
	s.Equal(t.Roles.Owner, events[2].Owner)
}

func (s *PostgresStoreSuite) TestRollbackDiscardsStateAndEvents() {
	ctx := context.Background()
	t := s.newTestament()

	sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := txcontext.WithTx(ctx, sqlTx)

	loaded, err := s.store.FindByID(txCtx, t.ID)
	s.Require().NoError(err)
	ev := loaded.ApplyDeath(s.now)
	s.Require().NoError(s.store.Save(txCtx, loaded, &ev))
	s.Require().NoError(sqlTx.Rollback())

	again, err := s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.True(again.IsAlive())
	events, err := s.store.ListEvents(ctx, t.ID)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *PostgresStoreSuite) TestOutboxPublishing() {
	ctx := context.Background()
	t := s.newTestament()
	ev := t.ApplyDeath(s.now)
	s.Require().NoError(s.store.Save(ctx, t, &ev))

	pending, err := s.store.PendingEvents(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(ev.ID, pending[0].ID)

	s.Require().NoError(s.store.MarkPublished(ctx, []id.EventID{ev.ID}, s.now))
	pending, err = s.store.PendingEvents(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *PostgresStoreSuite) TestHeldEvents() {
	ctx := context.Background()
	t := s.newTestament()
	heir := id.AccountID(uuid.New())
	died := t.ApplyDeath(s.now)
	s.Require().NoError(s.store.Save(ctx, t, &died))

	s.Run("held event is hidden until released", func() {
		held := models.Withdrew(t.ID, heir, 5, s.now)
		held.Held = true
		s.Require().NoError(s.store.Save(ctx, t, &held))

		events, err := s.store.ListEvents(ctx, t.ID)
		s.Require().NoError(err)
		s.Len(events, 1)
		pending, err := s.store.PendingEvents(ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(died.ID, pending[0].ID)

		s.Require().NoError(s.store.ReleaseEvent(ctx, held.ID))
		events, err = s.store.ListEvents(ctx, t.ID)
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("discard inside a transaction rolls back with it", func() {
		held := models.Withdrew(t.ID, heir, 7, s.now)
		held.Held = true
		s.Require().NoError(s.store.Save(ctx, t, &held))

		sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
		s.Require().NoError(err)
		s.Require().NoError(s.store.DiscardEvent(txcontext.WithTx(ctx, sqlTx), held.ID))
		s.Require().NoError(sqlTx.Rollback())
		s.Require().NoError(s.store.ReleaseEvent(ctx, held.ID))

		s.Require().NoError(s.store.MarkPublished(ctx, []id.EventID{held.ID}, s.now))
		s.ErrorIs(s.store.DiscardEvent(ctx, held.ID), sentinel.ErrNotFound)
	})
}
