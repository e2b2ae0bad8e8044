package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Store,StoreTx,Treasury,SnapshotCache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"testament/internal/testament/models"
	"testament/internal/testament/service/mocks"
	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
	"testament/pkg/platform/sentinel"
)

type mockDeps struct {
	store    *mocks.MockStore
	treasury *mocks.MockTreasury
	cache    *mocks.MockSnapshotCache
	service  *Service
}

func newMockDeps(t *testing.T) *mockDeps {
	ctrl := gomock.NewController(t)
	d := &mockDeps{
		store:    mocks.NewMockStore(ctrl),
		treasury: mocks.NewMockTreasury(ctrl),
		cache:    mocks.NewMockSnapshotCache(ctrl),
	}
	d.service = New(d.store, d.treasury, WithCache(d.cache))
	return d
}

func aliveTestament(t *testing.T, owner, doctor id.AccountID) *models.Testament {
	tm, err := models.NewTestament(id.NewTestamentID(), owner, doctor, time.Now())
	require.NoError(t, err)
	return tm
}

func TestGet_CacheHitSkipsStore(t *testing.T) {
	d := newMockDeps(t)
	testamentID := id.NewTestamentID()
	snap := &models.Snapshot{ID: testamentID, Owner: newAccount(), Doctor: newAccount(), Alive: true, Total: 5}

	d.cache.EXPECT().Get(gomock.Any(), testamentID).Return(snap, nil)

	got, err := d.service.Get(context.Background(), testamentID)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestGet_CacheMissReadsThrough(t *testing.T) {
	d := newMockDeps(t)
	tm := aliveTestament(t, newAccount(), newAccount())

	gomock.InOrder(
		d.cache.EXPECT().Get(gomock.Any(), tm.ID).Return(nil, sentinel.ErrNotFound),
		d.store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm, nil),
		d.cache.EXPECT().Set(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, snap *models.Snapshot) error {
				assert.Equal(t, tm.ID, snap.ID)
				return nil
			}),
	)

	got, err := d.service.Get(context.Background(), tm.ID)
	require.NoError(t, err)
	assert.True(t, got.Alive)
}

func TestGet_CacheErrorFallsBackToStore(t *testing.T) {
	d := newMockDeps(t)
	tm := aliveTestament(t, newAccount(), newAccount())

	d.cache.EXPECT().Get(gomock.Any(), tm.ID).Return(nil, errors.New("redis down"))
	d.store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm, nil)
	d.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	got, err := d.service.Get(context.Background(), tm.ID)
	require.NoError(t, err)
	assert.Equal(t, tm.Roles.Owner, got.Owner)
}

func TestBequeath_SaveFailureRefundsOwner(t *testing.T) {
	d := newMockDeps(t)
	owner, heir := newAccount(), newAccount()
	tm := aliveTestament(t, owner, newAccount())

	gomock.InOrder(
		d.store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm, nil),
		d.treasury.EXPECT().Collect(gomock.Any(), owner, id.Amount(40)).Return(nil),
		d.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
		d.treasury.EXPECT().Pay(gomock.Any(), owner, id.Amount(40)).Return(nil),
	)

	err := d.service.Bequeath(context.Background(), tm.ID, owner, heir, 40)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestBequeath_CommitFailureRefundsOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	treasury := mocks.NewMockTreasury(ctrl)
	storeTx := mocks.NewMockStoreTx(ctrl)
	svc := New(store, treasury, WithStoreTx(storeTx))

	owner, heir := newAccount(), newAccount()
	tm := aliveTestament(t, owner, newAccount())

	storeTx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			if err := fn(ctx); err != nil {
				return err
			}
			return errors.New("commit failed")
		})
	gomock.InOrder(
		store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm, nil),
		treasury.EXPECT().Collect(gomock.Any(), owner, id.Amount(40)).Return(nil),
		store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
		treasury.EXPECT().Pay(gomock.Any(), owner, id.Amount(40)).Return(nil),
	)

	err := svc.Bequeath(context.Background(), tm.ID, owner, heir, 40)
	require.Error(t, err)
}

func TestBequeath_GuardFailureNeverTouchesTreasury(t *testing.T) {
	d := newMockDeps(t)
	owner := newAccount()
	tm := aliveTestament(t, owner, newAccount())

	d.store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm, nil)

	err := d.service.Bequeath(context.Background(), tm.ID, newAccount(), newAccount(), 40)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestWithdraw_PayoutFailureRestoresEntry(t *testing.T) {
	d := newMockDeps(t)
	owner, doctor, heir := newAccount(), newAccount(), newAccount()
	tm := aliveTestament(t, owner, doctor)
	tm.ApplyBequest(heir, 90, time.Now())
	tm.ApplyDeath(time.Now())
	afterWithdraw := tm.Clone()
	afterWithdraw.ApplyWithdrawal(heir, time.Now())

	var noticeID id.EventID
	gomock.InOrder(
		d.store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm.Clone(), nil),
		d.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, saved *models.Testament, events ...*models.Event) error {
				assert.Equal(t, id.Zero, saved.Ledger.Of(heir))
				assert.Equal(t, id.Zero, saved.Total)
				require.Len(t, events, 1)
				assert.Equal(t, models.EventWithdrew, events[0].Kind)
				assert.True(t, events[0].Held)
				events[0].ID = id.NewEventID()
				noticeID = events[0].ID
				return nil
			}),
		d.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil),
		d.treasury.EXPECT().Pay(gomock.Any(), heir, id.Amount(90)).Return(errors.New("rejected")),
		d.store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(afterWithdraw, nil),
		d.store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, saved *models.Testament, _ ...*models.Event) error {
				assert.Equal(t, id.Amount(90), saved.Ledger.Of(heir))
				assert.Equal(t, id.Amount(90), saved.Total)
				return nil
			}),
		d.store.EXPECT().DiscardEvent(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, eventID id.EventID) error {
				assert.Equal(t, noticeID, eventID)
				return nil
			}),
		d.cache.EXPECT().Set(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, snap *models.Snapshot) error {
				assert.Equal(t, id.Amount(90), snap.Total)
				return nil
			}),
	)

	_, err := d.service.Withdraw(context.Background(), tm.ID, heir)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestWithdraw_CommitFailureSkipsPayout(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	treasury := mocks.NewMockTreasury(ctrl)
	storeTx := mocks.NewMockStoreTx(ctrl)
	svc := New(store, treasury, WithStoreTx(storeTx))

	heir := newAccount()
	tm := aliveTestament(t, newAccount(), newAccount())
	tm.ApplyBequest(heir, 10, time.Now())
	tm.ApplyDeath(time.Now())

	storeTx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			if err := fn(ctx); err != nil {
				return err
			}
			return errors.New("commit failed")
		})
	store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm, nil)
	store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.Withdraw(context.Background(), tm.ID, heir)
	require.Error(t, err)
}

func TestWithdraw_ReleaseFailureKeepsPayout(t *testing.T) {
	d := newMockDeps(t)
	heir := newAccount()
	tm := aliveTestament(t, newAccount(), newAccount())
	tm.ApplyBequest(heir, 10, time.Now())
	tm.ApplyDeath(time.Now())

	d.store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm, nil)
	d.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.cache.EXPECT().Set(gomock.Any(), gomock.Any()).Return(nil)
	d.treasury.EXPECT().Pay(gomock.Any(), heir, id.Amount(10)).Return(nil)
	d.store.EXPECT().ReleaseEvent(gomock.Any(), gomock.Any()).Return(errors.New("outbox unavailable"))

	paid, err := d.service.Withdraw(context.Background(), tm.ID, heir)
	require.NoError(t, err)
	assert.Equal(t, id.Amount(10), paid)
}

func TestDeclareDeath_CacheRefreshFailureDropsKey(t *testing.T) {
	d := newMockDeps(t)
	doctor := newAccount()
	tm := aliveTestament(t, newAccount(), doctor)

	gomock.InOrder(
		d.store.EXPECT().FindByID(gomock.Any(), tm.ID).Return(tm, nil),
		d.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil),
		d.cache.EXPECT().Set(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, snap *models.Snapshot) error {
				assert.False(t, snap.Alive)
				assert.Equal(t, int64(1), snap.Version)
				return errors.New("redis down")
			}),
		d.cache.EXPECT().Invalidate(gomock.Any(), tm.ID).Return(nil),
	)

	require.NoError(t, d.service.DeclareDeath(context.Background(), tm.ID, doctor))
}

func TestDeploy_ConflictMapsToConflictCode(t *testing.T) {
	d := newMockDeps(t)
	d.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

	_, err := d.service.Deploy(context.Background(), newAccount(), newAccount(), newAccount())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}
