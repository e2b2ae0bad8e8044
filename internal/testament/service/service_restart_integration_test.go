//go:build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testament/internal/testament/service"
	"testament/internal/testament/store"
	"testament/internal/treasury"
	id "testament/pkg/domain"
	"testament/pkg/requestcontext"
	"testament/pkg/testutil/containers"
)

// TestWithdrawAfterRestart builds a second service over the same database, as a
// restarted process would, and pays out a bequest collected by the first.
func TestWithdrawAfterRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := requestcontext.WithTime(context.Background(), time.Now().UTC())
	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, store.Migrate(ctx, pg.DB))
	require.NoError(t, treasury.Migrate(ctx, pg.DB))
	require.NoError(t, pg.TruncateTables(ctx, "testament_outbox", "bequests", "testaments", "treasury_positions", "treasury_pool"))

	open := func() (*service.Service, *treasury.Postgres) {
		funds := treasury.NewPostgres(pg.DB)
		return service.New(store.NewPostgres(pg.DB), funds, service.WithStoreTx(store.NewPostgresTx(pg.DB))), funds
	}
	owner, doctor, heir := id.AccountID(uuid.New()), id.AccountID(uuid.New()), id.AccountID(uuid.New())

	before, _ := open()
	tm, err := before.Deploy(ctx, owner, owner, doctor)
	require.NoError(t, err)
	require.NoError(t, before.Bequeath(ctx, tm.ID, owner, heir, 1000))
	require.NoError(t, before.DeclareDeath(ctx, tm.ID, doctor))

	after, funds := open()
	paid, err := after.Withdraw(ctx, tm.ID, heir)
	require.NoError(t, err)
	assert.Equal(t, id.Amount(1000), paid)

	position, err := funds.Position(ctx, heir)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), position)
	pool, err := funds.Pool(ctx)
	require.NoError(t, err)
	assert.Zero(t, pool)

	events, err := after.Events(ctx, tm.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "withdrew", string(events[2].Kind))
}
