//go:build integration

package treasury_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"testament/internal/treasury"
	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
	"testament/pkg/testutil/containers"
)

type PostgresTreasurySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	treasury *treasury.Postgres
}

func TestPostgresTreasurySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresTreasurySuite))
}

func (s *PostgresTreasurySuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(treasury.Migrate(context.Background(), s.postgres.DB))
}

func (s *PostgresTreasurySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "treasury_positions", "treasury_pool"))
	s.treasury = treasury.NewPostgres(s.postgres.DB)
}

func (s *PostgresTreasurySuite) position(account id.AccountID) int64 {
	s.T().Helper()
	position, err := s.treasury.Position(context.Background(), account)
	s.Require().NoError(err)
	return position
}

func (s *PostgresTreasurySuite) pool() int64 {
	s.T().Helper()
	balance, err := s.treasury.Pool(context.Background())
	s.Require().NoError(err)
	return balance
}

func (s *PostgresTreasurySuite) TestCollectAndPay() {
	ctx := context.Background()
	owner, heir := id.AccountID(uuid.New()), id.AccountID(uuid.New())

	s.Require().NoError(s.treasury.Collect(ctx, owner, 100))
	s.Equal(int64(-100), s.position(owner))
	s.Equal(int64(100), s.pool())

	s.Require().NoError(s.treasury.Pay(ctx, heir, 60))
	s.Equal(int64(60), s.position(heir))
	s.Equal(int64(40), s.pool())

	err := s.treasury.Pay(ctx, heir, 41)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Equal(int64(40), s.pool())
	s.Equal(int64(60), s.position(heir))
}

func (s *PostgresTreasurySuite) TestPoolSurvivesNewInstance() {
	ctx := context.Background()
	owner, heir := id.AccountID(uuid.New()), id.AccountID(uuid.New())
	s.Require().NoError(s.treasury.Collect(ctx, owner, 1000))

	restarted := treasury.NewPostgres(s.postgres.DB)
	s.Require().NoError(restarted.Pay(ctx, heir, 1000))

	s.Equal(int64(1000), s.position(heir))
	s.Zero(s.pool())
}

func (s *PostgresTreasurySuite) TestEmptyPoolRefusesPayout() {
	err := s.treasury.Pay(context.Background(), id.AccountID(uuid.New()), 1)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Zero(s.pool())
}

func (s *PostgresTreasurySuite) TestNegativeAmountRejected() {
	ctx := context.Background()
	s.True(dErrors.HasCode(s.treasury.Collect(ctx, id.AccountID(uuid.New()), -1), dErrors.CodeValidation))
	s.True(dErrors.HasCode(s.treasury.Pay(ctx, id.AccountID(uuid.New()), -1), dErrors.CodeValidation))
}
