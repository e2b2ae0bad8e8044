package treasury

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
)

//go:embed schema.sql
var schema string

const msgPoolExhausted = "treasury pool exhausted"

// Migrate creates the treasury tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply treasury schema: %w", err)
	}
	return nil
}

// Postgres keeps net positions and the pooled balance in PostgreSQL, so funds
// collected before a restart can still be paid out after it. Every transfer
// commits in its own transaction and ignores any transaction carried by the
// caller's context: the service treats the treasury as an external system and
// compensates a transfer whose recording failed.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

type PostgresOption func(*Postgres)

func WithPostgresLogger(logger *slog.Logger) PostgresOption {
	return func(t *Postgres) { t.logger = logger }
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	t := &Postgres{db: db}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Postgres) Collect(ctx context.Context, from id.AccountID, amount id.Amount) error {
	if amount < 0 {
		return dErrors.New(dErrors.CodeValidation, id.ReasonNegativeAmount)
	}
	err := t.transfer(ctx, func(tx *sql.Tx) error {
		if err := adjustPosition(ctx, tx, from, -amount.Int64()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO treasury_pool (id, balance) VALUES (1, $1)
			ON CONFLICT (id) DO UPDATE SET balance = treasury_pool.balance + EXCLUDED.balance
		`, amount.Int64())
		if err != nil {
			return fmt.Errorf("credit pool: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.log(ctx, "collected", from, amount)
	return nil
}

// Pay fails with invalid_state when the pool cannot cover amount.
func (t *Postgres) Pay(ctx context.Context, to id.AccountID, amount id.Amount) error {
	if amount < 0 {
		return dErrors.New(dErrors.CodeValidation, id.ReasonNegativeAmount)
	}
	err := t.transfer(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE treasury_pool SET balance = balance - $1
			WHERE id = 1 AND balance >= $1
		`, amount.Int64())
		if err != nil {
			return fmt.Errorf("debit pool: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit pool: %w", err)
		}
		if n == 0 {
			return dErrors.New(dErrors.CodeInvalidState, msgPoolExhausted)
		}
		return adjustPosition(ctx, tx, to, amount.Int64())
	})
	if err != nil {
		return err
	}
	t.log(ctx, "paid", to, amount)
	return nil
}

// Position returns the account's net position.
func (t *Postgres) Position(ctx context.Context, account id.AccountID) (int64, error) {
	var position int64
	err := t.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT position FROM treasury_positions WHERE account_id = $1), 0)
	`, uuid.UUID(account)).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("read position: %w", err)
	}
	return position, nil
}

// Pool returns the amount currently held.
func (t *Postgres) Pool(ctx context.Context) (int64, error) {
	var balance int64
	err := t.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT balance FROM treasury_pool WHERE id = 1), 0)
	`).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("read pool: %w", err)
	}
	return balance, nil
}

func (t *Postgres) transfer(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

func adjustPosition(ctx context.Context, tx *sql.Tx, account id.AccountID, delta int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO treasury_positions (account_id, position) VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET position = treasury_positions.position + EXCLUDED.position
	`, uuid.UUID(account), delta)
	if err != nil {
		return fmt.Errorf("adjust position: %w", err)
	}
	return nil
}

func (t *Postgres) log(ctx context.Context, msg string, account id.AccountID, amount id.Amount) {
	if t.logger == nil {
		return
	}
	t.logger.DebugContext(ctx, "treasury "+msg,
		"account", account,
		"amount", amount.Int64(),
	)
}
