package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"testament/internal/testament/models"
	id "testament/pkg/domain"
	"testament/pkg/platform/sentinel"
	txcontext "testament/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const pgUniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists testaments, their ledgers and the notification outbox
// in PostgreSQL. When the context carries a transaction (see pkg/platform/tx)
// every statement runs inside it and FindByID takes a row lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply testament schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) q(ctx context.Context) (querier, bool) {
	if tx, ok := txcontext.From(ctx); ok {
		return tx, true
	}
	return s.db, false
}

func (s *PostgresStore) Create(ctx context.Context, t *models.Testament) error {
	q, _ := s.q(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO testaments (id, owner_id, doctor_id, alive, died_at, total, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(t.ID),
		uuid.UUID(t.Roles.Owner),
		uuid.UUID(t.Roles.Doctor),
		t.IsAlive(),
		t.Lifecycle.DiedAt,
		t.Total.Int64(),
		t.Version,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert testament: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, testamentID id.TestamentID) (*models.Testament, error) {
	q, inTx := s.q(ctx)
	query := `
		SELECT owner_id, doctor_id, alive, died_at, total, version, created_at, updated_at
		FROM testaments
		WHERE id = $1
	`
	if inTx {
		query += ` FOR UPDATE`
	}

	var (
		owner, doctor        uuid.UUID
		alive                bool
		diedAt               sql.NullTime
		total, version       int64
		createdAt, updatedAt time.Time
	)
	err := q.QueryRowContext(ctx, query, uuid.UUID(testamentID)).
		Scan(&owner, &doctor, &alive, &diedAt, &total, &version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find testament: %w", err)
	}
	pooled, err := id.NewAmount(total)
	if err != nil {
		return nil, fmt.Errorf("testament total: %w", err)
	}

	t := &models.Testament{
		ID:        testamentID,
		Roles:     models.Roles{Owner: id.AccountID(owner), Doctor: id.AccountID(doctor)},
		Lifecycle: models.NewLifecycle(),
		Total:     pooled,
		Ledger:    models.Ledger{},
		Version:   version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if !alive {
		t.Lifecycle.State = models.LifecycleDeceased
		if diedAt.Valid {
			at := diedAt.Time
			t.Lifecycle.DiedAt = &at
		}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT beneficiary_id, amount FROM bequests WHERE testament_id = $1
	`, uuid.UUID(testamentID))
	if err != nil {
		return nil, fmt.Errorf("load bequests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var beneficiary uuid.UUID
		var amount int64
		if err := rows.Scan(&beneficiary, &amount); err != nil {
			return nil, fmt.Errorf("scan bequest: %w", err)
		}
		owed, err := id.NewAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("bequest amount: %w", err)
		}
		t.Ledger[id.AccountID(beneficiary)] = owed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bequests: %w", err)
	}
	return t, nil
}

// Save writes the aggregate, upserts the whole ledger in one round trip and
// appends events to the outbox.
func (s *PostgresStore) Save(ctx context.Context, t *models.Testament, events ...*models.Event) error {
	q, _ := s.q(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE testaments
		SET doctor_id = $2, alive = $3, died_at = $4, total = $5, version = $6, updated_at = $7
		WHERE id = $1
	`,
		uuid.UUID(t.ID),
		uuid.UUID(t.Roles.Doctor),
		t.IsAlive(),
		t.Lifecycle.DiedAt,
		t.Total.Int64(),
		t.Version,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update testament: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}

	if len(t.Ledger) > 0 {
		beneficiaries := make([]string, 0, len(t.Ledger))
		amounts := make([]int64, 0, len(t.Ledger))
		for beneficiary, amount := range t.Ledger {
			beneficiaries = append(beneficiaries, beneficiary.String())
			amounts = append(amounts, amount.Int64())
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO bequests (testament_id, beneficiary_id, amount)
			SELECT $1, b, a FROM unnest($2::uuid[], $3::bigint[]) AS u(b, a)
			ON CONFLICT (testament_id, beneficiary_id) DO UPDATE SET
				amount = EXCLUDED.amount
		`, uuid.UUID(t.ID), pq.Array(beneficiaries), pq.Array(amounts))
		if err != nil {
			return fmt.Errorf("upsert bequests: %w", err)
		}
	}

	return s.insertEvents(ctx, q, events)
}

func (s *PostgresStore) insertEvents(ctx context.Context, q querier, events []*models.Event) error {
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.ID.IsNil() {
			ev.ID = id.NewEventID()
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		err = q.QueryRowContext(ctx, `
			INSERT INTO testament_outbox (id, testament_id, seq, kind, payload, created_at, held)
			VALUES ($1, $2, (SELECT COALESCE(MAX(seq), 0) + 1 FROM testament_outbox WHERE testament_id = $2), $3, $4, $5, $6)
			RETURNING seq
		`,
			uuid.UUID(ev.ID),
			uuid.UUID(ev.TestamentID),
			string(ev.Kind),
			payload,
			ev.OccurredAt,
			ev.Held,
		).Scan(&ev.Seq)
		if err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, testamentID id.TestamentID) ([]models.Event, error) {
	q, _ := s.q(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT seq, payload FROM testament_outbox
		WHERE testament_id = $1 AND NOT held
		ORDER BY seq
	`, uuid.UUID(testamentID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return scanEvents(rows)
}

// ReleaseEvent makes a held event visible to ListEvents and the outbox.
func (s *PostgresStore) ReleaseEvent(ctx context.Context, eventID id.EventID) error {
	q, _ := s.q(ctx)
	res, err := q.ExecContext(ctx, `UPDATE testament_outbox SET held = FALSE WHERE id = $1`, uuid.UUID(eventID))
	if err != nil {
		return fmt.Errorf("release event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// DiscardEvent deletes an event that has not been published. Published and
// unknown events are not found.
func (s *PostgresStore) DiscardEvent(ctx context.Context, eventID id.EventID) error {
	q, _ := s.q(ctx)
	res, err := q.ExecContext(ctx, `
		DELETE FROM testament_outbox WHERE id = $1 AND published_at IS NULL
	`, uuid.UUID(eventID))
	if err != nil {
		return fmt.Errorf("discard event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PendingEvents returns up to limit unpublished events, oldest first.
func (s *PostgresStore) PendingEvents(ctx context.Context, limit int) ([]models.Event, error) {
	q, _ := s.q(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT seq, payload FROM testament_outbox
		WHERE published_at IS NULL AND NOT held
		ORDER BY created_at, testament_id, seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending events: %w", err)
	}
	return scanEvents(rows)
}

func (s *PostgresStore) MarkPublished(ctx context.Context, eventIDs []id.EventID, at time.Time) error {
	if len(eventIDs) == 0 {
		return nil
	}
	ids := make([]string, len(eventIDs))
	for i, eventID := range eventIDs {
		ids[i] = eventID.String()
	}
	q, _ := s.q(ctx)
	_, err := q.ExecContext(ctx, `
		UPDATE testament_outbox SET published_at = $2
		WHERE id = ANY($1::uuid[]) AND published_at IS NULL
	`, pq.Array(ids), at)
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	defer rows.Close()
	var out []models.Event
	for rows.Next() {
		var seq int64
		var payload []byte
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev models.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		ev.Seq = seq
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}
