package service

import (
	"context"

	"testament/internal/testament/models"
	id "testament/pkg/domain"
)

// Store persists testaments and their notification outbox. Implementations read
// any transaction from the context (see pkg/platform/tx) so that a Save and the
// events it carries commit together.
type Store interface {
	Create(ctx context.Context, t *models.Testament) error
	// FindByID returns a copy; with an active transaction the row is locked
	// until the transaction ends.
	FindByID(ctx context.Context, testamentID id.TestamentID) (*models.Testament, error)
	// Save persists the aggregate and appends events, assigning their ID and Seq.
	Save(ctx context.Context, t *models.Testament, events ...*models.Event) error
	// ReleaseEvent publishes a previously held event; DiscardEvent drops it.
	ReleaseEvent(ctx context.Context, eventID id.EventID) error
	DiscardEvent(ctx context.Context, eventID id.EventID) error
	ListEvents(ctx context.Context, testamentID id.TestamentID) ([]models.Event, error)
}

// StoreTx provides a transactional boundary for store mutations. Implementations
// may wrap a database transaction or, in memory, a lock; either way operations on
// one testament are serialized and see each other's effects only once committed.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Treasury moves currency between external accounts and the pooled balance.
// Each call either fully succeeds or fully fails. Pay may re-enter the service
// before returning.
type Treasury interface {
	Collect(ctx context.Context, from id.AccountID, amount id.Amount) error
	Pay(ctx context.Context, to id.AccountID, amount id.Amount) error
}

// SnapshotCache fronts the query surface. A miss returns sentinel.ErrNotFound.
// Set keeps whichever snapshot carries the higher Version, so a slow read can
// never overwrite the snapshot of a later commit.
type SnapshotCache interface {
	Get(ctx context.Context, testamentID id.TestamentID) (*models.Snapshot, error)
	Set(ctx context.Context, snapshot *models.Snapshot) error
	Invalidate(ctx context.Context, testamentID id.TestamentID) error
}
