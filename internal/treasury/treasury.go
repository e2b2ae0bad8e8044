// Package treasury implements the value-transfer boundary the testament service
// collects bequests through and pays withdrawals out of.
package treasury

import (
	"context"
	"log/slog"
	"sync"

	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
)

// Hook runs before a transfer is applied. Returning an error fails the transfer
// with no effect. Hooks run without the treasury lock held and may call back
// into the service.
type Hook func(ctx context.Context, account id.AccountID, amount id.Amount) error

// InMemory tracks each account's net position against the pool: collecting
// debits the account, paying credits it. Positions may go negative; funding of
// the external account is out of scope. State lives only as long as the
// process, so it pairs with the in-memory store; use Postgres alongside a
// durable store.
type InMemory struct {
	mu        sync.Mutex
	positions map[id.AccountID]int64
	pool      int64

	beforeCollect Hook
	beforePay     Hook
	logger        *slog.Logger
}

type Option func(*InMemory)

func WithBeforeCollect(h Hook) Option {
	return func(t *InMemory) { t.beforeCollect = h }
}

func WithBeforePay(h Hook) Option {
	return func(t *InMemory) { t.beforePay = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *InMemory) { t.logger = logger }
}

func NewInMemory(opts ...Option) *InMemory {
	t := &InMemory{positions: make(map[id.AccountID]int64)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *InMemory) Collect(ctx context.Context, from id.AccountID, amount id.Amount) error {
	if amount < 0 {
		return dErrors.New(dErrors.CodeValidation, id.ReasonNegativeAmount)
	}
	if t.beforeCollect != nil {
		if err := t.beforeCollect(ctx, from, amount); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.positions[from] -= amount.Int64()
	t.pool += amount.Int64()
	t.mu.Unlock()
	t.log(ctx, "collected", from, amount)
	return nil
}

func (t *InMemory) Pay(ctx context.Context, to id.AccountID, amount id.Amount) error {
	if amount < 0 {
		return dErrors.New(dErrors.CodeValidation, id.ReasonNegativeAmount)
	}
	if t.beforePay != nil {
		if err := t.beforePay(ctx, to, amount); err != nil {
			return err
		}
	}
	t.mu.Lock()
	if t.pool < amount.Int64() {
		t.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidState, msgPoolExhausted)
	}
	t.pool -= amount.Int64()
	t.positions[to] += amount.Int64()
	t.mu.Unlock()
	t.log(ctx, "paid", to, amount)
	return nil
}

// Position returns the account's net position.
func (t *InMemory) Position(account id.AccountID) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positions[account]
}

// Pool returns the amount currently held.
func (t *InMemory) Pool() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pool
}

func (t *InMemory) log(ctx context.Context, msg string, account id.AccountID, amount id.Amount) {
	if t.logger == nil {
		return
	}
	t.logger.DebugContext(ctx, "treasury "+msg,
		"account", account,
		"amount", amount.Int64(),
	)
}
