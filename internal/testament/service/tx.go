package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
)

// numTestamentShards spreads testaments over independent locks so unrelated
// testaments do not contend.
const numTestamentShards = 64

// defaultTxTimeout is the maximum duration for a testament transaction.
const defaultTxTimeout = 5 * time.Second

// shardedTx serializes in-memory transactions per testament using sharded mutexes.
// The shard is chosen from the testament ID placed in the context with
// withTxTestament; operations without one share shard 0.
type shardedTx struct {
	shards  [numTestamentShards]sync.Mutex
	timeout time.Duration
}

// NewInMemoryTx returns the StoreTx used with the in-memory store.
func NewInMemoryTx() StoreTx {
	return &shardedTx{}
}

func (t *shardedTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

func selectShard(ctx context.Context) int {
	if testamentID, ok := ctx.Value(txTestamentKeyCtx).(id.TestamentID); ok && !testamentID.IsNil() {
		h := fnv.New32a()
		_, _ = h.Write(testamentID[:])
		return int(h.Sum32() % numTestamentShards)
	}
	return 0
}

type txTestamentKey struct{}

var txTestamentKeyCtx = txTestamentKey{}

// withTxTestament scopes the next transaction to one testament.
func withTxTestament(ctx context.Context, testamentID id.TestamentID) context.Context {
	return context.WithValue(ctx, txTestamentKeyCtx, testamentID)
}
