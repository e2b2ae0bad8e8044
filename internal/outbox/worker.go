// Package outbox relays committed testament notifications to downstream
// consumers. Events are written to the outbox in the same transaction as the
// state change; the worker publishes them afterwards and marks them published,
// giving at-least-once delivery in per-testament order.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"testament/internal/testament/models"
	id "testament/pkg/domain"
	"testament/pkg/platform/circuit"
)

// Source is the outbox side of the testament store.
type Source interface {
	PendingEvents(ctx context.Context, limit int) ([]models.Event, error)
	MarkPublished(ctx context.Context, eventIDs []id.EventID, at time.Time) error
}

// Publisher delivers a batch of events. It either delivers all of them or
// returns an error; a failed batch is retried on the next poll.
type Publisher interface {
	Publish(ctx context.Context, events []models.Event) error
}

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

type Worker struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
	breaker   *circuit.Breaker
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithBreaker stops publish attempts while the publisher keeps failing. Pending
// events stay in the outbox until a probe succeeds.
func WithBreaker(b *circuit.Breaker) Option {
	return func(w *Worker) { w.breaker = b }
}

func NewWorker(source Source, publisher Publisher, opts ...Option) *Worker {
	w := &Worker{
		source:    source,
		publisher: publisher,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Publish failures are logged and retried;
// only cancellation stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Drain(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logError(ctx, "outbox relay failed", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain publishes pending events batch by batch until none remain and returns
// how many were published.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	published := 0
	for {
		events, err := w.source.PendingEvents(ctx, w.batchSize)
		if err != nil {
			return published, err
		}
		if len(events) == 0 {
			return published, nil
		}
		if w.breaker != nil && !w.breaker.Allow() {
			return published, nil
		}
		if err := w.publisher.Publish(ctx, events); err != nil {
			w.metrics.IncrementFailed(len(events))
			w.recordFailure(ctx)
			return published, err
		}
		w.recordSuccess(ctx)
		ids := make([]id.EventID, len(events))
		for i, ev := range events {
			ids[i] = ev.ID
		}
		if err := w.source.MarkPublished(ctx, ids, time.Now()); err != nil {
			return published, err
		}
		w.metrics.IncrementPublished(len(events))
		published += len(events)
		if len(events) < w.batchSize {
			return published, nil
		}
	}
}

func (w *Worker) recordFailure(ctx context.Context) {
	if w.breaker == nil {
		return
	}
	if _, change := w.breaker.RecordFailure(); change.Opened && w.logger != nil {
		w.logger.WarnContext(ctx, "outbox publisher circuit opened", "breaker", w.breaker.Name())
	}
}

func (w *Worker) recordSuccess(ctx context.Context) {
	if w.breaker == nil {
		return
	}
	if _, change := w.breaker.RecordSuccess(); change.Closed && w.logger != nil {
		w.logger.InfoContext(ctx, "outbox publisher circuit closed", "breaker", w.breaker.Name())
	}
}

func (w *Worker) logError(ctx context.Context, msg string, err error) {
	if w.logger == nil {
		return
	}
	w.logger.ErrorContext(ctx, msg, "error", err)
}
