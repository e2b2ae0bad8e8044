package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	tmetrics "testament/internal/testament/metrics"
	"testament/internal/testament/models"
	id "testament/pkg/domain"
	dErrors "testament/pkg/domain-errors"
	"testament/pkg/platform/sentinel"
	"testament/pkg/requestcontext"
)

const tracerName = "testament/internal/testament/service"

// Operation names used for logs, metrics and spans.
const (
	opDeploy       = "deploy"
	opChangeDoctor = "change_doctor"
	opDeclareDeath = "declare_death"
	opBequeath     = "bequeath"
	opWithdraw     = "withdraw"
)

// Service orchestrates the testament lifecycle: role checks, the one-way death
// transition, the bequest ledger and payouts. Every mutation runs inside
// StoreTx and records its notification in the same transaction.
type Service struct {
	store    Store
	tx       StoreTx
	treasury Treasury
	cache    SnapshotCache
	logger   *slog.Logger
	metrics  *tmetrics.Metrics
	tracer   trace.Tracer
}

type Option func(s *Service)

// WithStoreTx sets the transaction boundary; defaults to in-memory sharded locks.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithCache(cache SnapshotCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *tmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(store Store, treasury Treasury, opts ...Option) *Service {
	s := &Service{store: store, treasury: treasury}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewInMemoryTx()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Deploy creates a testament for owner with doctor as attester.
func (s *Service) Deploy(ctx context.Context, deployer, owner, doctor id.AccountID) (_ *models.Testament, err error) {
	testamentID := id.NewTestamentID()
	ctx, finish := s.begin(ctx, opDeploy, testamentID, deployer)
	defer func() { finish(err) }()

	t, err := models.NewTestament(testamentID, owner, doctor, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = s.tx.RunInTx(withTxTestament(ctx, testamentID), func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, t); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "testament already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create testament")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementDeployed()
	s.logEvent(ctx, "testament_deployed",
		"testament_id", testamentID,
		"deployer", deployer,
		"owner", owner,
		"doctor", doctor,
	)
	return t, nil
}

// ChangeDoctor lets the living owner appoint a new doctor.
func (s *Service) ChangeDoctor(ctx context.Context, testamentID id.TestamentID, caller, newDoctor id.AccountID) (err error) {
	ctx, finish := s.begin(ctx, opChangeDoctor, testamentID, caller)
	defer func() { finish(err) }()

	err = s.mutate(ctx, testamentID, func(t *models.Testament, now time.Time) (*models.Event, error) {
		ev, err := t.ChangeDoctor(caller, newDoctor, now)
		if err != nil {
			return nil, err
		}
		return &ev, nil
	})
	if err != nil {
		return err
	}
	s.logEvent(ctx, string(models.EventDoctorChanged), "testament_id", testamentID, "doctor", newDoctor)
	return nil
}

// DeclareDeath lets the current doctor move the testament to deceased. The
// transition is permanent.
func (s *Service) DeclareDeath(ctx context.Context, testamentID id.TestamentID, caller id.AccountID) (err error) {
	ctx, finish := s.begin(ctx, opDeclareDeath, testamentID, caller)
	defer func() { finish(err) }()

	err = s.mutate(ctx, testamentID, func(t *models.Testament, now time.Time) (*models.Event, error) {
		ev, err := t.DeclareDeath(caller, now)
		if err != nil {
			return nil, err
		}
		return &ev, nil
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementDeaths()
	s.logEvent(ctx, string(models.EventDied), "testament_id", testamentID, "doctor", caller)
	return nil
}

// Bequeath moves amount from the owner into the pooled balance and credits it to
// beneficiary. Collection and recording are one step: if either fails neither
// is kept.
func (s *Service) Bequeath(ctx context.Context, testamentID id.TestamentID, caller, beneficiary id.AccountID, amount id.Amount) (err error) {
	ctx, finish := s.begin(ctx, opBequeath, testamentID, caller)
	defer func() { finish(err) }()

	var committed *models.Testament
	collected := false
	err = s.tx.RunInTx(withTxTestament(ctx, testamentID), func(txCtx context.Context) error {
		t, err := s.load(txCtx, testamentID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(txCtx)
		if err := t.CanBequeath(caller, beneficiary, amount); err != nil {
			return err
		}
		if err := s.treasury.Collect(txCtx, caller, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to collect bequest funds")
		}
		collected = true
		ev := t.ApplyBequest(beneficiary, amount, now)
		if err := s.store.Save(txCtx, t, &ev); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record bequest")
		}
		committed = t
		return nil
	})
	if err != nil {
		// A failed save or commit leaves nothing recorded; hand the funds back.
		if collected {
			s.refund(ctx, caller, amount)
		}
		return err
	}

	s.refreshSnapshot(ctx, committed)
	s.metrics.AddDeposited(amount.Int64())
	s.logEvent(ctx, string(models.EventBequeathed),
		"testament_id", testamentID,
		"beneficiary", beneficiary,
		"amount", amount.Int64(),
	)
	return nil
}

// Get returns the query surface of a testament. A cache miss reads through;
// the cache refuses the write if a newer snapshot landed meanwhile.
func (s *Service) Get(ctx context.Context, testamentID id.TestamentID) (*models.Snapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.Get(ctx, testamentID)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.WarnContext(ctx, "snapshot cache read failed",
				"testament_id", testamentID,
				"error", err,
			)
		}
	}

	t, err := s.load(ctx, testamentID)
	if err != nil {
		return nil, err
	}
	snap := t.Snapshot()
	if s.cache != nil {
		if err := s.cache.Set(ctx, &snap); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "snapshot cache write failed",
				"testament_id", testamentID,
				"error", err,
			)
		}
	}
	return &snap, nil
}

// BenefactorOf returns the unclaimed amount recorded for account.
func (s *Service) BenefactorOf(ctx context.Context, testamentID id.TestamentID, account id.AccountID) (id.Amount, error) {
	t, err := s.load(ctx, testamentID)
	if err != nil {
		return id.Zero, err
	}
	return t.Ledger.Of(account), nil
}

// Bequests lists every unclaimed ledger entry.
func (s *Service) Bequests(ctx context.Context, testamentID id.TestamentID) ([]models.Bequest, error) {
	t, err := s.load(ctx, testamentID)
	if err != nil {
		return nil, err
	}
	return t.Ledger.Entries(), nil
}

// Events lists the notifications emitted by a testament in emission order.
func (s *Service) Events(ctx context.Context, testamentID id.TestamentID) ([]models.Event, error) {
	if _, err := s.load(ctx, testamentID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, testamentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
	}
	return events, nil
}

// mutate runs one guarded state change and persists it together with its event.
func (s *Service) mutate(ctx context.Context, testamentID id.TestamentID, apply func(t *models.Testament, now time.Time) (*models.Event, error)) error {
	var committed *models.Testament
	err := s.tx.RunInTx(withTxTestament(ctx, testamentID), func(txCtx context.Context) error {
		t, err := s.load(txCtx, testamentID)
		if err != nil {
			return err
		}
		ev, err := apply(t, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.store.Save(txCtx, t, ev); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save testament")
		}
		committed = t
		return nil
	})
	if err != nil {
		return err
	}
	s.refreshSnapshot(ctx, committed)
	return nil
}

func (s *Service) load(ctx context.Context, testamentID id.TestamentID) (*models.Testament, error) {
	t, err := s.store.FindByID(ctx, testamentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "testament not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load testament")
	}
	return t, nil
}

// refreshSnapshot writes committed state through to the cache. When that fails
// the key is dropped so readers fall back to the store.
func (s *Service) refreshSnapshot(ctx context.Context, t *models.Testament) {
	if s.cache == nil || t == nil {
		return
	}
	snap := t.Snapshot()
	err := s.cache.Set(ctx, &snap)
	if err == nil {
		return
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "snapshot cache refresh failed",
			"testament_id", t.ID,
			"version", t.Version,
			"error", err,
		)
	}
	if err := s.cache.Invalidate(ctx, t.ID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "snapshot cache invalidation failed",
			"testament_id", t.ID,
			"error", err,
		)
	}
}

// refund returns collected funds when the bequest could not be recorded.
func (s *Service) refund(ctx context.Context, owner id.AccountID, amount id.Amount) {
	if err := s.treasury.Pay(context.WithoutCancel(ctx), owner, amount); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: bequest refund failed",
			"owner", owner,
			"amount", amount.Int64(),
			"error", err,
		)
	}
}

// begin opens a span for an operation and returns the function that closes it
// and records the outcome.
func (s *Service) begin(ctx context.Context, op string, testamentID id.TestamentID, caller id.AccountID) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "testament."+op, trace.WithAttributes(
		attribute.String("testament.id", testamentID.String()),
		attribute.String("testament.caller", caller.String()),
	))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = outcomeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logFailure(ctx, op, testamentID, caller, err)
		}
		span.SetAttributes(attribute.String("testament.outcome", outcome))
		span.End()
		s.metrics.IncrementOperation(op, outcome)
		s.metrics.ObserveLatency(op, time.Since(start))
	}
}

func outcomeOf(err error) string {
	if de, ok := dErrors.As(err); ok {
		return string(de.Code)
	}
	return string(dErrors.CodeInternal)
}

func (s *Service) logEvent(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) logFailure(ctx context.Context, op string, testamentID id.TestamentID, caller id.AccountID, err error) {
	if s.logger == nil {
		return
	}
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeTimeout) {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "testament operation rejected",
		"operation", op,
		"testament_id", testamentID,
		"caller", caller,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
