package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "testament/internal/jwt_token"
	"testament/internal/outbox"
	"testament/internal/platform/config"
	"testament/internal/platform/httpserver"
	"testament/internal/platform/logger"
	"testament/internal/platform/metrics"
	"testament/internal/platform/middleware"
	"testament/internal/platform/otel"
	"testament/internal/platform/redis"
	"testament/internal/testament/cache"
	"testament/internal/testament/handler"
	tmetrics "testament/internal/testament/metrics"
	"testament/internal/testament/service"
	"testament/internal/testament/store"
	"testament/internal/treasury"
	id "testament/pkg/domain"
	"testament/pkg/platform/circuit"
	"testament/pkg/platform/httputil"
)

const (
	tokenAudience   = "testament-api"
	shutdownTimeout = 10 * time.Second
)

// testamentStore is what main needs from a store: the service port plus the
// outbox side drained by the publisher.
type testamentStore interface {
	service.Store
	outbox.Source
}

// backend groups the stateful collaborators. The treasury always shares the
// store's durability so pooled funds outlive a restart whenever bequests do.
type backend struct {
	store    testamentStore
	tx       service.StoreTx
	treasury service.Treasury
	close    func()
}

func main() {
	issueFor := flag.String("issue-token", "", "print a caller token for the given account id and exit")
	tokenTTL := flag.Duration("token-ttl", time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if *issueFor != "" {
		if err := issueToken(cfg, *issueFor, *tokenTTL); err != nil {
			log.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("testament exited with error", "error", err)
		os.Exit(1)
	}
}

func issueToken(cfg config.Server, account string, ttl time.Duration) error {
	caller, err := id.ParseAccountID(account)
	if err != nil {
		return err
	}
	token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, tokenAudience).GenerateCallerToken(caller, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// run wires dependencies and blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	svcOpts := []service.Option{
		service.WithStoreTx(be.tx),
		service.WithLogger(log),
		service.WithMetrics(tmetrics.New()),
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		svcOpts = append(svcOpts, service.WithCache(cache.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL)))
		log.Info("snapshot cache enabled")
	}

	svc := service.New(be.store, be.treasury, svcOpts...)

	publisher, closePublisher, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()
	worker := outbox.NewWorker(be.store, publisher,
		outbox.WithInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithLogger(log),
		outbox.WithMetrics(outbox.NewMetrics()),
		outbox.WithBreaker(circuit.New("outbox_publisher")),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, tokenAudience)
	router := newRouter(log, handler.New(svc, log, jwttoken.NewJWTServiceAdapter(jwtService)), redisClient)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting testament", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("testament stopped")
		return nil
	})
	return g.Wait()
}

func openBackend(ctx context.Context, cfg config.Server, log *slog.Logger) (*backend, error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory store and treasury")
		return &backend{
			store:    store.NewInMemory(),
			tx:       service.NewInMemoryTx(),
			treasury: treasury.NewInMemory(treasury.WithLogger(log)),
			close:    func() {},
		}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := treasury.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate treasury: %w", err)
	}
	log.Info("using postgres store and treasury")
	return &backend{
		store:    store.NewPostgres(db),
		tx:       store.NewPostgresTx(db),
		treasury: treasury.NewPostgres(db, treasury.WithPostgresLogger(log)),
		close:    func() { _ = db.Close() },
	}, nil
}

func openPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) (outbox.Publisher, func(), error) {
	if !cfg.PublishingEnabled() {
		log.Info("no kafka brokers configured, notifications go to the log")
		return outbox.NewLogPublisher(log), func() {}, nil
	}

	kp, err := outbox.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := kp.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		kp.Close()
		return nil, nil, fmt.Errorf("ensure topic %s: %w", cfg.Kafka.Topic, err)
	}
	log.Info("publishing notifications to kafka", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	return kp, kp.Close, nil
}

func newRouter(log *slog.Logger, h *handler.Handler, redisClient *redis.Client) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(metrics.New()))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				status["redis"] = "unavailable"
			}
		}
		httputil.WriteJSON(w, http.StatusOK, status)
	})
	r.Handle("/metrics", promhttp.Handler())

	h.Register(r)
	return r
}
