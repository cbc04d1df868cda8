// Command server runs the validation bus: validator registry, decision rules,
// record persistence, and the HTTP API in front of them.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"validbus/internal/audit"
	"validbus/internal/auth"
	"validbus/internal/platform/config"
	"validbus/internal/platform/httpserver"
	"validbus/internal/platform/logger"
	platformmetrics "validbus/internal/platform/metrics"
	"validbus/internal/platform/postgres"
	"validbus/internal/platform/redis"
	"validbus/internal/transport/http"
	"validbus/internal/validation"
	"validbus/internal/validation/cache"
	"validbus/internal/validation/handler"
	validationmetrics "validbus/internal/validation/metrics"
	"validbus/internal/validation/rules"
	"validbus/internal/validation/service"
	"validbus/internal/validation/store"
	"validbus/internal/validation/validators/cep"
	"validbus/internal/validation/validators/cpfcnpj"
	"validbus/internal/validation/validators/email"
	"validbus/internal/validation/validators/phone"
	"validbus/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	keys, err := auth.ParseKeyStore(cfg.APIKeys)
	if err != nil {
		return err
	}

	recordStore, ready, cleanup, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := validation.NewRegistry()
	registry.Register("phone", phone.New())
	registry.Register("email", email.New())
	registry.Register("cep", cep.New())
	registry.Register("cpf_cnpj", cpfcnpj.New())

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(validationmetrics.New()),
	}

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		opts = append(opts, service.WithOutcomeCache(
			cache.NewRedis(redisClient.Client, cfg.OutcomeCacheTTL, log)))
		log.Info("outcome cache enabled", "ttl", cfg.OutcomeCacheTTL)
	}

	publisher, err := buildAuditPublisher(cfg)
	if err != nil {
		return err
	}
	async := audit.NewAsyncPublisher(publisher, cfg.AuditBufferSize, log)
	opts = append(opts, service.WithAuditPublisher(async))

	svc, err := service.New(registry, rules.NewEngine(rules.Default()...), recordStore, opts...)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Handler:     handler.New(svc, log),
		Keys:        keys,
		HTTPMetrics: platformmetrics.NewHTTP(),
		Logger:      log,
		Ready:       ready,
	})
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return async.Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("starting validation bus",
			"addr", cfg.Addr,
			"validation_types", registry.Types(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	if closeErr := async.Close(); closeErr != nil {
		log.Warn("audit publisher close failed", "error", closeErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// buildStore picks the persistence backend: PostgreSQL with migrations when a
// DSN is configured, in-memory otherwise.
func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(context.Context) error, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, using in-memory store")
		return store.NewMemory(), nil, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	log.Info("database ready")
	return store.NewPostgres(db), db.PingContext, func() { db.Close() }, nil
}

func buildAuditPublisher(cfg config.Config) (audit.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.NewMemoryPublisher(), nil
	}
	return audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic)
}
