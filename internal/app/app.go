package credits

import (
	"context"
	"fmt"

	config "github.com/glkeru/credits/internal/config"
	db "github.com/glkeru/credits/internal/db"
	kafka "github.com/glkeru/credits/internal/external/kafka"
	interf "github.com/glkeru/credits/internal/interfaces"
	logging "github.com/glkeru/credits/internal/logger"
	metrics "github.com/glkeru/credits/internal/metrics"
	services "github.com/glkeru/credits/internal/services"
	token "github.com/glkeru/credits/internal/token"
	tracing "github.com/glkeru/credits/observability/otel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Общая сборка зависимостей для всех бинарников
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Storage  interf.AdminStorage
	Ledger   *services.CreditLedger
	Service  *services.RedemptionService
	Audit    *db.AuditDB // nil без CREDITS_MONGO_URI

	closers []func()
}

type Options struct {
	Audit  bool // журнал попыток в MongoDB
	Events bool // события в Kafka
}

func New(ctx context.Context, service string, opts Options) (app *App, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger = logger.With(zap.String("app", service))

	app = &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	app.closers = append(app.closers, func() { _ = logger.Sync() })
	defer func() {
		if err != nil {
			app.Close()
		}
	}()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// tracing
	shutdown, err := tracing.InitTracer(ctx, logger, service, cfg.OtelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	app.closers = append(app.closers, shutdown)

	// redis: nonce обязательны
	client, err := db.NewRedisClient(ctx, db.RedisConfig{
		Addr:     cfg.CacheURL,
		User:     cfg.CacheUser,
		Password: cfg.CachePassword,
		DB:       cfg.CacheDB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	app.closers = append(app.closers, func() { _ = client.Close() })

	// database
	storage, err := app.storage(ctx)
	if err != nil {
		return nil, err
	}
	app.Storage = storage

	// cache
	var cache interf.CacheStorage = db.NewCacheService(client, cfg.CacheTTL)

	codec, err := token.NewCodec(cfg.SigningKey, cfg.TokenIssuer, cfg.TokenAudience)
	if err != nil {
		return nil, err
	}

	app.Ledger = services.NewCreditLedger(logger, storage, cache)
	deps := services.RedemptionDeps{
		Codec:    codec,
		Nonces:   db.NewNonceStore(client, logger, cfg.NonceTimeout),
		Accounts: services.NewAccountLoader(storage, cfg.AccountCacheSize, cfg.AccountCacheTTL),
		Ledger:   app.Ledger,
		Metrics:  metrics.NewRedemptionMetrics(app.Registry),
	}

	if opts.Audit && cfg.MongoURI != "" {
		audit, err := db.NewAuditDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		app.Audit = audit
		deps.Audit = audit
		app.closers = append(app.closers, func() { _ = audit.Close(context.Background()) })
	}

	if opts.Events && cfg.KafkaBrokers != "" {
		events, err := kafka.NewEventWriter(cfg.Brokers())
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		deps.Events = events
		app.closers = append(app.closers, func() { _ = events.Close() })
	}

	app.Service, err = services.NewRedemptionService(logger, deps, services.RedemptionConfig{
		DefaultTTL:       cfg.TokenTTL(),
		MaxTTL:           cfg.TokenMaxTTL(),
		CommitTimeout:    cfg.CommitTimeout,
		CommitMaxElapsed: cfg.CommitMaxElapsed,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) storage(ctx context.Context) (interf.AdminStorage, error) {
	cfg := a.Config
	if cfg.Storage == config.StorageMemory {
		a.Logger.Warn("memory storage: ledger is lost on restart")
		return db.NewMemoryDB(), nil
	}
	pg, err := db.NewCreditsDB(ctx, db.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Base:     cfg.DBBase,
		Workers:  cfg.Workers,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	return pg, nil
}

// Закрыть в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

var _ interf.AdminStorage = (*db.CreditsDB)(nil)
var _ interf.AdminStorage = (*db.MemoryDB)(nil)
var _ interf.AuditStorage = (*db.AuditDB)(nil)
var _ interf.EventPublisher = (*kafka.EventWriter)(nil)
