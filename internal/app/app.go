package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/catalogcart/internal/config"
	"github.com/utafrali/catalogcart/internal/event"
	handler "github.com/utafrali/catalogcart/internal/handler/http"
	"github.com/utafrali/catalogcart/internal/lock"
	"github.com/utafrali/catalogcart/internal/repository"
	"github.com/utafrali/catalogcart/internal/repository/memory"
	"github.com/utafrali/catalogcart/internal/repository/postgres"
	"github.com/utafrali/catalogcart/internal/service"
	"github.com/utafrali/catalogcart/migrations"
	"github.com/utafrali/catalogcart/pkg/database"
	"github.com/utafrali/catalogcart/pkg/health"
	pkgkafka "github.com/utafrali/catalogcart/pkg/kafka"
	"github.com/utafrali/catalogcart/pkg/middleware"
	"github.com/utafrali/catalogcart/pkg/tracing"
)

const serviceName = "catalogcart"

// App wires together all dependencies and runs the catalog and cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	restocked      *pkgkafka.Consumer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// storage groups the persistence ports the services need.
type storage struct {
	tx       repository.Transactor
	products repository.ProductRepository
	carts    repository.CartRepository
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	store, err := a.initStorage(ctx)
	if err != nil {
		a.release()
		return nil, err
	}

	locker, err := a.initLocker(ctx)
	if err != nil {
		a.release()
		return nil, err
	}

	publisher := a.initPublisher(ctx)

	productService := service.NewProductService(store.tx, store.products, publisher, logger)
	cartService := service.NewCartService(locker, store.tx, store.products, store.carts, publisher, logger)

	if cfg.KafkaEnabled {
		a.initRestockConsumer(productService)
	}

	healthHandler := health.NewHandler()
	if a.pool != nil {
		healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
			return a.pool.Ping(ctx)
		})
	}
	if a.redis != nil {
		healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}

	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowedOrigins = cfg.CORSOrigins
	}

	router := handler.NewRouter(cartService, productService, healthHandler, handler.RouterConfig{
		CORS:           corsCfg,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RequestTimeout: cfg.RequestTimeout(),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) initStorage(ctx context.Context) (*storage, error) {
	if a.cfg.StoreBackend == config.StoreBackendMemory {
		a.logger.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return &storage{tx: store, products: store, carts: store}, nil
	}

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            a.cfg.PostgresHost,
		Port:            a.cfg.PostgresPort,
		User:            a.cfg.PostgresUser,
		Password:        a.cfg.PostgresPass,
		DBName:          a.cfg.PostgresDB,
		SSLMode:         a.cfg.PostgresSSL,
		MaxConns:        a.cfg.DBMaxConns,
		MinConns:        a.cfg.DBMinConns,
		MaxConnLifetime: time.Duration(a.cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(a.cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)

	if err := prometheus.Register(database.NewPoolStatsCollector(pool, serviceName)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	return &storage{
		tx:       database.NewTransactor(pool),
		products: postgres.NewProductRepository(pool),
		carts:    postgres.NewCartRepository(pool),
	}, nil
}

func (a *App) initLocker(ctx context.Context) (lock.Locker, error) {
	if !a.cfg.UsesRedis() {
		return lock.NewLocal(), nil
	}

	client, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.RedisAddr))

	return lock.NewRedis(client, a.logger, lock.WithTTL(a.cfg.SessionLockTTL())), nil
}

func (a *App) initPublisher(ctx context.Context) service.EventPublisher {
	if !a.cfg.KafkaEnabled {
		a.logger.Info("kafka disabled, domain events are dropped")
		return event.NoopPublisher{}
	}

	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	if err := pingKafkaWithRetry(ctx, a.producer, a.logger); err != nil {
		a.logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	}

	breaker := pkgkafka.NewBreakerPublisher(a.producer, pkgkafka.DefaultBreakerConfig("kafka-producer"), a.logger)
	return event.NewProducer(breaker, a.logger)
}

func (a *App) initRestockConsumer(products event.RestockService) {
	var store pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(24 * time.Hour)
	if a.redis != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.redis, 24*time.Hour)
	}

	a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	consumer := event.NewConsumer(products, a.logger)

	a.restocked = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  a.cfg.KafkaBrokers,
		GroupID:  a.cfg.KafkaGroupID,
		Topic:    event.TopicInventoryRestocked,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(store, consumer.HandleInventoryRestocked, a.logger), a.logger,
		pkgkafka.WithDeadLetter(a.dlq),
	)
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the Kafka consumer, then blocks until the
// context is canceled or one of them fails. Either way it shuts down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		a.release()
		return fmt.Errorf("listen on %s: %w", a.httpServer.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", ln.Addr().String()))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.restocked != nil {
		g.Go(func() error {
			if err := a.restocked.Start(gctx); err != nil {
				return fmt.Errorf("inventory restocked consumer: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("shutdown signal received")
		}
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka consumer, Kafka producers, Redis, PostgreSQL.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.release(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release flushes spans and closes every connection opened so far. It is
// safe on a partially initialized App.
func (a *App) release() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.restocked != nil {
		if err := a.restocked.Close(); err != nil {
			a.logger.Error("inventory restocked consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.dlq = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	return errors.Join(errs...)
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s with ±25% jitter between them).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	const attempts = 3
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		base := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter
		wait := base + jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after %d attempts: %w", attempts, lastErr)
}
