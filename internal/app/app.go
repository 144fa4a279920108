package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/spinhub/internal/auth"
	"github.com/kirinyoku/spinhub/internal/config"
	"github.com/kirinyoku/spinhub/internal/notify"
	"github.com/kirinyoku/spinhub/internal/postgres"
	"github.com/kirinyoku/spinhub/internal/redis"
	postgresrepo "github.com/kirinyoku/spinhub/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/spinhub/internal/repository/redis"
	"github.com/kirinyoku/spinhub/internal/service"
	"github.com/kirinyoku/spinhub/internal/service/admin"
	"github.com/kirinyoku/spinhub/internal/service/booking"
	"github.com/kirinyoku/spinhub/internal/service/query"
	httpgin "github.com/kirinyoku/spinhub/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server

	pool   *pgxpool.Pool
	rdb    *goredis.Client
	events notify.Publisher
	pubsub *redisrepo.ClassesPubSub
	hub    *httpgin.ClassHub
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	dsn := cfg.Postgres.DSN()

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(dsn); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		logger.Info("schema migrations applied")
	}

	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:              dsn,
		MaxConns:         cfg.Postgres.MaxConns,
		StatementTimeout: cfg.Postgres.StatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	events, err := newPublisher(cfg.Notify)
	if err != nil {
		pgxPool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewClassesPubSub(rdb)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Booking.IdempotencyTTL)

	var limiter *redisrepo.SlidingWindowLimiter
	if cfg.Booking.RateLimit > 0 {
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, "bookings", cfg.Booking.RateLimit, cfg.Booking.RateWindow)
	}

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, events, logger, service.Config{
		Booking: booking.Config{DefaultCancellationHours: cfg.Booking.DefaultCancelHours},
		Query: query.Config{
			AvailabilityTTL: cfg.Cache.AvailabilityTTL,
			RosterTTL:       cfg.Cache.RosterTTL,
		},
		Admin: admin.Config{},
	})

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	hub := httpgin.NewClassHub()

	// Initialize Gin router
	api := httpgin.FromServices(services, tokens, idempotencyStore, hub)
	api.Ready = func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
	router := httpgin.NewRouter(api, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Event streams never go idle on their own.
	httpServer.RegisterOnShutdown(hub.Close)

	return &App{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		pool:       pgxPool,
		rdb:        rdb,
		events:     events,
		pubsub:     pubsub,
		hub:        hub,
	}, nil
}

func newPublisher(cfg config.NotifyConfig) (notify.Publisher, error) {
	switch cfg.Driver {
	case config.NotifyRabbitMQ:
		return notify.NewRabbitMQ(cfg.RabbitURL, cfg.RabbitQueue)
	case config.NotifyKafka:
		return notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return notify.Noop{}, nil
	}
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Feed class changes from every instance into the local SSE hub.
	g.Go(func() error {
		a.subscribeClassChanges(gCtx)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) subscribeClassChanges(ctx context.Context) {
	for {
		err := a.pubsub.Subscribe(ctx, a.hub.Notify)
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("class change subscription dropped, retrying", slog.Any("error", err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (a *App) close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warn("closing notification publisher", slog.Any("error", err))
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("closing redis", slog.Any("error", err))
	}
	a.pool.Close()
}
