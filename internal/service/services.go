package service

import (
	"log/slog"

	"github.com/kirinyoku/spinhub/internal/notify"
	postgres "github.com/kirinyoku/spinhub/internal/repository/postgres"
	redis "github.com/kirinyoku/spinhub/internal/repository/redis"
	"github.com/kirinyoku/spinhub/internal/service/admin"
	"github.com/kirinyoku/spinhub/internal/service/booking"
	"github.com/kirinyoku/spinhub/internal/service/query"
)

type Services struct {
	Booking *booking.Service
	Query   *query.Service
	Admin   *admin.Service
}

type Config struct {
	Booking booking.Config
	Query   query.Config
	Admin   admin.Config
}

// NewServices wires the services onto shared storage. limiter may be nil to
// disable booking rate limits.
func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.ClassesPubSub,
	limiter *redis.SlidingWindowLimiter,
	events notify.Publisher,
	log *slog.Logger,
	cfg Config,
) *Services {
	var bookingLimiter booking.Limiter
	if limiter != nil {
		bookingLimiter = limiter
	}

	return &Services{
		Booking: booking.New(
			booking.NewPostgresRunner(store),
			cache,
			pubsub,
			events,
			bookingLimiter,
			log.With(slog.String("service", "booking")),
			cfg.Booking,
		),
		Query: query.New(query.NewPostgresReader(store), cache, cfg.Query),
		Admin: admin.New(store, log.With(slog.String("service", "admin")), cfg.Admin),
	}
}
