package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Booking  BookingConfig
	Cache    CacheConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User             string
	Password         string
	Name             string
	Host             string
	Port             int
	SSLMode          string
	MaxConns         int32
	StatementTimeout time.Duration
	// Migrate applies embedded schema migrations on startup.
	Migrate bool
}

// DSN renders the connection URL, escaping credentials.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

type BookingConfig struct {
	DefaultCancelHours int
	// RateLimit booking attempts per user within RateWindow; 0 disables.
	RateLimit      int
	RateWindow     time.Duration
	IdempotencyTTL time.Duration
}

type CacheConfig struct {
	AvailabilityTTL time.Duration
	RosterTTL       time.Duration
}

const (
	NotifyNone     = "none"
	NotifyRabbitMQ = "rabbitmq"
	NotifyKafka    = "kafka"
)

type NotifyConfig struct {
	Driver       string
	RabbitURL    string
	RabbitQueue  string
	KafkaBrokers []string
	KafkaTopic   string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	p := parser{}

	serverCfg := ServerConfig{
		Host:            p.str("SERVER_HOST", "localhost"),
		Port:            p.int("SERVER_PORT", 8080),
		ShutdownTimeout: p.duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	postgresCfg := PostgresConfig{
		User:             p.required("POSTGRES_USER"),
		Password:         p.required("POSTGRES_PASSWORD"),
		Name:             p.required("POSTGRES_DB"),
		Host:             p.str("POSTGRES_HOST", "localhost"),
		Port:             p.int("POSTGRES_PORT", 5432),
		SSLMode:          p.str("POSTGRES_SSLMODE", "disable"),
		MaxConns:         int32(p.int("POSTGRES_MAX_CONNS", 0)),
		StatementTimeout: p.duration("POSTGRES_STATEMENT_TIMEOUT", 5*time.Second),
		Migrate:          p.bool("POSTGRES_MIGRATE", true),
	}

	redisCfg := RedisConfig{
		Addr:     p.str("REDIS_ADDR", "localhost:6379"),
		Password: p.str("REDIS_PASSWORD", ""),
		DB:       p.int("REDIS_DB", 0),
	}

	authCfg := AuthConfig{
		JWTSecret: p.required("JWT_SECRET"),
		Issuer:    p.str("JWT_ISSUER", "spinhub"),
		TokenTTL:  p.duration("JWT_TTL", 12*time.Hour),
	}

	bookingCfg := BookingConfig{
		DefaultCancelHours: p.int("BOOKING_DEFAULT_CANCEL_HOURS", 12),
		RateLimit:          p.int("BOOKING_RATE_LIMIT", 10),
		RateWindow:         p.duration("BOOKING_RATE_WINDOW", time.Minute),
		IdempotencyTTL:     p.duration("BOOKING_IDEMPOTENCY_TTL", 2*time.Hour),
	}

	cacheCfg := CacheConfig{
		AvailabilityTTL: p.duration("AVAILABILITY_CACHE_TTL", 15*time.Second),
		RosterTTL:       p.duration("ROSTER_CACHE_TTL", 30*time.Second),
	}

	notifyCfg := NotifyConfig{
		Driver:       strings.ToLower(p.str("NOTIFY_DRIVER", NotifyNone)),
		RabbitURL:    p.str("RABBITMQ_URL", ""),
		RabbitQueue:  p.str("RABBITMQ_QUEUE", "booking_events"),
		KafkaBrokers: p.list("KAFKA_BROKERS"),
		KafkaTopic:   p.str("KAFKA_TOPIC", "booking-events"),
	}

	if p.err != nil {
		return nil, fmt.Errorf("%s: %w", op, p.err)
	}

	switch notifyCfg.Driver {
	case NotifyNone:
	case NotifyRabbitMQ:
		if notifyCfg.RabbitURL == "" {
			return nil, fmt.Errorf("%s: missing RABBITMQ_URL for NOTIFY_DRIVER=rabbitmq", op)
		}
	case NotifyKafka:
		if len(notifyCfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("%s: missing KAFKA_BROKERS for NOTIFY_DRIVER=kafka", op)
		}
	default:
		return nil, fmt.Errorf("%s: unknown NOTIFY_DRIVER %q", op, notifyCfg.Driver)
	}

	if bookingCfg.DefaultCancelHours < 0 {
		return nil, fmt.Errorf("%s: BOOKING_DEFAULT_CANCEL_HOURS must not be negative", op)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Auth:     authCfg,
		Booking:  bookingCfg,
		Cache:    cacheCfg,
		Notify:   notifyCfg,
	}, nil
}

// parser reads environment variables and keeps the first error so New can
// report it once.
type parser struct {
	err error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (p *parser) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		p.fail(fmt.Errorf("missing %s", key))
	}
	return v
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) list(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
