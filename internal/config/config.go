// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/rl1809/inventory-projection/internal/core/domain"
)

const (
	BusRedis = "redis"
	BusKafka = "kafka"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr        string        `env:"GRPC_ADDR" envDefault:":50051"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	MySQL MySQLConfig
	Redis RedisConfig
	Bus   BusConfig
	Kafka KafkaConfig

	Dispatch   DispatchConfig
	Projection ProjectionConfig
	Auth       AuthConfig
	Log        LogConfig
}

type MySQLConfig struct {
	DSN             string        `env:"MYSQL_DSN" envDefault:"root:root@tcp(localhost:3306)/inventory?parseTime=true"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"25"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
	EnsureSchema    bool          `env:"MYSQL_ENSURE_SCHEMA" envDefault:"true"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"100"`
	// RequireReceiver fails publishes nobody heard, so the outbox retries them.
	RequireReceiver bool `env:"REDIS_REQUIRE_RECEIVER" envDefault:"true"`
}

type BusConfig struct {
	Driver              string        `env:"BUS_DRIVER" envDefault:"redis"`
	Topic               string        `env:"BUS_TOPIC" envDefault:"inventory.events"`
	BreakerTimeout      time.Duration `env:"BUS_BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerMinRequests  uint32        `env:"BUS_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerFailureRatio float64       `env:"BUS_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
}

type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	GroupID      string        `env:"KAFKA_GROUP_ID" envDefault:"inventory-projection"`
	WriteTimeout time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"10s"`
}

type DispatchConfig struct {
	BatchSize      int           `env:"DISPATCH_BATCH_SIZE" envDefault:"100"`
	PollInterval   time.Duration `env:"DISPATCH_POLL_INTERVAL" envDefault:"150ms"`
	SaveTimeout    time.Duration `env:"DISPATCH_SAVE_TIMEOUT" envDefault:"5s"`
	MaxAttempts    int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"10"`
	InitialBackoff time.Duration `env:"DISPATCH_INITIAL_BACKOFF" envDefault:"150ms"`
	MaxBackoff     time.Duration `env:"DISPATCH_MAX_BACKOFF" envDefault:"1m"`
}

type ProjectionConfig struct {
	MaxAttempts      int           `env:"PROJECTION_MAX_ATTEMPTS" envDefault:"3"`
	InitialBackoff   time.Duration `env:"PROJECTION_INITIAL_BACKOFF" envDefault:"50ms"`
	MaxBackoff       time.Duration `env:"PROJECTION_MAX_BACKOFF" envDefault:"1s"`
	ResubscribeDelay time.Duration `env:"PROJECTION_RESUBSCRIBE_DELAY" envDefault:"1s"`
}

type AuthConfig struct {
	// JWTSecret enables bearer-token tenant checks when set.
	JWTSecret string `env:"AUTH_JWT_SECRET"`
	Issuer    string `env:"AUTH_JWT_ISSUER"`
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Bus.Driver {
	case BusRedis:
	case BusKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: KAFKA_BROKERS is required for the kafka bus")
		}
	default:
		return fmt.Errorf("config: unknown BUS_DRIVER %q", c.Bus.Driver)
	}
	if c.Dispatch.BatchSize <= 0 {
		return fmt.Errorf("config: DISPATCH_BATCH_SIZE must be positive")
	}
	return nil
}

func (d DispatchConfig) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:    d.MaxAttempts,
		InitialBackoff: d.InitialBackoff,
		MaxBackoff:     d.MaxBackoff,
		Multiplier:     2,
	}
}

func (p ProjectionConfig) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:    p.MaxAttempts,
		InitialBackoff: p.InitialBackoff,
		MaxBackoff:     p.MaxBackoff,
		Multiplier:     2,
	}
}
