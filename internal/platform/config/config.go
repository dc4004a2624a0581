// Package config builds the process configuration from the environment so
// main stays lean. A .env file is honoured for local development; real
// deployments set the variables directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
}

// RedisConfig drives the push channel. An empty URL disables push entirely;
// the dispatcher then serves pull-only clients.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig drives the outbox worker. No brokers disables publishing; the
// outbox still fills and drains once a broker is configured.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AuthConfig struct {
	JWTSigningKey string
}

// Load reads the environment, after merging an optional .env file. Missing
// optional values fall back to development defaults; a missing Postgres DSN
// is an error because nothing works without storage.
func Load() (Config, error) {
	// Ignore a missing .env; it only exists in development checkouts.
	_ = godotenv.Load()

	dsn := os.Getenv("COLLECTA_POSTGRES_DSN")
	if dsn == "" {
		return Config{}, fmt.Errorf("COLLECTA_POSTGRES_DSN is required")
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            envOr("COLLECTA_ADDR", ":8080"),
			ReadTimeout:     envDuration("COLLECTA_HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    envDuration("COLLECTA_HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("COLLECTA_HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:          dsn,
			MaxOpenConns: envInt("COLLECTA_POSTGRES_MAX_OPEN_CONNS", 25),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("COLLECTA_REDIS_URL"),
			PoolSize:     envInt("COLLECTA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("COLLECTA_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("COLLECTA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("COLLECTA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("COLLECTA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("COLLECTA_KAFKA_BROKERS")),
			Topic:   envOr("COLLECTA_KAFKA_TOPIC", "collecta.events"),
		},
		Auth: AuthConfig{
			JWTSigningKey: envOr("COLLECTA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
