// Package config reads process configuration from the environment so main
// stays lean. Unset variables fall back to development defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server       Server
	Postgres     PostgresConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Certificates CertificateConfig
	Logging      LoggingConfig
	TxTimeout    time.Duration
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	AdminToken    string
	ShutdownGrace time.Duration

	// RateLimitPerMinute caps /v1 calls per caller; zero disables it.
	RateLimitPerMinute int
}

// PostgresConfig selects the postgres stores when URL is set; otherwise the
// in-memory stores are used.
type PostgresConfig struct {
	URL      string
	MaxConns int32
}

// RedisConfig enables the audit stream sink when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	StreamMaxLen int64
}

// KafkaConfig enables the audit event publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Partitions int32
}

// CertificateConfig is the signing domain certificates are bound to.
type CertificateConfig struct {
	ChainID          uint64
	DomainName       string
	StrictRecoveryID bool
}

type LoggingConfig struct {
	Format string
	Level  string
}

// FromEnv builds a Config from environment variables. Malformed numeric or
// duration values are reported rather than silently defaulted.
func FromEnv() (Config, error) {
	var p parser
	cfg := Config{
		Server: Server{
			Addr:          stringOr("TOKENHOLD_ADDR", ":8080"),
			JWTSigningKey: stringOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     stringOr("JWT_ISSUER", "tokenhold"),
			AdminToken:    os.Getenv("ADMIN_TOKEN"),
			ShutdownGrace: p.duration("SHUTDOWN_GRACE", 10*time.Second),

			RateLimitPerMinute: p.integer("RATE_LIMIT_PER_MINUTE", 0),
		},
		Postgres: PostgresConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(p.integer("DATABASE_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			StreamMaxLen: int64(p.integer("REDIS_STREAM_MAX_LEN", 100_000)),
		},
		Kafka: KafkaConfig{
			Brokers:    list("KAFKA_BROKERS"),
			Topic:      stringOr("KAFKA_TOPIC", "tokenhold.events"),
			Partitions: int32(p.integer("KAFKA_TOPIC_PARTITIONS", 3)),
		},
		Certificates: CertificateConfig{
			ChainID:          uint64(p.integer("CERTIFICATE_CHAIN_ID", 1)),
			DomainName:       stringOr("CERTIFICATE_DOMAIN", "tokenhold"),
			StrictRecoveryID: os.Getenv("CERTIFICATE_STRICT_RECOVERY_ID") == "true",
		},
		Logging: LoggingConfig{
			Format: stringOr("LOG_FORMAT", "json"),
			Level:  stringOr("LOG_LEVEL", "info"),
		},
		TxTimeout: p.duration("TX_TIMEOUT", 5*time.Second),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	return cfg, nil
}

// parser keeps the first parse failure.
type parser struct {
	err error
}

func (p *parser) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		p.fail(key, raw)
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
		p.fail(key, raw)
		return def
	}
	return v
}

func (p *parser) fail(key, raw string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value %q for %s", raw, key)
	}
}

func stringOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func list(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
