package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds watch party service configuration, loaded from environment.
type Config struct {
	AppEnv   string // APP_ENV
	AppHost  string // APP_HOST
	HTTPPort string // PORT

	RedisAddr     string // REDIS_ADDR
	RedisPassword string // REDIS_PASSWORD
	RedisDB       int    // REDIS_DB

	AMQPURL      string // AMQP_URL, empty disables the AMQP bus (local fallback)
	AMQPExchange string // AMQP_EXCHANGE

	// PartyIdleTTL is the idle window after which an untouched party record
	// expires. EndedRetention is how long an ENDED record is kept so late
	// joiners get a clear "party ended" answer.
	PartyIdleTTL   time.Duration // PARTY_IDLE_TTL_HOURS
	EndedRetention time.Duration // PARTY_ENDED_RETENTION_MINUTES

	// AuditDSN enables the Postgres audit trail of published events when set.
	AuditDSN string // AUDIT_DB_DSN

	TracingEnabled bool   // TRACING_ENABLED
	OTLPEndpoint   string // OTEL_EXPORTER_OTLP_ENDPOINT

	DebugEndpoints bool // DEBUG_ENDPOINTS
}

// Load reads configuration from the environment (.env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	idleHours, _ := strconv.Atoi(getEnv("PARTY_IDLE_TTL_HOURS", "24"))
	retentionMinutes, _ := strconv.Atoi(getEnv("PARTY_ENDED_RETENTION_MINUTES", "5"))

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		AppHost:        getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:       getEnv("PORT", "8086"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        redisDB,
		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "party.events"),
		PartyIdleTTL:   time.Duration(idleHours) * time.Hour,
		EndedRetention: time.Duration(retentionMinutes) * time.Minute,
		AuditDSN:       getEnv("AUDIT_DB_DSN", ""),
		TracingEnabled: getEnv("TRACING_ENABLED", "false") == "true",
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		DebugEndpoints: getEnv("DEBUG_ENDPOINTS", "false") == "true",
	}
	return cfg, cfg.Validate()
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return errors.New("config: REDIS_ADDR is required")
	}
	if c.PartyIdleTTL <= 0 {
		return errors.New("config: PARTY_IDLE_TTL_HOURS must be positive")
	}
	if c.EndedRetention <= 0 {
		return errors.New("config: PARTY_ENDED_RETENTION_MINUTES must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
