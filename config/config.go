package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "WALLET_"

type Config struct {
	Primary   Primary         `koanf:"primary"`
	Logger    LoggerConfig    `koanf:"logger"`
	Transport TransportConfig `koanf:"transport"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	NATS      NATSConfig      `koanf:"nats"`
	RabbitMQ  RabbitMQConfig  `koanf:"rabbitmq"`
	Topics    TopicsConfig    `koanf:"topics"`
	Timeouts  TimeoutsConfig  `koanf:"timeouts"`
	Cache     CacheConfig     `koanf:"cache"`
	Store     StoreConfig     `koanf:"store"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type LoggerConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=text json"`
}

type TransportConfig struct {
	Driver string `koanf:"driver" validate:"required,oneof=inmemory kafka nats rabbitmq"`
}

type KafkaConfig struct {
	Brokers                []string `koanf:"brokers"`
	ClientID               string   `koanf:"client_id"`
	GroupID                string   `koanf:"group_id"`
	TLS                    bool     `koanf:"tls"`
	RequireAllAcks         bool     `koanf:"require_all_acks"`
	DisableIdempotentWrite bool     `koanf:"disable_idempotent_write"`
	Compression            string   `koanf:"compression" validate:"omitempty,oneof=gzip snappy lz4 zstd"`
}

type NATSConfig struct {
	URL           string        `koanf:"url"`
	Name          string        `koanf:"name"`
	ConnTimeout   time.Duration `koanf:"conn_timeout"`
	MaxReconnects int           `koanf:"max_reconnects"`
	Queue         string        `koanf:"queue"`
}

type RabbitMQConfig struct {
	URL         string        `koanf:"url"`
	ConnTimeout time.Duration `koanf:"conn_timeout"`
}

type TopicsConfig struct {
	SettlementRequest        string `koanf:"settlement_request" validate:"required"`
	SettlementResponse       string `koanf:"settlement_response" validate:"required"`
	CardValidationRequest    string `koanf:"card_validation_request" validate:"required"`
	CardValidationResponse   string `koanf:"card_validation_response" validate:"required"`
	WalletValidationRequest  string `koanf:"wallet_validation_request" validate:"required"`
	WalletValidationResponse string `koanf:"wallet_validation_response" validate:"required"`
	TransferRequest          string `koanf:"transfer_request" validate:"required"`
	TransferResponse         string `koanf:"transfer_response" validate:"required"`
}

type TimeoutsConfig struct {
	Settlement     time.Duration `koanf:"settlement" validate:"required"`
	CardValidation time.Duration `koanf:"card_validation" validate:"required"`
	Shutdown       time.Duration `koanf:"shutdown" validate:"required"` // grace for in-flight transfers after a stop signal
}

type CacheConfig struct {
	Driver         string        `koanf:"driver" validate:"required,oneof=memory redis"`
	RedisAddr      string        `koanf:"redis_addr"`
	RedisPassword  string        `koanf:"redis_password"`
	RedisDB        int           `koanf:"redis_db"`
	UserTTL        time.Duration `koanf:"user_ttl" validate:"required"`
	TransactionTTL time.Duration `koanf:"transaction_ttl" validate:"required"`
}

type StoreConfig struct {
	Driver   string `koanf:"driver" validate:"required,oneof=memory postgres"`
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

func defaults() map[string]any {
	return map[string]any{
		"primary.env":                       "development",
		"logger.level":                      "info",
		"logger.format":                     "text",
		"transport.driver":                  "inmemory",
		"kafka.client_id":                   "wallet-bridge",
		"kafka.group_id":                    "wallet-bridge",
		"nats.name":                         "wallet-bridge",
		"nats.conn_timeout":                 5 * time.Second,
		"nats.max_reconnects":               60,
		"nats.queue":                        "wallet-bridge",
		"rabbitmq.conn_timeout":             5 * time.Second,
		"topics.settlement_request":         "transaction-requests",
		"topics.settlement_response":        "transaction-responses",
		"topics.card_validation_request":    "debit-card-validation-requests",
		"topics.card_validation_response":   "debit-card-validation-responses",
		"topics.wallet_validation_request":  "wallet-validation-requests",
		"topics.wallet_validation_response": "wallet-validation-responses",
		"topics.transfer_request":           "wallet-transfer-requests",
		"topics.transfer_response":          "wallet-transfer-responses",
		"timeouts.settlement":               30 * time.Second,
		"timeouts.card_validation":          10 * time.Second,
		"timeouts.shutdown":                 45 * time.Second,
		"cache.driver":                      "memory",
		"cache.redis_addr":                  "localhost:6379",
		"cache.user_ttl":                    24 * time.Hour,
		"cache.transaction_ttl":             24 * time.Hour,
		"store.driver":                      "memory",
		"store.max_conns":                   10,
	}
}

// Load reads defaults, then WALLET_* environment variables (and a .env file when present).
// A double underscore separates nesting levels: WALLET_CACHE__REDIS_ADDR sets cache.redis_addr.
func Load() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	cfg := &Config{}

	if err = k.Unmarshal("", cfg); err != nil {
		logger.Error("could not unmarshal config", "error", err)
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct tags and the settings each selected driver depends on.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Transport.Driver {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required for the kafka transport")
		}
	case "nats":
		if c.NATS.URL == "" {
			return errors.New("nats.url is required for the nats transport")
		}
	case "rabbitmq":
		if c.RabbitMQ.URL == "" {
			return errors.New("rabbitmq.url is required for the rabbitmq transport")
		}
	}

	if c.Cache.Driver == "redis" && c.Cache.RedisAddr == "" {
		return errors.New("cache.redis_addr is required for the redis cache")
	}

	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return errors.New("store.dsn is required for the postgres store")
	}

	return nil
}

// NewLogger builds the process logger.
func (c LoggerConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.level()}

	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func (c LoggerConfig) level() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
