package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-wallet-bridge/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "inmemory", cfg.Transport.Driver)
	assert.Equal(t, "transaction-requests", cfg.Topics.SettlementRequest)
	assert.Equal(t, "transaction-responses", cfg.Topics.SettlementResponse)
	assert.Equal(t, "debit-card-validation-requests", cfg.Topics.CardValidationRequest)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Settlement)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.CardValidation)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Shutdown)
	assert.False(t, cfg.Kafka.TLS)
	assert.Empty(t, cfg.Kafka.Compression)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TransactionTTL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.UserTTL)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WALLET_TRANSPORT__DRIVER", "kafka")
	t.Setenv("WALLET_KAFKA__BROKERS", "k1:9092,k2:9092")
	t.Setenv("WALLET_KAFKA__TLS", "true")
	t.Setenv("WALLET_KAFKA__REQUIRE_ALL_ACKS", "true")
	t.Setenv("WALLET_KAFKA__COMPRESSION", "zstd")
	t.Setenv("WALLET_TOPICS__SETTLEMENT_REQUEST", "ledger-in")
	t.Setenv("WALLET_TIMEOUTS__SETTLEMENT", "45s")
	t.Setenv("WALLET_CACHE__DRIVER", "redis")
	t.Setenv("WALLET_CACHE__REDIS_ADDR", "cache:6379")
	t.Setenv("WALLET_CACHE__REDIS_DB", "2")
	t.Setenv("WALLET_LOGGER__FORMAT", "json")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Transport.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.TLS)
	assert.True(t, cfg.Kafka.RequireAllAcks)
	assert.False(t, cfg.Kafka.DisableIdempotentWrite)
	assert.Equal(t, "zstd", cfg.Kafka.Compression)
	assert.Equal(t, "ledger-in", cfg.Topics.SettlementRequest)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Settlement)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 2, cfg.Cache.RedisDB)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown transport":     {"WALLET_TRANSPORT__DRIVER": "carrier-pigeon"},
		"kafka without brokers": {"WALLET_TRANSPORT__DRIVER": "kafka"},
		"nats without url":      {"WALLET_TRANSPORT__DRIVER": "nats"},
		"rabbit without url":    {"WALLET_TRANSPORT__DRIVER": "rabbitmq"},
		"postgres without dsn":  {"WALLET_STORE__DRIVER": "postgres"},
		"bad log level":         {"WALLET_LOGGER__LEVEL": "verbose"},
		"unknown compression":   {"WALLET_KAFKA__COMPRESSION": "brotli"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			require.Error(t, err)
		})
	}
}

func TestLoggerConfig_NewLogger(t *testing.T) {
	ctx := t.Context()

	debug := config.LoggerConfig{Level: "debug", Format: "json"}.NewLogger()
	assert.True(t, debug.Enabled(ctx, slog.LevelDebug))

	def := config.LoggerConfig{}.NewLogger()
	assert.False(t, def.Enabled(ctx, slog.LevelDebug))
	assert.True(t, def.Enabled(ctx, slog.LevelInfo))

	errOnly := config.LoggerConfig{Level: "error"}.NewLogger()
	assert.False(t, errOnly.Enabled(ctx, slog.LevelWarn))
}
