package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("RELAY_MODE", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("KAFKA_MIRROR_TIMEOUT", "")

	cfg := LoadConfig()

	assert.Equal(t, "8082", cfg.Port)
	assert.Equal(t, RelayRedis, cfg.RelayMode)
	assert.Equal(t, 5000, cfg.MaxMessageLength)
	assert.Equal(t, 1000, cfg.CompressionThreshold)
	assert.Equal(t, 15*time.Minute, cfg.JWTExpiry)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, 2*time.Second, cfg.KafkaMirrorTimeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("MAX_MESSAGE_LENGTH", "42")
	t.Setenv("COMPRESSION_THRESHOLD", "not-a-number")
	t.Setenv("JWT_EXPIRE", "1h")

	cfg := LoadConfig()

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "https://a.example,https://b.example", cfg.GetCORSOrigins())
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 42, cfg.MaxMessageLength)
	assert.Equal(t, 1000, cfg.CompressionThreshold)
	assert.Equal(t, time.Hour, cfg.JWTExpiry)
}
