package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	RelayRedis = "redis"
	RelayLocal = "local"
)

type Config struct {
	Port             string
	AllowedOrigins   []string
	AllowCredentials bool
	Environment      string
	LogLevel         string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// RelayMode selects the fan-out backbone: "redis" for multi-process
	// deployments, "local" for a single process.
	RelayMode     string
	ChannelPrefix string

	KafkaBrokers       []string
	KafkaEventsTopic   string
	KafkaIngressTopic  string
	KafkaConsumerGroup string
	KafkaMirrorTimeout time.Duration

	DatabasePath string

	JWTSecret string
	JWTIssuer string
	JWTExpiry time.Duration

	MaxMessageLength     int
	CompressionThreshold int
	SendBufferSize       int
}

func LoadConfig() *Config {
	// Get allowed origins from environment variable
	allowedOrigins := []string{"*"}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = splitList(origins)
	}

	// Kafka is optional; no brokers disables the mirror and ingress.
	var kafkaBrokers []string
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaBrokers = splitList(brokers)
	}

	return &Config{
		Port:             getEnv("PORT", "8082"),
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: getEnv("ALLOW_CREDENTIALS", "false") == "true",
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RelayMode:     getEnv("RELAY_MODE", RelayRedis),
		ChannelPrefix: getEnv("RELAY_CHANNEL_PREFIX", "chat:"),

		KafkaBrokers:       kafkaBrokers,
		KafkaEventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "chat-events"),
		KafkaIngressTopic:  getEnv("KAFKA_INGRESS_TOPIC", "chat-ingress"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "chat-relay-group"),
		KafkaMirrorTimeout: getEnvDuration("KAFKA_MIRROR_TIMEOUT", 2*time.Second),

		DatabasePath: getEnv("DATABASE_PATH", "chat.db"),

		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
		JWTIssuer: getEnv("JWT_ISSUER", "chat-relay"),
		JWTExpiry: getEnvDuration("JWT_EXPIRE", 15*time.Minute),

		MaxMessageLength:     getEnvInt("MAX_MESSAGE_LENGTH", 5000),
		CompressionThreshold: getEnvInt("COMPRESSION_THRESHOLD", 1000),
		SendBufferSize:       getEnvInt("SEND_BUFFER_SIZE", 256),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

// RedisAddr returns host:port for the Redis server.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// KafkaEnabled reports whether any Kafka broker was configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// GetCORSOrigins returns CORS origins as a comma-separated string
func (c *Config) GetCORSOrigins() string {
	if c.Environment == "production" && len(c.AllowedOrigins) > 0 && c.AllowedOrigins[0] != "*" {
		return strings.Join(c.AllowedOrigins, ",")
	}
	return "*"
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
