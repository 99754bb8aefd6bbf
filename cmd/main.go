package main

import (
	"context"
	"os"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/chat"
	"chat-relay/internal/codec"
	"chat-relay/internal/config"
	"chat-relay/internal/delivery"
	"chat-relay/internal/ephemeral"
	"chat-relay/internal/gateway"
	"chat-relay/internal/infrastructure/kafka"
	"chat-relay/internal/infrastructure/redis"
	"chat-relay/internal/presence"
	"chat-relay/internal/relay"
	"chat-relay/internal/room"
	"chat-relay/internal/store"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	switch {
	case cfg.IsProduction():
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case cfg.IsDevelopment():
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
		log.SetReportCaller(true)
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := config.LoadConfig()
	log := newLogger(cfg)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Application recovered from panic")
			os.Exit(1)
		}
	}()

	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"port":        cfg.Port,
		"relay":       cfg.RelayMode,
		"redis":       cfg.RedisAddr(),
		"kafka":       cfg.KafkaBrokers,
		"cors":        cfg.GetCORSOrigins(),
	}).Info("Starting chat relay server")

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	checks := map[string]delivery.Pinger{"database": db}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the relay, the revocation list and the connection cache.
	// In local mode none of them is used.
	var (
		redisClient *redis.RedisClient
		fanout      relay.Relay
		revocations auth.RevocationList
		connCache   presence.ConnectionCache
	)
	switch cfg.RelayMode {
	case config.RelayLocal:
		fanout = relay.NewLocal()
		log.Warn("Running with in-process relay; events do not cross processes")
	default:
		redisClient = redis.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB)
		if err := redisClient.Ping(ctx); err != nil {
			log.WithError(err).Warn("Redis connection failed")
		} else {
			log.Info("Redis connection successful")
		}
		fanout = redis.NewRelay(redisClient, cfg.ChannelPrefix, log)
		revocations = redisClient
		connCache = redisClient
		checks["redis"] = redisClient
	}

	var (
		mirror   chat.Mirror
		producer *kafka.KafkaProducer
		consumer *kafka.KafkaConsumer
	)
	if cfg.KafkaEnabled() {
		producer = kafka.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEventsTopic, log)
		mirror = producer
		consumer = kafka.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, cfg.KafkaIngressTopic, fanout, log)
		consumer.Start(ctx)
		log.Info("Kafka mirror and ingress started")
	}

	tokens := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           cfg.JWTSecret,
		AccessTokenDuration: cfg.JWTExpiry,
		Issuer:              cfg.JWTIssuer,
	})
	verifier := auth.NewVerifier(tokens, revocations, db, log)

	broadcaster := chat.NewBroadcaster(db, codec.New(cfg.CompressionThreshold), fanout, mirror,
		chat.Config{MaxMessageLength: cfg.MaxMessageLength, MirrorTimeout: cfg.KafkaMirrorTimeout}, log)
	tracker := presence.NewTracker(db, connCache, log)
	gw := gateway.New(verifier, fanout, room.NewRouter(fanout, db), broadcaster, tracker,
		ephemeral.NewChannel(fanout, log), gateway.Config{SendBufferSize: cfg.SendBufferSize}, log)

	server := delivery.NewServer(cfg, verifier, gw, broadcaster, tracker, checks, log)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Server stopped")
		}
	}()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"chat-relay": func(ctx context.Context) error {
				log.Info("Graceful shutdown initiated...")
				cancel()
				if err := server.Shutdown(ctx); err != nil {
					log.WithError(err).Warn("Error stopping HTTP server")
				}
				if consumer != nil {
					if err := consumer.Close(); err != nil {
						log.WithError(err).Warn("Error closing Kafka consumer")
					}
				}
				if producer != nil {
					if err := producer.Close(); err != nil {
						log.WithError(err).Warn("Error closing Kafka producer")
					}
				}
				if err := fanout.Close(); err != nil {
					log.WithError(err).Warn("Error closing relay")
				}
				if redisClient != nil {
					if err := redisClient.Close(); err != nil {
						log.WithError(err).Warn("Error closing Redis client")
					}
				}
				return db.Close()
			},
		},
	)

	exitCode := <-wait
	log.Infof("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}
