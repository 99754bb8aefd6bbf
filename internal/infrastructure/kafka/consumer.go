package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/relay"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer republishes envelopes produced by other services into the
// relay, so they reach subscribed connections on every process.
type KafkaConsumer struct {
	reader messageReader
	relay  relay.Relay
	log    logrus.FieldLogger
	wg     sync.WaitGroup
}

func NewKafkaConsumer(brokers []string, groupID, topic string, r relay.Relay, log logrus.FieldLogger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,                      // Read immediately, don't wait for batches
		MaxBytes:       10e6,                   // 10MB max
		CommitInterval: 100 * time.Millisecond, // Commit every 100ms instead of 1s
		StartOffset:    kafka.LastOffset,
		MaxWait:        100 * time.Millisecond, // Max wait 100ms for new data
	})
	return newConsumer(reader, r, log.WithField("topic", topic))
}

func newConsumer(reader messageReader, r relay.Relay, log logrus.FieldLogger) *KafkaConsumer {
	return &KafkaConsumer{reader: reader, relay: r, log: log.WithField("component", "kafka_consumer")}
}

// Start consumes in the background until ctx is cancelled.
func (k *KafkaConsumer) Start(ctx context.Context) {
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				k.log.WithField("panic", r).Error("Recovered from panic in Kafka consumer")
			}
		}()

		for {
			m, err := k.reader.ReadMessage(ctx)
			if err != nil {
				// A closed reader returns io.EOF.
				if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					k.log.Info("Kafka consumer stopping")
					return
				}
				if isTransient(err) {
					k.log.WithError(err).Debug("Kafka group is rebalancing, continuing")
					continue
				}
				k.log.WithError(err).Warn("Error reading Kafka message")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			k.handleMessage(ctx, m.Value)
		}
	}()
}

func isTransient(err error) bool {
	return errors.Is(err, kafka.RebalanceInProgress) || errors.Is(err, kafka.LeaderNotAvailable)
}

// handleMessage decodes one envelope and publishes it. Bad records are
// logged and skipped.
func (k *KafkaConsumer) handleMessage(ctx context.Context, value []byte) {
	defer func() {
		if r := recover(); r != nil {
			k.log.WithField("panic", r).Error("Recovered from panic in handleMessage")
		}
	}()

	var env domain.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		k.log.WithError(err).Warn("Error unmarshaling envelope")
		return
	}
	if env.Address == "" || env.Event == "" {
		k.log.WithField("envelope_id", env.ID).Warn("Dropping envelope without address or event")
		return
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now()
	}

	if err := k.relay.Publish(ctx, env); err != nil {
		k.log.WithError(err).WithField("address", env.Address).Warn("Failed to relay envelope")
	}
}

// Close stops reading and waits for the consume loop to exit.
func (k *KafkaConsumer) Close() error {
	err := k.reader.Close()
	k.wg.Wait()
	return err
}
