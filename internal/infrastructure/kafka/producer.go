package kafka

import (
	"context"
	"encoding/json"
	"time"

	"chat-relay/internal/domain"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer mirrors conversation mutation events to a topic for other
// services. Messages are keyed by room address so one conversation stays on
// one partition.
type KafkaProducer struct {
	writer messageWriter
	topic  string
	log    logrus.FieldLogger
}

func NewKafkaProducer(brokers []string, topic string, log logrus.FieldLogger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		// Optimize for low latency
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: 1, // Wait for leader acknowledgment only
		Async:        false,
		MaxAttempts:  3,
	}
	return newProducer(writer, topic, log)
}

func newProducer(w messageWriter, topic string, log logrus.FieldLogger) *KafkaProducer {
	return &KafkaProducer{writer: w, topic: topic, log: log.WithField("component", "kafka_producer")}
}

// PublishEvent writes ev to the events topic. It returns when ctx ends even
// if the brokers have not answered.
func (k *KafkaProducer) PublishEvent(ctx context.Context, ev domain.MutationEvent) error {
	msg, err := k.message(ev)
	if err != nil {
		return err
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.WithError(err).WithField("topic", k.topic).Warn("Failed to send event to Kafka")
		return err
	}

	k.log.WithFields(logrus.Fields{"topic": k.topic, "event": ev.Name}).Debug("Event sent to Kafka")
	return nil
}

func (k *KafkaProducer) message(ev domain.MutationEvent) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: k.topic,
		Key:   []byte(ev.Address),
		Value: data,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Name)},
		},
	}, nil
}

func (k *KafkaProducer) Close() error {
	return k.writer.Close()
}
