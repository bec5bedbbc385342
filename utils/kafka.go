package utils

import (
	"context"
	"log"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/sharath018/family-events-backend/config"
)

// KafkaPublisher owns the writers for the score-history and
// pipeline-outcome topics
type KafkaPublisher struct {
	scoreWriter   *kafka.Writer
	outcomeWriter *kafka.Writer
}

// InitKafka creates the shared publisher. Brokers is a comma-separated list.
func InitKafka(cfg *config.Config) *KafkaPublisher {
	brokers := strings.Split(cfg.KafkaBrokers, ",")

	p := &KafkaPublisher{
		scoreWriter: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    cfg.KafkaScoreTopic,
			Balancer: &kafka.LeastBytes{},
		},
		outcomeWriter: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    cfg.KafkaOutcomeTopic,
			Balancer: &kafka.LeastBytes{},
		},
	}

	log.Printf("✅ Kafka publisher ready (topics: %s, %s)", cfg.KafkaScoreTopic, cfg.KafkaOutcomeTopic)
	return p
}

// PublishScore appends a score-history record. Score history is
// append-only; the stored score on the event row is only a cache.
func (p *KafkaPublisher) PublishScore(ctx context.Context, key string, value []byte) error {
	return p.scoreWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

// PublishOutcome emits a registration outcome for the reporting consumer
func (p *KafkaPublisher) PublishOutcome(ctx context.Context, key string, value []byte) error {
	return p.outcomeWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

// Close flushes and closes both writers
func (p *KafkaPublisher) Close() {
	if err := p.scoreWriter.Close(); err != nil {
		log.Printf("⚠️ Failed to close score writer: %v", err)
	}
	if err := p.outcomeWriter.Close(); err != nil {
		log.Printf("⚠️ Failed to close outcome writer: %v", err)
	}
}

// NewOutcomeReader builds the consumer-group reader for pipeline outcomes
func NewOutcomeReader(cfg *config.Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(cfg.KafkaBrokers, ","),
		Topic:   cfg.KafkaOutcomeTopic,
		GroupID: "reporting-service",
	})
}
