package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sharath018/community-events-backend/config"
	"go.uber.org/zap"
)

var (
	KafkaWriter  *kafka.Writer
	kafkaBrokers []string
	kafkaTopic   string
)

// InitializeKafka prepares the shared writer. Without KAFKA_BROKERS the
// writer stays nil and publishers fall back to in-process delivery.
func InitializeKafka(cfg *config.Config) {
	if len(cfg.KafkaBrokers) == 0 {
		Log.Warn("KAFKA_BROKERS not set, notifications are delivered in-process")
		return
	}

	kafkaBrokers = cfg.KafkaBrokers
	kafkaTopic = cfg.KafkaTopic
	KafkaWriter = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	Log.Info("kafka writer ready", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
}

func KafkaEnabled() bool {
	return KafkaWriter != nil
}

// PublishJSON writes v to the configured topic, keyed so that messages for the
// same key stay ordered.
func PublishJSON(ctx context.Context, key string, v interface{}) error {
	if !KafkaEnabled() {
		return errors.New("kafka not configured")
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return KafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
}

// NewKafkaReader returns a consumer-group reader on the configured topic.
func NewKafkaReader(groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kafkaBrokers,
		GroupID:        groupID,
		Topic:          kafkaTopic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

func CloseKafka() {
	if KafkaWriter == nil {
		return
	}
	if err := KafkaWriter.Close(); err != nil {
		Log.Warn("kafka writer close failed", zap.Error(err))
	}
}
