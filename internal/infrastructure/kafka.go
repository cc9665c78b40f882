package infrastructure

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// NewSyncProducer creates a Kafka producer that waits for all in-sync
// replicas. It returns nil when no brokers are configured.
func NewSyncProducer(config *KafkaConfig, logger *zap.Logger) (sarama.SyncProducer, error) {
	if len(config.Brokers) == 0 {
		logger.Info("Kafka not configured, submission events disabled")
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.ClientID = config.ClientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(config.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Info("Kafka producer created",
		zap.Strings("brokers", config.Brokers),
		zap.String("topic", config.Topic),
	)
	return producer, nil
}
