// Package event publishes engine events to Kafka.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// SubmissionTopic carries one message per submission accepted by the backend
const SubmissionTopic = "assessment.submissions"

// SubmissionEvent is the payload published after a submission
type SubmissionEvent struct {
	ActivityID     string          `json:"activity_id"`
	ActivityKind   string          `json:"activity_kind"`
	QuestionID     string          `json:"question_id"`
	ParticipantID  string          `json:"participant_id"`
	Language       domain.Language `json:"language"`
	ElapsedSeconds int64           `json:"elapsed_seconds"`
	PassedPublic   bool            `json:"passed_public"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// Marshal encodes the event
func (e SubmissionEvent) Marshal() ([]byte, error) {
	return sonic.Marshal(e)
}

// Key partitions events by activity so that one activity's submissions stay ordered
func (e SubmissionEvent) Key() string {
	return e.ActivityID
}

// Publisher publishes submission events
type Publisher interface {
	PublishSubmission(ctx context.Context, evt SubmissionEvent) error
	Close() error
}

// KafkaPublisher publishes events through a synchronous sarama producer
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaPublisher wraps an existing producer
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if topic == "" {
		topic = SubmissionTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// PublishSubmission sends one submission event
func (p *KafkaPublisher) PublishSubmission(ctx context.Context, evt SubmissionEvent) error {
	val, err := evt.Marshal()
	if err != nil {
		return fmt.Errorf("PublishSubmission failed at marshal event: %w", err)
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.Key()),
		Value: sarama.ByteEncoder(val),
	})
	if err != nil {
		return fmt.Errorf("PublishSubmission failed at produce message: %w", err)
	}
	p.logger.Debug("Submission event published",
		zap.String("activity_id", evt.ActivityID),
		zap.String("question_id", evt.QuestionID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close closes the underlying producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher drops events; used when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) PublishSubmission(ctx context.Context, evt SubmissionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
