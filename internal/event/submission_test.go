package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
)

func TestKafkaPublisherSendsEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != SubmissionTopic {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "c1" {
			return errors.New("expected activity key, got " + string(key))
		}
		val, _ := msg.Value.Encode()
		var evt SubmissionEvent
		if err := json.Unmarshal(val, &evt); err != nil {
			return err
		}
		if evt.QuestionID != "q1" || evt.ElapsedSeconds != 42 {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	publisher := NewKafkaPublisher(producer, "", zap.NewNop())
	err := publisher.PublishSubmission(context.Background(), SubmissionEvent{
		ActivityID:     "c1",
		ActivityKind:   "challenge",
		QuestionID:     "q1",
		ParticipantID:  "u1",
		Language:       domain.LanguagePython,
		ElapsedSeconds: 42,
		SubmittedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestKafkaPublisherReturnsProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisher(producer, "custom", zap.NewNop())
	err := publisher.PublishSubmission(context.Background(), SubmissionEvent{ActivityID: "c1"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = publisher.Close()
}
