package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/godilite/feedback-reward/internal/service"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RewardEvent is the wire form of a reward signal.
type RewardEvent struct {
	MessageID         string    `json:"messageId"`
	ConversationID    string    `json:"conversationId"`
	RewardScore       float64   `json:"rewardScore"`
	RatingsComponent  *float64  `json:"ratingsComponent,omitempty"`
	BinaryComponent   *float64  `json:"binaryComponent,omitempty"`
	CitationComponent *float64  `json:"citationComponent,omitempty"`
	TimeComponent     *float64  `json:"timeComponent,omitempty"`
	FeedbackCount     int       `json:"feedbackCount"`
	ComputedAt        time.Time `json:"computedAt"`
	Explanation       string    `json:"explanation,omitempty"`
}

func newRewardEvent(s service.RewardSignal) RewardEvent {
	return RewardEvent{
		MessageID:         s.MessageID,
		ConversationID:    s.ConversationID,
		RewardScore:       s.RewardScore,
		RatingsComponent:  s.RatingsComponent,
		BinaryComponent:   s.BinaryComponent,
		CitationComponent: s.CitationComponent,
		TimeComponent:     s.TimeComponent,
		FeedbackCount:     s.FeedbackCount,
		ComputedAt:        s.ComputedAt,
		Explanation:       s.Explanation,
	}
}

// RewardPublisher writes reward signals to a Kafka topic, keyed by message
// ID so every signal of one message lands on the same partition.
type RewardPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewRewardPublisher(brokers []string, topic string, logger *zap.Logger) *RewardPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newRewardPublisher(writer, topic, logger)
}

func newRewardPublisher(writer messageWriter, topic string, logger *zap.Logger) *RewardPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewardPublisher{writer: writer, topic: topic, logger: logger}
}

// PublishRewards implements service.RewardPublisher.
func (p *RewardPublisher) PublishRewards(ctx context.Context, signals []service.RewardSignal) error {
	if len(signals) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(signals))
	for _, s := range signals {
		value, err := json.Marshal(newRewardEvent(s))
		if err != nil {
			return fmt.Errorf("marshal reward for message %s: %w", s.MessageID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(s.MessageID),
			Value: value,
			Time:  s.ComputedAt,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d rewards to %s: %w", len(msgs), p.topic, err)
	}

	p.logger.Debug("published reward signals", zap.String("topic", p.topic), zap.Int("count", len(msgs)))
	return nil
}

func (p *RewardPublisher) Close() error {
	return p.writer.Close()
}
