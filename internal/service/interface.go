package service

import (
	"context"

	"github.com/godilite/feedback-reward/internal/repository/models"
)

// ConversationStore defines the storage operations the feedback service needs.
type ConversationStore interface {
	StreamConversations(ctx context.Context, filter models.ConversationFilter, fn func(models.Conversation) error) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
}

// RewardPublisher ships computed reward signals downstream.
type RewardPublisher interface {
	PublishRewards(ctx context.Context, signals []RewardSignal) error
}

// MetricsRecorder receives per-call statistics. Implementations must be safe
// for concurrent use.
type MetricsRecorder interface {
	ObserveAggregation(agg FeedbackAggregation, err error)
	ObserveReward(signal RewardSignal)
}
