package grpc

import (
	"context"
	"time"

	"github.com/godilite/feedback-reward/internal/config"
	"github.com/godilite/feedback-reward/internal/service"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// CacheRecorder counts cache hits and misses.
type CacheRecorder interface {
	CacheHit()
	CacheMiss()
}

type FeedbackService interface {
	AggregateFeedback(ctx context.Context, params service.AggregationParams) (service.FeedbackAggregation, error)
	GetFeedbackByConversation(ctx context.Context, conversationID string) ([]service.ConversationFeedback, error)
	GetConversationRewards(ctx context.Context, conversationID string) ([]service.RewardSignal, error)
	ComputeRewards(ctx context.Context, params service.AggregationParams) ([]service.RewardSignal, error)
	PublishRewards(ctx context.Context, params service.AggregationParams) (int, error)
	RewardWeights() config.RewardWeights
	WeightsValid() bool
	TimeDecayHalfLife() time.Duration
}
