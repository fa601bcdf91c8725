package mocks

import (
	"context"
	"errors"
	"time"

	"github.com/godilite/feedback-reward/internal/config"
	"github.com/godilite/feedback-reward/internal/service"
)

// MockFeedbackService is a mock implementation of the FeedbackService
// interface for testing the handler layer. It uses function-based mocking for flexibility.
type MockFeedbackService struct {
	AggregateFeedbackFunc         func(ctx context.Context, params service.AggregationParams) (service.FeedbackAggregation, error)
	GetFeedbackByConversationFunc func(ctx context.Context, conversationID string) ([]service.ConversationFeedback, error)
	GetConversationRewardsFunc    func(ctx context.Context, conversationID string) ([]service.RewardSignal, error)
	ComputeRewardsFunc            func(ctx context.Context, params service.AggregationParams) ([]service.RewardSignal, error)
	PublishRewardsFunc            func(ctx context.Context, params service.AggregationParams) (int, error)

	Weights  config.RewardWeights
	HalfLife time.Duration
}

// AggregateFeedback implements the FeedbackService interface
func (m *MockFeedbackService) AggregateFeedback(ctx context.Context, params service.AggregationParams) (service.FeedbackAggregation, error) {
	if m.AggregateFeedbackFunc != nil {
		return m.AggregateFeedbackFunc(ctx, params)
	}
	return service.FeedbackAggregation{}, errors.New("AggregateFeedbackFunc not implemented")
}

// GetFeedbackByConversation implements the FeedbackService interface
func (m *MockFeedbackService) GetFeedbackByConversation(ctx context.Context, conversationID string) ([]service.ConversationFeedback, error) {
	if m.GetFeedbackByConversationFunc != nil {
		return m.GetFeedbackByConversationFunc(ctx, conversationID)
	}
	return nil, errors.New("GetFeedbackByConversationFunc not implemented")
}

// GetConversationRewards implements the FeedbackService interface
func (m *MockFeedbackService) GetConversationRewards(ctx context.Context, conversationID string) ([]service.RewardSignal, error) {
	if m.GetConversationRewardsFunc != nil {
		return m.GetConversationRewardsFunc(ctx, conversationID)
	}
	return nil, errors.New("GetConversationRewardsFunc not implemented")
}

// ComputeRewards implements the FeedbackService interface
func (m *MockFeedbackService) ComputeRewards(ctx context.Context, params service.AggregationParams) ([]service.RewardSignal, error) {
	if m.ComputeRewardsFunc != nil {
		return m.ComputeRewardsFunc(ctx, params)
	}
	return nil, errors.New("ComputeRewardsFunc not implemented")
}

// PublishRewards implements the FeedbackService interface
func (m *MockFeedbackService) PublishRewards(ctx context.Context, params service.AggregationParams) (int, error) {
	if m.PublishRewardsFunc != nil {
		return m.PublishRewardsFunc(ctx, params)
	}
	return 0, errors.New("PublishRewardsFunc not implemented")
}

// RewardWeights implements the FeedbackService interface
func (m *MockFeedbackService) RewardWeights() config.RewardWeights {
	return m.Weights
}

// WeightsValid implements the FeedbackService interface
func (m *MockFeedbackService) WeightsValid() bool {
	return m.Weights.ValidateSum()
}

// TimeDecayHalfLife implements the FeedbackService interface
func (m *MockFeedbackService) TimeDecayHalfLife() time.Duration {
	return m.HalfLife
}
