package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/godilite/feedback-reward/internal/config"
	"github.com/godilite/feedback-reward/internal/repository/models"
)

const (
	storeTimeout = 30 * time.Second
)

var (
	ErrStorageFailure    = errors.New("storage failure")
	ErrPublisherDisabled = errors.New("reward publisher not configured")
)

// FeedbackService classifies, scores and aggregates conversation feedback.
// It holds no per-call state; concurrent calls are independent.
type FeedbackService struct {
	store      ConversationStore
	scorer     *RewardScorer
	publisher  RewardPublisher
	metrics    MetricsRecorder
	clock      clockwork.Clock
	logger     *zap.Logger
	minDefault int
}

type Option func(*FeedbackService)

func WithClock(clock clockwork.Clock) Option {
	return func(s *FeedbackService) { s.clock = clock }
}

func WithPublisher(p RewardPublisher) Option {
	return func(s *FeedbackService) { s.publisher = p }
}

func WithMetrics(m MetricsRecorder) Option {
	return func(s *FeedbackService) { s.metrics = m }
}

// NewFeedbackService creates a FeedbackService. cfg supplies the reward
// weights, the decay half-life and the default feedback threshold.
func NewFeedbackService(store ConversationStore, cfg *config.Config, logger *zap.Logger, opts ...Option) *FeedbackService {
	if store == nil {
		panic("store must not be nil")
	}
	if cfg == nil {
		panic("config must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}

	s := &FeedbackService{
		store:      store,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		minDefault: cfg.Dataset.MinFeedbackCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	s.scorer = NewRewardScorer(cfg.Reward.Weights, cfg.Reward.TimeDecayHalfLife, s.clock, logger.Named("reward"))
	return s
}

func (s *FeedbackService) RewardWeights() config.RewardWeights {
	return s.scorer.Weights()
}

func (s *FeedbackService) TimeDecayHalfLife() time.Duration {
	return s.scorer.HalfLife()
}

// WeightsValid reports whether the configured weights sum to 1. Scoring uses
// the weights as configured either way.
func (s *FeedbackService) WeightsValid() bool {
	return s.scorer.Weights().ValidateSum()
}

func (s *FeedbackService) minFeedback(params AggregationParams) int {
	if params.MinFeedbackCount > 0 {
		return params.MinFeedbackCount
	}
	return s.minDefault
}

func filterFor(params AggregationParams) models.ConversationFilter {
	return models.ConversationFilter{
		OrgID:       params.OrgID,
		UserID:      params.UserID,
		CreatedFrom: params.StartDate,
		CreatedTo:   params.EndDate,
	}
}

// storeError keeps the caller's cancellation visible and tags everything else
// as a storage failure.
func storeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

// scan streams the window and calls onConversation for every conversation and
// onMessage for every AI response that meets the feedback threshold.
func (s *FeedbackService) scan(ctx context.Context, params AggregationParams, onConversation func(), onMessage func(conv models.Conversation, msg models.Message)) error {
	minCount := s.minFeedback(params)

	dbCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	err := s.store.StreamConversations(dbCtx, filterFor(params), func(conv models.Conversation) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if onConversation != nil {
			onConversation()
		}
		for _, msg := range conv.Messages {
			if msg.MessageType != models.MessageTypeAIResponse {
				continue
			}
			if len(msg.Feedback) < minCount {
				continue
			}
			onMessage(conv, msg)
		}
		return nil
	})
	if err != nil {
		return storeError(ctx, err)
	}
	return ctx.Err()
}

type accumulator struct {
	agg       FeedbackAggregation
	ratings   map[string][]float64
	citations []float64
}

func newAccumulator() *accumulator {
	return &accumulator{ratings: make(map[string][]float64, len(ratingDimensions))}
}

func (a *accumulator) addMessage(msg models.Message) {
	a.agg.TotalMessages++
	for _, entry := range msg.Feedback {
		a.agg.TotalFeedbackEntries++
		switch ClassifyFeedback(entry) {
		case SentimentPositive:
			a.agg.PositiveFeedbackCount++
		case SentimentNegative:
			a.agg.NegativeFeedbackCount++
		default:
			a.agg.NeutralFeedbackCount++
		}

		for _, dim := range ratingDimensions {
			if v, ok := entry.Ratings[dim]; ok && isFinite(v) {
				a.ratings[dim] = append(a.ratings[dim], v)
			}
		}
		for _, cf := range entry.CitationFeedback {
			if cf.RelevanceScore != nil && isFinite(*cf.RelevanceScore) {
				a.citations = append(a.citations, *cf.RelevanceScore)
			}
		}
	}
}

func (a *accumulator) finalize() FeedbackAggregation {
	agg := a.agg
	agg.AvgAccuracy = safeAverage(a.ratings[DimensionAccuracy])
	agg.AvgRelevance = safeAverage(a.ratings[DimensionRelevance])
	agg.AvgCompleteness = safeAverage(a.ratings[DimensionCompleteness])
	agg.AvgClarity = safeAverage(a.ratings[DimensionClarity])
	agg.AvgCitationRelevance = safeAverage(a.citations)
	return agg
}

// safeAverage returns nil for an empty list.
func safeAverage(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}

// AggregateFeedback computes feedback statistics over the conversations
// selected by params. A failed or cancelled scan returns no aggregation.
func (s *FeedbackService) AggregateFeedback(ctx context.Context, params AggregationParams) (FeedbackAggregation, error) {
	acc := newAccumulator()

	err := s.scan(ctx, params,
		func() { acc.agg.TotalConversations++ },
		func(_ models.Conversation, msg models.Message) { acc.addMessage(msg) },
	)
	if err != nil {
		s.logger.Error("feedback aggregation failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.ObserveAggregation(FeedbackAggregation{}, err)
		}
		return FeedbackAggregation{}, err
	}

	agg := acc.finalize()
	agg.OrgID = params.OrgID
	agg.UserID = params.UserID
	agg.MinFeedbackCount = s.minFeedback(params)
	if params.StartDate != nil {
		agg.StartDate = *params.StartDate
	}
	if params.EndDate != nil {
		agg.EndDate = *params.EndDate
	} else {
		agg.EndDate = s.clock.Now()
	}

	s.logger.Info("aggregated feedback",
		zap.Int("conversations", agg.TotalConversations),
		zap.Int("messages", agg.TotalMessages),
		zap.Int("feedback_entries", agg.TotalFeedbackEntries),
		zap.Time("start", agg.StartDate),
		zap.Time("end", agg.EndDate),
		zap.String("org_id", agg.OrgID),
		zap.String("user_id", agg.UserID))

	if s.metrics != nil {
		s.metrics.ObserveAggregation(agg, nil)
	}
	return agg, nil
}

func (s *FeedbackService) getConversation(ctx context.Context, id string) (*models.Conversation, error) {
	dbCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	conv, err := s.store.GetConversation(dbCtx, id)
	if err != nil {
		s.logger.Error("failed to fetch conversation", zap.String("conversation_id", id), zap.Error(err))
		return nil, storeError(ctx, err)
	}
	return conv, nil
}

// GetFeedbackByConversation lists every feedback entry of every AI response
// in the conversation, in message order then entry order. An unknown
// conversation yields an empty list.
func (s *FeedbackService) GetFeedbackByConversation(ctx context.Context, conversationID string) ([]ConversationFeedback, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationFeedback, 0)
	if conv == nil {
		return out, nil
	}
	for _, msg := range conv.Messages {
		if msg.MessageType != models.MessageTypeAIResponse {
			continue
		}
		for _, entry := range msg.Feedback {
			out = append(out, ConversationFeedback{
				MessageID:      msg.ID,
				MessageContent: msg.Content,
				Feedback:          entry,
				CreatedAt:         msg.CreatedAt,
				FeedbackCreatedAt: entry.CreatedAt,
			})
		}
	}
	return out, nil
}

func (s *FeedbackService) score(conversationID string, msg models.Message) RewardSignal {
	signal := s.scorer.Score(conversationID, msg)
	if s.metrics != nil {
		s.metrics.ObserveReward(signal)
	}
	return signal
}

// ComputeRewards scores every AI response in the window that meets the
// feedback threshold and has at least one feedback entry.
func (s *FeedbackService) ComputeRewards(ctx context.Context, params AggregationParams) ([]RewardSignal, error) {
	signals := make([]RewardSignal, 0)

	err := s.scan(ctx, params, nil, func(conv models.Conversation, msg models.Message) {
		if len(msg.Feedback) == 0 {
			return
		}
		signals = append(signals, s.score(conv.ID, msg))
	})
	if err != nil {
		s.logger.Error("reward computation failed", zap.Error(err))
		return nil, err
	}

	s.logger.Info("computed rewards", zap.Int("signals", len(signals)))
	return signals, nil
}

// GetConversationRewards scores every AI response with feedback in one
// conversation. An unknown conversation yields an empty list.
func (s *FeedbackService) GetConversationRewards(ctx context.Context, conversationID string) ([]RewardSignal, error) {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	signals := make([]RewardSignal, 0)
	if conv == nil {
		return signals, nil
	}
	for _, msg := range conv.Messages {
		if msg.MessageType != models.MessageTypeAIResponse || len(msg.Feedback) == 0 {
			continue
		}
		signals = append(signals, s.score(conv.ID, msg))
	}
	return signals, nil
}

// PublishRewards computes rewards for the window and sends them to the
// configured publisher. It returns the number of signals published.
func (s *FeedbackService) PublishRewards(ctx context.Context, params AggregationParams) (int, error) {
	if s.publisher == nil {
		return 0, ErrPublisherDisabled
	}

	signals, err := s.ComputeRewards(ctx, params)
	if err != nil {
		return 0, err
	}
	if len(signals) == 0 {
		return 0, nil
	}

	if err := s.publisher.PublishRewards(ctx, signals); err != nil {
		s.logger.Error("failed to publish rewards", zap.Int("signals", len(signals)), zap.Error(err))
		return 0, fmt.Errorf("publish rewards: %w", err)
	}

	s.logger.Info("published rewards", zap.Int("signals", len(signals)))
	return len(signals), nil
}
