package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/feedback-reward/internal/config"
	"github.com/godilite/feedback-reward/internal/repository/models"
	"github.com/godilite/feedback-reward/internal/service"
	"github.com/godilite/feedback-reward/internal/service/mocks"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Reward: config.RewardConfig{
			Weights:           config.DefaultRewardWeights(),
			TimeDecayHalfLife: 24 * time.Hour,
		},
		Dataset: config.DatasetConfig{MinFeedbackCount: 1},
	}
}

func newService(store service.ConversationStore, opts ...service.Option) *service.FeedbackService {
	opts = append([]service.Option{service.WithClock(clockwork.NewFakeClockAt(testNow))}, opts...)
	return service.NewFeedbackService(store, testConfig(), zap.NewNop(), opts...)
}

func aiMessage(id string, feedback ...models.FeedbackEntry) models.Message {
	return models.Message{
		ID:          id,
		MessageType: models.MessageTypeAIResponse,
		Content:     "answer " + id,
		CreatedAt:   testNow.Add(-time.Hour),
		Feedback:    feedback,
	}
}

func conversation(id string, msgs ...models.Message) models.Conversation {
	return models.Conversation{ID: id, OrgID: "org", UserID: "user", CreatedAt: testNow.Add(-2 * time.Hour), Messages: msgs}
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]service.RewardSignal
	err     error
}

func (p *recordingPublisher) PublishRewards(_ context.Context, signals []service.RewardSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, signals)
	return p.err
}

type recordingMetrics struct {
	mu           sync.Mutex
	aggregations int
	failures     int
	rewards      int
}

func (m *recordingMetrics) ObserveAggregation(_ service.FeedbackAggregation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failures++
		return
	}
	m.aggregations++
}

func (m *recordingMetrics) ObserveReward(service.RewardSignal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards++
}

func TestNewFeedbackService(t *testing.T) {
	t.Run("nil store panics", func(t *testing.T) {
		assert.Panics(t, func() { service.NewFeedbackService(nil, testConfig(), zap.NewNop()) })
	})

	t.Run("nil config panics", func(t *testing.T) {
		assert.Panics(t, func() { service.NewFeedbackService(&mocks.MockConversationStore{}, nil, zap.NewNop()) })
	})

	t.Run("nil logger gets default", func(t *testing.T) {
		svc := service.NewFeedbackService(&mocks.MockConversationStore{}, testConfig(), nil)
		assert.NotNil(t, svc)
	})

	t.Run("exposes weight check", func(t *testing.T) {
		cfg := testConfig()
		cfg.Reward.Weights = config.RewardWeights{Ratings: 0.9}
		svc := service.NewFeedbackService(&mocks.MockConversationStore{}, cfg, zap.NewNop())

		assert.False(t, svc.WeightsValid())
		assert.Equal(t, 0.9, svc.RewardWeights().Ratings)
		assert.True(t, newService(&mocks.MockConversationStore{}).WeightsValid())
	})
}

func TestAggregateFeedback(t *testing.T) {
	ctx := context.Background()

	t.Run("scenario A: helpful with ratings", func(t *testing.T) {
		store := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf(
			conversation("c1", aiMessage("m1", models.FeedbackEntry{
				IsHelpful: boolPtr(true),
				Ratings:   map[string]float64{"accuracy": 5, "relevance": 5},
			})),
		)}

		agg, err := newService(store).AggregateFeedback(ctx, service.AggregationParams{})
		require.NoError(t, err)

		assert.Equal(t, 1, agg.TotalConversations)
		assert.Equal(t, 1, agg.TotalMessages)
		assert.Equal(t, 1, agg.TotalFeedbackEntries)
		assert.Equal(t, 1, agg.PositiveFeedbackCount)
		require.NotNil(t, agg.AvgAccuracy)
		require.NotNil(t, agg.AvgRelevance)
		assert.Equal(t, 5.0, *agg.AvgAccuracy)
		assert.Equal(t, 5.0, *agg.AvgRelevance)
		assert.Nil(t, agg.AvgCompleteness)
		assert.Nil(t, agg.AvgClarity)
		assert.Nil(t, agg.AvgCitationRelevance)
		assert.Equal(t, 1.0, agg.PositiveRate())
	})

	t.Run("scenario B: mid-band ratings are neutral", func(t *testing.T) {
		store := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf(
			conversation("c1", aiMessage("m1", models.FeedbackEntry{
				Ratings: map[string]float64{"accuracy": 3, "relevance": 3},
			})),
		)}

		agg, err := newService(store).AggregateFeedback(ctx, service.AggregationParams{})
		require.NoError(t, err)

		assert.Equal(t, 1, agg.NeutralFeedbackCount)
		assert.Zero(t, agg.PositiveFeedbackCount)
		assert.Zero(t, agg.NegativeFeedbackCount)
		assert.Equal(t, 1.0, agg.NeutralRate())
	})

	t.Run("scenario C: messages below the threshold are excluded", func(t *testing.T) {
		store := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf(
			conversation("c1", aiMessage("m1", models.FeedbackEntry{IsHelpful: boolPtr(true)})),
		)}

		agg, err := newService(store).AggregateFeedback(ctx, service.AggregationParams{MinFeedbackCount: 2})
		require.NoError(t, err)

		assert.Equal(t, 1, agg.TotalConversations)
		assert.Zero(t, agg.TotalMessages)
		assert.Zero(t, agg.TotalFeedbackEntries)
		assert.Zero(t, agg.PositiveFeedbackCount)
		assert.Equal(t, 2, agg.MinFeedbackCount)
	})

	t.Run("scenario E: start after end yields an empty aggregation", func(t *testing.T) {
		start := testNow
		end := testNow.Add(-24 * time.Hour)
		store := &mocks.MockConversationStore{
			StreamConversationsFunc: func(_ context.Context, filter models.ConversationFilter, _ func(models.Conversation) error) error {
				assert.Equal(t, &start, filter.CreatedFrom)
				assert.Equal(t, &end, filter.CreatedTo)
				return nil
			},
		}

		agg, err := newService(store).AggregateFeedback(ctx, service.AggregationParams{StartDate: &start, EndDate: &end})
		require.NoError(t, err)

		assert.Zero(t, agg.TotalConversations)
		assert.Zero(t, agg.TotalFeedbackEntries)
		assert.Nil(t, agg.AvgAccuracy)
		assert.Nil(t, agg.AvgRelevance)
		assert.Nil(t, agg.AvgCompleteness)
		assert.Nil(t, agg.AvgClarity)
		assert.Nil(t, agg.AvgCitationRelevance)
		assert.Equal(t, 0.0, agg.PositiveRate())
		assert.Equal(t, 0.0, agg.NegativeRate())
		assert.Equal(t, start, agg.StartDate)
		assert.Equal(t, end, agg.EndDate)
	})

	t.Run("mixed population keeps the count invariant", func(t *testing.T) {
		store := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf(
			conversation("c1",
				models.Message{ID: "u1", MessageType: "user_message", Feedback: []models.FeedbackEntry{{IsHelpful: boolPtr(true)}}},
				aiMessage("m1",
					models.FeedbackEntry{IsHelpful: boolPtr(true)},
					models.FeedbackEntry{IsHelpful: boolPtr(false), Ratings: map[string]float64{"clarity": 4}},
					models.FeedbackEntry{Ratings: map[string]float64{"accuracy": 4, "clarity": 2}},
				),
			),
			conversation("c2",
				aiMessage("m2",
					models.FeedbackEntry{Ratings: map[string]float64{"accuracy": 2}},
					models.FeedbackEntry{CitationFeedback: []models.CitationFeedback{
						{RelevanceScore: floatPtr(0.5)}, {RelevanceScore: floatPtr(1)}, {CitationID: "no-score"},
					}},
				),
				aiMessage("m3"),
			),
		)}

		agg, err := newService(store).AggregateFeedback(ctx, service.AggregationParams{})
		require.NoError(t, err)

		assert.Equal(t, 2, agg.TotalConversations)
		assert.Equal(t, 2, agg.TotalMessages)
		assert.Equal(t, 5, agg.TotalFeedbackEntries)
		assert.Equal(t, 1, agg.PositiveFeedbackCount)
		assert.Equal(t, 2, agg.NegativeFeedbackCount)
		assert.Equal(t, 2, agg.NeutralFeedbackCount)
		assert.Equal(t, agg.TotalFeedbackEntries,
			agg.PositiveFeedbackCount+agg.NegativeFeedbackCount+agg.NeutralFeedbackCount)

		require.NotNil(t, agg.AvgAccuracy)
		assert.Equal(t, 3.0, *agg.AvgAccuracy)
		require.NotNil(t, agg.AvgClarity)
		assert.Equal(t, 3.0, *agg.AvgClarity)
		require.NotNil(t, agg.AvgCitationRelevance)
		assert.Equal(t, 0.75, *agg.AvgCitationRelevance)
		assert.InDelta(t, 0.2, agg.PositiveRate(), 1e-9)
		assert.InDelta(t, 0.4, agg.NegativeRate(), 1e-9)
	})

	t.Run("zero threshold counts messages without feedback", func(t *testing.T) {
		store := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf(
			conversation("c1", aiMessage("m1"), aiMessage("m2")),
		)}
		cfg := testConfig()
		cfg.Dataset.MinFeedbackCount = 0
		svc := service.NewFeedbackService(store, cfg, zap.NewNop())

		agg, err := svc.AggregateFeedback(ctx, service.AggregationParams{})
		require.NoError(t, err)
		assert.Equal(t, 2, agg.TotalMessages)
		assert.Zero(t, agg.TotalFeedbackEntries)
	})

	t.Run("filters and defaults are echoed", func(t *testing.T) {
		var got models.ConversationFilter
		store := &mocks.MockConversationStore{
			StreamConversationsFunc: func(_ context.Context, filter models.ConversationFilter, _ func(models.Conversation) error) error {
				got = filter
				return nil
			},
		}

		agg, err := newService(store).AggregateFeedback(ctx, service.AggregationParams{OrgID: "org-1", UserID: "u-1"})
		require.NoError(t, err)

		assert.Equal(t, "org-1", got.OrgID)
		assert.Equal(t, "u-1", got.UserID)
		assert.Nil(t, got.CreatedFrom)
		assert.Nil(t, got.CreatedTo)
		assert.Equal(t, "org-1", agg.OrgID)
		assert.Equal(t, "u-1", agg.UserID)
		assert.Equal(t, 1, agg.MinFeedbackCount)
		assert.True(t, agg.StartDate.IsZero())
		assert.Equal(t, testNow, agg.EndDate)
	})

	t.Run("store failure", func(t *testing.T) {
		dbErr := errors.New("database is locked")
		metrics := &recordingMetrics{}
		store := &mocks.MockConversationStore{
			StreamConversationsFunc: func(_ context.Context, _ models.ConversationFilter, fn func(models.Conversation) error) error {
				_ = fn(conversation("c1", aiMessage("m1", models.FeedbackEntry{IsHelpful: boolPtr(true)})))
				return dbErr
			},
		}

		agg, err := newService(store, service.WithMetrics(metrics)).AggregateFeedback(ctx, service.AggregationParams{})

		assert.ErrorIs(t, err, service.ErrStorageFailure)
		assert.ErrorIs(t, err, dbErr)
		assert.Equal(t, service.FeedbackAggregation{}, agg)
		assert.Equal(t, 1, metrics.failures)
	})

	t.Run("cancellation discards the partial result", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		store := &mocks.MockConversationStore{
			StreamConversationsFunc: func(_ context.Context, _ models.ConversationFilter, fn func(models.Conversation) error) error {
				for i := 0; i < 3; i++ {
					calls++
					if i == 1 {
						cancel()
					}
					if err := fn(conversation("c", aiMessage("m", models.FeedbackEntry{}))); err != nil {
						return err
					}
				}
				return nil
			},
		}

		agg, err := newService(store).AggregateFeedback(cctx, service.AggregationParams{})

		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, service.ErrStorageFailure)
		assert.Equal(t, service.FeedbackAggregation{}, agg)
		assert.Equal(t, 2, calls)
	})

	t.Run("concurrent calls do not share state", func(t *testing.T) {
		store := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf(
			conversation("c1", aiMessage("m1", models.FeedbackEntry{IsHelpful: boolPtr(true)})),
		)}
		svc := newService(store)

		var wg sync.WaitGroup
		results := make([]service.FeedbackAggregation, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = svc.AggregateFeedback(ctx, service.AggregationParams{})
			}(i)
		}
		wg.Wait()

		for _, agg := range results {
			assert.Equal(t, 1, agg.TotalFeedbackEntries)
		}
	})
}

func TestGetFeedbackByConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("message order then entry order", func(t *testing.T) {
		recorded := testNow.Add(-time.Hour)
		first := models.FeedbackEntry{IsHelpful: boolPtr(true), CreatedAt: &recorded}
		second := models.FeedbackEntry{IsHelpful: boolPtr(false)}
		third := models.FeedbackEntry{Ratings: map[string]float64{"accuracy": 4}}
		conv := conversation("c1",
			models.Message{ID: "u1", MessageType: "user_message", Feedback: []models.FeedbackEntry{first}},
			aiMessage("m1", first, second),
			aiMessage("m2", third),
		)
		store := &mocks.MockConversationStore{
			GetConversationFunc: func(_ context.Context, id string) (*models.Conversation, error) {
				assert.Equal(t, "c1", id)
				return &conv, nil
			},
		}

		got, err := newService(store).GetFeedbackByConversation(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, "m1", got[0].MessageID)
		assert.Equal(t, "answer m1", got[0].MessageContent)
		assert.Equal(t, first, got[0].Feedback)
		assert.Equal(t, conv.Messages[1].CreatedAt, got[0].CreatedAt)
		require.NotNil(t, got[0].FeedbackCreatedAt)
		assert.True(t, got[0].FeedbackCreatedAt.Equal(recorded))
		assert.Nil(t, got[1].FeedbackCreatedAt)
		assert.Equal(t, "m1", got[1].MessageID)
		assert.Equal(t, second, got[1].Feedback)
		assert.Equal(t, "m2", got[2].MessageID)
	})

	t.Run("scenario D: unknown conversation is empty, not an error", func(t *testing.T) {
		store := &mocks.MockConversationStore{
			GetConversationFunc: func(context.Context, string) (*models.Conversation, error) { return nil, nil },
		}

		got, err := newService(store).GetFeedbackByConversation(ctx, "missing")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &mocks.MockConversationStore{
			GetConversationFunc: func(context.Context, string) (*models.Conversation, error) {
				return nil, errors.New("boom")
			},
		}

		got, err := newService(store).GetFeedbackByConversation(ctx, "c1")
		assert.ErrorIs(t, err, service.ErrStorageFailure)
		assert.Nil(t, got)
	})
}

func TestComputeRewards(t *testing.T) {
	ctx := context.Background()
	store := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf(
		conversation("c1",
			aiMessage("m1", models.FeedbackEntry{IsHelpful: boolPtr(true)}),
			aiMessage("m2"),
			models.Message{ID: "u1", MessageType: "user_message", Feedback: []models.FeedbackEntry{{IsHelpful: boolPtr(true)}}},
		),
		conversation("c2", aiMessage("m3", models.FeedbackEntry{IsHelpful: boolPtr(false)})),
	)}

	t.Run("one signal per qualifying response", func(t *testing.T) {
		metrics := &recordingMetrics{}
		signals, err := newService(store, service.WithMetrics(metrics)).ComputeRewards(ctx, service.AggregationParams{})
		require.NoError(t, err)
		require.Len(t, signals, 2)

		assert.Equal(t, "m1", signals[0].MessageID)
		assert.Equal(t, "c1", signals[0].ConversationID)
		assert.InDelta(t, 0.3, signals[0].RewardScore, 1e-9)
		assert.Equal(t, "m3", signals[1].MessageID)
		assert.InDelta(t, -0.3, signals[1].RewardScore, 1e-9)
		assert.Equal(t, testNow, signals[1].ComputedAt)
		assert.Equal(t, 2, metrics.rewards)
	})

	t.Run("threshold applies", func(t *testing.T) {
		signals, err := newService(store).ComputeRewards(ctx, service.AggregationParams{MinFeedbackCount: 2})
		require.NoError(t, err)
		assert.NotNil(t, signals)
		assert.Empty(t, signals)
	})

	t.Run("store failure", func(t *testing.T) {
		failing := &mocks.MockConversationStore{
			StreamConversationsFunc: func(context.Context, models.ConversationFilter, func(models.Conversation) error) error {
				return errors.New("boom")
			},
		}
		signals, err := newService(failing).ComputeRewards(ctx, service.AggregationParams{})
		assert.ErrorIs(t, err, service.ErrStorageFailure)
		assert.Nil(t, signals)
	})
}

func TestGetConversationRewards(t *testing.T) {
	ctx := context.Background()

	t.Run("scores responses with feedback", func(t *testing.T) {
		conv := conversation("c1",
			aiMessage("m1", models.FeedbackEntry{Ratings: map[string]float64{"accuracy": 5}}),
			aiMessage("m2"),
		)
		store := &mocks.MockConversationStore{
			GetConversationFunc: func(context.Context, string) (*models.Conversation, error) { return &conv, nil },
		}

		signals, err := newService(store).GetConversationRewards(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, signals, 1)
		assert.Equal(t, "m1", signals[0].MessageID)
		assert.InDelta(t, 0.4, signals[0].RewardScore, 1e-9)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		store := &mocks.MockConversationStore{
			GetConversationFunc: func(context.Context, string) (*models.Conversation, error) { return nil, nil },
		}

		signals, err := newService(store).GetConversationRewards(ctx, "missing")
		require.NoError(t, err)
		assert.NotNil(t, signals)
		assert.Empty(t, signals)
	})
}

func TestPublishRewards(t *testing.T) {
	ctx := context.Background()
	store := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf(
		conversation("c1", aiMessage("m1", models.FeedbackEntry{IsHelpful: boolPtr(true)})),
	)}

	t.Run("disabled without a publisher", func(t *testing.T) {
		n, err := newService(store).PublishRewards(ctx, service.AggregationParams{})
		assert.ErrorIs(t, err, service.ErrPublisherDisabled)
		assert.Zero(t, n)
	})

	t.Run("publishes the computed batch", func(t *testing.T) {
		pub := &recordingPublisher{}
		n, err := newService(store, service.WithPublisher(pub)).PublishRewards(ctx, service.AggregationParams{})
		require.NoError(t, err)

		assert.Equal(t, 1, n)
		require.Len(t, pub.batches, 1)
		assert.Equal(t, "m1", pub.batches[0][0].MessageID)
	})

	t.Run("empty window publishes nothing", func(t *testing.T) {
		pub := &recordingPublisher{}
		empty := &mocks.MockConversationStore{StreamConversationsFunc: mocks.StreamOf()}

		n, err := newService(empty, service.WithPublisher(pub)).PublishRewards(ctx, service.AggregationParams{})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, pub.batches)
	})

	t.Run("publisher failure", func(t *testing.T) {
		pubErr := errors.New("broker down")
		pub := &recordingPublisher{err: pubErr}

		n, err := newService(store, service.WithPublisher(pub)).PublishRewards(ctx, service.AggregationParams{})
		assert.ErrorIs(t, err, pubErr)
		assert.Zero(t, n)
	})
}
