package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	pb "github.com/godilite/feedback-reward/api/v1"
	"github.com/godilite/feedback-reward/internal/service"
)

const (
	defaultCacheDuration = 5 * time.Minute
	defaultGRPCTimeout   = 30 * time.Second
)

type CacheKeyType string

const (
	cacheKeyFeedbackAggregation CacheKeyType = "grpc:feedback_aggregation"
)

type GRPCHandlers struct {
	pb.UnimplementedFeedbackRewardServer
	feedback FeedbackService
	cache    Cacher
	recorder CacheRecorder
	logger   *zap.Logger
	sfGroup  singleflight.Group
	cacheTTL time.Duration
}

type HandlerOption func(*GRPCHandlers)

// WithCacheRecorder counts aggregation cache hits and misses.
func WithCacheRecorder(r CacheRecorder) HandlerOption {
	return func(h *GRPCHandlers) { h.recorder = r }
}

// NewGRPCHandlers initializes the gRPC handlers. cache may be nil.
func NewGRPCHandlers(feedback FeedbackService, cache Cacher, logger *zap.Logger, ttl time.Duration, opts ...HandlerOption) *GRPCHandlers {
	if feedback == nil {
		panic("nil FeedbackService provided to NewGRPCHandlers")
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &GRPCHandlers{
		feedback: feedback,
		cache:    cache,
		logger:   logger.Named("grpc-handler"),
		cacheTTL: ttl,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// parseParams converts a window request. A start after the end is accepted
// and selects nothing.
func parseParams(req *pb.AggregateFeedbackRequest) (service.AggregationParams, error) {
	params := service.AggregationParams{
		OrgID:            req.GetOrgId(),
		UserID:           req.GetUserId(),
		MinFeedbackCount: int(req.GetMinFeedbackCount()),
	}

	if ts := req.GetStartDate(); ts != nil {
		if err := ts.CheckValid(); err != nil {
			return params, status.Errorf(codes.InvalidArgument, "invalid start date: %v", err)
		}
		t := ts.AsTime()
		params.StartDate = &t
	}
	if ts := req.GetEndDate(); ts != nil {
		if err := ts.CheckValid(); err != nil {
			return params, status.Errorf(codes.InvalidArgument, "invalid end date: %v", err)
		}
		t := ts.AsTime()
		params.EndDate = &t
	}
	if params.MinFeedbackCount < 0 {
		return params, status.Error(codes.InvalidArgument, "min feedback count must not be negative")
	}

	return params, nil
}

func formatKeyTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func normalizeKey(prefix CacheKeyType, params service.AggregationParams) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%d",
		prefix,
		formatKeyTime(params.StartDate),
		formatKeyTime(params.EndDate),
		params.OrgID,
		params.UserID,
		params.MinFeedbackCount)
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, service.ErrPublisherDisabled):
		s.logger.Info("publisher disabled", zap.String("op", op))
		return status.Error(codes.FailedPrecondition, "reward publishing is not configured")
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *GRPCHandlers) recordCache(hit bool) {
	if s.recorder == nil {
		return
	}
	if hit {
		s.recorder.CacheHit()
	} else {
		s.recorder.CacheMiss()
	}
}

func (s *GRPCHandlers) AggregateFeedback(ctx context.Context, req *pb.AggregateFeedbackRequest) (*pb.FeedbackAggregationResponse, error) {
	params, err := parseParams(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	cacheKey := normalizeKey(cacheKeyFeedbackAggregation, params)

	// An open-ended window ends at the clock's now, so its result is never cached.
	cache := s.cache
	if params.EndDate == nil {
		cache = nil
	}

	agg, hit, err := FindAndCache(ctx, cache, &s.sfGroup, cacheKey, s.cacheTTL, s.logger, func(fetchCtx context.Context) (service.FeedbackAggregation, error) {
		return s.feedback.AggregateFeedback(fetchCtx, params)
	})
	if err != nil {
		return nil, s.handleError(ctx, "AggregateFeedback", err)
	}
	if cache != nil {
		s.recordCache(hit)
	}

	return mapToProtoAggregation(agg), nil
}

func (s *GRPCHandlers) GetConversationFeedback(ctx context.Context, req *pb.ConversationRequest) (*pb.ConversationFeedbackResponse, error) {
	id := req.GetConversationId()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "conversation id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	items, err := s.feedback.GetFeedbackByConversation(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, "GetConversationFeedback", err)
	}

	out := make([]*pb.FeedbackItem, 0, len(items))
	for _, item := range items {
		pbItem, err := mapToProtoFeedbackItem(item)
		if err != nil {
			return nil, s.handleError(ctx, "GetConversationFeedback", err)
		}
		out = append(out, pbItem)
	}
	return &pb.ConversationFeedbackResponse{Items: out}, nil
}

func (s *GRPCHandlers) GetConversationRewards(ctx context.Context, req *pb.ConversationRequest) (*pb.RewardSignalsResponse, error) {
	id := req.GetConversationId()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "conversation id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	signals, err := s.feedback.GetConversationRewards(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, "GetConversationRewards", err)
	}
	return &pb.RewardSignalsResponse{Signals: mapToProtoSignals(signals)}, nil
}

func (s *GRPCHandlers) ComputeRewards(ctx context.Context, req *pb.AggregateFeedbackRequest) (*pb.RewardSignalsResponse, error) {
	params, err := parseParams(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	signals, err := s.feedback.ComputeRewards(ctx, params)
	if err != nil {
		return nil, s.handleError(ctx, "ComputeRewards", err)
	}
	return &pb.RewardSignalsResponse{Signals: mapToProtoSignals(signals)}, nil
}

func (s *GRPCHandlers) PublishRewards(ctx context.Context, req *pb.AggregateFeedbackRequest) (*pb.PublishRewardsResponse, error) {
	params, err := parseParams(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	n, err := s.feedback.PublishRewards(ctx, params)
	if err != nil {
		return nil, s.handleError(ctx, "PublishRewards", err)
	}
	return &pb.PublishRewardsResponse{Published: int32(n)}, nil
}

func (s *GRPCHandlers) GetRewardConfig(_ context.Context, _ *pb.RewardConfigRequest) (*pb.RewardConfigResponse, error) {
	w := s.feedback.RewardWeights()
	return &pb.RewardConfigResponse{
		RatingsWeight:            w.Ratings,
		BinaryWeight:             w.Binary,
		CitationWeight:           w.Citation,
		TimeWeight:               w.Time,
		WeightSum:                w.Sum(),
		WeightsValid:             s.feedback.WeightsValid(),
		TimeDecayHalfLifeSeconds: s.feedback.TimeDecayHalfLife().Seconds(),
	}, nil
}

func optionalTimestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func mapToProtoAggregation(agg service.FeedbackAggregation) *pb.FeedbackAggregationResponse {
	return &pb.FeedbackAggregationResponse{
		TotalConversations:    int64(agg.TotalConversations),
		TotalMessages:         int64(agg.TotalMessages),
		TotalFeedbackEntries:  int64(agg.TotalFeedbackEntries),
		PositiveFeedbackCount: int64(agg.PositiveFeedbackCount),
		NegativeFeedbackCount: int64(agg.NegativeFeedbackCount),
		NeutralFeedbackCount:  int64(agg.NeutralFeedbackCount),
		AvgAccuracy:           agg.AvgAccuracy,
		AvgRelevance:          agg.AvgRelevance,
		AvgCompleteness:       agg.AvgCompleteness,
		AvgClarity:            agg.AvgClarity,
		AvgCitationRelevance:  agg.AvgCitationRelevance,
		PositiveRate:          agg.PositiveRate(),
		NegativeRate:          agg.NegativeRate(),
		NeutralRate:           agg.NeutralRate(),
		StartDate:             optionalTimestamp(agg.StartDate),
		EndDate:               optionalTimestamp(agg.EndDate),
		OrgId:                 agg.OrgID,
		UserId:                agg.UserID,
		MinFeedbackCount:      int32(agg.MinFeedbackCount),
	}
}

func mapToProtoFeedbackItem(item service.ConversationFeedback) (*pb.FeedbackItem, error) {
	raw, err := json.Marshal(item.Feedback)
	if err != nil {
		return nil, fmt.Errorf("encode feedback of message %s: %w", item.MessageID, err)
	}
	pbItem := &pb.FeedbackItem{
		MessageId:      item.MessageID,
		MessageContent: item.MessageContent,
		FeedbackJson:   string(raw),
		CreatedAt:      optionalTimestamp(item.CreatedAt),
	}
	if item.FeedbackCreatedAt != nil {
		pbItem.FeedbackCreatedAt = optionalTimestamp(*item.FeedbackCreatedAt)
	}
	return pbItem, nil
}

func mapToProtoSignals(signals []service.RewardSignal) []*pb.RewardSignal {
	out := make([]*pb.RewardSignal, len(signals))
	for i, sig := range signals {
		out[i] = &pb.RewardSignal{
			MessageId:         sig.MessageID,
			ConversationId:    sig.ConversationID,
			RewardScore:       sig.RewardScore,
			RatingsComponent:  sig.RatingsComponent,
			BinaryComponent:   sig.BinaryComponent,
			CitationComponent: sig.CitationComponent,
			TimeComponent:     sig.TimeComponent,
			FeedbackCount:     int32(sig.FeedbackCount),
			ComputedAt:        optionalTimestamp(sig.ComputedAt),
			Explanation:       sig.Explanation,
		}
	}
	return out
}
