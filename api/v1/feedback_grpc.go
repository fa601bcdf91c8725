package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	FeedbackReward_AggregateFeedback_FullMethodName       = "/feedback.v1.FeedbackReward/AggregateFeedback"
	FeedbackReward_GetConversationFeedback_FullMethodName = "/feedback.v1.FeedbackReward/GetConversationFeedback"
	FeedbackReward_GetConversationRewards_FullMethodName  = "/feedback.v1.FeedbackReward/GetConversationRewards"
	FeedbackReward_ComputeRewards_FullMethodName          = "/feedback.v1.FeedbackReward/ComputeRewards"
	FeedbackReward_PublishRewards_FullMethodName          = "/feedback.v1.FeedbackReward/PublishRewards"
	FeedbackReward_GetRewardConfig_FullMethodName         = "/feedback.v1.FeedbackReward/GetRewardConfig"
)

// FeedbackRewardClient is the client API for the FeedbackReward service.
type FeedbackRewardClient interface {
	AggregateFeedback(ctx context.Context, in *AggregateFeedbackRequest, opts ...grpc.CallOption) (*FeedbackAggregationResponse, error)
	GetConversationFeedback(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*ConversationFeedbackResponse, error)
	GetConversationRewards(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*RewardSignalsResponse, error)
	ComputeRewards(ctx context.Context, in *AggregateFeedbackRequest, opts ...grpc.CallOption) (*RewardSignalsResponse, error)
	PublishRewards(ctx context.Context, in *AggregateFeedbackRequest, opts ...grpc.CallOption) (*PublishRewardsResponse, error)
	GetRewardConfig(ctx context.Context, in *RewardConfigRequest, opts ...grpc.CallOption) (*RewardConfigResponse, error)
}

type feedbackRewardClient struct {
	cc grpc.ClientConnInterface
}

// NewFeedbackRewardClient returns a client that always uses the JSON codec.
func NewFeedbackRewardClient(cc grpc.ClientConnInterface) FeedbackRewardClient {
	return &feedbackRewardClient{cc}
}

func (c *feedbackRewardClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *feedbackRewardClient) AggregateFeedback(ctx context.Context, in *AggregateFeedbackRequest, opts ...grpc.CallOption) (*FeedbackAggregationResponse, error) {
	out := new(FeedbackAggregationResponse)
	if err := c.invoke(ctx, FeedbackReward_AggregateFeedback_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedbackRewardClient) GetConversationFeedback(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*ConversationFeedbackResponse, error) {
	out := new(ConversationFeedbackResponse)
	if err := c.invoke(ctx, FeedbackReward_GetConversationFeedback_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedbackRewardClient) GetConversationRewards(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*RewardSignalsResponse, error) {
	out := new(RewardSignalsResponse)
	if err := c.invoke(ctx, FeedbackReward_GetConversationRewards_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedbackRewardClient) ComputeRewards(ctx context.Context, in *AggregateFeedbackRequest, opts ...grpc.CallOption) (*RewardSignalsResponse, error) {
	out := new(RewardSignalsResponse)
	if err := c.invoke(ctx, FeedbackReward_ComputeRewards_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedbackRewardClient) PublishRewards(ctx context.Context, in *AggregateFeedbackRequest, opts ...grpc.CallOption) (*PublishRewardsResponse, error) {
	out := new(PublishRewardsResponse)
	if err := c.invoke(ctx, FeedbackReward_PublishRewards_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *feedbackRewardClient) GetRewardConfig(ctx context.Context, in *RewardConfigRequest, opts ...grpc.CallOption) (*RewardConfigResponse, error) {
	out := new(RewardConfigResponse)
	if err := c.invoke(ctx, FeedbackReward_GetRewardConfig_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// FeedbackRewardServer is the server API for the FeedbackReward service.
// Implementations must embed UnimplementedFeedbackRewardServer.
type FeedbackRewardServer interface {
	AggregateFeedback(context.Context, *AggregateFeedbackRequest) (*FeedbackAggregationResponse, error)
	GetConversationFeedback(context.Context, *ConversationRequest) (*ConversationFeedbackResponse, error)
	GetConversationRewards(context.Context, *ConversationRequest) (*RewardSignalsResponse, error)
	ComputeRewards(context.Context, *AggregateFeedbackRequest) (*RewardSignalsResponse, error)
	PublishRewards(context.Context, *AggregateFeedbackRequest) (*PublishRewardsResponse, error)
	GetRewardConfig(context.Context, *RewardConfigRequest) (*RewardConfigResponse, error)
	mustEmbedUnimplementedFeedbackRewardServer()
}

type UnimplementedFeedbackRewardServer struct{}

func (UnimplementedFeedbackRewardServer) AggregateFeedback(context.Context, *AggregateFeedbackRequest) (*FeedbackAggregationResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AggregateFeedback not implemented")
}

func (UnimplementedFeedbackRewardServer) GetConversationFeedback(context.Context, *ConversationRequest) (*ConversationFeedbackResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetConversationFeedback not implemented")
}

func (UnimplementedFeedbackRewardServer) GetConversationRewards(context.Context, *ConversationRequest) (*RewardSignalsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetConversationRewards not implemented")
}

func (UnimplementedFeedbackRewardServer) ComputeRewards(context.Context, *AggregateFeedbackRequest) (*RewardSignalsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ComputeRewards not implemented")
}

func (UnimplementedFeedbackRewardServer) PublishRewards(context.Context, *AggregateFeedbackRequest) (*PublishRewardsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PublishRewards not implemented")
}

func (UnimplementedFeedbackRewardServer) GetRewardConfig(context.Context, *RewardConfigRequest) (*RewardConfigResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetRewardConfig not implemented")
}

func (UnimplementedFeedbackRewardServer) mustEmbedUnimplementedFeedbackRewardServer() {}

func RegisterFeedbackRewardServer(s grpc.ServiceRegistrar, srv FeedbackRewardServer) {
	s.RegisterService(&FeedbackReward_ServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(FeedbackRewardServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FeedbackRewardServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FeedbackRewardServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	aggregateFeedbackHandler = unaryHandler(FeedbackReward_AggregateFeedback_FullMethodName,
		func(s FeedbackRewardServer, ctx context.Context, in *AggregateFeedbackRequest) (any, error) {
			return s.AggregateFeedback(ctx, in)
		})
	getConversationFeedbackHandler = unaryHandler(FeedbackReward_GetConversationFeedback_FullMethodName,
		func(s FeedbackRewardServer, ctx context.Context, in *ConversationRequest) (any, error) {
			return s.GetConversationFeedback(ctx, in)
		})
	getConversationRewardsHandler = unaryHandler(FeedbackReward_GetConversationRewards_FullMethodName,
		func(s FeedbackRewardServer, ctx context.Context, in *ConversationRequest) (any, error) {
			return s.GetConversationRewards(ctx, in)
		})
	computeRewardsHandler = unaryHandler(FeedbackReward_ComputeRewards_FullMethodName,
		func(s FeedbackRewardServer, ctx context.Context, in *AggregateFeedbackRequest) (any, error) {
			return s.ComputeRewards(ctx, in)
		})
	publishRewardsHandler = unaryHandler(FeedbackReward_PublishRewards_FullMethodName,
		func(s FeedbackRewardServer, ctx context.Context, in *AggregateFeedbackRequest) (any, error) {
			return s.PublishRewards(ctx, in)
		})
	getRewardConfigHandler = unaryHandler(FeedbackReward_GetRewardConfig_FullMethodName,
		func(s FeedbackRewardServer, ctx context.Context, in *RewardConfigRequest) (any, error) {
			return s.GetRewardConfig(ctx, in)
		})
)

// FeedbackReward_ServiceDesc is the grpc.ServiceDesc for the FeedbackReward service.
var FeedbackReward_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "feedback.v1.FeedbackReward",
	HandlerType: (*FeedbackRewardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AggregateFeedback", Handler: aggregateFeedbackHandler},
		{MethodName: "GetConversationFeedback", Handler: getConversationFeedbackHandler},
		{MethodName: "GetConversationRewards", Handler: getConversationRewardsHandler},
		{MethodName: "ComputeRewards", Handler: computeRewardsHandler},
		{MethodName: "PublishRewards", Handler: publishRewardsHandler},
		{MethodName: "GetRewardConfig", Handler: getRewardConfigHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "api/v1",
}
