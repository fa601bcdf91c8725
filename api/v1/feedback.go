// Package v1 defines the feedback.v1.FeedbackReward gRPC API. Messages are
// plain Go structs carried by the JSON codec registered in codec.go.
package v1

import (
	"google.golang.org/protobuf/types/known/timestamppb"
)

type AggregateFeedbackRequest struct {
	StartDate        *timestamppb.Timestamp `json:"startDate,omitempty"`
	EndDate          *timestamppb.Timestamp `json:"endDate,omitempty"`
	OrgId            string                 `json:"orgId,omitempty"`
	UserId           string                 `json:"userId,omitempty"`
	MinFeedbackCount int32                  `json:"minFeedbackCount,omitempty"`
}

func (x *AggregateFeedbackRequest) GetStartDate() *timestamppb.Timestamp {
	if x != nil {
		return x.StartDate
	}
	return nil
}

func (x *AggregateFeedbackRequest) GetEndDate() *timestamppb.Timestamp {
	if x != nil {
		return x.EndDate
	}
	return nil
}

func (x *AggregateFeedbackRequest) GetOrgId() string {
	if x != nil {
		return x.OrgId
	}
	return ""
}

func (x *AggregateFeedbackRequest) GetUserId() string {
	if x != nil {
		return x.UserId
	}
	return ""
}

func (x *AggregateFeedbackRequest) GetMinFeedbackCount() int32 {
	if x != nil {
		return x.MinFeedbackCount
	}
	return 0
}

type FeedbackAggregationResponse struct {
	TotalConversations    int64 `json:"totalConversations"`
	TotalMessages         int64 `json:"totalMessages"`
	TotalFeedbackEntries  int64 `json:"totalFeedbackEntries"`
	PositiveFeedbackCount int64 `json:"positiveFeedbackCount"`
	NegativeFeedbackCount int64 `json:"negativeFeedbackCount"`
	NeutralFeedbackCount  int64 `json:"neutralFeedbackCount"`

	AvgAccuracy          *float64 `json:"avgAccuracy,omitempty"`
	AvgRelevance         *float64 `json:"avgRelevance,omitempty"`
	AvgCompleteness      *float64 `json:"avgCompleteness,omitempty"`
	AvgClarity           *float64 `json:"avgClarity,omitempty"`
	AvgCitationRelevance *float64 `json:"avgCitationRelevance,omitempty"`

	PositiveRate float64 `json:"positiveRate"`
	NegativeRate float64 `json:"negativeRate"`
	NeutralRate  float64 `json:"neutralRate"`

	StartDate        *timestamppb.Timestamp `json:"startDate,omitempty"`
	EndDate          *timestamppb.Timestamp `json:"endDate,omitempty"`
	OrgId            string                 `json:"orgId,omitempty"`
	UserId           string                 `json:"userId,omitempty"`
	MinFeedbackCount int32                  `json:"minFeedbackCount"`
}

func (x *FeedbackAggregationResponse) GetTotalFeedbackEntries() int64 {
	if x != nil {
		return x.TotalFeedbackEntries
	}
	return 0
}

func (x *FeedbackAggregationResponse) GetPositiveFeedbackCount() int64 {
	if x != nil {
		return x.PositiveFeedbackCount
	}
	return 0
}

func (x *FeedbackAggregationResponse) GetAvgAccuracy() *float64 {
	if x != nil {
		return x.AvgAccuracy
	}
	return nil
}

type ConversationRequest struct {
	ConversationId string `json:"conversationId"`
}

func (x *ConversationRequest) GetConversationId() string {
	if x != nil {
		return x.ConversationId
	}
	return ""
}

type FeedbackItem struct {
	MessageId      string `json:"messageId"`
	MessageContent string `json:"messageContent"`
	// FeedbackJson is the feedback record as stored.
	FeedbackJson      string                 `json:"feedbackJson"`
	CreatedAt         *timestamppb.Timestamp `json:"createdAt,omitempty"`
	FeedbackCreatedAt *timestamppb.Timestamp `json:"feedbackCreatedAt,omitempty"`
}

type ConversationFeedbackResponse struct {
	Items []*FeedbackItem `json:"items"`
}

func (x *ConversationFeedbackResponse) GetItems() []*FeedbackItem {
	if x != nil {
		return x.Items
	}
	return nil
}

type RewardSignal struct {
	MessageId         string                 `json:"messageId"`
	ConversationId    string                 `json:"conversationId"`
	RewardScore       float64                `json:"rewardScore"`
	RatingsComponent  *float64               `json:"ratingsComponent,omitempty"`
	BinaryComponent   *float64               `json:"binaryComponent,omitempty"`
	CitationComponent *float64               `json:"citationComponent,omitempty"`
	TimeComponent     *float64               `json:"timeComponent,omitempty"`
	FeedbackCount     int32                  `json:"feedbackCount"`
	ComputedAt        *timestamppb.Timestamp `json:"computedAt,omitempty"`
	Explanation       string                 `json:"explanation,omitempty"`
}

type RewardSignalsResponse struct {
	Signals []*RewardSignal `json:"signals"`
}

func (x *RewardSignalsResponse) GetSignals() []*RewardSignal {
	if x != nil {
		return x.Signals
	}
	return nil
}

type PublishRewardsResponse struct {
	Published int32 `json:"published"`
}

type RewardConfigRequest struct{}

type RewardConfigResponse struct {
	RatingsWeight            float64 `json:"ratingsWeight"`
	BinaryWeight             float64 `json:"binaryWeight"`
	CitationWeight           float64 `json:"citationWeight"`
	TimeWeight               float64 `json:"timeWeight"`
	WeightSum                float64 `json:"weightSum"`
	WeightsValid             bool    `json:"weightsValid"`
	TimeDecayHalfLifeSeconds float64 `json:"timeDecayHalfLifeSeconds"`
}
