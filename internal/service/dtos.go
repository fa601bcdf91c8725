package service

import (
	"time"

	"github.com/godilite/feedback-reward/internal/repository/models"
)

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// AggregationParams selects the population of an aggregation. Nil dates and
// empty IDs do not filter. A zero MinFeedbackCount uses the configured default.
type AggregationParams struct {
	StartDate        *time.Time
	EndDate          *time.Time
	OrgID            string
	UserID           string
	MinFeedbackCount int
}

type FeedbackAggregation struct {
	TotalConversations    int
	TotalMessages         int
	TotalFeedbackEntries  int
	PositiveFeedbackCount int
	NegativeFeedbackCount int
	NeutralFeedbackCount  int

	// Averages are nil when no value contributed.
	AvgAccuracy          *float64
	AvgRelevance         *float64
	AvgCompleteness      *float64
	AvgClarity           *float64
	AvgCitationRelevance *float64

	StartDate        time.Time
	EndDate          time.Time
	OrgID            string
	UserID           string
	MinFeedbackCount int
}

func (a FeedbackAggregation) rate(count int) float64 {
	if a.TotalFeedbackEntries == 0 {
		return 0
	}
	return float64(count) / float64(a.TotalFeedbackEntries)
}

func (a FeedbackAggregation) PositiveRate() float64 { return a.rate(a.PositiveFeedbackCount) }

func (a FeedbackAggregation) NegativeRate() float64 { return a.rate(a.NegativeFeedbackCount) }

func (a FeedbackAggregation) NeutralRate() float64 { return a.rate(a.NeutralFeedbackCount) }

// RewardSignal is the reward computed for one AI response. Component fields
// hold weighted contributions and are nil when the signal was absent.
type RewardSignal struct {
	MessageID         string
	ConversationID    string
	RewardScore       float64
	RatingsComponent  *float64
	BinaryComponent   *float64
	CitationComponent *float64
	TimeComponent     *float64
	FeedbackCount     int
	ComputedAt        time.Time
	Explanation       string
}

// ConversationFeedback is one feedback entry of one AI response.
type ConversationFeedback struct {
	MessageID      string
	MessageContent string
	Feedback       models.FeedbackEntry
	// CreatedAt is when the message was created.
	CreatedAt time.Time
	// FeedbackCreatedAt is when the feedback was recorded, nil if the record
	// carries no timestamp.
	FeedbackCreatedAt *time.Time
}
