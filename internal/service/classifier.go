package service

import (
	"math"

	"github.com/godilite/feedback-reward/internal/repository/models"
)

// Known rating dimensions, in reporting order.
const (
	DimensionAccuracy     = "accuracy"
	DimensionRelevance    = "relevance"
	DimensionCompleteness = "completeness"
	DimensionClarity      = "clarity"
)

var ratingDimensions = []string{DimensionAccuracy, DimensionRelevance, DimensionCompleteness, DimensionClarity}

const (
	positiveRatingThreshold = 4.0
	negativeRatingThreshold = 2.0
)

// ClassifyFeedback labels a single feedback entry. An explicit helpful flag
// wins; otherwise the mean of the populated rating dimensions decides, and
// anything else is neutral.
func ClassifyFeedback(entry models.FeedbackEntry) SentimentLabel {
	if entry.IsHelpful != nil {
		if *entry.IsHelpful {
			return SentimentPositive
		}
		return SentimentNegative
	}

	mean, ok := ratingMean(entry.Ratings)
	if !ok {
		return SentimentNeutral
	}
	switch {
	case mean >= positiveRatingThreshold:
		return SentimentPositive
	case mean <= negativeRatingThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// ratingMean averages the known dimensions present in ratings.
func ratingMean(ratings map[string]float64) (float64, bool) {
	var sum float64
	var n int
	for _, dim := range ratingDimensions {
		v, ok := ratings[dim]
		if !ok || !isFinite(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func polarity(label SentimentLabel) float64 {
	switch label {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
