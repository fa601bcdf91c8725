package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/godilite/feedback-reward/internal/config"
	"github.com/godilite/feedback-reward/internal/repository/models"
)

const defaultHalfLife = 24 * time.Hour

// RewardScorer turns the feedback of one AI response into a RewardSignal.
//
// Each component is first mapped onto [-1, 1]:
//
//	ratings:  (mean rating - 3) / 2, so 1 -> -1, 3 -> 0, 5 -> +1
//	binary:   mean of +1 (helpful) and -1 (not helpful)
//	citation: 2r - 1 for mean citation relevance r
//	time:     mean of polarity * 2^(-elapsed/halfLife) over timestamped entries
//
// and then multiplied by its configured weight. The total is clamped to
// [-1, 1]. Weights are used as given.
type RewardScorer struct {
	weights  config.RewardWeights
	halfLife time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewRewardScorer(weights config.RewardWeights, halfLife time.Duration, clock clockwork.Clock, logger *zap.Logger) *RewardScorer {
	if halfLife <= 0 {
		halfLife = defaultHalfLife
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewardScorer{
		weights:  weights,
		halfLife: halfLife,
		clock:    clock,
		logger:   logger,
	}
}

func (s *RewardScorer) Weights() config.RewardWeights {
	return s.weights
}

func (s *RewardScorer) HalfLife() time.Duration {
	return s.halfLife
}

// Score computes the reward for msg. Messages without feedback score 0 with
// every component absent.
func (s *RewardScorer) Score(conversationID string, msg models.Message) RewardSignal {
	signal := RewardSignal{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		FeedbackCount:  len(msg.Feedback),
		ComputedAt:     s.clock.Now(),
	}

	var parts []string
	add := func(name string, raw *float64, weight float64, detail string) *float64 {
		if raw == nil {
			return nil
		}
		contribution := weight * *raw
		if !isFinite(contribution) {
			return nil
		}
		parts = append(parts, fmt.Sprintf("%s=%+.3f (%s, weight %.2f)", name, contribution, detail, weight))
		return &contribution
	}

	ratings, ratingsDetail := s.ratingsComponent(msg)
	binary, binaryDetail := binaryComponent(msg.Feedback)
	citation, citationDetail := citationComponent(msg.Feedback)
	decay, decayDetail := s.timeComponent(msg)

	signal.RatingsComponent = add("ratings", ratings, s.weights.Ratings, ratingsDetail)
	signal.BinaryComponent = add("binary", binary, s.weights.Binary, binaryDetail)
	signal.CitationComponent = add("citation", citation, s.weights.Citation, citationDetail)
	signal.TimeComponent = add("time", decay, s.weights.Time, decayDetail)

	var total float64
	for _, c := range []*float64{signal.RatingsComponent, signal.BinaryComponent, signal.CitationComponent, signal.TimeComponent} {
		if c != nil {
			total += *c
		}
	}
	signal.RewardScore = clamp(total, -1, 1)

	if len(parts) == 0 {
		signal.Explanation = "no scorable feedback"
	} else {
		signal.Explanation = fmt.Sprintf("reward %+.3f: %s", signal.RewardScore, strings.Join(parts, "; "))
	}
	return signal
}

func (s *RewardScorer) ratingsComponent(msg models.Message) (*float64, string) {
	var sum float64
	var n int
	for _, entry := range msg.Feedback {
		for dim, v := range entry.Ratings {
			if !isKnownDimension(dim) {
				s.logger.Debug("ignoring unknown rating dimension",
					zap.String("message_id", msg.ID),
					zap.String("dimension", dim))
				continue
			}
			if !isFinite(v) {
				continue
			}
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil, ""
	}
	mean := sum / float64(n)
	v := clamp((mean-3)/2, -1, 1)
	return &v, fmt.Sprintf("mean rating %.2f over %d", mean, n)
}

func binaryComponent(entries []models.FeedbackEntry) (*float64, string) {
	var sum float64
	var n, helpful int
	for _, entry := range entries {
		if entry.IsHelpful == nil {
			continue
		}
		n++
		if *entry.IsHelpful {
			helpful++
			sum++
		} else {
			sum--
		}
	}
	if n == 0 {
		return nil, ""
	}
	v := sum / float64(n)
	return &v, fmt.Sprintf("%d/%d helpful", helpful, n)
}

func citationComponent(entries []models.FeedbackEntry) (*float64, string) {
	var sum float64
	var n int
	for _, entry := range entries {
		for _, cf := range entry.CitationFeedback {
			if cf.RelevanceScore == nil || !isFinite(*cf.RelevanceScore) {
				continue
			}
			sum += *cf.RelevanceScore
			n++
		}
	}
	if n == 0 {
		return nil, ""
	}
	mean := sum / float64(n)
	v := clamp(2*mean-1, -1, 1)
	return &v, fmt.Sprintf("mean citation relevance %.2f over %d", mean, n)
}

func (s *RewardScorer) timeComponent(msg models.Message) (*float64, string) {
	var sum float64
	var n int
	for _, entry := range msg.Feedback {
		if entry.CreatedAt == nil {
			continue
		}
		sum += polarity(ClassifyFeedback(entry)) * s.decay(entry.CreatedAt.Sub(msg.CreatedAt))
		n++
	}
	if n == 0 {
		return nil, ""
	}
	v := sum / float64(n)
	return &v, fmt.Sprintf("decayed sentiment over %d, half-life %s", n, s.halfLife)
}

// decay halves every halfLife. Feedback recorded before its message counts as
// immediate.
func (s *RewardScorer) decay(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Exp2(-float64(elapsed) / float64(s.halfLife))
}

func isKnownDimension(dim string) bool {
	for _, d := range ratingDimensions {
		if d == dim {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
