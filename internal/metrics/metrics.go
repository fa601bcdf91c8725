package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/godilite/feedback-reward/internal/service"
)

const namespace = "feedback_reward"

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Aggregations     *prometheus.CounterVec
	FeedbackEntries  *prometheus.CounterVec
	AggregatedRate   *prometheus.GaugeVec
	RewardScores     prometheus.Histogram
	RewardComponents *prometheus.CounterVec
	GRPCRequests     *prometheus.CounterVec
	GRPCDuration     *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Total feedback aggregations, by status.",
		}, []string{"status"}),
		FeedbackEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "feedback_entries_total",
			Help:      "Feedback entries seen by aggregations, by sentiment.",
		}, []string{"sentiment"}),
		AggregatedRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "last_rate",
			Help:      "Sentiment rate of the most recent aggregation.",
		}, []string{"sentiment"}),
		RewardScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "score",
			Help:      "Distribution of composite reward scores.",
			Buckets:   prometheus.LinearBuckets(-1, 0.25, 9),
		}),
		RewardComponents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "components_total",
			Help:      "Reward signals carrying each component.",
		}, []string{"component"}),
		GRPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Total gRPC requests, by method and status code.",
		}, []string{"method", "code"}),
		GRPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "request_duration_seconds",
			Help:      "gRPC request latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Aggregation cache lookups, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.Aggregations,
		m.FeedbackEntries,
		m.AggregatedRate,
		m.RewardScores,
		m.RewardComponents,
		m.GRPCRequests,
		m.GRPCDuration,
		m.CacheLookups,
	)
	return m
}

// ObserveAggregation implements service.MetricsRecorder.
func (m *Metrics) ObserveAggregation(agg service.FeedbackAggregation, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Aggregations.WithLabelValues("error").Inc()
		return
	}
	m.Aggregations.WithLabelValues("ok").Inc()

	m.FeedbackEntries.WithLabelValues(string(service.SentimentPositive)).Add(float64(agg.PositiveFeedbackCount))
	m.FeedbackEntries.WithLabelValues(string(service.SentimentNegative)).Add(float64(agg.NegativeFeedbackCount))
	m.FeedbackEntries.WithLabelValues(string(service.SentimentNeutral)).Add(float64(agg.NeutralFeedbackCount))

	m.AggregatedRate.WithLabelValues(string(service.SentimentPositive)).Set(agg.PositiveRate())
	m.AggregatedRate.WithLabelValues(string(service.SentimentNegative)).Set(agg.NegativeRate())
	m.AggregatedRate.WithLabelValues(string(service.SentimentNeutral)).Set(agg.NeutralRate())
}

// ObserveReward implements service.MetricsRecorder.
func (m *Metrics) ObserveReward(signal service.RewardSignal) {
	if m == nil {
		return
	}
	m.RewardScores.Observe(signal.RewardScore)

	components := map[string]*float64{
		"ratings":  signal.RatingsComponent,
		"binary":   signal.BinaryComponent,
		"citation": signal.CitationComponent,
		"time":     signal.TimeComponent,
	}
	for name, v := range components {
		if v != nil {
			m.RewardComponents.WithLabelValues(name).Inc()
		}
	}
}

// ObserveRPC records one finished gRPC call.
func (m *Metrics) ObserveRPC(method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}
