package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// weightSumTolerance is the allowed drift of the reward weight sum from 1.0.
const weightSumTolerance = 0.001

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string
	DBPath                string
	DBDriver              string
	RedisAddr             string
	RedisKeyPrefix        string
	GRPCPort              int
	GRPCReflectionEnabled bool
	MetricsPort           int
	KafkaBrokers          []string
	KafkaRewardTopic      string

	Reward  RewardConfig
	Dataset DatasetConfig
	Metrics MetricsConfig
}

// RewardConfig holds the reward scoring parameters.
type RewardConfig struct {
	Weights RewardWeights
	// TimeDecayHalfLife is the feedback delay after which the time component halves.
	TimeDecayHalfLife time.Duration
}

// RewardWeights are the weights of the four reward components.
type RewardWeights struct {
	Ratings  float64 `json:"ratings"`
	Binary   float64 `json:"binary"`
	Citation float64 `json:"citation"`
	Time     float64 `json:"time"`
}

// Sum returns the total of all four weights.
func (w RewardWeights) Sum() float64 {
	return w.Ratings + w.Binary + w.Citation + w.Time
}

// ValidateSum reports whether the weights sum to 1.0 within tolerance.
// Callers decide what to do with a misconfigured set; nothing renormalizes it.
func (w RewardWeights) ValidateSum() bool {
	return math.Abs(w.Sum()-1.0) < weightSumTolerance
}

// DefaultRewardWeights returns the stock weight split.
func DefaultRewardWeights() RewardWeights {
	return RewardWeights{
		Ratings:  0.4,
		Binary:   0.3,
		Citation: 0.2,
		Time:     0.1,
	}
}

// DatasetConfig is passed through to dataset preparation.
type DatasetConfig struct {
	TrainSplit        float64
	MinFeedbackCount  int
	MaxResponseLength int
	IncludeNeutral    bool
	Format            string
}

// MetricsConfig controls aggregation windows and response caching.
type MetricsConfig struct {
	AggregationWindowDays int
	CacheTTL              time.Duration
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	defaults := DefaultRewardWeights()

	return &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		DBPath:                getEnv("DB_PATH", "./data/feedback.db"),
		DBDriver:              getEnv("DB_DRIVER", "sqlite3"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisKeyPrefix:        getEnv("REDIS_KEY_PREFIX", "feedback-reward"),
		GRPCPort:              getEnvInt("GRPC_PORT", 50051),
		GRPCReflectionEnabled: getEnvBool("GRPC_REFLECTION_ENABLED", false),
		MetricsPort:           getEnvInt("METRICS_PORT", 9090),
		KafkaBrokers:          parseList(getEnv("KAFKA_BROKERS", "")),
		KafkaRewardTopic:      getEnv("KAFKA_REWARD_TOPIC", "rl.reward-signals"),
		Reward: RewardConfig{
			Weights: RewardWeights{
				Ratings:  getEnvFloat("REWARD_RATINGS_WEIGHT", defaults.Ratings),
				Binary:   getEnvFloat("REWARD_BINARY_WEIGHT", defaults.Binary),
				Citation: getEnvFloat("REWARD_CITATION_WEIGHT", defaults.Citation),
				Time:     getEnvFloat("REWARD_TIME_WEIGHT", defaults.Time),
			},
			TimeDecayHalfLife: getEnvDuration("REWARD_TIME_DECAY_HALF_LIFE", 24*time.Hour),
		},
		Dataset: DatasetConfig{
			TrainSplit:        getEnvFloat("DATASET_TRAIN_SPLIT", 0.8),
			MinFeedbackCount:  getEnvInt("DATASET_MIN_FEEDBACK_COUNT", 1),
			MaxResponseLength: getEnvInt("DATASET_MAX_RESPONSE_LENGTH", 4096),
			IncludeNeutral:    getEnvBool("DATASET_INCLUDE_NEUTRAL", true),
			Format:            getEnv("DATASET_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			AggregationWindowDays: getEnvInt("METRICS_AGGREGATION_WINDOW_DAYS", 7),
			CacheTTL:              getEnvDuration("METRICS_CACHE_TTL", 5*time.Minute),
		},
	}
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// parseList splits a comma-separated list, dropping blanks.
func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
