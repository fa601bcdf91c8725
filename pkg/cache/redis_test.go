package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPrefix(t *testing.T) {
	t.Run("no prefix", func(t *testing.T) {
		c := &Cache{}
		assert.Equal(t, "grpc:feedback_aggregation", c.key("grpc:feedback_aggregation"))
	})

	t.Run("with prefix", func(t *testing.T) {
		c := &Cache{prefix: "staging"}
		assert.Equal(t, "staging:grpc:feedback_aggregation", c.key("grpc:feedback_aggregation"))
	})
}

func TestOptions(t *testing.T) {
	opts := &Options{}
	for _, opt := range []Option{
		WithAddress("redis:6380"),
		WithPassword("secret"),
		WithDB(3),
		WithKeyPrefix("fr"),
	} {
		opt(opts)
	}

	assert.Equal(t, Options{Address: "redis:6380", Password: "secret", DB: 3, KeyPrefix: "fr"}, *opts)
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	c, err := New(ctx, WithAddress("127.0.0.1:1"))
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "ping redis at 127.0.0.1:1")
}
