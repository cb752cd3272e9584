package publisher

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running redis instance
// If redis is not available, the test will be skipped
func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	stream := "pricewatch_test_alerts"

	publisher := NewRedisPublisher("localhost:6379", 0, stream, 10)
	defer publisher.Close()

	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 0})
	defer client.Close()
	defer client.Del(ctx, stream)

	for i := 0; i < 3; i++ {
		require.NoError(t, publisher.Publish(ctx, "alert", []byte(`{"kind":"price_drop"}`)))
	}
	require.NoError(t, publisher.Trim(ctx))

	messages, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, `{"kind":"price_drop"}`, messages[len(messages)-1].Values["alert"])
}
