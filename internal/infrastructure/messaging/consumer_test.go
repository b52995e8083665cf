package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roleplay-coach-api/pkg/logger"
)

func TestDecodeStreamMessage(t *testing.T) {
	msg, err := NewMessage("m-1", EventPersonaRunCompleted, "u-1", "run-1", &ConversationEvent{Type: EventPersonaRunCompleted})
	require.NoError(t, err)
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	got, err := decodeStreamMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"data": string(raw)}})
	require.NoError(t, err)
	assert.Equal(t, "m-1", got.ID)
	assert.Equal(t, EventPersonaRunCompleted, got.Type)
	assert.Equal(t, "run-1", got.RunID)

	_, err = decodeStreamMessage(redis.XMessage{ID: "2-0", Values: map[string]any{}})
	assert.Error(t, err)

	_, err = decodeStreamMessage(redis.XMessage{ID: "3-0", Values: map[string]any{"data": "{"}})
	assert.Error(t, err)
}

func TestMessageContext(t *testing.T) {
	msg := &Message{UserID: "u-1", RunID: "run-1"}
	msg.SetMetadata("request_id", "req-1")

	ctx := messageContext(context.Background(), msg)
	assert.Equal(t, "u-1", ctx.Value(logger.UserIDKey))
	assert.Equal(t, "run-1", ctx.Value(logger.PersonaRunIDKey))
	assert.Equal(t, "req-1", ctx.Value(logger.RequestIDKey))
	assert.Nil(t, ctx.Value(logger.TraceIDKey))
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := NewConsumer(nil, ConsumerConfig{Stream: StreamConversationEvents, Group: ConsumerGroupProgress})
	assert.Equal(t, 3, c.cfg.RetryLimit)
	assert.Equal(t, DefaultBackoffConfig(), c.cfg.Backoff)
	assert.GreaterOrEqual(t, c.reclaimIdle, minReclaimIdle)

	_, ok := c.handler(EventPersonaRunCompleted)
	assert.False(t, ok)
	c.RegisterHandler(EventPersonaRunCompleted, func(context.Context, *Message) error { return nil })
	_, ok = c.handler(EventPersonaRunCompleted)
	assert.True(t, ok)

	// 未启动时 Stop 直接返回
	c.Stop()
}
