package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChainThreadsContextAndData(t *testing.T) {
	chain := NewHookChain(
		HookFuncs{
			Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return WithTraceID(ctx, ExtractTraceID(km)), km, append(data, '!'), nil
			},
		},
		nil,
		HookFuncs{
			Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return WithStartTime(ctx, time.Unix(100, 0)), km, data, nil
			},
		},
	)

	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc-1")}}}
	ctx, _, data, err := chain.BeforeHandle(context.Background(), "signals", km, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi!", string(data))
	assert.Equal(t, "abc-1", ctx.Value(CtxTraceID))

	start, ok := StartTime(ctx)
	require.True(t, ok)
	assert.Equal(t, time.Unix(100, 0), start)
}

func TestHookChainAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	var secondRan bool
	var errCalls int

	chain := NewHookChain(
		HookFuncs{
			Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return ctx, km, data, boom
			},
			Err: func(context.Context, string, kafka.Message, []byte, error) { errCalls++ },
		},
		HookFuncs{
			Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				secondRan = true
				return ctx, km, data, nil
			},
			Err: func(context.Context, string, kafka.Message, []byte, error) { errCalls++ },
		},
	)

	_, _, _, err := chain.BeforeHandle(context.Background(), "signals", kafka.Message{}, nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, secondRan)
	assert.Equal(t, 2, errCalls)
}

func TestHookChainRecoversPanics(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})

	_, _, data, err := chain.BeforeHandle(context.Background(), "signals", kafka.Message{}, []byte("keep"))
	require.Error(t, err)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "ERR_PANIC", hookErr.Code)
	assert.Equal(t, "keep", string(data))
}

func TestExtractTraceIDMissing(t *testing.T) {
	assert.Empty(t, ExtractTraceID(kafka.Message{}))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 6; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, 2*time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}
