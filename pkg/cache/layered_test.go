package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoteStoresValueWithBoundedTTL(t *testing.T) {
	lc := &LayeredCache{l1: NewMemoryCache(), promoteTTL: defaultPromoteTTL}
	defer lc.l1.Close()

	v := "cached verdict"
	before := time.Now()
	lc.promote(context.Background(), "validation:BTC/USDT", &v)

	var got string
	require.NoError(t, lc.l1.Get(context.Background(), "validation:BTC/USDT", &got))
	assert.Equal(t, "cached verdict", got)

	lc.l1.mu.RLock()
	e := lc.l1.entries["validation:BTC/USDT"]
	lc.l1.mu.RUnlock()
	require.NotNil(t, e)
	assert.WithinDuration(t, before.Add(defaultPromoteTTL), e.expireAt, time.Second,
		"promoted entries must not inherit the memory default TTL")
}

func TestPromoteInterfaceDest(t *testing.T) {
	lc := &LayeredCache{l1: NewMemoryCache(), promoteTTL: time.Minute}
	defer lc.l1.Close()

	var v interface{} = "payload"
	lc.promote(context.Background(), "k", &v)

	var got interface{}
	require.NoError(t, lc.l1.Get(context.Background(), "k", &got))
	assert.Equal(t, "payload", got)
}

func TestLayeredPromoteTTLOption(t *testing.T) {
	cfg := &LayeredConfig{PromoteTTL: defaultPromoteTTL}
	WithLayeredPromoteTTL(2 * time.Minute)(cfg)
	assert.Equal(t, 2*time.Minute, cfg.PromoteTTL)

	WithLayeredPromoteTTL(0)(cfg)
	assert.Equal(t, 2*time.Minute, cfg.PromoteTTL, "non-positive ttl keeps the previous value")
}
