package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SigPull/internal/domain/models"
	domsvc "SigPull/internal/domain/service"
	pkgcache "SigPull/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetrics struct{}

func (fakeMetrics) RecordSignal(string, string)      {}
func (fakeMetrics) RecordError(string)               {}
func (fakeMetrics) RecordConfidence(string, float64) {}
func (fakeMetrics) RecordLatency(string, float64)    {}

type fakeExchange struct {
	name  string
	stats *models.TickerStats
	err   error
	calls int64
}

func (f *fakeExchange) Name() string { return f.name }

func (f *fakeExchange) Ticker(ctx context.Context, symbol string) (*models.TickerStats, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func ticker(exchange string, price, volume, change float64) *models.TickerStats {
	return &models.TickerStats{
		Exchange:       exchange,
		Symbol:         "BTC/USDT",
		LastPrice:      price,
		QuoteVolume24h: volume,
		ChangePct24h:   change,
	}
}

func TestValidateHealthyAsset(t *testing.T) {
	exchanges := []domsvc.ExchangeClient{
		&fakeExchange{name: "binance", stats: ticker("binance", 45000, 8_000_000, 3.2)},
		&fakeExchange{name: "kucoin", stats: ticker("kucoin", 45100, 3_000_000, 2.8)},
	}
	v := NewAssetValidator(exchanges, fakeMetrics{}, nil)

	res, err := v.Validate(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.True(t, res.Exists)
	assert.True(t, res.IsValid)
	assert.ElementsMatch(t, []string{"binance", "kucoin"}, res.Exchanges)
	assert.Equal(t, 1.0, res.LiquidityScore) // 11M combined
	assert.Equal(t, models.VolatilityVeryLow, res.Volatility)
	assert.Equal(t, models.PriceAccuracyHigh, res.PriceAccuracy) // ~0.22% spread
	assert.Empty(t, res.Warnings)
}

func TestValidateNotFound(t *testing.T) {
	exchanges := []domsvc.ExchangeClient{
		&fakeExchange{name: "binance", err: errors.New("symbol not listed")},
		&fakeExchange{name: "kucoin", err: errors.New("symbol not listed")},
	}
	v := NewAssetValidator(exchanges, fakeMetrics{}, nil)

	res, err := v.Validate(context.Background(), "FAKECOIN/USDT")
	require.NoError(t, err)

	assert.False(t, res.Exists)
	assert.False(t, res.IsValid)
	assert.Equal(t, 0.1, res.LiquidityScore)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "not found on any tracked exchange")
}

func TestValidateLowLiquidity(t *testing.T) {
	exchanges := []domsvc.ExchangeClient{
		&fakeExchange{name: "gate", stats: ticker("gate", 0.002, 5_000, 4)},
	}
	v := NewAssetValidator(exchanges, fakeMetrics{}, nil)

	res, err := v.Validate(context.Background(), "PEPE/USDT")
	require.NoError(t, err)

	assert.True(t, res.Exists)
	assert.False(t, res.IsValid) // score at the floor
	assert.Equal(t, 0.1, res.LiquidityScore)
	assert.Contains(t, res.Warnings, "very low 24h volume")
	assert.NotEmpty(t, res.Recommendations)
}

func TestValidateExtremeVolatility(t *testing.T) {
	exchanges := []domsvc.ExchangeClient{
		&fakeExchange{name: "binance", stats: ticker("binance", 1.5, 50_000_000, 80)},
	}
	v := NewAssetValidator(exchanges, fakeMetrics{}, nil)

	res, err := v.Validate(context.Background(), "SHIB/USDT")
	require.NoError(t, err)

	assert.True(t, res.Exists)
	assert.False(t, res.IsValid)
	assert.Equal(t, models.VolatilityExtreme, res.Volatility)
	assert.Contains(t, res.Warnings, "extreme 24h volatility")
}

func TestValidatePartialExchangeFailure(t *testing.T) {
	exchanges := []domsvc.ExchangeClient{
		&fakeExchange{name: "binance", stats: ticker("binance", 45000, 20_000_000, 2)},
		&fakeExchange{name: "kucoin", err: errors.New("timeout")},
	}
	v := NewAssetValidator(exchanges, fakeMetrics{}, nil)

	res, err := v.Validate(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.True(t, res.IsValid)
	assert.Equal(t, []string{"binance"}, res.Exchanges)
}

func TestValidatePriceDisagreement(t *testing.T) {
	exchanges := []domsvc.ExchangeClient{
		&fakeExchange{name: "binance", stats: ticker("binance", 100, 20_000_000, 2)},
		&fakeExchange{name: "gate", stats: ticker("gate", 110, 20_000_000, 2)},
	}
	v := NewAssetValidator(exchanges, fakeMetrics{}, nil)

	res, err := v.Validate(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, models.PriceAccuracyLow, res.PriceAccuracy) // 10% spread
	assert.Contains(t, res.Warnings, "large price disagreement across exchanges")
	assert.True(t, res.IsValid) // spread alone does not invalidate
}

func TestValidateCacheHit(t *testing.T) {
	ex := &fakeExchange{name: "binance", stats: ticker("binance", 45000, 20_000_000, 2)}
	v := NewAssetValidator([]domsvc.ExchangeClient{ex}, fakeMetrics{}, nil,
		WithCache(pkgcache.NewMemoryCache(), 5*time.Minute))

	_, err := v.Validate(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	res, err := v.Validate(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&ex.calls))
	assert.True(t, res.IsValid)
}

func TestVolatilityBuckets(t *testing.T) {
	tests := []struct {
		change float64
		want   models.VolatilityBucket
	}{
		{60, models.VolatilityExtreme},
		{30, models.VolatilityHigh},
		{15, models.VolatilityMedium},
		{7, models.VolatilityLow},
		{2, models.VolatilityVeryLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, volatilityBucket(tt.change), "change=%v", tt.change)
	}
}

func TestLiquidityBands(t *testing.T) {
	tests := []struct {
		volume float64
		want   float64
	}{
		{15_000_000, 1.0},
		{5_000_000, 0.7},
		{500_000, 0.4},
		{50_000, 0.2},
		{5_000, 0.1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, liquidityScore(tt.volume), "volume=%v", tt.volume)
	}
}
