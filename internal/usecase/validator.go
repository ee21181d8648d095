package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"SigPull/internal/domain/models"
	drepo "SigPull/internal/domain/repository"
	domsvc "SigPull/internal/domain/service"
	pkgcache "SigPull/pkg/cache"
	applogger "SigPull/pkg/logger"
)

// AssetValidator cross-checks a pair symbol against live exchange data:
// existence, liquidity, volatility, and cross-exchange price agreement.
// Results are cached per symbol to bound external call volume.
type AssetValidator struct {
	exchanges []domsvc.ExchangeClient
	cache     pkgcache.Service
	metrics   drepo.Metrics
	log       *applogger.Logger
	ttl       time.Duration
	timeout   time.Duration
}

// Liquidity score bands on aggregated 24h quote volume (USD).
const (
	liquidityFloor = 0.1
)

type ValidatorOption func(*AssetValidator)

func WithCache(c pkgcache.Service, ttl time.Duration) ValidatorOption {
	return func(v *AssetValidator) {
		v.cache = c
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

func WithExchangeTimeout(d time.Duration) ValidatorOption {
	return func(v *AssetValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

func NewAssetValidator(exchanges []domsvc.ExchangeClient, metrics drepo.Metrics, log *applogger.Logger, opts ...ValidatorOption) *AssetValidator {
	v := &AssetValidator{
		exchanges: exchanges,
		metrics:   metrics,
		log:       log,
		ttl:       5 * time.Minute,
		timeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate computes (or returns the cached) validation verdict for a symbol.
// Exchange failures are never fatal: a failing exchange simply contributes
// no data points.
func (v *AssetValidator) Validate(ctx context.Context, symbol string) (*models.ValidationResult, error) {
	key := pkgcache.GenerateKey("validate", symbol)
	if v.cache != nil {
		var raw string
		if err := v.cache.Get(ctx, key, &raw); err == nil {
			var res models.ValidationResult
			if err := json.Unmarshal([]byte(raw), &res); err == nil {
				return &res, nil
			}
		}
	}

	start := time.Now()
	stats := v.fanOut(ctx, symbol)
	res := aggregate(symbol, stats)
	v.metrics.RecordLatency("validate", time.Since(start).Seconds())

	if v.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := v.cache.Set(ctx, key, string(b), v.ttl); err != nil && v.log != nil {
				v.log.Warn("validation cache set failed", applogger.Error(err))
			}
		}
	}
	return res, nil
}

// fanOut queries all exchanges in parallel with a per-call timeout.
func (v *AssetValidator) fanOut(ctx context.Context, symbol string) []*models.TickerStats {
	var (
		mu    sync.Mutex
		stats []*models.TickerStats
		wg    sync.WaitGroup
	)
	for _, ex := range v.exchanges {
		wg.Add(1)
		go func(ex domsvc.ExchangeClient) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, v.timeout)
			defer cancel()

			t, err := ex.Ticker(cctx, symbol)
			if err != nil {
				v.metrics.RecordError("exchange_" + ex.Name())
				if v.log != nil {
					v.log.Debug("exchange lookup failed",
						applogger.String("exchange", ex.Name()),
						applogger.String("symbol", symbol),
						applogger.Error(err))
				}
				return
			}
			mu.Lock()
			stats = append(stats, t)
			mu.Unlock()
		}(ex)
	}
	wg.Wait()
	return stats
}

func aggregate(symbol string, stats []*models.TickerStats) *models.ValidationResult {
	res := &models.ValidationResult{
		Symbol:    symbol,
		CheckedAt: time.Now().UTC(),
	}

	if len(stats) == 0 {
		res.LiquidityScore = liquidityFloor
		res.Volatility = models.VolatilityVeryLow
		res.PriceAccuracy = models.PriceAccuracyLow
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s not found on any tracked exchange", symbol))
		return res
	}

	res.Exists = true
	var (
		totalVol  float64
		sumChange float64
		minPrice  = stats[0].LastPrice
		maxPrice  = stats[0].LastPrice
	)
	for _, t := range stats {
		res.Exchanges = append(res.Exchanges, t.Exchange)
		totalVol += t.QuoteVolume24h
		sumChange += math.Abs(t.ChangePct24h)
		if t.LastPrice < minPrice {
			minPrice = t.LastPrice
		}
		if t.LastPrice > maxPrice {
			maxPrice = t.LastPrice
		}
	}

	res.QuoteVolume24h = totalVol
	res.LiquidityScore = liquidityScore(totalVol)
	res.AvgChangePct24h = sumChange / float64(len(stats))
	res.Volatility = volatilityBucket(res.AvgChangePct24h)
	if minPrice > 0 {
		res.PriceSpreadPct = (maxPrice - minPrice) / minPrice * 100
	}
	res.PriceAccuracy = priceAccuracy(res.PriceSpreadPct)

	if res.LiquidityScore <= liquidityFloor {
		res.Warnings = append(res.Warnings, "very low 24h volume")
		res.Recommendations = append(res.Recommendations, "reduce position size or skip this signal")
	}
	if res.Volatility == models.VolatilityExtreme {
		res.Warnings = append(res.Warnings, "extreme 24h volatility")
		res.Recommendations = append(res.Recommendations, "wait for the market to settle")
	}
	if res.PriceAccuracy == models.PriceAccuracyLow {
		res.Warnings = append(res.Warnings, "large price disagreement across exchanges")
	}

	res.IsValid = res.Exists &&
		res.LiquidityScore > liquidityFloor &&
		res.Volatility != models.VolatilityExtreme
	return res
}

// Banded thresholds on aggregated 24h quote volume.
func liquidityScore(volumeUSD float64) float64 {
	switch {
	case volumeUSD >= 10_000_000:
		return 1.0
	case volumeUSD >= 1_000_000:
		return 0.7
	case volumeUSD >= 100_000:
		return 0.4
	case volumeUSD >= 10_000:
		return 0.2
	default:
		return liquidityFloor
	}
}

// Banded thresholds on average absolute 24h percent change.
func volatilityBucket(avgAbsChangePct float64) models.VolatilityBucket {
	switch {
	case avgAbsChangePct > 50:
		return models.VolatilityExtreme
	case avgAbsChangePct > 20:
		return models.VolatilityHigh
	case avgAbsChangePct > 10:
		return models.VolatilityMedium
	case avgAbsChangePct > 5:
		return models.VolatilityLow
	default:
		return models.VolatilityVeryLow
	}
}

// Relative spread between min and max last-trade price across exchanges.
func priceAccuracy(spreadPct float64) models.PriceAccuracy {
	switch {
	case spreadPct < 1:
		return models.PriceAccuracyHigh
	case spreadPct < 5:
		return models.PriceAccuracyMedium
	default:
		return models.PriceAccuracyLow
	}
}
