package models

import "time"

// VolatilityBucket bands the average absolute 24h change across exchanges.
type VolatilityBucket string

const (
	VolatilityExtreme VolatilityBucket = "extreme"
	VolatilityHigh    VolatilityBucket = "high"
	VolatilityMedium  VolatilityBucket = "medium"
	VolatilityLow     VolatilityBucket = "low"
	VolatilityVeryLow VolatilityBucket = "very_low"
)

// PriceAccuracy bands the relative spread between min and max last-trade
// price across exchanges.
type PriceAccuracy string

const (
	PriceAccuracyHigh   PriceAccuracy = "high"
	PriceAccuracyMedium PriceAccuracy = "medium"
	PriceAccuracyLow    PriceAccuracy = "low"
)

// TickerStats is a 24h market snapshot for one pair on one exchange.
type TickerStats struct {
	Exchange       string  `json:"exchange"`
	Symbol         string  `json:"symbol"`
	LastPrice      float64 `json:"last_price"`
	QuoteVolume24h float64 `json:"quote_volume_24h"`
	ChangePct24h   float64 `json:"change_pct_24h"`
}

// ValidationResult is the per-asset verdict computed from live exchange data.
// Computed on demand and cached briefly per symbol.
type ValidationResult struct {
	Symbol          string           `json:"symbol"`
	Exists          bool             `json:"exists"`
	Exchanges       []string         `json:"exchanges"` // exchanges that returned data
	QuoteVolume24h  float64          `json:"quote_volume_24h"`
	LiquidityScore  float64          `json:"liquidity_score"`
	AvgChangePct24h float64          `json:"avg_change_pct_24h"`
	Volatility      VolatilityBucket `json:"volatility"`
	PriceSpreadPct  float64          `json:"price_spread_pct"`
	PriceAccuracy   PriceAccuracy    `json:"price_accuracy"`
	IsValid         bool             `json:"is_valid"`
	Warnings        []string         `json:"warnings,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
	CheckedAt       time.Time        `json:"checked_at"`
}
