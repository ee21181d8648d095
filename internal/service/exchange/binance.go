package exchange

import (
	"context"
	"fmt"
	"time"

	"SigPull/internal/domain/models"
	domsvc "SigPull/internal/domain/service"
)

// Binance implements ExchangeClient over the public spot REST API.
type Binance struct {
	restBase
}

func NewBinance(baseURL string, timeout time.Duration) *Binance {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &Binance{restBase: newRESTBase(baseURL, timeout)}
}

func (b *Binance) Name() string { return "binance" }

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	QuoteVolume        string `json:"quoteVolume"`
	PriceChangePercent string `json:"priceChangePercent"`
}

func (b *Binance) Ticker(ctx context.Context, symbol string) (*models.TickerStats, error) {
	base, quote, err := splitPair(symbol)
	if err != nil {
		return nil, err
	}

	var t binanceTicker
	err = b.getJSON(ctx, "/api/v3/ticker/24hr", map[string][]string{
		"symbol": {base + quote},
	}, &t)
	if err != nil {
		return nil, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	if t.Symbol == "" {
		return nil, fmt.Errorf("binance: symbol %s not listed", symbol)
	}

	last, err := parseFloatField("lastPrice", t.LastPrice)
	if err != nil {
		return nil, err
	}
	vol, err := parseFloatField("quoteVolume", t.QuoteVolume)
	if err != nil {
		return nil, err
	}
	chg, err := parseFloatField("priceChangePercent", t.PriceChangePercent)
	if err != nil {
		return nil, err
	}

	return &models.TickerStats{
		Exchange:       b.Name(),
		Symbol:         symbol,
		LastPrice:      last,
		QuoteVolume24h: vol,
		ChangePct24h:   chg,
	}, nil
}

var _ domsvc.ExchangeClient = (*Binance)(nil)
