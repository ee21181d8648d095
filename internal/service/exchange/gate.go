package exchange

import (
	"context"
	"fmt"
	"time"

	"SigPull/internal/domain/models"
	domsvc "SigPull/internal/domain/service"
)

// Gate implements ExchangeClient over the Gate.io v4 spot tickers endpoint.
type Gate struct {
	restBase
}

func NewGate(baseURL string, timeout time.Duration) *Gate {
	if baseURL == "" {
		baseURL = "https://api.gateio.ws"
	}
	return &Gate{restBase: newRESTBase(baseURL, timeout)}
}

func (g *Gate) Name() string { return "gate" }

type gateTicker struct {
	CurrencyPair     string `json:"currency_pair"`
	Last             string `json:"last"`
	QuoteVolume      string `json:"quote_volume"`
	ChangePercentage string `json:"change_percentage"`
}

func (g *Gate) Ticker(ctx context.Context, symbol string) (*models.TickerStats, error) {
	base, quote, err := splitPair(symbol)
	if err != nil {
		return nil, err
	}

	var tickers []gateTicker
	err = g.getJSON(ctx, "/api/v4/spot/tickers", map[string][]string{
		"currency_pair": {base + "_" + quote},
	}, &tickers)
	if err != nil {
		return nil, fmt.Errorf("gate ticker %s: %w", symbol, err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("gate: symbol %s not listed", symbol)
	}
	t := tickers[0]

	last, err := parseFloatField("last", t.Last)
	if err != nil {
		return nil, err
	}
	vol, err := parseFloatField("quote_volume", t.QuoteVolume)
	if err != nil {
		return nil, err
	}
	chg, err := parseFloatField("change_percentage", t.ChangePercentage)
	if err != nil {
		return nil, err
	}

	return &models.TickerStats{
		Exchange:       g.Name(),
		Symbol:         symbol,
		LastPrice:      last,
		QuoteVolume24h: vol,
		ChangePct24h:   chg,
	}, nil
}

var _ domsvc.ExchangeClient = (*Gate)(nil)
