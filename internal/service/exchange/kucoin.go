package exchange

import (
	"context"
	"fmt"
	"time"

	"SigPull/internal/domain/models"
	domsvc "SigPull/internal/domain/service"
)

// KuCoin implements ExchangeClient over the public market stats endpoint.
type KuCoin struct {
	restBase
}

func NewKuCoin(baseURL string, timeout time.Duration) *KuCoin {
	if baseURL == "" {
		baseURL = "https://api.kucoin.com"
	}
	return &KuCoin{restBase: newRESTBase(baseURL, timeout)}
}

func (k *KuCoin) Name() string { return "kucoin" }

type kucoinStats struct {
	Code string `json:"code"`
	Data struct {
		Symbol     string `json:"symbol"`
		Last       string `json:"last"`
		VolValue   string `json:"volValue"`   // 24h quote volume
		ChangeRate string `json:"changeRate"` // fraction, 0.05 == 5%
	} `json:"data"`
}

func (k *KuCoin) Ticker(ctx context.Context, symbol string) (*models.TickerStats, error) {
	base, quote, err := splitPair(symbol)
	if err != nil {
		return nil, err
	}

	var resp kucoinStats
	err = k.getJSON(ctx, "/api/v1/market/stats", map[string][]string{
		"symbol": {base + "-" + quote},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("kucoin stats %s: %w", symbol, err)
	}
	if resp.Code != "200000" || resp.Data.Last == "" {
		return nil, fmt.Errorf("kucoin: symbol %s not listed", symbol)
	}

	last, err := parseFloatField("last", resp.Data.Last)
	if err != nil {
		return nil, err
	}
	vol, err := parseFloatField("volValue", resp.Data.VolValue)
	if err != nil {
		return nil, err
	}
	rate, err := parseFloatField("changeRate", resp.Data.ChangeRate)
	if err != nil {
		return nil, err
	}

	return &models.TickerStats{
		Exchange:       k.Name(),
		Symbol:         symbol,
		LastPrice:      last,
		QuoteVolume24h: vol,
		ChangePct24h:   rate * 100,
	}, nil
}

var _ domsvc.ExchangeClient = (*KuCoin)(nil)
