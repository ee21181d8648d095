package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"45000.50","quoteVolume":"1234567.89","priceChangePercent":"2.5"}`))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL, time.Second)
	stats, err := b.Ticker(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, "binance", stats.Exchange)
	assert.Equal(t, "BTC/USDT", stats.Symbol)
	assert.Equal(t, 45000.50, stats.LastPrice)
	assert.Equal(t, 1234567.89, stats.QuoteVolume24h)
	assert.Equal(t, 2.5, stats.ChangePct24h)
}

func TestBinanceTickerNotListed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL, time.Second)
	_, err := b.Ticker(context.Background(), "FAKE/USDT")
	require.Error(t, err)
}

func TestKuCoinTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/market/stats", r.URL.Path)
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":"200000","data":{"symbol":"BTC-USDT","last":"45100","volValue":"9876543.21","changeRate":"0.031"}}`))
	}))
	defer srv.Close()

	k := NewKuCoin(srv.URL, time.Second)
	stats, err := k.Ticker(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, "kucoin", stats.Exchange)
	assert.Equal(t, 45100.0, stats.LastPrice)
	assert.Equal(t, 9876543.21, stats.QuoteVolume24h)
	assert.InDelta(t, 3.1, stats.ChangePct24h, 1e-9) // fraction scaled to percent
}

func TestKuCoinTickerNotListed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// KuCoin answers 200 with empty data for unknown symbols
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":"200000","data":{"symbol":"FAKE-USDT","last":null,"volValue":null,"changeRate":null}}`))
	}))
	defer srv.Close()

	k := NewKuCoin(srv.URL, time.Second)
	_, err := k.Ticker(context.Background(), "FAKE/USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not listed")
}

func TestGateTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/spot/tickers", r.URL.Path)
		assert.Equal(t, "BTC_USDT", r.URL.Query().Get("currency_pair"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"currency_pair":"BTC_USDT","last":"44990","quote_volume":"555000","change_percentage":"-1.2"}]`))
	}))
	defer srv.Close()

	g := NewGate(srv.URL, time.Second)
	stats, err := g.Ticker(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, "gate", stats.Exchange)
	assert.Equal(t, 44990.0, stats.LastPrice)
	assert.Equal(t, -1.2, stats.ChangePct24h)
}

func TestGateTickerEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewGate(srv.URL, time.Second)
	_, err := g.Ticker(context.Background(), "FAKE/USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not listed")
}

func TestSplitPair(t *testing.T) {
	base, quote, err := splitPair("btc/usdt")
	require.NoError(t, err)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	_, _, err = splitPair("BTCUSDT")
	assert.Error(t, err)
	_, _, err = splitPair("/USDT")
	assert.Error(t, err)
}
