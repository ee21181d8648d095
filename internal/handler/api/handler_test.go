package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SigPull/internal/domain/models"
	domsvc "SigPull/internal/domain/service"
	icache "SigPull/internal/service/cache"
	"SigPull/internal/service/extract"
	"SigPull/internal/usecase"
	applogger "SigPull/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExchange struct {
	stats *models.TickerStats
}

func (s *stubExchange) Name() string { return "stub" }

func (s *stubExchange) Ticker(context.Context, string) (*models.TickerStats, error) {
	return s.stats, nil
}

type stubStorage struct {
	signals []*models.Signal
	healthy bool
}

func (s *stubStorage) Init(context.Context) error                  { return nil }
func (s *stubStorage) Store(context.Context, *models.Signal) error { return nil }
func (s *stubStorage) StoreBatch(context.Context, []*models.Signal) error {
	return nil
}

func (s *stubStorage) Query(_ context.Context, _ string, _, _ time.Time, limit int) ([]*models.Signal, error) {
	if limit > 0 && limit < len(s.signals) {
		return s.signals[:limit], nil
	}
	return s.signals, nil
}

func (s *stubStorage) Health(context.Context) error {
	if !s.healthy {
		return context.DeadlineExceeded
	}
	return nil
}

func (s *stubStorage) Close() error { return nil }

type noMetrics struct{}

func (noMetrics) RecordSignal(string, string)      {}
func (noMetrics) RecordError(string)               {}
func (noMetrics) RecordConfidence(string, float64) {}
func (noMetrics) RecordLatency(string, float64)    {}

func newTestHandler(t *testing.T, store *stubStorage) *Handler {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)

	extractor := extract.New(extract.Config{}, log)
	validator := usecase.NewAssetValidator([]domsvc.ExchangeClient{
		&stubExchange{stats: &models.TickerStats{
			Exchange:       "stub",
			Symbol:         "BTC/USDT",
			LastPrice:      45000,
			QuoteVolume24h: 20_000_000,
			ChangePct24h:   2.5,
		}},
	}, noMetrics{}, log)
	return NewHandler(extractor, validator, store, log)
}

func doRequest(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestExtractEndpoint(t *testing.T) {
	h := newTestHandler(t, &stubStorage{healthy: true})

	rec := doRequest(h, http.MethodPost, "/api/extract",
		`{"text":"🚀 BTC LONG Entry: $45,000 Target: $48,000 SL: $42,000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Signals []*models.Signal `json:"signals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Signals, 1)

	s := resp.Data.Signals[0]
	assert.Equal(t, "BTC/USDT", s.Symbol)
	assert.Equal(t, models.DirectionLong, s.Direction)
	assert.Equal(t, 45000.0, s.Entry)
	assert.Equal(t, models.Platform("telegram"), s.Source.Platform) // default platform
}

func TestExtractEndpointNoSignal(t *testing.T) {
	h := newTestHandler(t, &stubStorage{healthy: true})

	rec := doRequest(h, http.MethodPost, "/api/extract", `{"text":"gm everyone"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Signals []*models.Signal `json:"signals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.Signals)
}

func TestExtractEndpointValidation(t *testing.T) {
	h := newTestHandler(t, &stubStorage{healthy: true})

	rec := doRequest(h, http.MethodPost, "/api/extract", `{"text":""}`)
	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestValidateEndpoint(t *testing.T) {
	h := newTestHandler(t, &stubStorage{healthy: true})

	rec := doRequest(h, http.MethodGet, "/api/validate?symbol=BTC/USDT", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data models.ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Exists)
	assert.True(t, resp.Data.IsValid)
	assert.Equal(t, 1.0, resp.Data.LiquidityScore)
}

func TestSignalsEndpoint(t *testing.T) {
	store := &stubStorage{
		healthy: true,
		signals: []*models.Signal{
			{Symbol: "BTC/USDT", Direction: models.DirectionLong, Entry: 45000, Confidence: 90},
		},
	}
	h := newTestHandler(t, store)

	rec := doRequest(h, http.MethodGet, "/api/signals?symbol=BTC/USDT", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp signalsListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, int64(1), resp.Data.Total)
	assert.Equal(t, "BTC/USDT", resp.Data.Rows[0].Symbol)
}

type signalsListResponse struct {
	Data struct {
		Rows  []*models.Signal `json:"rows"`
		Total int64            `json:"total"`
	} `json:"data"`
}

func TestSignalsEndpointCachePerLimit(t *testing.T) {
	store := &stubStorage{
		healthy: true,
		signals: []*models.Signal{
			{Symbol: "BTC/USDT", Direction: models.DirectionLong, Entry: 45000, Confidence: 90},
			{Symbol: "BTC/USDT", Direction: models.DirectionLong, Entry: 45100, Confidence: 85},
			{Symbol: "BTC/USDT", Direction: models.DirectionLong, Entry: 45200, Confidence: 80},
		},
	}
	h := newTestHandler(t, store)
	h.SetCache(icache.NewTTLCache())

	rec := doRequest(h, http.MethodGet, "/api/signals?symbol=BTC/USDT&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var first signalsListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Len(t, first.Data.Rows, 1)

	// a different limit must not be served the previous cached row set
	rec = doRequest(h, http.MethodGet, "/api/signals?symbol=BTC/USDT&limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second signalsListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Len(t, second.Data.Rows, 3)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t, &stubStorage{healthy: true})
	rec := doRequest(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newTestHandler(t, &stubStorage{healthy: false})
	rec = doRequest(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
