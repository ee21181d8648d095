package extract

import (
	"testing"

	"SigPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(t *testing.T, cfg Config) *Extractor {
	t.Helper()
	return New(cfg, nil)
}

func msg(text string) *models.RawMessage {
	return &models.RawMessage{
		Platform:  models.PlatformTelegram,
		Channel:   "test-channel",
		MessageID: "1",
		Text:      text,
	}
}

func TestExtractLabeledSignal(t *testing.T) {
	e := newTestExtractor(t, Config{})

	s := e.Extract(msg("🚀 BTC LONG Entry: $45,000 Target: $48,000 SL: $42,000"))
	require.NotNil(t, s)

	assert.Equal(t, "BTC/USDT", s.Symbol)
	assert.Equal(t, models.DirectionLong, s.Direction)
	assert.Equal(t, 45000.0, s.Entry)
	assert.Equal(t, 48000.0, s.Target())
	assert.Equal(t, 42000.0, s.StopLoss)
	assert.Equal(t, "labeled", s.Source.Strategy)
	assert.GreaterOrEqual(t, s.Confidence, 90)
	assert.Empty(t, s.Warnings)
}

func TestExtractAssetAliases(t *testing.T) {
	e := newTestExtractor(t, Config{})

	tests := []struct {
		text string
		want string
	}{
		{"bitcoin looking bullish, entry 45000 target 48000 stop 42000", "BTC/USDT"},
		{"ETH/USDT long entry 3000 tp 3300 sl 2800", "ETH/USDT"},
		{"Solana breakout! buy at 150, target 170, stop 140", "SOL/USDT"},
		{"ethereum classic pump incoming, entry 25 tp 30 sl 22", "ETC/USDT"},
		{"doge-usd short entry 0.3 tp 0.25 sl 0.33", "DOGE/USD"},
	}
	for _, tt := range tests {
		s := e.Extract(msg(tt.text))
		require.NotNil(t, s, "text: %s", tt.text)
		assert.Equal(t, tt.want, s.Symbol, "text: %s", tt.text)
	}
}

func TestExtractNoAsset(t *testing.T) {
	e := newTestExtractor(t, Config{})
	assert.Nil(t, e.Extract(msg("going long on something, entry 10 tp 12 sl 9")))
}

func TestExtractNoDirection(t *testing.T) {
	e := newTestExtractor(t, Config{})
	// asset present, no directional keywords or emoji
	assert.Nil(t, e.Extract(msg("BTC is at 45000 today")))
}

func TestExtractDirectionTie(t *testing.T) {
	e := newTestExtractor(t, Config{})
	// one long marker, one short marker
	assert.Nil(t, e.Extract(msg("BTC could go long or short from 45000")))
}

func TestExtractShortSignal(t *testing.T) {
	e := newTestExtractor(t, Config{})

	s := e.Extract(msg("📉 SHORT ETH entry: 3200 tp: 2900 stop loss: 3350 leverage 10x"))
	require.NotNil(t, s)
	assert.Equal(t, models.DirectionShort, s.Direction)
	assert.Equal(t, 3200.0, s.Entry)
	assert.Equal(t, 2900.0, s.Target())
	assert.Equal(t, 3350.0, s.StopLoss)
	assert.Equal(t, 10, s.Leverage)
	assert.True(t, s.Consistent())
}

func TestExtractStepFallback(t *testing.T) {
	e := newTestExtractor(t, Config{})

	// no labels at all, three bare numbers
	s := e.Extract(msg("BTC long 42000 45000 48000"))
	require.NotNil(t, s)
	assert.Equal(t, "step", s.Source.Strategy)
	assert.Equal(t, 45000.0, s.Entry) // median
	assert.Equal(t, 48000.0, s.Target())
	assert.Equal(t, 42000.0, s.StopLoss)
}

func TestExtractStepFallbackShort(t *testing.T) {
	e := newTestExtractor(t, Config{})

	s := e.Extract(msg("ETH dump incoming 2800 3000 3200"))
	require.NotNil(t, s)
	assert.Equal(t, "step", s.Source.Strategy)
	assert.Equal(t, 3000.0, s.Entry)
	assert.Equal(t, 2800.0, s.Target())
	assert.Equal(t, 3200.0, s.StopLoss)
}

func TestConfidenceMonotonicity(t *testing.T) {
	e := newTestExtractor(t, Config{})

	bare := e.Extract(msg("BTC long"))
	require.NotNil(t, bare)
	withEntry := e.Extract(msg("BTC long entry 45000"))
	require.NotNil(t, withEntry)
	withTarget := e.Extract(msg("BTC long entry 45000 target 48000"))
	require.NotNil(t, withTarget)
	full := e.Extract(msg("BTC long entry 45000 target 48000 sl 42000 lev 5x swing"))
	require.NotNil(t, full)

	assert.Equal(t, 40, bare.Confidence)
	assert.Greater(t, withEntry.Confidence, bare.Confidence)
	assert.Greater(t, withTarget.Confidence, withEntry.Confidence)
	assert.Greater(t, full.Confidence, withTarget.Confidence)
	assert.LessOrEqual(t, full.Confidence, 100)
}

func TestMinConfidenceDrop(t *testing.T) {
	e := newTestExtractor(t, Config{MinConfidence: 60})
	// asset + direction only scores 40
	assert.Nil(t, e.Extract(msg("BTC long")))
}

func TestInconsistentFlagged(t *testing.T) {
	e := newTestExtractor(t, Config{})

	// LONG with target below entry
	s := e.Extract(msg("BTC long entry 45000 target 42000 sl 40000"))
	require.NotNil(t, s)
	assert.False(t, s.Consistent())
	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], "inconsistent")
}

func TestInconsistentRejected(t *testing.T) {
	e := newTestExtractor(t, Config{RejectInconsistent: true})
	assert.Nil(t, e.Extract(msg("BTC long entry 45000 target 42000 sl 40000")))
}

func TestMultipleTargets(t *testing.T) {
	e := newTestExtractor(t, Config{})

	s := e.Extract(msg("LINK long entry: 14.5 tp1: 15.2 tp2: 16.0 tp3: 17.5 sl: 13.8"))
	require.NotNil(t, s)
	require.Len(t, s.Targets, 3)
	assert.Equal(t, []float64{15.2, 16.0, 17.5}, s.Targets)
}

func TestMalformedPriceSkipped(t *testing.T) {
	e := newTestExtractor(t, Config{})

	// entry token unparseable, target fine; signal still extracted
	s := e.Extract(msg("BTC long entry: soon target: 48000 sl: 42000"))
	require.NotNil(t, s)
	assert.Zero(t, s.Entry)
	assert.Equal(t, 48000.0, s.Target())
}

func TestDedup(t *testing.T) {
	e := newTestExtractor(t, Config{})

	msgs := []*models.RawMessage{
		msg("BTC long entry 45000 target 48000 sl 42000"),
		msg("BTC long entry 45000 target 48000 sl 42000"), // duplicate
		msg("BTC short entry 45000 target 42000 sl 48000"),
	}
	out := e.ExtractBatch(msgs)
	require.Len(t, out, 2)
	assert.Equal(t, models.DirectionLong, out[0].Direction)
	assert.Equal(t, models.DirectionShort, out[1].Direction)
}

func TestDedupKeyRounding(t *testing.T) {
	a := &models.Signal{Symbol: "BTC/USDT", Direction: models.DirectionLong, Entry: 45000.00001}
	b := &models.Signal{Symbol: "BTC/USDT", Direction: models.DirectionLong, Entry: 45000.00002}
	assert.Equal(t, a.DedupKey(), b.DedupKey())
}

func TestThousandsSeparators(t *testing.T) {
	e := newTestExtractor(t, Config{})

	s := e.Extract(msg("bullish on BTC, entry 1,234,567.89 target 1,300,000 sl 1,200,000"))
	require.NotNil(t, s)
	assert.Equal(t, 1234567.89, s.Entry)
}
