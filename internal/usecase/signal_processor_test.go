package usecase

import (
	"context"
	"testing"
	"time"

	"SigPull/internal/domain/models"
	"SigPull/internal/service/extract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	published []*models.Signal
}

func (c *capturePublisher) Publish(_ context.Context, s *models.Signal) error {
	c.published = append(c.published, s)
	return nil
}

func (c *capturePublisher) PublishBatch(_ context.Context, signals []*models.Signal) error {
	c.published = append(c.published, signals...)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

type captureStorage struct {
	stored []*models.Signal
}

func (c *captureStorage) Init(context.Context) error { return nil }

func (c *captureStorage) Store(_ context.Context, s *models.Signal) error {
	c.stored = append(c.stored, s)
	return nil
}

func (c *captureStorage) StoreBatch(_ context.Context, signals []*models.Signal) error {
	c.stored = append(c.stored, signals...)
	return nil
}

func (c *captureStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Signal, error) {
	return nil, nil
}

func (c *captureStorage) Health(context.Context) error { return nil }
func (c *captureStorage) Close() error                 { return nil }

func rawMsg(text string) *models.RawMessage {
	return &models.RawMessage{Platform: models.PlatformTelegram, Channel: "ch", Text: text}
}

func TestProcessRoutesToKafka(t *testing.T) {
	pub := &capturePublisher{}
	store := &captureStorage{}
	p := NewSignalProcessor(extract.New(extract.Config{}, nil), pub, store, fakeMetrics{}, "kafka")

	err := p.Process(context.Background(), rawMsg("BTC long entry 45000 target 48000 sl 42000"))
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Empty(t, store.stored)
	assert.Equal(t, "BTC/USDT", pub.published[0].Symbol)
}

func TestProcessRoutesToClickHouse(t *testing.T) {
	pub := &capturePublisher{}
	store := &captureStorage{}
	p := NewSignalProcessor(extract.New(extract.Config{}, nil), pub, store, fakeMetrics{}, "clickhouse")

	err := p.Process(context.Background(), rawMsg("ETH short entry 3200 tp 2900 sl 3350"))
	require.NoError(t, err)

	require.Len(t, store.stored, 1)
	assert.Empty(t, pub.published)
}

func TestProcessNoSignalIsNotAnError(t *testing.T) {
	pub := &capturePublisher{}
	p := NewSignalProcessor(extract.New(extract.Config{}, nil), pub, &captureStorage{}, fakeMetrics{}, "kafka")

	err := p.Process(context.Background(), rawMsg("gm everyone, great weather today"))
	require.NoError(t, err)
	assert.Empty(t, pub.published)
}

func TestProcessDropsCrossMessageDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	p := NewSignalProcessor(extract.New(extract.Config{}, nil), pub, &captureStorage{}, fakeMetrics{}, "kafka")

	text := "BTC long entry 45000 target 48000 sl 42000"
	require.NoError(t, p.Process(context.Background(), rawMsg(text)))
	require.NoError(t, p.Process(context.Background(), rawMsg(text)))

	assert.Len(t, pub.published, 1)
}

func TestProcessBatch(t *testing.T) {
	store := &captureStorage{}
	p := NewSignalProcessor(extract.New(extract.Config{}, nil), &capturePublisher{}, store, fakeMetrics{}, "clickhouse")

	err := p.ProcessBatch(context.Background(), []*models.RawMessage{
		rawMsg("BTC long entry 45000 target 48000 sl 42000"),
		rawMsg("BTC long entry 45000 target 48000 sl 42000"), // duplicate
		rawMsg("no signal here"),
		rawMsg("SOL short entry 150 tp 140 sl 160"),
	})
	require.NoError(t, err)

	require.Len(t, store.stored, 2)
	assert.Equal(t, "BTC/USDT", store.stored[0].Symbol)
	assert.Equal(t, "SOL/USDT", store.stored[1].Symbol)
}

func TestProcessUnknownBackend(t *testing.T) {
	p := NewSignalProcessor(extract.New(extract.Config{}, nil), &capturePublisher{}, &captureStorage{}, fakeMetrics{}, "postgres")

	err := p.Process(context.Background(), rawMsg("BTC long entry 45000 target 48000 sl 42000"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestDedupMemoryIsBounded(t *testing.T) {
	p := NewSignalProcessor(extract.New(extract.Config{}, nil), &capturePublisher{}, &captureStorage{}, fakeMetrics{}, "kafka")

	first := &models.Signal{Symbol: "BTC/USDT", Direction: models.DirectionLong, Entry: 1}
	require.False(t, p.duplicate(first))
	require.True(t, p.duplicate(first))

	for i := 0; i < maxSeenKeys; i++ {
		s := &models.Signal{Symbol: "BTC/USDT", Direction: models.DirectionLong, Entry: float64(i + 2)}
		require.False(t, p.duplicate(s))
	}

	assert.LessOrEqual(t, len(p.seen), maxSeenKeys)
	assert.False(t, p.duplicate(first), "evicted keys are treated as new again")
}
