package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SigPull/internal/domain/models"
	drepo "SigPull/internal/domain/repository"
	"SigPull/internal/service/extract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStream fails its first read session the way the websocket client
// does: one error on errCh, then both channels close. After a reconnect the
// next read session delivers the queued messages.
type flakyStream struct {
	mu         sync.Mutex
	reads      int
	reconnects int
	messages   []*models.RawMessage
}

func (f *flakyStream) Connect(context.Context) error   { return nil }
func (f *flakyStream) Subscribe(context.Context) error { return nil }
func (f *flakyStream) Close() error                    { return nil }
func (f *flakyStream) IsConnected() bool               { return true }

func (f *flakyStream) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}

func (f *flakyStream) Read(context.Context) (<-chan *models.RawMessage, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++

	msgs := make(chan *models.RawMessage, len(f.messages)+1)
	errs := make(chan error, 1)
	if f.reads == 1 {
		errs <- errors.New("stream read: connection reset")
		close(errs)
		close(msgs)
		return msgs, errs
	}
	for _, m := range f.messages {
		msgs <- m
	}
	return msgs, errs
}

func (f *flakyStream) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.reconnects
}

// syncPublisher is a capturePublisher safe for use across goroutines.
type syncPublisher struct {
	mu        sync.Mutex
	published []*models.Signal
}

func (p *syncPublisher) Publish(_ context.Context, s *models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, s)
	return nil
}

func (p *syncPublisher) PublishBatch(_ context.Context, signals []*models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, signals...)
	return nil
}

func (p *syncPublisher) Close() error { return nil }

func (p *syncPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestCollectorReconnectsAndKeepsReading(t *testing.T) {
	stream := &flakyStream{
		messages: []*models.RawMessage{rawMsg("BTC long entry 45000 target 48000 sl 42000")},
	}
	pub := &syncPublisher{}
	proc := NewSignalProcessor(extract.New(extract.Config{}, nil), pub, &captureStorage{}, fakeMetrics{}, "kafka")
	c := NewMessageCollector([]drepo.MessageStream{stream}, proc, fakeMetrics{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool {
		return pub.count() == 1
	}, 2*time.Second, 10*time.Millisecond, "message after reconnect never processed")

	reads, reconnects := stream.counts()
	assert.GreaterOrEqual(t, reconnects, 1)
	assert.GreaterOrEqual(t, reads, 2, "read must be restarted on the reconnected stream")
}
