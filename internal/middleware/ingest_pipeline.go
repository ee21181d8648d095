package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SigPull/internal/domain/models"
	domrepo "SigPull/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, m *models.RawMessage) error
}

// IngestPipeline sits between the scrape streams and the signal processor.
// It validates messages, throttles noisy channels, and buffers when the
// downstream is unavailable.
type IngestPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxMPS   int
	bufSize  int
	bufCh    chan *models.RawMessage
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-channel last accepted time
}

type PipelineOption func(*IngestPipeline)

// WithMaxMPS sets the max accepted messages per second per channel.
func WithMaxMPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxMPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:     proc,
		metrics:  metrics,
		maxMPS:   10,  // default throttle per channel
		bufSize:  500, // default buffer
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.RawMessage, p.bufSize)
	return p
}

// Start launches background flushing of buffered messages with capped
// exponential backoff on repeated downstream failures.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case m := <-p.bufCh:
				if m == nil {
					continue
				}
				if err := p.proc.Process(ctx, m); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- m:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a message to downstream,
// buffering on errors.
func (p *IngestPipeline) Process(ctx context.Context, m *models.RawMessage) error {
	start := time.Now()
	if err := validateMessage(m); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(m.Channel, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, m); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- m:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateMessage(m *models.RawMessage) error {
	if m == nil {
		return fmt.Errorf("message nil")
	}
	if m.Platform != models.PlatformTelegram && m.Platform != models.PlatformReddit {
		return fmt.Errorf("unknown platform %q", m.Platform)
	}
	if m.Channel == "" {
		return fmt.Errorf("channel empty")
	}
	if m.Text == "" {
		return fmt.Errorf("text empty")
	}
	if m.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	return nil
}

func (p *IngestPipeline) allow(channel string, now time.Time) bool {
	if p.maxMPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[channel]
	if last.IsZero() {
		p.lastSeen[channel] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxMPS) {
		return false
	}
	p.lastSeen[channel] = now
	return true
}
