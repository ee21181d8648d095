package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SigPull/internal/domain/models"
	drepo "SigPull/internal/domain/repository"
	"SigPull/internal/service/extract"
	pkgqueue "SigPull/pkg/queue"
)

// SignalProcessor extracts signals from raw messages and routes them to the
// configured backend. Extraction never fails; a message without a signal is
// silently consumed.
type SignalProcessor struct {
	extractor *extract.Extractor
	pub       drepo.Publisher
	store     drepo.Storage
	queue     pkgqueue.QueueService
	metrics   drepo.Metrics
	backend   string

	mu        sync.Mutex
	seen      map[string]bool // recent cross-message dedup keys
	seenOrder []string        // insertion order, for eviction once full
}

// maxSeenKeys caps cross-message dedup memory. Once full, the oldest keys
// are forgotten and an old signal repeated much later is treated as new.
const maxSeenKeys = 4096

func NewSignalProcessor(
	extractor *extract.Extractor,
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
) *SignalProcessor {
	return &SignalProcessor{
		extractor: extractor,
		pub:       pub,
		store:     store,
		metrics:   metrics,
		backend:   backend,
		seen:      make(map[string]bool),
	}
}

// SetQueue attaches a job queue for background symbol validation.
func (p *SignalProcessor) SetQueue(q pkgqueue.QueueService) { p.queue = q }

// Process extracts from a single message and routes any resulting signal.
func (p *SignalProcessor) Process(ctx context.Context, m *models.RawMessage) error {
	if m == nil {
		return fmt.Errorf("message is nil")
	}

	start := time.Now()
	sig := p.extractor.Extract(m)
	p.metrics.RecordLatency("extract", time.Since(start).Seconds())
	if sig == nil {
		return nil
	}
	if p.duplicate(sig) {
		p.metrics.RecordError("duplicate_signal")
		return nil
	}

	return p.route(ctx, sig)
}

// ProcessBatch extracts from multiple messages, deduplicates, and routes.
func (p *SignalProcessor) ProcessBatch(ctx context.Context, msgs []*models.RawMessage) error {
	signals := p.extractor.ExtractBatch(msgs)
	fresh := make([]*models.Signal, 0, len(signals))
	for _, s := range signals {
		if p.duplicate(s) {
			p.metrics.RecordError("duplicate_signal")
			continue
		}
		fresh = append(fresh, s)
	}
	if len(fresh) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, fresh)
	case "clickhouse":
		err = p.store.StoreBatch(ctx, fresh)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	for _, s := range fresh {
		p.metrics.RecordSignal(p.backend, s.Symbol)
		p.metrics.RecordConfidence(s.Symbol, float64(s.Confidence))
		p.enqueueValidation(ctx, s.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// duplicate marks the signal's dedup key and reports whether it was already
// seen. Later duplicates are dropped, the first occurrence is kept. The key
// set is bounded; see maxSeenKeys.
func (p *SignalProcessor) duplicate(s *models.Signal) bool {
	k := s.DedupKey()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[k] {
		return true
	}
	if len(p.seenOrder) >= maxSeenKeys {
		oldest := p.seenOrder[0]
		p.seenOrder = p.seenOrder[1:]
		delete(p.seen, oldest)
	}
	p.seen[k] = true
	p.seenOrder = append(p.seenOrder, k)
	return false
}

func (p *SignalProcessor) route(ctx context.Context, s *models.Signal) error {
	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, s)
	case "clickhouse":
		err = p.store.Store(ctx, s)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process signal: %w", err)
	}

	p.metrics.RecordSignal(p.backend, s.Symbol)
	p.metrics.RecordConfidence(s.Symbol, float64(s.Confidence))
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	p.enqueueValidation(ctx, s.Symbol)
	return nil
}

// enqueueValidation schedules a background validation to warm the cache for
// the signal's symbol. Best effort: queue errors only count as metrics.
func (p *SignalProcessor) enqueueValidation(ctx context.Context, symbol string) {
	if p.queue == nil {
		return
	}
	if err := p.queue.PublishMessage(ctx, ValidateSymbolType, &ValidateSymbolPayload{Symbol: symbol}); err != nil {
		p.metrics.RecordError("validate_enqueue")
	}
}

// Close closes underlying resources if available.
func (p *SignalProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
