package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SigPull/internal/domain/models"
	domrepo "SigPull/internal/domain/repository"
	pkgkafka "SigPull/pkg/kafka"
)

// KafkaSignalsHandler consumes extracted signals from Kafka and writes them
// to storage.
type KafkaSignalsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaSignalsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var s models.Signal
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if !s.ExtractedAt.IsZero() {
		// E2E latency from extraction time to storage (approx)
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(s.ExtractedAt).Seconds())
	}

	start := time.Now()
	err := h.storage.Store(ctx, &s)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordSignal("clickhouse", s.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
