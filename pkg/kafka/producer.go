package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is a key/value pair bound for a topic. Value is encoded with
// encodeValue at publish time.
type Message struct {
	Key   []byte
	Value interface{}
}

// Producer wraps a kafka-go Writer with payload encoding and metrics.
type Producer struct {
	writer      *kafka.Writer
	compression string
}

// NewProducer builds a producer from the given options. Brokers are mandatory,
// everything else has a sensible default.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    100,
		BatchBytes:   1048576,
		BatchTimeout: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		balancer = &kafka.Hash{}
	}

	registerProducerMetrics()
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     balancer,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  compressionCodec(cfg.Compression),
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
			Async:        cfg.Async,
		},
		compression: cfg.Compression,
	}, nil
}

// Publish sends a single message to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  start,
	})
	recordPublish(topic, p.compression, int64(len(payload)), 1, time.Since(start), err)
	return err
}

// PublishBatch sends all messages to topic in one writer call.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()
	out := make([]kafka.Message, len(messages))
	var totalBytes int64
	for i, m := range messages {
		payload, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		out[i] = kafka.Message{
			Topic: topic,
			Key:   m.Key,
			Value: payload,
			Time:  now,
		}
		totalBytes += int64(len(payload))
	}

	err := p.writer.WriteMessages(ctx, out...)
	recordPublish(topic, p.compression, totalBytes, len(messages), time.Since(now), err)
	return err
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// encodeValue passes byte slices and strings through untouched, everything
// else is marshaled as JSON.
func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}

var (
	producerMetricsOnce sync.Once

	publishedTotal *prometheus.CounterVec
	publishErrors  *prometheus.CounterVec
	publishedBytes *prometheus.CounterVec
	publishSeconds *prometheus.HistogramVec
)

func registerProducerMetrics() {
	producerMetricsOnce.Do(func() {
		publishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpull_kafka_producer_messages_total",
				Help: "Total messages published to Kafka",
			},
			[]string{"topic", "compression", "result"},
		)
		publishErrors = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpull_kafka_producer_errors_total",
				Help: "Total producer errors",
			},
			[]string{"topic"},
		)
		publishedBytes = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpull_kafka_producer_bytes_total",
				Help: "Total payload bytes published",
			},
			[]string{"topic", "compression"},
		)
		publishSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sigpull_kafka_producer_publish_seconds",
				Help:    "Publish latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	})
}

func recordPublish(topic, compression string, bytes int64, count int, took time.Duration, err error) {
	if publishedTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		publishErrors.WithLabelValues(topic).Inc()
	}
	publishedTotal.WithLabelValues(topic, compression, result).Add(float64(count))
	publishedBytes.WithLabelValues(topic, compression).Add(float64(bytes))
	publishSeconds.WithLabelValues(topic).Observe(took.Seconds())
}
