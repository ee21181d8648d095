package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes raw payloads from a single topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	AutoOffsetReset string
	WorkerCount     int
	BufferSize      int
	RetryMax        int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	DLQTopic        string
	MinBytes        int
	MaxBytes        int
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
	}
}

// WithConsumerGroupID sets the consumer group ID.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.GroupID = groupID
	}
}

// WithConsumerAutoOffsetReset sets the offset reset strategy.
func WithConsumerAutoOffsetReset(strategy string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.AutoOffsetReset = strategy
	}
}

// WithConsumerWorkers sets the number of worker goroutines.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.WorkerCount = count
	}
}

// WithConsumerRetry configures retry attempts and the backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sets the dead-letter topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
	}
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the internal channel buffer size.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// inbound carries one fetched message through the worker pool.
type inbound struct {
	topic string
	data  []byte
	km    kafka.Message
}

// Consumer reads from one reader per registered topic and dispatches to a
// shared worker pool. Handling is serialized per (topic, partition) so offset
// commits stay ordered.
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	inbox    chan *inbound
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	lockMu   sync.Mutex
	partMu   map[string]map[int]*sync.Mutex
	dlq      *kafka.Writer
	hook     ConsumerHook
}

// NewConsumer creates a consumer from the given options. Brokers are
// mandatory.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:         "default",
		AutoOffsetReset: "earliest",
		WorkerCount:     1,
		BufferSize:      10,
		RetryMax:        3,
		BackoffMin:      50 * time.Millisecond,
		BackoffMax:      2 * time.Second,
		MinBytes:        10e3,
		MaxBytes:        10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		inbox:    make(chan *inbound, cfg.BufferSize),
		done:     make(chan struct{}),
		partMu:   make(map[string]map[int]*sync.Mutex),
		hook:     NoopHook{},
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	registerConsumerMetrics()
	return c, nil
}

// RegisterHandler binds a handler to its topic. The first registration for a
// topic wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		log.Warn().Str("topic", topic).Msg("kafka consumer: handler already registered")
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook installs a lifecycle hook. Must be called before Start.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start spins up the worker pool and one fetch loop per registered topic.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		log.Info().Str("topic", topic).Msg("kafka consumer: topic registered")
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.fetchLoop(topic, reader)
	}

	log.Info().Int("workers", c.cfg.WorkerCount).Int("topics", len(c.readers)).
		Msg("kafka consumer: started")
	return nil
}

// Stop shuts the consumer down, waiting for in-flight work until ctx expires.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		close(c.done)
		close(c.inbox)

		waited := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(waited)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-waited:
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				log.Error().Err(err).Str("topic", topic).Msg("kafka consumer: close reader")
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				log.Error().Err(err).Msg("kafka consumer: close dlq writer")
			}
		}
	})
	return stopErr
}

// fetchLoop reads from a single topic and feeds the worker pool. When the
// inbox is nearly full it backs off instead of dropping messages.
func (c *Consumer) fetchLoop(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.ReadMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Error().Err(err).Str("topic", topic).Msg("kafka consumer: read")
			}
			continue
		}

		if !c.enqueue(topic, msg) {
			return
		}
	}
}

// enqueue hands a message to the workers, applying backpressure while the
// inbox is saturated. Returns false once the consumer is stopping.
func (c *Consumer) enqueue(topic string, msg kafka.Message) bool {
	in := &inbound{topic: topic, data: msg.Value, km: msg}
	for {
		select {
		case c.inbox <- in:
			c.recordQueueState(topic)
			return true
		case <-c.done:
			return false
		default:
			fullness := float64(len(c.inbox)) / float64(cap(c.inbox))
			if inboxFullness != nil {
				inboxFullness.WithLabelValues(topic).Set(fullness)
			}
			if fullness > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

func (c *Consumer) recordQueueState(topic string) {
	if inboxDepth != nil {
		inboxDepth.WithLabelValues(topic).Set(float64(len(c.inbox)))
	}
	if inboxFullness != nil {
		inboxFullness.WithLabelValues(topic).Set(float64(len(c.inbox)) / float64(cap(c.inbox)))
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()

	for in := range c.inbox {
		handler, ok := c.handlers[in.topic]
		if !ok {
			continue
		}
		c.process(handler, in)
	}
}

// process runs one message through the handler with retries, DLQ fallout and
// an offset commit. Panics in the handler are contained to this message.
func (c *Consumer) process(handler MessageHandler, in *inbound) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("topic", in.topic).Interface("panic", r).
				Msg("kafka consumer: handler panic")
		}
		if handleSeconds != nil {
			handleSeconds.WithLabelValues(in.topic).Observe(time.Since(start).Seconds())
		}
	}()

	// one in-flight message per (topic, partition)
	mu := c.partitionLock(in.topic, in.km.Partition)
	mu.Lock()
	defer mu.Unlock()

	err := c.handleWithRetry(handler, in)
	if err != nil {
		c.hook.OnError(context.Background(), in.topic, in.km, in.data, err)
		log.Error().Err(err).Str("topic", in.topic).Msg("kafka consumer: handler failed")
		c.deadLetter(in)
	}

	// commit on success, or after DLQ so a poison message cannot loop forever
	if err == nil || c.dlq != nil {
		if reader := c.readers[in.topic]; reader != nil {
			c.commit(reader, in.km)
		}
	}
}

func (c *Consumer) handleWithRetry(handler MessageHandler, in *inbound) error {
	var err error
	for attempt := 1; attempt <= c.cfg.RetryMax+1; attempt++ {
		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(context.Background(), in.topic, in.km, in.data)
		if berr != nil {
			return berr
		}

		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, in.topic, hmsg, hdata, err)
		if err == nil {
			return nil
		}
		c.hook.OnError(hctx, in.topic, hmsg, hdata, err)

		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.done:
			return err
		}
	}
	return err
}

func (c *Consumer) deadLetter(in *inbound) {
	if c.dlq == nil {
		return
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   in.data,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(in.topic)}},
	})
	if err != nil {
		log.Error().Err(err).Str("dlq", c.cfg.DLQTopic).Msg("kafka consumer: dlq write")
	}
}

func (c *Consumer) commit(reader *kafka.Reader, km kafka.Message) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Error().Err(err).Msg("kafka consumer: commit failed")
}

// partitionLock returns the mutex serializing handling for one
// (topic, partition). Workers race to fill the maps lazily, so the fill
// itself needs a lock.
func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	m, ok := c.partMu[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partMu[topic] = m
	}
	mu, ok := m[partition]
	if !ok {
		mu = &sync.Mutex{}
		m[partition] = mu
	}
	return mu
}

// backoffWithJitter grows exponentially from min, caps at max and strips up
// to half the delay as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min * time.Duration(1<<uint(attempt-1))
	if d > max {
		d = max
	}
	return d - time.Duration(rand.Int63n(int64(d)/2))
}

var (
	consumerMetricsOnce sync.Once
	consumerRegisterer  prometheus.Registerer

	inboxDepth    *prometheus.GaugeVec
	inboxFullness *prometheus.GaugeVec
	handleSeconds *prometheus.HistogramVec
)

// SetConsumerMetricsRegisterer overrides the default Prometheus registry for
// consumer metrics. Useful in tests.
func SetConsumerMetricsRegisterer(reg prometheus.Registerer) { consumerRegisterer = reg }

func registerConsumerMetrics() {
	consumerMetricsOnce.Do(func() {
		inboxDepth = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "sigpull_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
			[]string{"topic"},
		)
		inboxFullness = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "sigpull_kafka_consumer_queue_fullness", Help: "Queue utilization ratio (len/cap)"},
			[]string{"topic"},
		)
		handleSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "sigpull_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
		if consumerRegisterer != nil {
			consumerRegisterer.MustRegister(inboxDepth, inboxFullness, handleSeconds)
		} else {
			prometheus.DefaultRegisterer.MustRegister(inboxDepth, inboxFullness, handleSeconds)
		}
	})
}
