package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"SigPull/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// QueueMode selects which halves of the queue run.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

// RedisQueue is a Redis-list backed job queue with delayed retries (sorted
// set) and a dead-letter list for messages that exhaust their retries.
type RedisQueue struct {
	log       *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	stopCh    chan struct{}
	mode      QueueMode
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(q *RedisQueue) {
		q.keyPrefix = prefix
	}
}

// NewRedisQueue creates a queue in the given mode. Workers default to 1 and
// retry delay to 10s.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &RedisQueue{
		log:       lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		stopCh:    make(chan struct{}),
		mode:      mode,
		ctx:       ctx,
		cancel:    cancel,
		keyPrefix: "sigpull:queue",
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewRedisPublisher creates and starts a publish-only queue.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	q := NewRedisQueue(lgr, &QueueConfig{}, client, ModeProducerOnly, opts...)
	if err := q.Start(); err != nil {
		lgr.Error("redis publisher start failed", logger.Error(err))
	}
	return q
}

// NewRedisConsumer creates a consume-only queue with the given jobs.
func NewRedisConsumer(lgr *logger.Logger, config *QueueConfig, client *redis.Client, jobs []Job, opts ...RedisQueueOption) *RedisQueue {
	q := NewRedisQueue(lgr, config, client, ModeConsumerOnly, opts...)
	if len(jobs) > 0 {
		q.RegisterJobs(jobs)
	}
	return q
}

func (q *RedisQueue) RegisterJobs(jobs []Job) {
	for _, job := range jobs {
		q.RegisterJob(job)
	}
}

func (q *RedisQueue) RegisterJob(job Job) {
	if q.mode == ModeProducerOnly {
		q.log.Warn("job registration ignored in producer-only mode",
			logger.String("job", job.Name()))
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.log.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start verifies the Redis connection and launches workers unless the
// queue is publish-only.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	q.isRunning = true
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.Ping(ctx).Err(); err != nil {
		q.isRunning = false
		return fmt.Errorf("redis ping: %w", err)
	}

	if q.mode == ModeProducerOnly {
		q.log.Info("redis publisher started",
			logger.String("addr", q.client.Options().Addr))
		return nil
	}

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.StartRetryProcessor()
	q.log.Info("redis queue started",
		logger.Int("workers", q.config.Workers),
		logger.String("addr", q.client.Options().Addr),
		logger.String("mode", q.modeString()))
	return nil
}

// Stop shuts the queue down, waiting for workers up to the context
// deadline.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.log.Info("stopping redis queue...")
	q.cancel()
	if q.mode != ModeProducerOnly {
		close(q.stopCh)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		q.log.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.log.Info("redis queue stopped gracefully")
		return nil
	}
}

// Enqueue pushes a message onto the queue. In consumer modes the message
// type must have a registered job.
func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return fmt.Errorf("queue not running")
	}
	if q.mode != ModeProducerOnly {
		if _, exists := q.jobs[msgType]; !exists {
			return fmt.Errorf("no job registered for type: %s", msgType)
		}
	}

	msg := Message{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// PublishMessage implements QueueService.
func (q *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return q.Enqueue(ctx, msgType, payload)
}

func (q *RedisQueue) worker(id int) {
	defer q.wg.Done()
	q.log.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-q.stopCh:
			q.log.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case <-q.ctx.Done():
			q.log.Info("queue worker cancelled", logger.Int("worker_id", id))
			return
		default:
			q.popAndProcess()
		}
	}
}

func (q *RedisQueue) popAndProcess() {
	ctx, cancel := context.WithTimeout(q.ctx, time.Second)
	defer cancel()

	result, err := q.client.BRPop(ctx, time.Second, q.queueKey()).Result()
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, context.Canceled):
			return
		default:
			q.log.Error("brpop error", logger.Error(err))
			time.Sleep(time.Second)
			return
		}
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		q.log.Error("unmarshal message", logger.Error(err))
		return
	}
	q.dispatch(msg)
}

func (q *RedisQueue) dispatch(msg Message) {
	job, exists := q.jobs[msg.Type]
	if !exists {
		q.log.Error("no job found",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, rawPayload(msg.Payload))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		q.log.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return
	}
	q.retryOrBury(msg, job, err)
}

// rawPayload re-encodes decoded JSON objects so jobs can unmarshal into
// their own types via ParsePayload.
func rawPayload(payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	b, err := json.Marshal(m)
	if err != nil {
		return payload
	}
	return json.RawMessage(b)
}

func (q *RedisQueue) retryOrBury(msg Message, job Job, err error) {
	q.log.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.config.RetryLimit {
		q.log.Error("max retries reached",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		q.bury(msg)
		return
	}

	msg.Attempts++
	retryAt := time.Now().Add(q.config.RetryDelay)
	q.scheduleRetry(msg, retryAt)
	q.log.Info("scheduled retry",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", retryAt.Format(time.RFC3339)))
}

func (q *RedisQueue) scheduleRetry(msg Message, retryAt time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("marshal retry", logger.Error(err))
		return
	}
	err = q.client.ZAdd(context.Background(), q.retryKey(), redis.Z{
		Score:  float64(retryAt.Unix()),
		Member: data,
	}).Err()
	if err != nil {
		q.log.Error("zadd retry", logger.Error(err))
	}
}

func (q *RedisQueue) bury(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		q.log.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := q.client.LPush(context.Background(), q.dlqKey(), data).Err(); err != nil {
		q.log.Error("lpush dlq", logger.Error(err))
	}
}

// StartRetryProcessor launches the goroutine that moves due retries back
// onto the main queue.
func (q *RedisQueue) StartRetryProcessor() {
	if q.mode == ModeProducerOnly {
		return
	}
	q.wg.Add(1)
	go q.retryLoop()
}

func (q *RedisQueue) retryLoop() {
	defer q.wg.Done()
	q.log.Info("retry processor started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			q.log.Info("retry processor stopping")
			return
		case <-q.ctx.Done():
			q.log.Info("retry processor cancelled")
			return
		case <-ticker.C:
			q.requeueDueRetries()
		}
	}
}

func (q *RedisQueue) requeueDueRetries() {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := q.client.ZRangeByScoreWithScores(q.ctx, q.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: now,
	}).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		q.log.Error("fetch retry messages", logger.Error(err))
		return
	}

	for _, z := range due {
		select {
		case <-q.ctx.Done():
			return
		default:
		}

		data := z.Member.(string)
		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, q.retryKey(), data)
		pipe.LPush(q.ctx, q.queueKey(), data)
		if _, err := pipe.Exec(q.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			q.log.Error("move retry to queue", logger.Error(err))
		}
	}
}

func (q *RedisQueue) modeString() string {
	switch q.mode {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

func (q *RedisQueue) queueKey() string { return q.keyPrefix + ":messages" }
func (q *RedisQueue) retryKey() string { return q.keyPrefix + ":retry" }
func (q *RedisQueue) dlqKey() string   { return q.keyPrefix + ":dlq" }
