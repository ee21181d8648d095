package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SigPull/internal/domain/repository"
	domsvc "SigPull/internal/domain/service"
	"SigPull/internal/handler/api"
	mid "SigPull/internal/middleware"
	internalrepo "SigPull/internal/repository"
	icache "SigPull/internal/service/cache"
	"SigPull/internal/service/exchange"
	"SigPull/internal/service/extract"
	"SigPull/internal/service/reddit"
	"SigPull/internal/service/tgstream"
	"SigPull/internal/usecase"
	pkgcache "SigPull/pkg/cache"
	pkgch "SigPull/pkg/clickhouse"
	"SigPull/pkg/config"
	pkgkafka "SigPull/pkg/kafka"
	applogger "SigPull/pkg/logger"
	"SigPull/pkg/metrics"
	pkgqueue "SigPull/pkg/queue"
	"SigPull/pkg/server"

	"github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ts DateTime,
			symbol String,
			direction LowCardinality(String),
			entry Float64,
			target1 Float64,
			target2 Float64,
			target3 Float64,
			stop_loss Float64,
			leverage UInt8,
			confidence UInt8,
			platform LowCardinality(String),
			channel String,
			message_id String,
			strategy LowCardinality(String),
			warnings String
		) ENGINE=MergeTree ORDER BY (symbol, ts)`, signalsTable(cfg)),
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func signalsTable(cfg *config.Config) string {
	table := cfg.ClickHouse.Table
	if table == "" {
		table = "signals"
	}
	return cfg.ClickHouse.Database + "." + table
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideSignalStorage creates ClickHouse storage repository.
func ProvideSignalStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseSignalStore(chClient.DB(), signalsTable(cfg))
}

// ProvideSignalPublisher creates Kafka publisher repository.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaSignalsHandler registers handler for the signals topic.
func ProvideKafkaSignalsHandler(store repository.Storage, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideExtractor creates the signal extractor.
func ProvideExtractor(cfg *config.Config, log *applogger.Logger) *extract.Extractor {
	return extract.New(extract.Config{
		MinConfidence:      cfg.Extractor.MinConfidence,
		RejectInconsistent: cfg.Extractor.RejectInconsistent,
		QuoteAsset:         cfg.Extractor.QuoteAsset,
	}, log)
}

// ProvideStreams creates the enabled message streams.
func ProvideStreams(cfg *config.Config, log *applogger.Logger) []repository.MessageStream {
	var streams []repository.MessageStream
	if cfg.Telegram.Enabled {
		streams = append(streams, tgstream.New(
			cfg.Telegram.Token,
			cfg.Telegram.GatewayURL,
			cfg.Telegram.Channels,
			cfg.Telegram.ReconnectDelay,
			cfg.Telegram.PingInterval,
			log,
		))
	}
	if cfg.Reddit.Enabled {
		streams = append(streams, reddit.New(
			cfg.Reddit.BaseURL,
			cfg.Reddit.UserAgent,
			cfg.Reddit.Subreddits,
			cfg.Reddit.PollInterval,
			cfg.Reddit.Timeout,
		))
	}
	return streams
}

// ProvideExchanges creates the exchange clients used for validation.
func ProvideExchanges(cfg *config.Config) []domsvc.ExchangeClient {
	timeout := cfg.Validator.ExchangeTimeout
	return []domsvc.ExchangeClient{
		exchange.NewBinance(cfg.Validator.BinanceURL, timeout),
		exchange.NewKuCoin(cfg.Validator.KuCoinURL, timeout),
		exchange.NewGate(cfg.Validator.GateURL, timeout),
	}
}

// ProvideCacheService creates the validation cache backend. Redis when
// enabled, in-process memory otherwise.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, *pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil, nil
	}
	host, port := splitAddr(cfg.Redis.Addr)
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	// L1 memory in front of Redis keeps hot symbol verdicts local
	return pkgcache.NewLayeredCache(rc), rc, nil
}

func splitAddr(addr string) (string, int) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideValidator creates the asset validator use case.
func ProvideValidator(
	exchanges []domsvc.ExchangeClient,
	cacheSvc pkgcache.Service,
	metrics repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.AssetValidator {
	opts := []usecase.ValidatorOption{
		usecase.WithCache(cacheSvc, cfg.Validator.CacheTTL),
	}
	if cfg.Validator.ExchangeTimeout > 0 {
		opts = append(opts, usecase.WithExchangeTimeout(cfg.Validator.ExchangeTimeout))
	}
	return usecase.NewAssetValidator(exchanges, metrics, log, opts...)
}

// ProvideQueue creates the Redis job queue for background validation.
// Nil when the queue or Redis is disabled.
func ProvideQueue(cfg *config.Config, rc *pkgcache.RedisCache, validator *usecase.AssetValidator, log *applogger.Logger) *pkgqueue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := pkgqueue.NewRedisQueue(log, &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
	}, rc.Client(), pkgqueue.ModeProducerConsumer)
	q.RegisterJobs([]pkgqueue.Job{
		usecase.NewValidateSymbolJob(validator),
		usecase.NewErrorLogsJob(log),
	})
	return q
}

// ProvideSignalProcessor creates the extraction use case.
func ProvideSignalProcessor(
	extractor *extract.Extractor,
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	queue *pkgqueue.RedisQueue,
	cfg *config.Config,
) *usecase.SignalProcessor {
	proc := usecase.NewSignalProcessor(extractor, pub, store, metrics, cfg.Backend.Type)
	if queue != nil {
		proc.SetQueue(queue)
	}
	return proc
}

// ProvideMessageCollector creates the message collector use case.
func ProvideMessageCollector(
	streams []repository.MessageStream,
	processor *usecase.SignalProcessor,
	metrics repository.Metrics,
) *usecase.MessageCollector {
	// Build middleware pipeline between streams and the processor
	pipe := mid.NewIngestPipeline(processor, metrics,
		mid.WithMaxMPS(10),
		mid.WithBufferSize(500),
	)
	return usecase.NewMessageCollector(streams, processor, metrics, pipe)
}

// ProvideAPIHandler creates the HTTP handler.
func ProvideAPIHandler(
	extractor *extract.Extractor,
	validator *usecase.AssetValidator,
	store repository.Storage,
	rc *pkgcache.RedisCache,
	cfg *config.Config,
	log *applogger.Logger,
) *api.Handler {
	h := api.NewHandler(extractor, validator, store, log)
	if rc != nil {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.MessageCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	chClient *pkgch.Client,
	queue *pkgqueue.RedisQueue,
	handler *api.Handler,
	log *applogger.Logger,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(
			pkgkafka.HookFuncs{
				Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
					ctx = pkgkafka.WithStartTime(ctx, time.Now())
					return pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km)), km, data, nil
				},
				After: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
					if start, ok := pkgkafka.StartTime(ctx); ok && err == nil {
						log.Debug("kafka message handled",
							applogger.String("topic", topic),
							applogger.Int64("offset", km.Offset),
							applogger.Duration("took", time.Since(start)))
					}
				},
				Err: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
					log.Error("kafka message failed",
						applogger.String("topic", topic),
						applogger.Int64("offset", km.Offset),
						applogger.Error(err))
				},
			},
		))
	}
	if queue != nil {
		// Aggregate repeated error logs and ship them through the queue
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "error_logs",
			Publisher:      queue,
		})
	}
	app := server.New(cfg, collector, consumer, kh, chClient, log)
	app.SetHTTPHandler(handler)
	app.SetQueue(queue)
	if collector != nil {
		app.Proc = collector.Processor()
	}
	return app
}
