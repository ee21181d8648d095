package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SigPull/internal/usecase"
	pkgch "SigPull/pkg/clickhouse"
	"SigPull/pkg/config"
	xhttp "SigPull/pkg/http"
	pkgkafka "SigPull/pkg/kafka"
	applogger "SigPull/pkg/logger"
	pkgqueue "SigPull/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	collector   *usecase.MessageCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	queue       *pkgqueue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	log         *applogger.Logger
	Proc        *usecase.SignalProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *usecase.MessageCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	log *applogger.Logger,
) *App {
	return &App{
		cfg:       cfg,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		log:       log,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetQueue allows DI to inject the background job queue.
func (a *App) SetQueue(q *pkgqueue.RedisQueue) { a.queue = q }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start stream collector
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("collector error", applogger.Error(err))
		}
	}()
	a.log.Info("collector started",
		applogger.Strings("telegram_channels", a.cfg.Telegram.Channels),
		applogger.Strings("subreddits", a.cfg.Reddit.Subreddits),
	)

	// Start signals consumer when routing through Kafka
	if a.cfg.Backend.Type == "kafka" && a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start background validation queue
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.log.Error("queue start error", applogger.Error(err))
		} else {
			a.queue.StartRetryProcessor()
			a.log.Info("validation queue started")
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	// Stop collector (pipeline + streams)
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// Stop queue workers
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.log.Warn("queue stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Close processor resources (publisher/storage)
	if a.Proc != nil {
		a.Proc.Close()
	}

	a.log.Info("shutdown complete")
	return nil
}
