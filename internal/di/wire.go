//go:build wireinject
// +build wireinject

package di

import (
	"SigPull/pkg/config"
	"SigPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCacheService,

		// Repositories
		ProvideSignalStorage,
		ProvideSignalPublisher,
		ProvideStreams,
		ProvideExchanges,

		// Use cases
		ProvideExtractor,
		ProvideValidator,
		ProvideQueue,
		ProvideSignalProcessor,
		ProvideMessageCollector,
		ProvideKafkaSignalsHandler,

		// HTTP and application server
		ProvideAPIHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
