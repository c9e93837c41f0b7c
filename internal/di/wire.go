//go:build wireinject
// +build wireinject

package di

import (
	"SigFusion/pkg/config"
	"SigFusion/pkg/server"

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
		ProvideRedisCache,
		ProvideCacheService,
		ProvideQueuePublisher,

		// Repositories
		ProvideTickSink,
		ProvideTickPublisher,
		ProvideVerdictHistory,
		ProvideVerdictPublisher,
		ProvideFeatureStore,
		ProvideBinanceStream,

		// Collaborator sources
		ProvideSources,

		// Use cases
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideKafkaTicksHandler,
		ProvideFusionUseCase,
		ProvideScanner,
		ProvideCandlesUseCase,

		// HTTP
		ProvideResponseCache,
		ProvideFusionHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
