//go:build wireinject
// +build wireinject

package di

import (
	"CropPulse/pkg/config"
	"CropPulse/pkg/server"

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
		ProvideCacheService,
		ProvideReadThrough,
		ProvideSnowflakeNode,

		// Repositories
		ProvidePriceStore,
		ProvideRuleRegistry,
		ProvideAlertQueueClient,
		ProvideDispatcher,
		ProvideNotifyQueue,

		// Use cases
		ProvideNormalizer,
		ProvideEvaluator,
		ProvideIngestor,
		ProvideIngestPipeline,
		ProvidePriceReader,
		ProvideWeatherReader,
		ProvideRateLimiter,
		ProvideSourcePolls,
		ProvideCollector,
		ProvideKafkaConsumer,
		ProvideObservationsHandler,

		// HTTP surfaces
		ProvideRouter,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
