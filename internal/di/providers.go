package di

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"CropPulse/internal/domain/repository"
	"CropPulse/internal/handler/api"
	mid "CropPulse/internal/middleware"
	internalrepo "CropPulse/internal/repository"
	"CropPulse/internal/service/agmarknet"
	"CropPulse/internal/service/enam"
	"CropPulse/internal/service/notify"
	"CropPulse/internal/service/openweather"
	"CropPulse/internal/service/ratelimit"
	"CropPulse/internal/usecase"
	"CropPulse/pkg/cache"
	pkgch "CropPulse/pkg/clickhouse"
	"CropPulse/pkg/config"
	pkgkafka "CropPulse/pkg/kafka"
	applogger "CropPulse/pkg/logger"
	"CropPulse/pkg/metrics"
	"CropPulse/pkg/queue"
	"CropPulse/pkg/server"
)

const defaultSourceTimeout = 15 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// schema. Returns nil for the memory store profile.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Store.Backend != "clickhouse" {
		return nil, nil
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.crop_prices (
			commodity String,
			variety String,
			grade String,
			market String,
			state String,
			min_price Decimal(10, 2),
			max_price Decimal(10, 2),
			modal_price Decimal(10, 2),
			price_unit String,
			arrival_date Date,
			source String,
			observed_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(observed_at)
		ORDER BY (commodity, market, arrival_date, source)`, db),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvidePriceStore creates the configured price store backend.
func ProvidePriceStore(cfg *config.Config, chClient *pkgch.Client) (repository.PriceStore, error) {
	priority := cfg.SourcePriority()
	if cfg.Store.Backend == "memory" {
		return internalrepo.NewMemoryPriceStore(priority), nil
	}
	if chClient == nil {
		return nil, fmt.Errorf("clickhouse store selected but no client configured")
	}
	store := internalrepo.NewClickHousePriceStore(chClient.DB(), cfg.ClickHouse.Database+".crop_prices", priority)
	if err := store.Init(context.Background()); err != nil {
		return nil, fmt.Errorf("price store init: %w", err)
	}
	return store, nil
}

// ProvideRuleRegistry creates the alert rule registry.
func ProvideRuleRegistry() repository.RuleRegistry {
	return internalrepo.NewMemoryRuleRegistry()
}

// ProvideCacheService picks the cache backend: redis when enabled,
// otherwise in-process memory.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		// Hot keys are served from the in-process layer in front of redis.
		return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize)), nil
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
}

// ProvideReadThrough fronts the cache service with category TTLs.
func ProvideReadThrough(svc cache.Service, cfg *config.Config, m repository.Metrics) *cache.ReadThrough {
	return cache.NewReadThrough(svc,
		cache.WithCategoryTTL(cache.CategoryPrices, cfg.Cache.PricesTTL),
		cache.WithCategoryTTL(cache.CategoryWeather, cfg.Cache.WeatherTTL),
		cache.WithCategoryTTL(cache.CategorySchemes, cfg.Cache.SchemesTTL),
		cache.WithObserver(m.RecordCache),
	)
}

// ProvideKafkaProducer creates a Kafka producer for the alerting topic.
// Nil unless the kafka alerting backend is selected.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Alerting.Backend != "kafka" {
		return nil, nil
	}
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

// ProvideAlertQueueClient creates the redis client shared by the alert
// queue publisher and consumer. Nil unless the redis alerting backend is
// selected.
func ProvideAlertQueueClient(cfg *config.Config) *redis.Client {
	if cfg.Alerting.Backend != "redis" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideDispatcher selects the notification backend.
func ProvideDispatcher(cfg *config.Config, producer *pkgkafka.Producer, alertClient *redis.Client, l *applogger.Logger, m repository.Metrics) (repository.Dispatcher, error) {
	switch cfg.Alerting.Backend {
	case "kafka":
		if producer == nil {
			return nil, fmt.Errorf("kafka alerting backend needs a producer")
		}
		return internalrepo.NewKafkaDispatcher(producer, cfg.Alerting.Topic, m), nil
	case "redis":
		pub := queue.NewRedisPublisher(l, alertClient)
		// Repeated error logs aggregate through the same queue.
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "logs.aggregated",
			Publisher:      pub,
		})
		return internalrepo.NewQueueDispatcher(pub, m), nil
	default:
		return internalrepo.NewLogDispatcher(l, m), nil
	}
}

// ProvideNotifyQueue creates the delivery-side consumer for fired alerts.
// Nil unless the redis alerting backend is selected.
func ProvideNotifyQueue(alertClient *redis.Client, l *applogger.Logger, m repository.Metrics) *queue.RedisQueue {
	if alertClient == nil {
		return nil
	}
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, alertClient, []queue.Job{notify.NewDeliveryJob(l, m)})
}

// ProvideSnowflakeNode creates the event id generator.
func ProvideSnowflakeNode(cfg *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.Alerting.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.Alerting.NodeID, err)
	}
	return node, nil
}

// ProvideNormalizer creates the observation normalizer with the configured
// source priority.
func ProvideNormalizer(cfg *config.Config, l *applogger.Logger, m repository.Metrics) *usecase.Normalizer {
	return usecase.NewNormalizer(cfg.SourcePriority(), l, m)
}

// ProvideEvaluator creates the alert evaluator.
func ProvideEvaluator(
	registry repository.RuleRegistry,
	store repository.PriceStore,
	dispatcher repository.Dispatcher,
	m repository.Metrics,
	l *applogger.Logger,
	node *snowflake.Node,
) *usecase.Evaluator {
	return usecase.NewEvaluator(registry, store, dispatcher, m, l, node)
}

// ProvideIngestor creates the ingest boundary.
func ProvideIngestor(
	normalizer *usecase.Normalizer,
	store repository.PriceStore,
	rt *cache.ReadThrough,
	evaluator *usecase.Evaluator,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Ingestor {
	return usecase.NewIngestor(normalizer, store, rt, evaluator, m, l)
}

// ProvideIngestPipeline buffers batches in front of the ingestor.
func ProvideIngestPipeline(ingestor *usecase.Ingestor, m repository.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(ingestor, m,
		mid.WithMaxRPS(10),
		mid.WithBufferSize(512),
	)
}

// ProvidePriceReader creates the read boundary.
func ProvidePriceReader(store repository.PriceStore, rt *cache.ReadThrough, m repository.Metrics, l *applogger.Logger) *usecase.PriceReader {
	return usecase.NewPriceReader(store, rt, m, l)
}

// ProvideWeatherReader creates the weather read boundary.
func ProvideWeatherReader(cfg *config.Config, rt *cache.ReadThrough) *usecase.WeatherReader {
	timeout := cfg.Weather.Timeout
	if timeout == 0 {
		timeout = defaultSourceTimeout
	}
	provider := openweather.New(cfg.Weather.BaseURL, cfg.Weather.APIKey, timeout)
	return usecase.NewWeatherReader(provider, rt)
}

// ProvideRateLimiter creates the shared token-bucket limiter.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideSourcePolls builds one poll binding per configured source.
func ProvideSourcePolls(cfg *config.Config) ([]usecase.SourcePoll, error) {
	polls := make([]usecase.SourcePoll, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		timeout := sc.Timeout
		if timeout == 0 {
			timeout = defaultSourceTimeout
		}
		var client repository.SourceClient
		switch sc.Name {
		case agmarknet.SourceName:
			client = agmarknet.New(sc.BaseURL, sc.APIKey, sc.State, timeout)
		case enam.SourceName:
			client = enam.New(sc.BaseURL, sc.APIKey, sc.State, timeout)
		default:
			return nil, fmt.Errorf("unknown source %q", sc.Name)
		}
		interval := sc.PollInterval
		if interval == 0 {
			interval = time.Hour
		}
		rate := sc.RateLimit
		if rate == 0 {
			rate = 1
		}
		polls = append(polls, usecase.SourcePoll{
			Client:       client,
			Interval:     interval,
			RatePerSec:   rate,
			BurstCredits: 2,
		})
	}
	return polls, nil
}

// ProvideCollector creates the source poller.
func ProvideCollector(
	polls []usecase.SourcePoll,
	pipe *mid.IngestPipeline,
	limiter *ratelimit.Limiter,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Collector {
	return usecase.NewCollector(polls, pipe, limiter, m, l)
}

// ProvideKafkaConsumer creates a consumer for the observations topic.
// Nil when the consumer is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
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

// ProvideObservationsHandler registers the ingest topic handler.
func ProvideObservationsHandler(cfg *config.Config, pipe *mid.IngestPipeline) *usecase.KafkaObservationsHandler {
	return usecase.NewKafkaObservationsHandler(cfg.Kafka.Topic, pipe)
}

// ProvideRouter composes the HTTP surfaces.
func ProvideRouter(
	l *applogger.Logger,
	ingestor *usecase.Ingestor,
	prices *usecase.PriceReader,
	weather *usecase.WeatherReader,
	registry repository.RuleRegistry,
	store repository.PriceStore,
) *api.Router {
	market := api.NewMarketHandler(l, ingestor, prices, weather)
	alerts := api.NewAlertsHandler(l, registry)
	return api.NewRouter(market, alerts, store)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	router *api.Router,
	collector *usecase.Collector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaObservationsHandler,
	chClient *pkgch.Client,
	store repository.PriceStore,
	dispatcher repository.Dispatcher,
	notifyQueue *queue.RedisQueue,
	m repository.Metrics,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(consumeMetricsHook(m))
	}
	return server.New(cfg, l, router, collector, consumer, kh, chClient, store, dispatcher, notifyQueue)
}

// consumeMetricsHook times message handling and counts consume failures.
func consumeMetricsHook(m repository.Metrics) pkgkafka.HookFuncs {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			return pkgkafka.WithStartTime(ctx, time.Now()), km, data, nil
		},
		After: func(ctx context.Context, _ string, _ kafkago.Message, _ []byte, err error) {
			if start, ok := pkgkafka.StartTime(ctx); ok {
				m.RecordLatency("kafka_consume", time.Since(start).Seconds())
			}
		},
		Err: func(_ context.Context, _ string, _ kafkago.Message, _ []byte, _ error) {
			m.RecordError("kafka_consume")
		},
	}
}
