package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"SigFusion/internal/domain/repository"
	"SigFusion/internal/handler/api"
	mid "SigFusion/internal/middleware"
	internalrepo "SigFusion/internal/repository"
	"SigFusion/internal/service/binance"
	svccache "SigFusion/internal/service/cache"
	"SigFusion/internal/services/collect"
	"SigFusion/internal/usecase"
	pkgcache "SigFusion/pkg/cache"
	pkgch "SigFusion/pkg/clickhouse"
	"SigFusion/pkg/config"
	pkgkafka "SigFusion/pkg/kafka"
	applogger "SigFusion/pkg/logger"
	"SigFusion/pkg/metrics"
	"SigFusion/pkg/queue"
	"SigFusion/pkg/server"
)

// schemaDDL builds the full ClickHouse schema for the given database:
// raw ticks, candle rollups fed by materialized views, and the verdict log.
func schemaDDL(db string) []string {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.rt_ticks_raw (
        ts DateTime64(3),
        symbol LowCardinality(String),
        price Float64,
        volume Float64,
        source LowCardinality(String),
        event_id String,
        seq UInt64,
        org_id String
    ) ENGINE = MergeTree
    PARTITION BY toYYYYMMDD(ts)
    ORDER BY (symbol, ts)
    TTL toDateTime(ts) + INTERVAL 7 DAY`, db),
		candleTableDDL(db, "rt_candles_1s"),
		candleTableDDL(db, "rt_candles_1m"),
		candleTableDDL(db, "rt_candles_5m"),
		candleTableDDL(db, "rt_candles_1h"),
		candleMVDDL(db, "rt_candles_1s", "toStartOfSecond(ts)"),
		candleMVDDL(db, "rt_candles_1m", "toStartOfMinute(ts)"),
		candleMVDDL(db, "rt_candles_5m", "toStartOfFiveMinutes(ts)"),
		candleMVDDL(db, "rt_candles_1h", "toStartOfHour(ts)"),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.verdicts (
        ts DateTime,
        symbol LowCardinality(String),
        direction LowCardinality(String),
        score Float64,
        probability Float64,
        coverage UInt8,
        recommendation LowCardinality(String),
        cancelled UInt8,
        payload String
    ) ENGINE = MergeTree
    PARTITION BY toYYYYMM(ts)
    ORDER BY (symbol, ts)`, db),
	}
	return stmts
}

func candleTableDDL(db, table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
        bucket DateTime,
        symbol LowCardinality(String),
        open Float64,
        high Float64,
        low Float64,
        close Float64,
        vol Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, bucket)`, db, table)
}

func candleMVDDL(db, table, bucketExpr string) string {
	return fmt.Sprintf(`CREATE MATERIALIZED VIEW IF NOT EXISTS %[1]s.%[2]s_mv TO %[1]s.%[2]s AS
    SELECT
        %s AS bucket,
        symbol,
        argMin(price, ts) AS open,
        max(price) AS high,
        min(price) AS low,
        argMax(price, ts) AS close,
        sum(volume) AS vol
    FROM %[1]s.rt_ticks_raw
    GROUP BY bucket, symbol`, db, table, bucketExpr)
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
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

	if err := client.InitSchema(ctx, schemaDDL(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
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

// ProvideTickSink creates the ClickHouse tick sink.
func ProvideTickSink(chClient *pkgch.Client, cfg *config.Config) repository.TickSink {
	return internalrepo.NewClickHouseTickSink(chClient.DB(), cfg.ClickHouse.Database+".rt_ticks_raw")
}

// ProvideTickPublisher creates the Kafka tick publisher.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TickPublisher {
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.ReadingTopic)
}

// ProvideVerdictHistory creates the ClickHouse verdict store.
func ProvideVerdictHistory(chClient *pkgch.Client, cfg *config.Config) repository.VerdictHistory {
	return internalrepo.NewClickHouseVerdictHistory(chClient.DB(), cfg.ClickHouse.Database+".verdicts")
}

// ProvideVerdictPublisher creates the Kafka verdict publisher.
func ProvideVerdictPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.VerdictPublisher {
	return internalrepo.NewKafkaVerdictPublisher(producer, cfg.Kafka.VerdictTopic)
}

// ProvideFeatureStore creates the candle feature store.
func ProvideFeatureStore(chClient *pkgch.Client, l *applogger.Logger) repository.FeatureStore {
	store := internalrepo.NewCHFeatureStore(chClient)
	store.SetLogger(l)
	return store
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

// ProvideKafkaTicksHandler registers handler for the readings topic.
func ProvideKafkaTicksHandler(sink repository.TickSink, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.ReadingTopic, sink, metrics)
}

// ProvideBinanceStream creates the Binance WebSocket stream.
func ProvideBinanceStream(cfg *config.Config) repository.MarketStream {
	return binance.New(
		cfg.Stream.WebSocketURL,
		cfg.Stream.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
}

// ProvideTickProcessor creates the tick processor use case.
func ProvideTickProcessor(
	pub repository.TickPublisher,
	sink repository.TickSink,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.TickProcessor {
	return usecase.NewTickProcessor(
		pub,
		sink,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideTickCollector creates the tick collector use case.
func ProvideTickCollector(
	stream repository.MarketStream,
	processor *usecase.TickProcessor,
	metrics repository.Metrics,
) *usecase.TickCollector {
	// Build middleware pipeline between WebSocket and Kafka
	pipe := mid.NewRealtimePipeline(processor, metrics,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(stream, processor, metrics, pipe)
}

// ProvideRedisCache opens the Redis connection. A nil return with nil
// error means Redis is disabled in config.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(redisOptsFromConfig(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService builds the verdict cache: layered over Redis
// when available, memory-only otherwise.
func ProvideCacheService(rc *pkgcache.RedisCache) pkgcache.Service {
	if rc == nil {
		return pkgcache.NewMemoryCache()
	}
	return pkgcache.NewLayeredCache(rc)
}

// ProvideQueuePublisher creates the Redis queue publisher for the
// scanner's top list. Nil when Redis is disabled.
func ProvideQueuePublisher(cfg *config.Config, rc *pkgcache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	return queue.NewRedisPublisher(l, rc.Client(), queue.WithKeyPrefix(cfg.Scanner.QueueName))
}

// ProvideSources builds the collaborator clients from configured URLs.
// Empty URLs leave the matching client nil; those factors score
// neutral every round.
func ProvideSources(cfg *config.Config) usecase.Sources {
	src := cfg.Sources
	s := usecase.Sources{}
	if src.WhalesURL != "" {
		s.Whales = collect.NewWhaleClient(src.WhalesURL, src.Timeout, src.CacheTTL, src.RetryAttempts)
	}
	if src.DerivativesURL != "" {
		s.Derivatives = collect.NewDerivativesClient(src.DerivativesURL, src.Timeout, src.CacheTTL, src.RetryAttempts)
	}
	if src.SentimentURL != "" {
		s.Sentiment = collect.NewSentimentClient(src.SentimentURL, src.Timeout, src.CacheTTL, src.RetryAttempts)
	}
	if src.MacroURL != "" {
		s.Macro = collect.NewMacroClient(src.MacroURL, src.Timeout, src.CacheTTL, src.RetryAttempts)
	}
	if src.OptionsURL != "" {
		s.Options = collect.NewOptionsClient(src.OptionsURL, src.Timeout, src.CacheTTL, src.RetryAttempts)
	}
	if src.MLServiceURL != "" {
		s.ML = collect.NewMLClient(src.MLServiceURL, src.Timeout, src.RetryAttempts)
	}
	return s
}

// ProvideFusionUseCase wires the fusion pipeline.
func ProvideFusionUseCase(
	cfg *config.Config,
	store repository.FeatureStore,
	sources usecase.Sources,
	history repository.VerdictHistory,
	pub repository.VerdictPublisher,
	cacheSvc pkgcache.Service,
	metrics repository.Metrics,
	l *applogger.Logger,
) (*usecase.FusionUseCase, error) {
	return usecase.NewFusionUseCase(&cfg.Engine, store, sources, history, pub, cacheSvc, metrics, l)
}

// ProvideScanner creates the universe scanner.
func ProvideScanner(
	cfg *config.Config,
	fusion *usecase.FusionUseCase,
	pub *queue.RedisQueue,
	cacheSvc pkgcache.Service,
	l *applogger.Logger,
) *usecase.Scanner {
	return usecase.NewScanner(cfg, fusion, pub, cacheSvc, l)
}

func redisOptsFromConfig(cfg *config.Config) []pkgcache.RedisOption {
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		host, portStr = cfg.Redis.Addr, "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return []pkgcache.RedisOption{
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	}
}

// ProvideCandlesUseCase creates the candle read use case.
func ProvideCandlesUseCase(store repository.FeatureStore) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

// ProvideResponseCache builds the byte-level response cache for the
// HTTP handler: Redis-backed when available, process-local otherwise.
func ProvideResponseCache(cfg *config.Config) svccache.BytesCache {
	if cfg.Redis.Enabled {
		return svccache.NewRedisCache(svccache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return svccache.NewTTLCache()
}

// ProvideFusionHandler creates the HTTP handler.
func ProvideFusionHandler(
	l *applogger.Logger,
	fusion *usecase.FusionUseCase,
	scanner *usecase.Scanner,
	candles *usecase.CandlesUseCase,
	respCache svccache.BytesCache,
) *api.FusionEchoHandler {
	h := api.NewFusionEchoHandler(l, fusion, scanner, candles)
	h.SetCache(respCache)
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	handler *api.FusionEchoHandler,
	scanner *usecase.Scanner,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, l, collector, consumer, kh, chClient, scanner)
	app.SetHTTPHandler(handler)
	if collector != nil {
		app.TickProc = collector.Processor()
	}
	return app
}
