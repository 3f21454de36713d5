package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	goredis "github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"gentree/application/commands/bus"
	"gentree/application/commands/handlers"
	"gentree/application/ports"
	"gentree/application/services"
	"gentree/infrastructure/config"
	"gentree/infrastructure/messaging"
	badgerstore "gentree/infrastructure/persistence/badger"
	dynamostore "gentree/infrastructure/persistence/dynamodb"
	filestore "gentree/infrastructure/persistence/file"
	"gentree/infrastructure/persistence/instrumented"
	"gentree/infrastructure/persistence/memory"
	redisstore "gentree/infrastructure/persistence/redis"
	"gentree/infrastructure/persistence/resilient"
	sqlitestore "gentree/infrastructure/persistence/sqlite"
	"gentree/infrastructure/photos"
	"gentree/pkg/auth"
	"gentree/pkg/observability"
)

const serviceName = "gentree"

// ProvideLogLevel parses the configured level into an atomic level the
// config watcher can change later.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	return zap.ParseAtomicLevel(cfg.LogLevel)
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment))

	cleanup := func() {
		_ = logger.Sync()
	}
	return logger, cleanup, nil
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector(serviceName)
}

// ProvideTracer returns a tracer exporting to an OTLP collector when
// OTLPEndpoint is set, to stderr otherwise, and a no-op tracer when tracing
// is disabled.
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.Tracer, func(), error) {
	if !cfg.EnableTracing {
		return observability.NewTracer(serviceName, nil), func() {}, nil
	}

	var (
		provider *sdktrace.TracerProvider
		err      error
	)
	if cfg.OTLPEndpoint != "" {
		provider, err = observability.NewOTLPProvider(ctx, serviceName, observability.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Insecure: cfg.OTLPInsecure,
		})
	} else {
		provider, err = observability.NewStdoutProvider(serviceName, os.Stderr)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	logger.Info("Tracing enabled", zap.String("otlpEndpoint", cfg.OTLPEndpoint))
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}
	return observability.NewTracer(serviceName, provider), cleanup, nil
}

// ProvideRedisClient connects to Redis when an address is configured. It is
// shared by the redis store and the event forwarder; nil means no Redis.
func ProvideRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*goredis.Client, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, func() {}, nil
	}

	rdb, err := redisstore.Dial(ctx, redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	return rdb, cleanup, nil
}

// ProvideKeyValueStore opens the configured backend and wraps it with the
// circuit breaker (when enabled) and with metrics and tracing.
func ProvideKeyValueStore(
	ctx context.Context,
	cfg *config.Config,
	rdb *goredis.Client,
	collector *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (ports.KeyValueStore, func(), error) {
	backend, err := openBackend(ctx, cfg, rdb, logger)
	if err != nil {
		return nil, nil, err
	}

	store := backend
	if cfg.EnableCircuitBreaker {
		store = resilient.NewStore(store, resilient.DefaultConfig(cfg.StorageBackend), logger)
	}
	store = instrumented.NewStore(store, cfg.StorageBackend, collector, tracer)

	logger.Info("Storage ready", zap.String("backend", cfg.StorageBackend))

	cleanup := func() {
		if c, ok := store.(ports.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("Failed to close store", zap.String("backend", cfg.StorageBackend), zap.Error(err))
			}
		}
	}
	return store, cleanup, nil
}

func openBackend(ctx context.Context, cfg *config.Config, rdb *goredis.Client, logger *zap.Logger) (ports.KeyValueStore, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return memory.NewStore(), nil

	case config.StorageFile:
		store, err := filestore.NewStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		logger.Debug("File store opened", zap.String("dir", store.Dir()))
		return store, nil

	case config.StorageBadger:
		bcfg := badgerstore.DefaultConfig()
		bcfg.Path = filepath.Join(cfg.DataDir, "badger")
		return badgerstore.Open(bcfg, logger)

	case config.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.ResolvedSQLitePath()), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		return sqlitestore.Open(cfg.ResolvedSQLitePath(), logger)

	case config.StorageRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis backend requires REDIS_ADDR")
		}
		return redisstore.New(rdb, cfg.RedisPrefix, logger), nil

	case config.StorageDynamoDB:
		client, err := ProvideDynamoDBClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return dynamostore.NewStore(client, cfg.DynamoDBTable, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// ProvideDynamoDBClient creates a DynamoDB client. DynamoDBEndpoint points
// it at DynamoDB Local or LocalStack.
func ProvideDynamoDBClient(ctx context.Context, cfg *config.Config) (*awsdynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

// ProvidePhotoStore creates the local or GCS photo store
func ProvidePhotoStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.PhotoStore, func(), error) {
	if cfg.PhotoBackend == config.PhotoGCS {
		store, err := photos.NewGCSStore(ctx, photos.GCSConfig{
			Bucket:          cfg.GCSBucket,
			Prefix:          cfg.GCSPrefix,
			CredentialsFile: cfg.GCSCredentialsFile,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close GCS client", zap.Error(err))
			}
		}
		return store, cleanup, nil
	}

	store, err := photos.NewLocalStore(cfg.PhotoDir, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

// ProvideEventBus creates the in-process event bus. Every event is logged
// and, when Redis is available, forwarded to the events channel.
func ProvideEventBus(cfg *config.Config, rdb *goredis.Client, logger *zap.Logger) (ports.EventBus, error) {
	eventBus := messaging.NewInProcessBus(logger)
	if err := eventBus.Subscribe(messaging.AllEvents, messaging.NewLoggingHandler(logger)); err != nil {
		return nil, err
	}
	if rdb != nil {
		if err := eventBus.Subscribe(messaging.AllEvents, messaging.NewRedisForwarder(rdb, cfg.EventsChannel)); err != nil {
			return nil, err
		}
	}
	return eventBus, nil
}

// ProvideSaveScheduler starts the background writer. Its cleanup writes
// whatever is still pending.
func ProvideSaveScheduler(
	ctx context.Context,
	store ports.KeyValueStore,
	cfg *config.Config,
	collector *observability.Collector,
	logger *zap.Logger,
) (*services.SaveScheduler, func()) {
	saver := services.NewSaveScheduler(store, services.SaveSchedulerConfig{
		MaxRetries:   cfg.SaveMaxRetries,
		RetryBackoff: cfg.SaveRetryBackoff,
		WriteTimeout: cfg.SaveWriteTimeout,
	}, logger)
	saver.SetMetrics(collector)
	saver.Start(ctx)
	return saver, saver.Stop
}

// ProvideTreeService creates the tree and starts loading the saved snapshot
func ProvideTreeService(
	ctx context.Context,
	store ports.KeyValueStore,
	saver *services.SaveScheduler,
	eventBus ports.EventBus,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *services.TreeService {
	tree := services.NewTreeService(store, saver, services.TreeServiceConfig{
		TreeKey:     cfg.TreeKey,
		LoadTimeout: cfg.LoadTimeout,
	}, logger,
		services.WithEventPublisher(eventBus),
		services.WithTreeMetrics(collector),
	)
	tree.Start(ctx)
	return tree
}

// ProvideViewStateService creates the viewport service and loads the stored
// viewport.
func ProvideViewStateService(
	ctx context.Context,
	store ports.KeyValueStore,
	saver *services.SaveScheduler,
	cfg *config.Config,
	logger *zap.Logger,
) *services.ViewStateService {
	views := services.NewViewStateService(store, saver, cfg.ViewStateKey, logger)
	views.Load(ctx)
	return views
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	tree *services.TreeService,
	views *services.ViewStateService,
	photoStore ports.PhotoStore,
	collector *observability.Collector,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(collector),
	)
	if err := handlers.NewTreeCommandHandler(tree, views, photoStore, logger).Register(commandBus); err != nil {
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return commandBus, nil
}

// ProvideJWTValidator returns nil when authentication is disabled
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if !cfg.EnableAuth {
		return nil, nil
	}
	return auth.NewJWTValidator(cfg.JWTSecret, cfg.JWTIssuer)
}
