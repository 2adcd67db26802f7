// --- File: cmd/alertservice/runalertservice.go ---
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/hermesbot/go-alert-service/internal/fanout"
	"github.com/hermesbot/go-alert-service/internal/platform/web"
	"github.com/hermesbot/go-alert-service/internal/updates"

	"github.com/hermesbot/go-alert-service/internal/storage/cache"
	"github.com/hermesbot/go-alert-service/internal/storage/file"
	fsStore "github.com/hermesbot/go-alert-service/internal/storage/firestore"
	"github.com/hermesbot/go-alert-service/internal/storage/sqlite"
	"github.com/hermesbot/go-alert-service/pkg/dispatch"

	"github.com/hermesbot/go-alert-service/alertservice"
	"github.com/hermesbot/go-alert-service/alertservice/config"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-alert-service")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config mapping failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Redis (shared by the registry cache and the update queue) ---
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		logger.Info("Connecting to Redis...", "addr", cfg.Redis.Addr)
		redisClient, err = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	// --- Subscription Registry (Decorated) ---
	registry, closeRegistry, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Error("Registry initialization failed", "backend", cfg.Registry.Backend, "err", err)
		os.Exit(1)
	}
	defer closeRegistry()
	logger.Info("Registry initialized", "type", cfg.Registry.Backend)

	if cfg.Registry.CacheEnabled {
		registry = cache.NewCachedRegistry(registry, redisClient, cfg.Registry.CacheTTL, logger)
		logger.Info("Registry upgraded", "type", "redis_cached_"+cfg.Registry.Backend)
	}

	// --- Update Queue ---
	var queue dispatch.UpdateQueue
	switch cfg.Updates.Backend {
	case config.UpdatesRedis:
		queue = updates.NewRedisQueue(redisClient.Client(), cfg.Updates.KeyPrefix)
	default:
		queue = updates.NewMemoryQueue()
	}
	poller := updates.NewPoller(queue, updates.DrainMode(cfg.Updates.DrainMode), cfg.Updates.GraceDelay, logger)
	logger.Info("Update queue initialized", "type", cfg.Updates.Backend, "drain_mode", cfg.Updates.DrainMode, "grace", cfg.Updates.GraceDelay)

	// --- Dispatcher (VAPID) ---
	if cfg.Vapid.PrivateKey == "" || cfg.Vapid.PublicKey == "" {
		logger.Warn("VAPID keys missing in configuration. Web Push will fail.")
	} else {
		logger.Info("Web Push enabled", "public_key", cfg.Vapid.PublicKey)
	}
	pusher := web.NewPusher(cfg.Vapid, cfg.Dispatch.TTL, logger)
	dispatcher := fanout.NewDispatcher(registry, pusher, fanout.Options{
		Title:        cfg.Dispatch.Title,
		URL:          cfg.Dispatch.URL,
		Tag:          cfg.Dispatch.Tag,
		Concurrency:  cfg.Dispatch.Concurrency,
		SendTimeout:  cfg.Dispatch.SendTimeout,
		PruneExpired: cfg.Dispatch.PruneExpired,
	}, logger)

	// --- Consumer (optional) ---
	var consumer messagepipeline.MessageConsumer
	if cfg.PipelineEnabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub client failed", "err", err)
			os.Exit(1)
		}
		defer psClient.Close()

		consumer, err = newIngestionConsumer(ctx, cfg, psClient, logger)
		if err != nil {
			logger.Error("Consumer creation failed", "err", err)
			os.Exit(1)
		}
	} else {
		logger.Info("No subscription configured; Pub/Sub ingestion disabled")
	}

	// --- Service ---
	service, err := alertservice.New(cfg, consumer, registry, dispatcher, poller, pusher.PublicKey(), logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "err", err)
		}
	}
}

func newRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dispatch.Registry, func(), error) {
	switch cfg.Registry.Backend {
	case config.RegistrySQLite:
		db, err := sqlite.Open(cfg.Registry.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewRegistry(db), func() { _ = db.Close() }, nil

	case config.RegistryFirestore:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		return fsStore.NewRegistry(fsClient, cfg.Registry.FirestoreCollection), func() { _ = fsClient.Close() }, nil

	default:
		return file.NewRegistry(cfg.Registry.FilePath, logger), func() {}, nil
	}
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	subConfig, consumerCfg := ingestionConfig(cfg)

	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", subConfig.Name)
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(consumerCfg, psClient, logger)
}

// ingestionConfig builds the subscription to ensure and the consumer settings
// that read from it. The consumer keeps the tuning from cfg.PubsubConsumerConfig
// but addresses the subscription by its fully-qualified name.
func ingestionConfig(cfg *config.Config) (*pubsubpb.Subscription, *messagepipeline.GooglePubsubConsumerConfig) {
	base := cfg.PubsubConsumerConfig
	if base == nil {
		base = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	subConfig := &pubsubpb.Subscription{
		Name:               convertPubsub(cfg.ProjectID, base.SubscriptionID, "subscriptions"),
		Topic:              convertPubsub(cfg.ProjectID, cfg.TopicID, "topics"),
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: durationpb.New(2 * time.Second),
			MaximumBackoff: durationpb.New(60 * time.Second),
		},
		EnableMessageOrdering: false,
	}
	if cfg.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
			MaxDeliveryAttempts: 5,
		}
	}

	consumerCfg := *base
	consumerCfg.SubscriptionID = subConfig.Name
	return subConfig, &consumerCfg
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
