// --- File: alertservice/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Registry backends.
const (
	RegistryFile      = "file"
	RegistrySQLite    = "sqlite"
	RegistryFirestore = "firestore"
)

// Update queue backends.
const (
	UpdatesMemory = "memory"
	UpdatesRedis  = "redis"
)

// Drain modes for the polling boundary.
const (
	DrainSnapshot = "snapshot"
	DrainClear    = "clear"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type VapidConfig struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
}

type RegistryConfig struct {
	Backend             string
	FilePath            string
	SQLitePath          string
	FirestoreCollection string
	CacheEnabled        bool
	CacheTTL            time.Duration
}

type UpdatesConfig struct {
	Backend    string
	DrainMode  string
	GraceDelay time.Duration
	KeyPrefix  string
}

type DispatchConfig struct {
	Title        string
	URL          string
	Tag          string
	Concurrency  int
	SendTimeout  time.Duration
	TTL          int
	PruneExpired bool
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Vapid      VapidConfig
	Registry   RegistryConfig
	Updates    UpdatesConfig
	Dispatch   DispatchConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// PipelineEnabled reports whether events are also consumed from Pub/Sub.
func (c *Config) PipelineEnabled() bool {
	return c.SubscriptionID != ""
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "TOPIC_ID", "source", "env")
		cfg.TopicID = val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// VAPID Overrides
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PUBLIC_KEY", "source", "env")
		cfg.Vapid.PublicKey = val
	}
	if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PRIVATE_KEY", "source", "env")
		cfg.Vapid.PrivateKey = val
	}
	if val := os.Getenv("VAPID_SUB_EMAIL"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_SUB_EMAIL", "source", "env")
		cfg.Vapid.SubscriberEmail = val
	}

	// Registry Overrides
	if val := os.Getenv("REGISTRY_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "REGISTRY_BACKEND", "source", "env")
		cfg.Registry.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("REGISTRY_FILE"); val != "" {
		cfg.Registry.FilePath = val
	}
	if val := os.Getenv("REGISTRY_SQLITE_PATH"); val != "" {
		cfg.Registry.SQLitePath = val
	}

	// Update queue Overrides
	if val := os.Getenv("UPDATES_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "UPDATES_BACKEND", "source", "env")
		cfg.Updates.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("UPDATES_DRAIN_MODE"); val != "" {
		logger.Debug("Overriding config value", "key", "UPDATES_DRAIN_MODE", "source", "env")
		cfg.Updates.DrainMode = strings.ToLower(val)
	}
	if val := os.Getenv("UPDATES_GRACE_DELAY"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid UPDATES_GRACE_DELAY %q: %w", val, err)
		}
		cfg.Updates.GraceDelay = d
	}

	// Dispatch Overrides
	if val := os.Getenv("DISPATCH_PRUNE_EXPIRED"); val != "" {
		prune, _ := strconv.ParseBool(val)
		cfg.Dispatch.PruneExpired = prune
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Registry.Backend == "" {
		cfg.Registry.Backend = RegistryFile
	}
	if cfg.Registry.FilePath == "" {
		cfg.Registry.FilePath = "subscriptions.json"
	}
	if cfg.Registry.SQLitePath == "" {
		cfg.Registry.SQLitePath = "subscriptions.db"
	}
	if cfg.Registry.FirestoreCollection == "" {
		cfg.Registry.FirestoreCollection = "push_subscriptions"
	}
	if cfg.Registry.CacheTTL <= 0 {
		cfg.Registry.CacheTTL = 10 * time.Minute
	}
	if cfg.Updates.Backend == "" {
		cfg.Updates.Backend = UpdatesMemory
	}
	if cfg.Updates.DrainMode == "" {
		cfg.Updates.DrainMode = DrainSnapshot
	}
	if cfg.Updates.GraceDelay <= 0 {
		cfg.Updates.GraceDelay = 2 * time.Second
	}
	if cfg.Updates.KeyPrefix == "" {
		cfg.Updates.KeyPrefix = "hermes:updates"
	}
	if cfg.Dispatch.Concurrency <= 0 {
		cfg.Dispatch.Concurrency = 8
	}
	if cfg.Dispatch.SendTimeout <= 0 {
		cfg.Dispatch.SendTimeout = 10 * time.Second
	}
	if cfg.Dispatch.TTL <= 0 {
		cfg.Dispatch.TTL = 60
	}

	// 3. Final Validation
	switch cfg.Registry.Backend {
	case RegistryFile, RegistrySQLite, RegistryFirestore:
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
	switch cfg.Updates.Backend {
	case UpdatesMemory, UpdatesRedis:
	default:
		return nil, fmt.Errorf("unknown updates backend %q", cfg.Updates.Backend)
	}
	switch cfg.Updates.DrainMode {
	case DrainSnapshot, DrainClear:
	default:
		return nil, fmt.Errorf("unknown drain mode %q", cfg.Updates.DrainMode)
	}
	if cfg.ProjectID == "" && (cfg.Registry.Backend == RegistryFirestore || cfg.PipelineEnabled()) {
		return nil, fmt.Errorf("project_id is required for firestore or pub/sub (set via YAML or PROJECT_ID env var)")
	}
	if !cfg.Redis.Enabled && (cfg.Updates.Backend == UpdatesRedis || cfg.Registry.CacheEnabled) {
		return nil, fmt.Errorf("redis must be enabled for the redis update queue or the registry cache")
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
