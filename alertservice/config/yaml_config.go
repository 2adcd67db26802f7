// --- File: alertservice/config/yaml_config.go ---
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlVapidConfig struct {
	PublicKey       string `yaml:"public_key"`
	PrivateKey      string `yaml:"private_key"`
	SubscriberEmail string `yaml:"subscriber_email"`
}

type YamlRegistryConfig struct {
	Backend             string `yaml:"backend"`
	FilePath            string `yaml:"file_path"`
	SQLitePath          string `yaml:"sqlite_path"`
	FirestoreCollection string `yaml:"firestore_collection"`
	Cache               bool   `yaml:"cache"`
	CacheTTL            string `yaml:"cache_ttl"`
}

type YamlUpdatesConfig struct {
	Backend    string `yaml:"backend"`
	DrainMode  string `yaml:"drain_mode"`
	GraceDelay string `yaml:"grace_delay"`
	KeyPrefix  string `yaml:"key_prefix"`
}

type YamlDispatchConfig struct {
	Title        string `yaml:"title"`
	URL          string `yaml:"url"`
	Tag          string `yaml:"tag"`
	Concurrency  int    `yaml:"concurrency"`
	SendTimeout  string `yaml:"send_timeout"`
	TTL          int    `yaml:"ttl"`
	PruneExpired bool   `yaml:"prune_expired"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string             `yaml:"project_id"`
	ListenAddr             string             `yaml:"listen_addr"`
	TopicID                string             `yaml:"topic_id"`
	SubscriptionID         string             `yaml:"subscription_id"`
	SubscriptionDLQTopicID string             `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                `yaml:"num_pipeline_workers"`
	CorsConfig             YamlCorsConfig     `yaml:"cors"`
	RedisConfig            YamlRedisConfig    `yaml:"redis"`
	VapidConfig            YamlVapidConfig    `yaml:"vapid"`
	RegistryConfig         YamlRegistryConfig `yaml:"registry"`
	UpdatesConfig          YamlUpdatesConfig  `yaml:"updates"`
	DispatchConfig         YamlDispatchConfig `yaml:"dispatch"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cacheTTL, err := parseOptionalDuration("registry.cache_ttl", baseCfg.RegistryConfig.CacheTTL)
	if err != nil {
		return nil, err
	}
	grace, err := parseOptionalDuration("updates.grace_delay", baseCfg.UpdatesConfig.GraceDelay)
	if err != nil {
		return nil, err
	}
	sendTimeout, err := parseOptionalDuration("dispatch.send_timeout", baseCfg.DispatchConfig.SendTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Vapid: VapidConfig{
			PublicKey:       baseCfg.VapidConfig.PublicKey,
			PrivateKey:      baseCfg.VapidConfig.PrivateKey,
			SubscriberEmail: baseCfg.VapidConfig.SubscriberEmail,
		},
		Registry: RegistryConfig{
			Backend:             baseCfg.RegistryConfig.Backend,
			FilePath:            baseCfg.RegistryConfig.FilePath,
			SQLitePath:          baseCfg.RegistryConfig.SQLitePath,
			FirestoreCollection: baseCfg.RegistryConfig.FirestoreCollection,
			CacheEnabled:        baseCfg.RegistryConfig.Cache,
			CacheTTL:            cacheTTL,
		},
		Updates: UpdatesConfig{
			Backend:    baseCfg.UpdatesConfig.Backend,
			DrainMode:  baseCfg.UpdatesConfig.DrainMode,
			GraceDelay: grace,
			KeyPrefix:  baseCfg.UpdatesConfig.KeyPrefix,
		},
		Dispatch: DispatchConfig{
			Title:        baseCfg.DispatchConfig.Title,
			URL:          baseCfg.DispatchConfig.URL,
			Tag:          baseCfg.DispatchConfig.Tag,
			Concurrency:  baseCfg.DispatchConfig.Concurrency,
			SendTimeout:  sendTimeout,
			TTL:          baseCfg.DispatchConfig.TTL,
			PruneExpired: baseCfg.DispatchConfig.PruneExpired,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"registry_backend", cfg.Registry.Backend,
		"updates_backend", cfg.Updates.Backend,
	)

	return cfg, nil
}

func parseOptionalDuration(key, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}
