// --- File: alertservice/config/config_test.go ---
package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hermesbot/go-alert-service/alertservice/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ListenAddr: ":8080",
			Vapid: config.VapidConfig{
				PublicKey:  "base-pub",
				PrivateKey: "base-priv",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("VAPID_PUBLIC_KEY", "env-pub")
		t.Setenv("VAPID_PRIVATE_KEY", "env-priv")
		t.Setenv("VAPID_SUB_EMAIL", "env@test.com")
		t.Setenv("REGISTRY_BACKEND", "SQLite")
		t.Setenv("UPDATES_DRAIN_MODE", "clear")
		t.Setenv("UPDATES_GRACE_DELAY", "5s")
		t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.com , ,http://b.com")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.NotNil(t, finalCfg.PubsubConsumerConfig)
		assert.True(t, finalCfg.PipelineEnabled())

		assert.Equal(t, "env-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, "env-priv", finalCfg.Vapid.PrivateKey)
		assert.Equal(t, "env@test.com", finalCfg.Vapid.SubscriberEmail)

		assert.Equal(t, config.RegistrySQLite, finalCfg.Registry.Backend)
		assert.Equal(t, config.DrainClear, finalCfg.Updates.DrainMode)
		assert.Equal(t, 5*time.Second, finalCfg.Updates.GraceDelay)
		assert.Equal(t, []string{"http://a.com", "http://b.com"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults applied", func(t *testing.T) {
		finalCfg, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		require.NoError(t, err)

		assert.Equal(t, "base-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, config.RegistryFile, finalCfg.Registry.Backend)
		assert.Equal(t, "subscriptions.json", finalCfg.Registry.FilePath)
		assert.Equal(t, config.UpdatesMemory, finalCfg.Updates.Backend)
		assert.Equal(t, config.DrainSnapshot, finalCfg.Updates.DrainMode)
		assert.Equal(t, 2*time.Second, finalCfg.Updates.GraceDelay)
		assert.Equal(t, 8, finalCfg.Dispatch.Concurrency)
		assert.False(t, finalCfg.PipelineEnabled())
	})

	t.Run("Validation Failure - Firestore without ProjectID", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Registry.Backend = config.RegistryFirestore
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Redis queue without Redis", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Updates.Backend = config.UpdatesRedis
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Unknown drain mode", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Updates.DrainMode = "whenever"
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Bad grace delay", func(t *testing.T) {
		t.Setenv("UPDATES_GRACE_DELAY", "soon")
		_, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		assert.Error(t, err)
	})
}
