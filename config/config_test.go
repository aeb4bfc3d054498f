package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DOCGEN_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.Database.InMemory())
	assert.True(t, cfg.DocGen.StubEnabled())
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "console", cfg.Observability.LogFormat)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTTL)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_ProductionRequirements(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DOCGEN_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORAGE_BACKEND", "memory")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"DATABASE_URL", "DOCGEN_URL", "JWT_SECRET", "STORAGE_BACKEND=memory"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoad_ProductionValid(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://app@db/coursehub")
	t.Setenv("DOCGEN_URL", "http://docgen:8090")
	t.Setenv("DOCGEN_CONVERTER", "exec")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_BACKEND", "gcs")
	t.Setenv("STORAGE_GCS_BUCKET", "coursehub-docs")
	t.Setenv("HTTP_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.Observability.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad env", func(c *Config) { c.App.Environment = "qa" }, "APP_ENV"},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "HTTP_PORT"},
		{"bcrypt cost", func(c *Config) { c.Auth.BcryptCost = 2 }, "BCRYPT_COST"},
		{"half admin", func(c *Config) { c.Auth.AdminUsername = "root" }, "ADMIN_USERNAME"},
		{"gcs bucket", func(c *Config) { c.Storage.Backend = "gcs" }, "STORAGE_GCS_BUCKET"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "s3" }, "STORAGE_BACKEND"},
		{"converter url", func(c *Config) {
			c.DocGen.BaseURL = "http://docgen"
			c.DocGen.Converter = "http"
		}, "DOCGEN_CONVERTER_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "abc")
	t.Setenv("CFG_TEST_DUR", "90s")
	t.Setenv("CFG_TEST_BOOL", "yes")

	assert.Equal(t, 7, getEnvInt("CFG_TEST_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("CFG_TEST_DUR", time.Second))
	assert.True(t, getEnvBool("CFG_TEST_BOOL", true))
	assert.Equal(t, "fallback", getEnv("CFG_TEST_MISSING", "fallback"))
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_CHAT_RELAY", "false")
	t.Setenv("FEATURE_STATISTICS_CACHE", "50")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureChatRelay, nil))
	assert.True(t, ff.IsEnabled(FeatureChatRelay, &FeatureContext{IsAdmin: true}))
	assert.False(t, ff.IsEnabled(FeatureClosedRegistration, nil))
	assert.True(t, ff.IsEnabled(FeatureStatisticsCache, nil))
	assert.False(t, ff.IsEnabled("unknown.feature", nil))

	user := &FeatureContext{UserID: "7c9e6679-7425-40de-944b-e07fc1f90ae7"}
	first := ff.IsEnabled(FeatureStatisticsCache, user)
	assert.Equal(t, first, ff.IsEnabled(FeatureStatisticsCache, user))

	ff.SetUserOverride(user.UserID, FeatureChatRelay, true)
	assert.True(t, ff.IsEnabled(FeatureChatRelay, user))

	require.NoError(t, ff.EnableFeature(FeatureClosedRegistration))
	assert.True(t, ff.IsEnabled(FeatureClosedRegistration, nil))
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureChatRelay, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.DisableFeature("nope"), ErrFeatureNotFound)
	assert.Equal(t, []string{FeatureClosedRegistration, FeatureChatRelay, FeatureStatisticsCache}, ff.Names())
}
