package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// HTTP API
	HTTP HTTPConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Authentication
	Auth AuthConfig

	// Document service (contracts, certificates)
	DocGen DocGenConfig

	// Generated document storage
	Storage StorageConfig

	// Module chat
	Chat ChatConfig

	// Background jobs
	Scheduler SchedulerConfig

	// Feature Flags
	Features *FeatureFlags

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RequestTimeout     time.Duration
	MaxBodyBytes       int64
	EnableCORS         bool
	AllowedOrigins     []string
	RateLimitPerMinute int
}

// DatabaseConfig holds PostgreSQL settings. An empty URL selects the
// in-memory store, which is only allowed outside production.
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
	AutoMigrate     bool
}

// InMemory reports whether no database is configured.
func (d DatabaseConfig) InMemory() bool {
	return d.URL == ""
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// StatisticsTTL is how long platform counters stay cached.
	StatisticsTTL time.Duration

	// Disabled switches the event bus, chat relay and statistics cache to
	// their in-process variants.
	Disabled bool
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	JWTSecret  string
	JWTIssuer  string
	AccessTTL  time.Duration
	BcryptCost int

	// Bootstrap admin, created at startup when both are set.
	AdminUsername string
	AdminPassword string
}

// DocGenConfig configures the document render and conversion services.
type DocGenConfig struct {
	// BaseURL of the render service. Empty selects the built-in stub.
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// TemplatesPath points at a YAML template registry; empty uses the built-in one.
	TemplatesPath string

	// Converter is "http" or "exec".
	Converter        string
	ConverterURL     string
	ConverterBinary  string
	ConverterTimeout time.Duration
}

// StubEnabled reports whether documents are rendered by the in-process stub.
func (d DocGenConfig) StubEnabled() bool {
	return d.BaseURL == ""
}

// StorageConfig configures where generated documents are kept.
type StorageConfig struct {
	// Backend is "local", "gcs" or "memory".
	Backend            string
	LocalDir           string
	PublicBaseURL      string
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string
	GCSEmulatorHost    string
}

// ChatConfig configures module chat delivery.
type ChatConfig struct {
	// RelayPrefix is prepended to group keys to form Redis channels.
	RelayPrefix string
	// LocalBuffer sizes per-subscriber buffers of the in-process relay.
	LocalBuffer int
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled            bool
	RedeliveryInterval time.Duration
	RedeliveryBatch    int
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	env := Environment(getEnv("APP_ENV", string(EnvDevelopment)))

	cfg := &Config{
		App:           loadAppConfig(env),
		HTTP:          loadHTTPConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		DocGen:        loadDocGenConfig(),
		Storage:       loadStorageConfig(),
		Chat:          loadChatConfig(),
		Scheduler:     loadSchedulerConfig(),
		Features:      LoadFeatureFlags(),
		Observability: loadObservabilityConfig(env),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAppConfig(env Environment) AppConfig {
	return AppConfig{
		Name:            getEnv("APP_NAME", "coursehub"),
		Environment:     env,
		Debug:           getEnvBool("APP_DEBUG", env == EnvDevelopment),
		Version:         getEnv("APP_VERSION", "dev"),
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:               getEnv("HTTP_HOST", "0.0.0.0"),
		Port:               getEnvInt("HTTP_PORT", 8080),
		ReadTimeout:        getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:        getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		RequestTimeout:     getEnvDuration("HTTP_REQUEST_TIMEOUT", 25*time.Second),
		MaxBodyBytes:       int64(getEnvInt("HTTP_MAX_BODY_BYTES", 1<<20)),
		EnableCORS:         getEnvBool("HTTP_ENABLE_CORS", false),
		AllowedOrigins:     getEnvStringSlice("HTTP_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("HTTP_RATE_LIMIT_PER_MINUTE", 300),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		MaxConns:        getEnvInt("DB_MAX_CONNS", 20),
		MinConns:        getEnvInt("DB_MIN_CONNS", 2),
		MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:          getEnv("REDIS_HOST", "localhost"),
		Port:          getEnvInt("REDIS_PORT", 6379),
		Password:      getEnv("REDIS_PASSWORD", ""),
		DB:            getEnvInt("REDIS_DB", 0),
		PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		StatisticsTTL: getEnvDuration("STATISTICS_CACHE_TTL", time.Minute),
		Disabled:      getEnvBool("REDIS_DISABLED", false),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTIssuer:     getEnv("JWT_ISSUER", "coursehub"),
		AccessTTL:     getEnvDuration("JWT_ACCESS_TTL", 24*time.Hour),
		BcryptCost:    getEnvInt("BCRYPT_COST", 10),
		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

func loadDocGenConfig() DocGenConfig {
	return DocGenConfig{
		BaseURL:          getEnv("DOCGEN_URL", ""),
		APIKey:           getEnv("DOCGEN_API_KEY", ""),
		Timeout:          getEnvDuration("DOCGEN_TIMEOUT", 20*time.Second),
		TemplatesPath:    getEnv("DOCGEN_TEMPLATES", ""),
		Converter:        strings.ToLower(getEnv("DOCGEN_CONVERTER", "http")),
		ConverterURL:     getEnv("DOCGEN_CONVERTER_URL", ""),
		ConverterBinary:  getEnv("DOCGEN_CONVERTER_BINARY", "soffice"),
		ConverterTimeout: getEnvDuration("DOCGEN_CONVERTER_TIMEOUT", 60*time.Second),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Backend:            strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		LocalDir:           getEnv("STORAGE_LOCAL_DIR", "./media"),
		PublicBaseURL:      getEnv("STORAGE_PUBLIC_URL", ""),
		GCSBucket:          getEnv("STORAGE_GCS_BUCKET", ""),
		GCSPrefix:          getEnv("STORAGE_GCS_PREFIX", "documents/"),
		GCSCredentialsFile: getEnv("STORAGE_GCS_CREDENTIALS", ""),
		GCSEmulatorHost:    getEnv("STORAGE_EMULATOR_HOST", ""),
	}
}

func loadChatConfig() ChatConfig {
	return ChatConfig{
		RelayPrefix: getEnv("CHAT_RELAY_PREFIX", "coursehub:chat:"),
		LocalBuffer: getEnvInt("CHAT_LOCAL_BUFFER", 32),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:            getEnvBool("SCHEDULER_ENABLED", true),
		RedeliveryInterval: getEnvDuration("SCHEDULER_REDELIVERY_INTERVAL", time.Minute),
		RedeliveryBatch:    getEnvInt("SCHEDULER_REDELIVERY_BATCH", 100),
	}
}

func loadObservabilityConfig(env Environment) ObservabilityConfig {
	format := "json"
	if env == EnvDevelopment {
		format = "console"
	}
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", format),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV %q is not one of development, staging, production", c.App.Environment))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT must be 1-65535, got %d", c.HTTP.Port))
	}

	if c.Auth.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.Auth.AccessTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL must be positive"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be 4-31, got %d", c.Auth.BcryptCost))
	}
	if (c.Auth.AdminUsername == "") != (c.Auth.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together"))
	}

	if c.IsProduction() {
		if c.Database.InMemory() {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if c.DocGen.StubEnabled() {
			errs = append(errs, errors.New("DOCGEN_URL is required in production"))
		}
		if c.Storage.Backend == "memory" {
			errs = append(errs, errors.New("STORAGE_BACKEND=memory is not allowed in production"))
		}
	}

	if !c.DocGen.StubEnabled() {
		switch c.DocGen.Converter {
		case "http":
			if c.DocGen.ConverterURL == "" {
				errs = append(errs, errors.New("DOCGEN_CONVERTER_URL is required for the http converter"))
			}
		case "exec":
		default:
			errs = append(errs, fmt.Errorf("DOCGEN_CONVERTER %q must be http or exec", c.DocGen.Converter))
		}
	}

	if c.Scheduler.Enabled && c.Scheduler.RedeliveryInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_REDELIVERY_INTERVAL must be positive"))
	}

	switch c.Storage.Backend {
	case "local", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			errs = append(errs, errors.New("STORAGE_GCS_BUCKET is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND %q must be local, gcs or memory", c.Storage.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// Addr returns the listen address of the HTTP server.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
