package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/funnel-api/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Warehouse WarehouseConfig
	Auth      AuthConfig
	ApiKey    ApiKeyConfig
	Storage   StorageConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Analytics AnalyticsConfig
	Jobs      JobsConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// WarehouseConfig holds configuration for the MS SQL Server reporting warehouse
// that mirrors the lead stage ledger. This connection is optional and read-only
type WarehouseConfig struct {
	// Enabled controls whether the warehouse connection is attempted
	Enabled bool
	// URL is the connection URL in format host:port/database (from WAREHOUSE-URL secret)
	URL string
	// User is the database username (from WAREHOUSE-USERNAME secret)
	User string
	// Password is the database password (from WAREHOUSE-PASSWORD secret)
	Password string
	// LedgerTable is the fully qualified table holding mirrored stage transitions
	LedgerTable     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
	QueryTimeout    int // seconds
}

// AuthConfig configures bearer token verification.
// HS256 tokens are verified with JWTSecret, RS256 tokens against JWKSURL.
type AuthConfig struct {
	JWTSecret string
	JWKSURL   string
	Issuer    string
	Audience  string
}

type ApiKeyConfig struct {
	SecretName string
	Value      string // Loaded from secrets or environment
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
	MaxUploadSizeMB       int64
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	// "auto" uses environment in development, vault in staging/production
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins for CORS requests
	// Use "*" to allow all origins (not recommended for production)
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
	ContentSecurityPolicy string
	// FrameOptions sets the X-Frame-Options header (DENY, SAMEORIGIN, or empty to disable)
	FrameOptions       string
	ContentTypeNosniff bool
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the default rate limit for unauthenticated requests (per IP)
	RequestsPerMinute int
	// RequestsPerMinuteAuth is the rate limit for authenticated requests (per user)
	RequestsPerMinuteAuth int
	WhitelistIPs          []string
	WhitelistPaths        []string
}

// CacheConfig controls the analytics read cache.
// Mode is "redis", "memory" or "none".
type CacheConfig struct {
	Mode       string
	RedisURL   string
	KeyPrefix  string
	SummaryTTL int // seconds
	StageTTL   int // seconds
}

// AnalyticsConfig tunes the funnel aggregation engine
type AnalyticsConfig struct {
	// QueryTimeout bounds one summary computation (seconds)
	QueryTimeout int
	// DefaultRange is the window preset used when a request names none
	DefaultRange string
	// LedgerSource selects where stage transitions are read from: "database" or "warehouse"
	LedgerSource       string
	ReconcileTolerance float64
	Bottleneck         BottleneckConfig
	Heatmap            HeatmapConfig
}

// BottleneckConfig holds the deployment-tunable severity thresholds
type BottleneckConfig struct {
	HighHours     float64
	MediumHours   float64
	MinSampleSize int
}

// HeatmapConfig holds heatmap bucketing options
type HeatmapConfig struct {
	// Source is "stage_entries" or "activities"
	Source   string
	Timezone string
	// Policy is "tertile" or "fixed"; LowMax and MediumMax apply to "fixed"
	Policy    string
	LowMax    int
	MediumMax int
}

// JobsConfig configures background jobs
type JobsConfig struct {
	CacheWarmEnabled bool
	CacheWarmCron    string
	Timeout          int // seconds
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (w *WarehouseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(w.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (w *WarehouseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(w.QueryTimeout) * time.Second
}

func (c *CacheConfig) SummaryTTLDuration() time.Duration {
	return time.Duration(c.SummaryTTL) * time.Second
}

func (c *CacheConfig) StageTTLDuration() time.Duration {
	return time.Duration(c.StageTTL) * time.Second
}

// QueryTimeoutDuration returns the aggregation timeout as duration
func (a *AnalyticsConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(a.QueryTimeout) * time.Second
}

func (j *JobsConfig) TimeoutDuration() time.Duration {
	return time.Duration(j.Timeout) * time.Second
}

// Validate checks the analytics settings that cannot be corrected at request time
func (a *AnalyticsConfig) Validate() error {
	if a.QueryTimeout <= 0 {
		return fmt.Errorf("analytics.queryTimeout must be positive, got %d", a.QueryTimeout)
	}
	if a.Bottleneck.MediumHours < 0 || a.Bottleneck.HighHours < a.Bottleneck.MediumHours {
		return fmt.Errorf("analytics.bottleneck thresholds must satisfy highHours >= mediumHours >= 0 (high=%v, medium=%v)",
			a.Bottleneck.HighHours, a.Bottleneck.MediumHours)
	}
	switch a.LedgerSource {
	case "database", "warehouse":
	default:
		return fmt.Errorf("analytics.ledgerSource must be database or warehouse, got %q", a.LedgerSource)
	}
	switch a.Heatmap.Source {
	case "stage_entries", "activities":
	default:
		return fmt.Errorf("analytics.heatmap.source must be stage_entries or activities, got %q", a.Heatmap.Source)
	}
	switch a.Heatmap.Policy {
	case "tertile":
	case "fixed":
		if a.Heatmap.LowMax < 1 || a.Heatmap.MediumMax < a.Heatmap.LowMax {
			return fmt.Errorf("analytics.heatmap fixed policy requires 1 <= lowMax <= mediumMax")
		}
	default:
		return fmt.Errorf("analytics.heatmap.policy must be tertile or fixed, got %q", a.Heatmap.Policy)
	}
	if _, err := time.LoadLocation(a.Heatmap.Timezone); err != nil {
		return fmt.Errorf("analytics.heatmap.timezone: %w", err)
	}
	return nil
}

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.ApiKey.Value == "" {
		cfg.ApiKey.Value = v.GetString("ADMIN_API_KEY")
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Cache.RedisURL == "" {
		cfg.Cache.RedisURL = v.GetString("REDIS_URL")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("WAREHOUSE_ENABLED") {
		cfg.Warehouse.Enabled = true
	}

	if err := cfg.Analytics.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analytics config: %w", err)
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
//
// Key Vault is used when USE_AZURE_KEY_VAULT=true and the environment is staging or production.
// Warehouse credentials are always read from Key Vault when the warehouse is enabled and a
// vault name is configured.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if cfg.Warehouse.Enabled && cfg.Secrets.KeyVaultName != "" {
		if err := loadWarehouseSecrets(ctx, cfg, logger); err != nil {
			// The warehouse is optional; analytics falls back to the primary database
			logger.Warn("Failed to load warehouse secrets from Key Vault",
				zap.Error(err),
				zap.String("environment", cfg.App.Environment),
			)
		}
	}

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	logger.Info("Azure Key Vault enabled for secrets",
		zap.String("environment", cfg.App.Environment),
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider (USE_AZURE_KEY_VAULT=true requires valid vault): %w", err)
	}
	if !provider.IsVaultEnabled() {
		return nil, fmt.Errorf("vault provider not enabled despite USE_AZURE_KEY_VAULT=true")
	}

	resolveSecrets(ctx, provider, cfg, logger)

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

// secretSource is the subset of the secrets provider used while resolving config
type secretSource interface {
	GetSecretOrEnv(ctx context.Context, secretName, envKey string) (string, error)
}

func resolveSecrets(ctx context.Context, provider secretSource, cfg *Config, logger *zap.Logger) {
	set := func(dst *string, secretName, envKey string) {
		val, err := provider.GetSecretOrEnv(ctx, secretName, envKey)
		if err != nil {
			logger.Debug("Secret not resolved", zap.String("secret", secretName), zap.Error(err))
			return
		}
		if val != "" {
			*dst = val
		}
	}

	set(&cfg.Database.Host, "POSTGRES-MAIN-HOST", "DATABASE_HOST")
	set(&cfg.Database.User, "POSTGRES-MAIN-USER", "DATABASE_USER")
	set(&cfg.Database.Password, "POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD")
	set(&cfg.Auth.JWTSecret, "funnel-jwt-secret", "JWT_SECRET")
	set(&cfg.ApiKey.Value, "admin-api-key", "ADMIN_API_KEY")
	set(&cfg.Storage.CloudConnectionString, "storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING")
	set(&cfg.Cache.RedisURL, "redis-url", "REDIS_URL")

	// Database name and SSL mode vary per environment and never live in the vault
	if defaultDB := os.Getenv("DEFAULT_DATABASE"); defaultDB != "" {
		cfg.Database.Name = defaultDB
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}
}

// loadWarehouseSecrets loads warehouse credentials from Azure Key Vault only
func loadWarehouseSecrets(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	logger.Info("Loading warehouse secrets from Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client for warehouse: %w", err)
	}

	for name, dst := range map[string]*string{
		"WAREHOUSE-URL":      &cfg.Warehouse.URL,
		"WAREHOUSE-USERNAME": &cfg.Warehouse.User,
		"WAREHOUSE-PASSWORD": &cfg.Warehouse.Password,
	} {
		val, err := provider.GetSecret(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to get %s from Key Vault: %w", name, err)
		}
		*dst = val
	}

	logger.Info("Warehouse credentials loaded from Key Vault successfully")
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Straye Funnel API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "funnel")
	v.SetDefault("database.user", "funnel_user")
	v.SetDefault("database.password", "funnel_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)

	v.SetDefault("warehouse.enabled", false)
	v.SetDefault("warehouse.ledgerTable", "dbo.lead_stage_history")
	v.SetDefault("warehouse.maxOpenConns", 10)
	v.SetDefault("warehouse.maxIdleConns", 2)
	v.SetDefault("warehouse.connMaxLifetime", 300)
	v.SetDefault("warehouse.queryTimeout", 30)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "stage-media")
	v.SetDefault("storage.maxUploadSizeMB", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false) // enable in production behind HTTPS
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.hstsPreload", false)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.xssProtection", "1; mode=block")
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=(), camera=()")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready"})

	v.SetDefault("cache.mode", "memory")
	v.SetDefault("cache.keyPrefix", "funnel:")
	v.SetDefault("cache.summaryTTL", 60)
	v.SetDefault("cache.stageTTL", 600)

	v.SetDefault("analytics.queryTimeout", 10)
	v.SetDefault("analytics.defaultRange", "30d")
	v.SetDefault("analytics.ledgerSource", "database")
	v.SetDefault("analytics.reconcileTolerance", 0.01)
	v.SetDefault("analytics.bottleneck.highHours", 72)
	v.SetDefault("analytics.bottleneck.mediumHours", 24)
	v.SetDefault("analytics.bottleneck.minSampleSize", 3)
	v.SetDefault("analytics.heatmap.source", "stage_entries")
	v.SetDefault("analytics.heatmap.timezone", "UTC")
	v.SetDefault("analytics.heatmap.policy", "tertile")
	v.SetDefault("analytics.heatmap.lowMax", 2)
	v.SetDefault("analytics.heatmap.mediumMax", 5)

	v.SetDefault("jobs.cacheWarmEnabled", true)
	v.SetDefault("jobs.cacheWarmCron", "0 */10 * * * *")
	v.SetDefault("jobs.timeout", 120)
}
