package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/jobportal/pkg/identity"
	"github.com/platinummonkey/jobportal/pkg/mailer"
	"github.com/platinummonkey/jobportal/pkg/middleware"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage"
	"github.com/platinummonkey/jobportal/pkg/upload"
)

const (
	// EnvPrefix prefixes every environment variable read by LoadConfig
	EnvPrefix = "JOBPORTAL_"

	// MinSessionSecretLength is the shortest accepted signing secret
	MinSessionSecretLength = 32
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Mail          mailer.SMTPConfig   `yaml:"mail"`
	OTP           OTPConfig           `yaml:"otp"`
	Upload        upload.Config       `yaml:"upload"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Purge         PurgeConfig         `yaml:"purge"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig holds session and identity provider settings
type AuthConfig struct {
	SessionSecret string                `yaml:"session_secret"`
	SessionIssuer string                `yaml:"session_issuer"`
	Google        identity.GoogleConfig `yaml:"google"`
}

// GoogleEnabled reports whether Google sign-in is configured
func (a AuthConfig) GoogleEnabled() bool {
	return a.Google.ClientID != ""
}

// OTPConfig tunes one-time code delivery
type OTPConfig struct {
	AsyncDelivery   bool          `yaml:"async_delivery"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	OutboxWorkers   int           `yaml:"outbox_workers"`
	OutboxQueue     int           `yaml:"outbox_queue"`
}

// RateLimitConfig holds request limits
type RateLimitConfig struct {
	Enabled bool                       `yaml:"enabled"`
	OTP     middleware.RateLimitConfig `yaml:"otp"`
	API     middleware.RateLimitConfig `yaml:"api"`
}

// PurgeConfig schedules the expired code sweep
type PurgeConfig struct {
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string                   `yaml:"log_level"`
	MetricsEnabled bool                     `yaml:"metrics_enabled"`
	OTel           observability.OTelConfig `yaml:"otel"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			SessionIssuer: "jobportal",
		},
		Mail: mailer.SMTPConfig{
			Port:     587,
			StartTLS: true,
		},
		OTP: OTPConfig{
			DeliveryTimeout: 10 * time.Second,
			OutboxWorkers:   4,
			OutboxQueue:     256,
		},
		Upload: upload.DefaultConfig(),
		RateLimit: RateLimitConfig{
			Enabled: true,
			OTP:     *middleware.OTPRateLimitConfig(),
			API:     *middleware.DefaultRateLimitConfig(),
		},
		Purge: PurgeConfig{
			Schedule: "@every 10m",
			Timeout:  time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:       "localhost:4317",
				ServiceName:    "jobportal",
				ServiceVersion: "1.0.0",
				Insecure:       true,
			},
		},
	}
}

// LoadConfig builds configuration from defaults, an optional YAML file named by
// JOBPORTAL_CONFIG_FILE and the environment, in that order. A .env file, or the
// file named by JOBPORTAL_ENV_FILE, is loaded first without overriding variables
// already set.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(os.Getenv(EnvPrefix + "ENV_FILE")); err != nil {
		return nil, err
	}

	cfg := Default()
	if path := os.Getenv(EnvPrefix + "CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

// LoadFile overlays the YAML file at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("HOST", s.Host)
	s.Port = getEnv("PORT", s.Port)
	s.ReadTimeout = getEnvDuration("READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.CORSOrigins = getEnvList("CORS_ORIGINS", s.CORSOrigins)

	st := &c.Storage
	st.Type = getEnv("STORAGE_TYPE", st.Type)
	st.PostgresURL = getEnv("POSTGRES_URL", st.PostgresURL)
	st.PostgresMaxConns = getEnvInt("POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.PostgresConnMaxLifetime = getEnvDuration("POSTGRES_CONN_MAX_LIFETIME", st.PostgresConnMaxLifetime)
	st.AutoMigrate = getEnvBool("AUTO_MIGRATE", st.AutoMigrate)
	st.RedisURL = getEnv("REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("REDIS_POOL_SIZE", st.RedisPoolSize)
	st.S3Endpoint = getEnv("S3_ENDPOINT", st.S3Endpoint)
	st.S3Region = getEnv("S3_REGION", st.S3Region)
	st.S3Bucket = getEnv("S3_BUCKET", st.S3Bucket)
	st.S3AccessKey = getEnv("S3_ACCESS_KEY", st.S3AccessKey)
	st.S3SecretKey = getEnv("S3_SECRET_KEY", st.S3SecretKey)
	st.S3UsePathStyle = getEnvBool("S3_USE_PATH_STYLE", st.S3UsePathStyle)
	st.S3PublicBaseURL = getEnv("S3_PUBLIC_BASE_URL", st.S3PublicBaseURL)
	st.PresignTTL = getEnvDuration("S3_PRESIGN_TTL", st.PresignTTL)
	st.LocalBlobRoot = getEnv("UPLOAD_DIR", st.LocalBlobRoot)
	st.LocalBlobBaseURL = getEnv("UPLOAD_BASE_URL", st.LocalBlobBaseURL)
	st.UserCacheSize = getEnvInt("USER_CACHE_SIZE", st.UserCacheSize)
	st.UserCacheTTL = getEnvDuration("USER_CACHE_TTL", st.UserCacheTTL)

	a := &c.Auth
	a.SessionSecret = getEnv("SESSION_SECRET", a.SessionSecret)
	a.SessionIssuer = getEnv("SESSION_ISSUER", a.SessionIssuer)
	a.Google.ClientID = getEnv("GOOGLE_CLIENT_ID", a.Google.ClientID)
	a.Google.ClientSecret = getEnv("GOOGLE_CLIENT_SECRET", a.Google.ClientSecret)
	a.Google.RedirectURL = getEnv("GOOGLE_REDIRECT_URL", a.Google.RedirectURL)
	a.Google.IssuerURL = getEnv("GOOGLE_ISSUER_URL", a.Google.IssuerURL)

	m := &c.Mail
	m.Host = getEnv("SMTP_HOST", m.Host)
	m.Port = getEnvInt("SMTP_PORT", m.Port)
	m.Username = getEnv("SMTP_USERNAME", m.Username)
	m.Password = getEnv("SMTP_PASSWORD", m.Password)
	m.From = getEnv("SMTP_FROM", m.From)
	m.StartTLS = getEnvBool("SMTP_STARTTLS", m.StartTLS)

	o := &c.OTP
	o.AsyncDelivery = getEnvBool("OTP_ASYNC_DELIVERY", o.AsyncDelivery)
	o.DeliveryTimeout = getEnvDuration("OTP_DELIVERY_TIMEOUT", o.DeliveryTimeout)
	o.OutboxWorkers = getEnvInt("OTP_OUTBOX_WORKERS", o.OutboxWorkers)
	o.OutboxQueue = getEnvInt("OTP_OUTBOX_QUEUE", o.OutboxQueue)

	u := &c.Upload
	u.MaxFileSize = getEnvInt64("UPLOAD_MAX_FILE_SIZE", u.MaxFileSize)
	u.MaxFiles = getEnvInt("UPLOAD_MAX_FILES", u.MaxFiles)
	u.MaxMemory = getEnvInt64("UPLOAD_MAX_MEMORY", u.MaxMemory)
	u.Workers = getEnvInt("UPLOAD_WORKERS", u.Workers)

	r := &c.RateLimit
	r.Enabled = getEnvBool("RATE_LIMIT_ENABLED", r.Enabled)
	r.OTP.RequestsPerWindow = getEnvInt("OTP_RATE_LIMIT", r.OTP.RequestsPerWindow)
	r.OTP.WindowDuration = getEnvDuration("OTP_RATE_WINDOW", r.OTP.WindowDuration)
	r.OTP.BurstSize = getEnvInt("OTP_RATE_BURST", r.OTP.BurstSize)
	r.API.RequestsPerWindow = getEnvInt("API_RATE_LIMIT", r.API.RequestsPerWindow)
	r.API.WindowDuration = getEnvDuration("API_RATE_WINDOW", r.API.WindowDuration)
	r.API.BurstSize = getEnvInt("API_RATE_BURST", r.API.BurstSize)

	c.Purge.Schedule = getEnv("PURGE_SCHEDULE", c.Purge.Schedule)
	c.Purge.Timeout = getEnvDuration("PURGE_TIMEOUT", c.Purge.Timeout)

	ob := &c.Observability
	ob.LogLevel = getEnv("LOG_LEVEL", ob.LogLevel)
	ob.MetricsEnabled = getEnvBool("METRICS_ENABLED", ob.MetricsEnabled)
	ob.OTel.Enabled = getEnvBool("OTEL_ENABLED", ob.OTel.Enabled)
	ob.OTel.Endpoint = getEnv("OTEL_ENDPOINT", ob.OTel.Endpoint)
	ob.OTel.ServiceName = getEnv("OTEL_SERVICE_NAME", ob.OTel.ServiceName)
	ob.OTel.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", ob.OTel.ServiceVersion)
	ob.OTel.Insecure = getEnvBool("OTEL_INSECURE", ob.OTel.Insecure)
	ob.OTel.SampleRatio = getEnvFloat("OTEL_SAMPLE_RATIO", ob.OTel.SampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be %s or %s)", c.Storage.Type, storage.TypeMemory, storage.TypePostgres)
	}
	if c.Storage.S3Bucket == "" && c.Storage.LocalBlobRoot == "" {
		return fmt.Errorf("either an S3 bucket or a local upload directory is required")
	}

	if len(c.Auth.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("session secret must be at least %d characters", MinSessionSecretLength)
	}

	if c.Mail.Host != "" && c.Mail.From == "" {
		return fmt.Errorf("mail sender address is required when an SMTP host is set")
	}

	if c.OTP.AsyncDelivery && c.OTP.OutboxWorkers <= 0 {
		return fmt.Errorf("async delivery needs at least one outbox worker")
	}

	if c.Upload.MaxFileSize <= 0 || c.Upload.MaxFiles <= 0 {
		return fmt.Errorf("upload limits must be positive")
	}

	if c.RateLimit.Enabled {
		for name, rl := range map[string]middleware.RateLimitConfig{"otp": c.RateLimit.OTP, "api": c.RateLimit.API} {
			if rl.RequestsPerWindow <= 0 || rl.WindowDuration <= 0 {
				return fmt.Errorf("%s rate limit needs a positive limit and window", name)
			}
		}
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns the prefixed environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(EnvPrefix + key))
	switch value {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
