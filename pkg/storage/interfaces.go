package storage

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("record already exists")
	// ErrMissingReference is returned when a write names a related record
	// that does not exist. It matches ErrNotFound as well.
	ErrMissingReference = fmt.Errorf("%w: referenced record missing", ErrNotFound)
)

const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page bounds a list query
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Config for storage backends
type Config struct {
	Type string `yaml:"type"` // "memory" or "postgres"

	// PostgreSQL config
	PostgresURL             string        `yaml:"postgres_url"`
	PostgresMaxConns        int           `yaml:"postgres_max_conns"`
	PostgresMinConns        int           `yaml:"postgres_min_conns"`
	PostgresTimeout         time.Duration `yaml:"postgres_timeout"`
	PostgresConnMaxLifetime time.Duration `yaml:"postgres_conn_max_lifetime"`
	AutoMigrate             bool          `yaml:"auto_migrate"`

	// Redis config. When RedisURL is set one-time codes and rate limits live in Redis.
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// S3-compatible blob storage. An empty bucket selects the local directory store.
	S3Endpoint      string        `yaml:"s3_endpoint"`
	S3Region        string        `yaml:"s3_region"`
	S3Bucket        string        `yaml:"s3_bucket"`
	S3AccessKey     string        `yaml:"s3_access_key"`
	S3SecretKey     string        `yaml:"s3_secret_key"`
	S3UsePathStyle  bool          `yaml:"s3_use_path_style"`
	S3PublicBaseURL string        `yaml:"s3_public_base_url"`
	PresignTTL      time.Duration `yaml:"presign_ttl"`

	// Local blob directory used when no bucket is configured
	LocalBlobRoot    string `yaml:"local_blob_root"`
	LocalBlobBaseURL string `yaml:"local_blob_base_url"`

	// User lookup cache used by authorization. Each replica holds its own
	// cache, so a deactivation made elsewhere is seen after at most the TTL.
	UserCacheSize int           `yaml:"user_cache_size"`
	UserCacheTTL  time.Duration `yaml:"user_cache_ttl"`
}

// SharedUserCacheTTL caps the user cache TTL once Redis is configured,
// which is how replicated deployments share state.
const SharedUserCacheTTL = 5 * time.Second

// EffectiveUserCacheTTL is the user cache TTL to run with. Replicated
// deployments cannot invalidate each other's caches, so the configured TTL
// is capped at SharedUserCacheTTL when Redis is set.
func (c Config) EffectiveUserCacheTTL() time.Duration {
	if c.RedisURL != "" && c.UserCacheTTL > SharedUserCacheTTL {
		return SharedUserCacheTTL
	}
	return c.UserCacheTTL
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:                    TypeMemory,
		PostgresMaxConns:        20,
		PostgresMinConns:        2,
		PostgresTimeout:         10 * time.Second,
		PostgresConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:             true,
		RedisMaxRetries:         3,
		RedisPoolSize:           10,
		S3Region:                "us-east-1",
		PresignTTL:              24 * time.Hour,
		LocalBlobRoot:           "/tmp/jobportal/uploads",
		LocalBlobBaseURL:        "/uploads",
		UserCacheSize:           1024,
		UserCacheTTL:            30 * time.Second,
	}
}
