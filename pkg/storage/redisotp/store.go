package redisotp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/otp"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

const (
	backend = "redis"

	// DefaultRetention is how long a code key outlives its expiry
	DefaultRetention = time.Hour

	codePrefix   = "otp:code:"
	latestPrefix = "otp:latest:"
)

type record struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Value     string     `json:"value"`
	Action    otp.Action `json:"action"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func toRecord(c *otp.Code) record {
	return record{ID: c.ID, Email: c.Email, Value: c.Value, Action: c.Action, CreatedAt: c.CreatedAt, ExpiresAt: c.ExpiresAt}
}

func (r record) code() *otp.Code {
	return &otp.Code{ID: r.ID, Email: r.Email, Value: r.Value, Action: r.Action, CreatedAt: r.CreatedAt, ExpiresAt: r.ExpiresAt}
}

// Store is an otp.Store on Redis
type Store struct {
	client    redis.UniversalClient
	retention time.Duration
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewStore creates a Redis code store
func NewStore(client redis.UniversalClient, metrics *observability.Metrics) *Store {
	return &Store{
		client:    client,
		retention: DefaultRetention,
		metrics:   metrics,
		now:       time.Now,
	}
}

var _ otp.Store = (*Store)(nil)

// NewClient builds a client from storage settings and pings it
func NewClient(ctx context.Context, cfg storage.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB > 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisMaxRetries > 0 {
		opts.MaxRetries = cfg.RedisMaxRetries
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func codeKey(value string) string {
	return codePrefix + value
}

func latestKey(email string, action otp.Action) string {
	return latestPrefix + email + ":" + string(action)
}

func (s *Store) ttl(expiresAt time.Time) time.Duration {
	ttl := expiresAt.Sub(s.now()) + s.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *Store) record(op string, start time.Time, err error) {
	s.metrics.RecordStorageOperation(op, backend, start, err)
}

// InsertUnique claims the code value with SETNX, then points the pair at it
func (s *Store) InsertUnique(ctx context.Context, c *otp.Code) (ok bool, err error) {
	defer func(start time.Time) { s.record("insert_code", start, err) }(time.Now())

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	data, err := json.Marshal(toRecord(c))
	if err != nil {
		return false, fmt.Errorf("failed to encode code: %w", err)
	}

	ttl := s.ttl(c.ExpiresAt)
	ok, err = s.client.SetNX(ctx, codeKey(c.Value), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err = s.client.Set(ctx, latestKey(c.Email, c.Action), c.Value, ttl).Err(); err != nil {
		s.client.Del(ctx, codeKey(c.Value))
		return false, fmt.Errorf("redis set failed: %w", err)
	}
	return true, nil
}

func (s *Store) load(ctx context.Context, value string) (*record, error) {
	_, r, err := s.loadRaw(ctx, value)
	return r, err
}

// loadRaw returns the stored bytes of a code alongside the decoded record
func (s *Store) loadRaw(ctx context.Context, value string) (string, *record, error) {
	data, err := s.client.Get(ctx, codeKey(value)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, otp.ErrCodeNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("redis get failed: %w", err)
	}
	var r record
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		// drop corrupt entries
		s.client.Del(ctx, codeKey(value))
		return "", nil, otp.ErrCodeNotFound
	}
	return data, &r, nil
}

func (s *Store) Latest(ctx context.Context, email string, action otp.Action) (c *otp.Code, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, otp.ErrCodeNotFound) {
			s.record("latest_code", start, nil)
			return
		}
		s.record("latest_code", start, err)
	}()

	value, err := s.client.Get(ctx, latestKey(email, action)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, otp.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	r, err := s.load(ctx, value)
	if err != nil {
		return nil, err
	}
	if r.Email != email || r.Action != action {
		return nil, otp.ErrCodeNotFound
	}
	return r.code(), nil
}

// deleteScript removes a code key only while it still holds the expected
// bytes, then drops the latest pointer when it names the same value. It
// returns 1 when the code was removed by this call.
var deleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("DEL", KEYS[1])
if redis.call("GET", KEYS[2]) == ARGV[2] then
	redis.call("DEL", KEYS[2])
end
return 1
`)

// Delete removes c when the stored value still belongs to it. Of several
// concurrent calls for the same code exactly one reports true.
func (s *Store) Delete(ctx context.Context, c *otp.Code) (deleted bool, err error) {
	defer func(start time.Time) { s.record("delete_code", start, err) }(time.Now())

	raw, r, err := s.loadRaw(ctx, c.Value)
	if errors.Is(err, otp.ErrCodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if r.ID != c.ID {
		return false, nil
	}
	return s.compareAndDelete(ctx, raw, r)
}

func (s *Store) compareAndDelete(ctx context.Context, raw string, r *record) (bool, error) {
	keys := []string{codeKey(r.Value), latestKey(r.Email, r.Action)}
	n, err := deleteScript.Run(ctx, s.client, keys, raw, r.Value).Int64()
	if err != nil {
		return false, fmt.Errorf("redis delete failed: %w", err)
	}
	return n == 1, nil
}

func (s *Store) DeleteForEmailAction(ctx context.Context, email string, action otp.Action) (err error) {
	defer func(start time.Time) { s.record("delete_codes_for_email", start, err) }(time.Now())

	lk := latestKey(email, action)
	value, err := s.client.Get(ctx, lk).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err = s.client.Del(ctx, codeKey(value), lk).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// DeleteExpired scans code keys and removes those expired at now
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (n int64, err error) {
	defer func(start time.Time) { s.record("delete_expired_codes", start, err) }(time.Now())

	iter := s.client.Scan(ctx, 0, codePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		value := iter.Val()[len(codePrefix):]
		raw, r, err := s.loadRaw(ctx, value)
		if errors.Is(err, otp.ErrCodeNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		if !r.code().Expired(now) {
			continue
		}
		deleted, err := s.compareAndDelete(ctx, raw, r)
		if err != nil {
			return n, err
		}
		if deleted {
			n++
		}
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("redis scan failed: %w", err)
	}
	return n, nil
}
