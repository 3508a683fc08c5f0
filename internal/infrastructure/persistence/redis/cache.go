// Package redis implements the report cache on Redis.
//
// Reports are stored as JSON under keys that start with the period
// ("hafalan:report:Mei/2025:..."), so a write to one month drops only
// that month's reports.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/almuhajirin/hafalan-hub/internal/application/query"
	"github.com/almuhajirin/hafalan-hub/internal/application/report"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address in "host:port" format.
	Addr string

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// TTL is how long a report stays cached.
	TTL time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		TTL:          TTLReport,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS, KEYS, TTLs
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheConnection is returned when Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when serialization/deserialization fails.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")

	// ErrCacheNilValue is returned when attempting to cache a nil value.
	ErrCacheNilValue = errors.New("cache: value cannot be nil")
)

// PrefixReport namespaces report keys.
const PrefixReport = "hafalan:report:"

// TTLReport is the default report TTL.
const TTLReport = 15 * time.Minute

// scanBatch bounds SCAN pages and DEL batches.
const scanBatch = 100

// ReportKey builds the Redis key of a report.
func ReportKey(key string) string {
	return PrefixReport + key
}

// PeriodPattern matches every report of one period, e.g. "Mei/2025".
func PeriodPattern(period string) string {
	return PrefixReport + period + ":*"
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache implements query.ReportCache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ query.ReportCache = (*Cache)(nil)

// NewCache connects to Redis and verifies the connection.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().DialTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return NewCacheFromClient(client, cfg.TTL), nil
}

// NewCacheFromClient wraps an existing client.
func NewCacheFromClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = TTLReport
	}
	return &Cache{client: client, ttl: ttl}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetReport returns a cached report or query.ErrCacheMiss.
func (c *Cache) GetReport(ctx context.Context, key string) (*report.Report, error) {
	if key == "" {
		return nil, ErrCacheKeyEmpty
	}
	data, err := c.client.Get(ctx, ReportKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, query.ErrCacheMiss
		}
		return nil, err
	}
	return decodeReport(data)
}

// SetReport stores a report with the configured TTL.
func (c *Cache) SetReport(ctx context.Context, key string, rep *report.Report) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	data, err := encodeReport(rep)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ReportKey(key), data, c.ttl).Err()
}

// InvalidatePeriod drops every report of one period.
func (c *Cache) InvalidatePeriod(ctx context.Context, period string) error {
	if period == "" {
		return ErrCacheKeyEmpty
	}
	return c.deleteByPattern(ctx, PeriodPattern(period))
}

// InvalidateAll drops every cached report.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	return c.deleteByPattern(ctx, PrefixReport+"*")
}

// deleteByPattern deletes keys in SCAN pages.
func (c *Cache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	keys := make([]string, 0, scanBatch)

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatch {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

func encodeReport(rep *report.Report) ([]byte, error) {
	if rep == nil {
		return nil, ErrCacheNilValue
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return data, nil
}

func decodeReport(data []byte) (*report.Report, error) {
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return &rep, nil
}
