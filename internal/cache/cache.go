// Package cache stores computed analytics read models. Entries are JSON encoded so
// the Redis and in-process backends behave the same.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/funnel-api/internal/config"
	"go.uber.org/zap"
)

// Cache is a TTL key/value store for JSON-serializable values
type Cache interface {
	// Get decodes the entry into dest and reports whether it was found
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const (
	ModeRedis  = "redis"
	ModeMemory = "memory"
	ModeNone   = "none"
)

// New builds the backend selected by cfg.Mode. Keys are namespaced with cfg.KeyPrefix.
func New(cfg *config.CacheConfig, logger *zap.Logger) (Cache, error) {
	var (
		backend Cache
		err     error
	)
	switch strings.ToLower(cfg.Mode) {
	case ModeRedis:
		backend, err = NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
	case ModeMemory, "":
		backend = NewMemoryCache()
	case ModeNone:
		backend = NoopCache{}
	default:
		return nil, fmt.Errorf("unknown cache mode %q", cfg.Mode)
	}

	logger.Info("analytics cache initialized", zap.String("mode", cfg.Mode), zap.String("prefix", cfg.KeyPrefix))
	if cfg.KeyPrefix == "" {
		return backend, nil
	}
	return &prefixed{prefix: cfg.KeyPrefix, next: backend}, nil
}

type prefixed struct {
	prefix string
	next   Cache
}

func (p *prefixed) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return p.next.Get(ctx, p.prefix+key, dest)
}

func (p *prefixed) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return p.next.Set(ctx, p.prefix+key, value, ttl)
}

func (p *prefixed) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = p.prefix + k
	}
	return p.next.Delete(ctx, full...)
}

func (p *prefixed) Close() error {
	return p.next.Close()
}

// Ping checks a networked backend. In-process backends always succeed.
func Ping(ctx context.Context, c Cache) error {
	if p, ok := c.(*prefixed); ok {
		c = p.next
	}
	if pinger, ok := c.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, interface{}) (bool, error) {
	return false, nil
}

func (NoopCache) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}

func (NoopCache) Delete(context.Context, ...string) error {
	return nil
}

func (NoopCache) Close() error {
	return nil
}
