package urlcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/foundation/pkg/cache"
	"github.com/dmitrymomot/foundation/pkg/logger"
	"github.com/dmitrymomot/foundation/pkg/metrics"
	"github.com/dmitrymomot/foundation/pkg/redis"
)

// Cache maps requests to cached responses on top of a cache.TieredStore.
// It is safe for concurrent use.
type Cache struct {
	store   *cache.TieredStore
	keyFunc KeyFunc
	logger  *slog.Logger
	closer  func() error
}

// New builds a cache from cfg, opening the configured backend. A redis
// backend connects using cfg.Redis unless WithRedisClient supplies a client.
// Persistent backends are restored into the disk index when cfg.Restore is set.
func New(ctx context.Context, cfg Config, opts ...Option) (*Cache, error) {
	o := newOptions(opts)

	var (
		backend cache.Backend
		closer  func() error
	)
	switch cfg.backend() {
	case BackendMemory:
		backend = cache.NewMemoryBackend()
	case BackendFile:
		fb, err := cache.NewFileBackend(cfg.DiskPath)
		if err != nil {
			return nil, err
		}
		backend = fb
	case BackendRedis:
		client := o.redisClient
		if client == nil {
			c, err := redis.Connect(ctx, cfg.Redis)
			if err != nil {
				return nil, err
			}
			client, closer = c, c.Close
		}
		backend = cache.NewRedisBackend(client, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	store, err := cache.NewTieredStore(cfg.MemoryCapacity, cfg.DiskCapacity, backend,
		cache.WithLogger(o.logger),
		cache.WithCollector(o.collector),
	)
	if err != nil {
		if closer != nil {
			_ = closer()
		}
		return nil, err
	}

	if cfg.Restore && cfg.backend() != BackendMemory {
		n, err := store.Restore(ctx)
		if err != nil {
			o.logger.LogAttrs(ctx, slog.LevelWarn, "failed to restore url cache index",
				logger.Component("urlcache"),
				logger.Error(err),
			)
		} else {
			o.logger.LogAttrs(ctx, slog.LevelInfo, "restored url cache index",
				logger.Component("urlcache"),
				logger.Count(n),
				logger.Size(store.Usage(cache.TierDisk)),
			)
		}
	}

	c := newCache(store, o)
	c.closer = closer
	return c, nil
}

// NewWithStore wraps an existing store. Logger and key options apply;
// collector and redis options are ignored because the store is already built.
func NewWithStore(store *cache.TieredStore, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	return newCache(store, newOptions(opts)), nil
}

func newCache(store *cache.TieredStore, o options) *Cache {
	return &Cache{
		store:   store,
		keyFunc: o.keyFunc,
		logger:  o.logger,
	}
}

// Key returns the cache key for req.
func (c *Cache) Key(req *http.Request) string {
	return c.keyFunc(req)
}

// CachedResponseForRequest returns the response stored for req, if any.
// An entry that cannot be decoded is removed and reported as a miss.
func (c *Cache) CachedResponseForRequest(req *http.Request) (*CachedResponse, bool) {
	ctx := req.Context()
	key := c.keyFunc(req)

	e, ok := c.store.Lookup(ctx, key)
	if !ok {
		return nil, false
	}

	resp, err := decodeResponse(e.Value)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "dropping undecodable cached response",
			logger.Component("urlcache"),
			logger.CacheKey(key),
			logger.Error(err),
		)
		c.store.Remove(ctx, key)
		return nil, false
	}
	return resp, true
}

// StoreCachedResponse saves resp for req, replacing any previous response.
// Responses with StorageNotAllowed are ignored; StorageAllowedInMemoryOnly
// keeps the response out of the disk tier.
func (c *Cache) StoreCachedResponse(resp *CachedResponse, req *http.Request) {
	if resp == nil || resp.Policy == StorageNotAllowed {
		return
	}
	ctx := req.Context()
	key := c.keyFunc(req)

	if resp.StoredAt.IsZero() {
		stamped := *resp
		stamped.StoredAt = time.Now()
		resp = &stamped
	}

	data, err := resp.encode()
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "failed to encode response",
			logger.Component("urlcache"),
			logger.CacheKey(key),
			logger.Error(err),
		)
		return
	}

	opts := []cache.StoreOption{cache.WithSize(resp.Size())}
	if resp.Policy == StorageAllowedInMemoryOnly {
		opts = append(opts, cache.MemoryOnly())
	}
	c.store.Store(ctx, key, data, opts...)
}

// RemoveCachedResponseForRequest deletes the response stored for req.
func (c *Cache) RemoveCachedResponseForRequest(req *http.Request) {
	c.store.Remove(req.Context(), c.keyFunc(req))
}

// RemoveAllCachedResponses clears both tiers.
func (c *Cache) RemoveAllCachedResponses(ctx context.Context) {
	c.store.RemoveAll(ctx)
}

func (c *Cache) MemoryCapacity() int64 {
	return c.store.Capacity(cache.TierMemory)
}

// SetMemoryCapacity changes the memory budget, demoting entries that no
// longer fit.
func (c *Cache) SetMemoryCapacity(bytes int64) error {
	return c.store.SetCapacity(context.Background(), cache.TierMemory, bytes)
}

func (c *Cache) DiskCapacity() int64 {
	return c.store.Capacity(cache.TierDisk)
}

// SetDiskCapacity changes the disk budget, discarding entries that no
// longer fit.
func (c *Cache) SetDiskCapacity(bytes int64) error {
	return c.store.SetCapacity(context.Background(), cache.TierDisk, bytes)
}

func (c *Cache) CurrentMemoryUsage() int64 {
	return c.store.Usage(cache.TierMemory)
}

func (c *Cache) CurrentDiskUsage() int64 {
	return c.store.Usage(cache.TierDisk)
}

// Close releases a redis connection opened by New. It does not clear the cache.
func (c *Cache) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

var (
	sharedMu sync.Mutex
	shared   *Cache
)

// Shared returns the process-wide cache, creating an in-memory one with the
// default capacities on first use. Code that can take a *Cache as a
// dependency should do so instead.
func Shared() *Cache {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		cfg := DefaultConfig()
		store, err := cache.NewTieredStore(cfg.MemoryCapacity, cfg.DiskCapacity, nil)
		if err != nil {
			// Only negative capacities fail, and the defaults are positive.
			panic(fmt.Sprintf("urlcache: default store: %v", err))
		}
		shared = newCache(store, newOptions(nil))
	}
	return shared
}

// SetShared replaces the process-wide cache. The previous one is not closed
// or merged. Nil resets it.
func SetShared(c *Cache) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = c
}

// Option configures New and NewWithStore.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	collector   metrics.CacheCollector
	keyFunc     KeyFunc
	redisClient goredis.UniversalClient
}

func newOptions(opts []Option) options {
	o := options{
		logger:    slog.Default(),
		collector: metrics.Noop(),
		keyFunc:   RequestKey,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCollector reports store metrics to c.
func WithCollector(c metrics.CacheCollector) Option {
	return func(o *options) {
		if c != nil {
			o.collector = c
		}
	}
}

// WithKeyFunc replaces RequestKey.
func WithKeyFunc(fn KeyFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}

// WithRedisClient uses client for the redis backend instead of connecting.
// The caller keeps ownership of the client.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(o *options) {
		o.redisClient = client
	}
}
