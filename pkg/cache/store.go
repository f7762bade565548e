package cache

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/dmitrymomot/foundation/pkg/logger"
	"github.com/dmitrymomot/foundation/pkg/metrics"
)

// TieredStore keeps entries in a memory tier and a disk tier, each bounded by
// its own byte budget and evicted in least-recently-used order. Entries evicted
// from memory are demoted to disk when they fit; entries evicted from disk are
// discarded. A key is resident in at most one tier.
//
// All methods are safe for concurrent use. Every call runs under a single
// store mutex, so eviction and admission are never observed half done.
type TieredStore struct {
	mu        sync.Mutex
	memory    *LRU[string, *Entry]
	disk      *LRU[string, *Entry]
	backend   Backend
	clock     uint64
	demoted   []*Entry // memory evictions awaiting settle
	discarded []*Entry // disk evictions awaiting settle
	logger    *slog.Logger
	collector metrics.CacheCollector
}

// NewTieredStore creates a store with the given budgets in bytes. A zero
// budget disables that tier. A nil backend keeps disk-tier payloads in memory.
func NewTieredStore(memoryCapacity, diskCapacity int64, backend Backend, opts ...Option) (*TieredStore, error) {
	if memoryCapacity < 0 || diskCapacity < 0 {
		return nil, ErrInvalidCapacity
	}
	if backend == nil {
		backend = NewMemoryBackend()
	}

	weigh := func(e *Entry) int64 { return e.Size }
	s := &TieredStore{
		memory:    NewLRU[string](memoryCapacity, weigh),
		disk:      NewLRU[string](diskCapacity, weigh),
		backend:   backend,
		logger:    slog.Default(),
		collector: metrics.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Callbacks run inside LRU calls made under s.mu.
	s.memory.SetEvictCallback(func(_ string, e *Entry) { s.demoted = append(s.demoted, e) })
	s.disk.SetEvictCallback(func(_ string, e *Entry) { s.discarded = append(s.discarded, e) })

	s.reportUsage()
	return s, nil
}

// Restore rebuilds the disk index from the records already held by the
// backend, oldest first, evicting past the disk budget. It returns the number
// of disk-tier entries afterwards.
func (s *TieredStore) Restore(ctx context.Context) (int, error) {
	records, err := s.backend.List(ctx)
	if err != nil {
		return 0, err
	}
	slices.SortStableFunc(records, func(a, b BackendRecord) int {
		return a.AccessedAt.Compare(b.AccessedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	capacity := s.disk.Capacity()
	for _, rec := range records {
		if _, ok := s.locate(rec.Key); ok {
			continue
		}
		if !fits(rec.Size, capacity) {
			s.deleteFromBackend(ctx, rec.Key)
			continue
		}
		s.clock++
		s.disk.Put(rec.Key, &Entry{
			Key:        rec.Key,
			Size:       rec.Size,
			Tier:       TierDisk,
			LastAccess: s.clock,
		})
	}
	s.settle(ctx)

	s.reportUsage()
	return s.disk.Len(), nil
}

// Lookup returns the entry for key, checking memory first. A disk hit is
// promoted into memory when it fits the memory budget. A miss has no side
// effects; an unreadable disk record is dropped from the index and reported
// as a miss.
func (s *TieredStore) Lookup(ctx context.Context, key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.memory.Get(key); ok {
		s.touch(e)
		s.collector.IncHit(TierMemory.String())
		return e.snapshot(e.Value), true
	}

	e, ok := s.disk.Get(key)
	if !ok {
		s.collector.IncMiss()
		return Entry{}, false
	}

	data, err := s.backend.Read(ctx, key)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "dropping unreadable disk entry",
			logger.Component("cache"),
			logger.CacheKey(key),
			logger.Error(err),
		)
		s.disk.Remove(key)
		s.deleteFromBackend(ctx, key)
		s.collector.IncMiss()
		s.reportUsage()
		return Entry{}, false
	}

	s.touch(e)
	s.collector.IncHit(TierDisk.String())

	if fits(e.Size, s.memory.Capacity()) {
		s.disk.Remove(key)
		s.deleteFromBackend(ctx, key)
		e.Tier = TierMemory
		e.Value = data
		s.admitMemory(ctx, e)
		s.collector.IncPromotion()
		s.reportUsage()
	}

	return e.snapshot(data), true
}

// Store saves value under key, replacing any entry the key already has.
// Values larger than the memory budget go straight to disk; values larger
// than both budgets are not stored.
func (s *TieredStore) Store(ctx context.Context, key string, value []byte, opts ...StoreOption) {
	e := &Entry{
		Key:   key,
		Value: slices.Clone(value),
		Size:  int64(len(value)),
	}
	for _, opt := range opts {
		opt(e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(ctx, key)
	s.clock++
	e.LastAccess = s.clock

	switch {
	case fits(e.Size, s.memory.Capacity()):
		e.Tier = TierMemory
		s.admitMemory(ctx, e)
	case !e.memoryOnly && s.admitDisk(ctx, e):
		s.settle(ctx)
	default:
		s.logger.LogAttrs(ctx, slog.LevelDebug, "entry exceeds cache budgets, not stored",
			logger.Component("cache"),
			logger.CacheKey(key),
			logger.Size(e.Size),
		)
	}

	s.reportUsage()
}

// Remove deletes key from whichever tier holds it. Absent keys are ignored.
func (s *TieredStore) Remove(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removeLocked(ctx, key) {
		s.reportUsage()
	}
}

// RemoveAll clears both tiers and the backend.
func (s *TieredStore) RemoveAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memory.Clear()
	s.disk.Clear()
	if err := s.backend.Clear(ctx); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to clear cache backend",
			logger.Component("cache"),
			logger.Error(err),
		)
	}
	s.reportUsage()
}

// SetCapacity changes a tier's budget. Lowering it evicts immediately, with
// memory evictions demoted to disk as usual.
func (s *TieredStore) SetCapacity(ctx context.Context, tier Tier, bytes int64) error {
	if bytes < 0 {
		return ErrInvalidCapacity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch tier {
	case TierMemory:
		s.memory.SetCapacity(bytes)
	case TierDisk:
		s.disk.SetCapacity(bytes)
	default:
		return ErrInvalidTier
	}

	s.settle(ctx)
	s.reportUsage()
	return nil
}

func (s *TieredStore) Capacity(tier Tier) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lru := s.tier(tier); lru != nil {
		return lru.Capacity()
	}
	return 0
}

// Usage returns the exact number of bytes resident in tier.
func (s *TieredStore) Usage(tier Tier) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lru := s.tier(tier); lru != nil {
		return lru.Weight()
	}
	return 0
}

func (s *TieredStore) Len(tier Tier) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lru := s.tier(tier); lru != nil {
		return lru.Len()
	}
	return 0
}

// Keys lists the keys resident in tier from least to most recently used.
func (s *TieredStore) Keys(tier Tier) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lru := s.tier(tier); lru != nil {
		return lru.Keys()
	}
	return nil
}

// TierOf reports where key is resident without touching its recency.
func (s *TieredStore) TierOf(key string) (Tier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locate(key)
}

func (s *TieredStore) tier(t Tier) *LRU[string, *Entry] {
	switch t {
	case TierMemory:
		return s.memory
	case TierDisk:
		return s.disk
	default:
		return nil
	}
}

// Must be called with lock held.
func (s *TieredStore) locate(key string) (Tier, bool) {
	if _, ok := s.memory.Peek(key); ok {
		return TierMemory, true
	}
	if _, ok := s.disk.Peek(key); ok {
		return TierDisk, true
	}
	return 0, false
}

// Must be called with lock held.
func (s *TieredStore) touch(e *Entry) {
	s.clock++
	e.LastAccess = s.clock
}

// Must be called with lock held.
func (s *TieredStore) removeLocked(ctx context.Context, key string) bool {
	if _, ok := s.memory.Remove(key); ok {
		return true
	}
	if _, ok := s.disk.Remove(key); ok {
		s.deleteFromBackend(ctx, key)
		return true
	}
	return false
}

// Must be called with lock held.
func (s *TieredStore) admitMemory(ctx context.Context, e *Entry) {
	s.memory.Put(e.Key, e)
	s.settle(ctx)
}

// admitDisk writes the payload and indexes e in the disk tier. It reports
// false when the entry does not fit or the backend rejects the write.
// Must be called with lock held.
func (s *TieredStore) admitDisk(ctx context.Context, e *Entry) bool {
	if !fits(e.Size, s.disk.Capacity()) {
		return false
	}

	if err := s.backend.Write(ctx, e.Key, e.Value); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to write disk entry",
			logger.Component("cache"),
			logger.CacheKey(e.Key),
			logger.Error(err),
		)
		return false
	}

	e.Tier = TierDisk
	e.Value = nil
	s.disk.Put(e.Key, e)
	return true
}

// settle finishes the evictions the LRUs reported: memory victims are demoted
// to disk when they fit, disk victims are deleted from the backend. Demotions
// can evict from disk, so memory victims go first.
// Must be called with lock held.
func (s *TieredStore) settle(ctx context.Context) {
	for _, victim := range s.demoted {
		s.collector.IncEviction(TierMemory.String())

		if victim.memoryOnly {
			continue
		}
		if s.admitDisk(ctx, victim) {
			s.collector.IncDemotion()
			continue
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "evicted entry dropped",
			logger.Component("cache"),
			logger.CacheKey(victim.Key),
			logger.Tier(TierMemory.String()),
			logger.Size(victim.Size),
		)
	}
	clear(s.demoted)
	s.demoted = s.demoted[:0]

	for _, victim := range s.discarded {
		s.deleteFromBackend(ctx, victim.Key)
		s.collector.IncEviction(TierDisk.String())
	}
	clear(s.discarded)
	s.discarded = s.discarded[:0]
}

func (s *TieredStore) deleteFromBackend(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to delete disk entry",
			logger.Component("cache"),
			logger.CacheKey(key),
			logger.Error(err),
		)
	}
}

func (s *TieredStore) reportUsage() {
	s.collector.SetUsage(TierMemory.String(), s.memory.Weight())
	s.collector.SetUsage(TierDisk.String(), s.disk.Weight())
}

func (e *Entry) snapshot(data []byte) Entry {
	return Entry{
		Key:        e.Key,
		Value:      slices.Clone(data),
		Size:       e.Size,
		Tier:       e.Tier,
		LastAccess: e.LastAccess,
	}
}

func fits(size, capacity int64) bool {
	return capacity > 0 && size <= capacity
}
