// Package cache provides a weighted LRU and a two-tier byte cache built on it.
//
// # LRU
//
// LRU is a generic, thread-safe least-recently-used cache bounded by total
// weight rather than item count. A weigh function assigns each value its
// weight; nil counts every item as 1:
//
//	lru := cache.NewLRU[string, []byte](1<<20, func(b []byte) int64 { return int64(len(b)) })
//	lru.SetEvictCallback(func(key string, value []byte) {
//		log.Printf("evicted %s", key)
//	})
//	lru.Put("a", data)
//	value, ok := lru.Get("a")
//
// Get, Put and Remove are O(1). Items never touched again are evicted in
// insertion order. The callback fires only for capacity evictions.
//
// # Tiered store
//
// TieredStore keeps entries in a memory tier and a disk tier with separate
// byte budgets:
//
//	backend, err := cache.NewFileBackend("/var/cache/app")
//	if err != nil {
//		return err
//	}
//	store, err := cache.NewTieredStore(4<<20, 20<<20, backend,
//		cache.WithLogger(log),
//		cache.WithCollector(collector),
//	)
//	if err != nil {
//		return err
//	}
//	if _, err := store.Restore(ctx); err != nil {
//		return err
//	}
//
//	store.Store(ctx, key, body)
//	if e, ok := store.Lookup(ctx, key); ok {
//		_ = e.Value
//	}
//
// Rules:
//
//   - A key lives in exactly one tier. Storing an existing key replaces it.
//   - Entries larger than the memory budget are written straight to disk, and
//     entries larger than both budgets are not stored.
//   - When memory is full, the least recently used entries are demoted to disk
//     if they fit there, otherwise dropped. Disk evictions are discarded.
//   - A disk hit is promoted back into memory when it fits the memory budget.
//   - Lowering a budget with SetCapacity evicts immediately. A zero budget
//     disables the tier.
//
// Usage of each tier never exceeds its budget once a call returns.
//
// # Backends
//
// The disk tier delegates payload storage to a Backend. NewMemoryBackend keeps
// payloads in process memory, NewFileBackend writes one file per key and
// NewRedisBackend stores them in Redis. Backend failures are logged and
// treated as misses; store operations never return errors.
package cache
