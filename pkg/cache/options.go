package cache

import (
	"log/slog"

	"github.com/dmitrymomot/foundation/pkg/metrics"
)

// Option configures a TieredStore.
type Option func(*TieredStore)

// WithLogger sets the logger used for backend failures and evictions.
func WithLogger(l *slog.Logger) Option {
	return func(s *TieredStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCollector reports hits, misses, evictions and usage to c.
func WithCollector(c metrics.CacheCollector) Option {
	return func(s *TieredStore) {
		if c != nil {
			s.collector = c
		}
	}
}

// StoreOption adjusts a single Store call.
type StoreOption func(*Entry)

// MemoryOnly keeps the entry out of the disk tier. It is dropped instead of
// demoted when evicted, and not stored at all if it exceeds the memory budget.
func MemoryOnly() StoreOption {
	return func(e *Entry) {
		e.memoryOnly = true
	}
}

// WithSize accounts the entry at n bytes instead of len(value).
// Negative values are ignored.
func WithSize(n int64) StoreOption {
	return func(e *Entry) {
		if n >= 0 {
			e.Size = n
		}
	}
}
