package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Backend persists the payloads of disk-tier entries.
// The TieredStore owns the index and the budget; a backend only stores bytes.
type Backend interface {
	Write(ctx context.Context, key string, data []byte) error
	// Read returns ErrNotFound when the key is absent.
	Read(ctx context.Context, key string) ([]byte, error)
	// Delete of an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]BackendRecord, error)
}

// BackendRecord describes one stored payload.
type BackendRecord struct {
	Key        string
	Size       int64
	AccessedAt time.Time
}

type memoryRecord struct {
	data       []byte
	accessedAt time.Time
}

// MemoryBackend keeps disk-tier payloads in process memory.
// It backs stores that have no persistent location configured.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]memoryRecord)}
}

func (b *MemoryBackend) Write(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[key] = memoryRecord{data: slices.Clone(data), accessedAt: time.Now()}
	return nil
}

func (b *MemoryBackend) Read(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	rec.accessedAt = time.Now()
	b.records[key] = rec
	return slices.Clone(rec.data), nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, key)
	return nil
}

func (b *MemoryBackend) Clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.records)
	return nil
}

func (b *MemoryBackend) List(context.Context) ([]BackendRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BackendRecord, 0, len(b.records))
	for key, rec := range b.records {
		out = append(out, BackendRecord{Key: key, Size: int64(len(rec.data)), AccessedAt: rec.accessedAt})
	}
	return out, nil
}
