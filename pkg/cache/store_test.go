package cache_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/foundation/pkg/cache"
	"github.com/dmitrymomot/foundation/pkg/logger"
)

func newStore(t *testing.T, memory, disk int64, opts ...cache.Option) *cache.TieredStore {
	t.Helper()
	opts = append([]cache.Option{cache.WithLogger(logger.Nop())}, opts...)
	s, err := cache.NewTieredStore(memory, disk, cache.NewMemoryBackend(), opts...)
	require.NoError(t, err)
	return s
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func assertWithinBudgets(t *testing.T, s *cache.TieredStore) {
	t.Helper()
	assert.LessOrEqual(t, s.Usage(cache.TierMemory), s.Capacity(cache.TierMemory))
	assert.LessOrEqual(t, s.Usage(cache.TierDisk), s.Capacity(cache.TierDisk))
}

func TestNewTieredStore(t *testing.T) {
	_, err := cache.NewTieredStore(-1, 10, nil)
	assert.ErrorIs(t, err, cache.ErrInvalidCapacity)

	_, err = cache.NewTieredStore(10, -1, nil)
	assert.ErrorIs(t, err, cache.ErrInvalidCapacity)

	s, err := cache.NewTieredStore(10, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.Capacity(cache.TierMemory))
	assert.Equal(t, int64(20), s.Capacity(cache.TierDisk))
	assert.Equal(t, int64(0), s.Usage(cache.TierMemory))
}

func TestTieredStore_DemotionScenario(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 100, 1000)

	s.Store(ctx, "A", payload(60))
	s.Store(ctx, "B", payload(50))

	tier, ok := s.TierOf("A")
	require.True(t, ok)
	assert.Equal(t, cache.TierDisk, tier)
	tier, ok = s.TierOf("B")
	require.True(t, ok)
	assert.Equal(t, cache.TierMemory, tier)
	assert.Equal(t, int64(50), s.Usage(cache.TierMemory))
	assert.Equal(t, int64(60), s.Usage(cache.TierDisk))

	e, ok := s.Lookup(ctx, "A")
	require.True(t, ok)
	assert.Equal(t, payload(60), e.Value)
	assert.Equal(t, cache.TierMemory, e.Tier)

	tier, _ = s.TierOf("A")
	assert.Equal(t, cache.TierMemory, tier)
	tier, _ = s.TierOf("B")
	assert.Equal(t, cache.TierDisk, tier)
	assert.Equal(t, int64(60), s.Usage(cache.TierMemory))
	assert.Equal(t, int64(50), s.Usage(cache.TierDisk))

	e, ok = s.Lookup(ctx, "B")
	require.True(t, ok)
	assert.Equal(t, payload(50), e.Value)
}

func TestTieredStore_OversizeGoesToDisk(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 100, 1000)
	s.Store(ctx, "small", payload(10))

	memBefore := s.Usage(cache.TierMemory)
	diskBefore := s.Usage(cache.TierDisk)

	s.Store(ctx, "large", payload(500))

	e, ok := s.Lookup(ctx, "large")
	require.True(t, ok)
	assert.Equal(t, payload(500), e.Value)
	assert.Equal(t, cache.TierDisk, e.Tier)
	assert.Equal(t, memBefore, s.Usage(cache.TierMemory))
	assert.Equal(t, diskBefore+500, s.Usage(cache.TierDisk))
}

func TestTieredStore_TooLargeForBoth(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 10, 20)

	s.Store(ctx, "huge", payload(21))

	_, ok := s.Lookup(ctx, "huge")
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.Usage(cache.TierDisk))
}

func TestTieredStore_Eviction(t *testing.T) {
	ctx := context.Background()

	t.Run("insertion order breaks ties", func(t *testing.T) {
		s := newStore(t, 30, 0)
		s.Store(ctx, "a", payload(10))
		s.Store(ctx, "b", payload(10))
		s.Store(ctx, "c", payload(10))
		s.Store(ctx, "d", payload(10))

		assert.Equal(t, []string{"b", "c", "d"}, s.Keys(cache.TierMemory))
		_, ok := s.Lookup(ctx, "a")
		assert.False(t, ok, "zero disk budget drops evicted entries")
	})

	t.Run("lookup refreshes recency", func(t *testing.T) {
		s := newStore(t, 30, 100)
		s.Store(ctx, "a", payload(10))
		s.Store(ctx, "b", payload(10))
		s.Store(ctx, "c", payload(10))
		s.Lookup(ctx, "a")
		s.Store(ctx, "d", payload(10))

		assert.Equal(t, []string{"c", "a", "d"}, s.Keys(cache.TierMemory))
		assert.Equal(t, []string{"b"}, s.Keys(cache.TierDisk))
	})

	t.Run("disk evicts least recently used", func(t *testing.T) {
		s := newStore(t, 0, 25)
		s.Store(ctx, "a", payload(10))
		s.Store(ctx, "b", payload(10))
		s.Lookup(ctx, "a")
		s.Store(ctx, "c", payload(10))

		assert.Equal(t, []string{"a", "c"}, s.Keys(cache.TierDisk))
	})

	t.Run("memory only entries are dropped on eviction", func(t *testing.T) {
		s := newStore(t, 10, 100)
		s.Store(ctx, "volatile", payload(10), cache.MemoryOnly())
		s.Store(ctx, "next", payload(10))

		_, ok := s.TierOf("volatile")
		assert.False(t, ok)
		assert.Equal(t, int64(0), s.Usage(cache.TierDisk))
	})

	t.Run("memory only entries never go to disk", func(t *testing.T) {
		s := newStore(t, 10, 100)
		s.Store(ctx, "volatile", payload(20), cache.MemoryOnly())

		_, ok := s.TierOf("volatile")
		assert.False(t, ok)
	})
}

func TestTieredStore_BudgetsHold(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 100, 300)

	sizes := []int{40, 70, 10, 99, 100, 101, 250, 5, 60, 301, 33}
	for i, n := range sizes {
		s.Store(ctx, fmt.Sprintf("k%d", i), payload(n))
		assertWithinBudgets(t, s)
		if i%2 == 0 {
			s.Lookup(ctx, fmt.Sprintf("k%d", i/2))
			assertWithinBudgets(t, s)
		}
	}

	for i := range sizes {
		key := fmt.Sprintf("k%d", i)
		_, resident := s.TierOf(key)
		memKeys := s.Keys(cache.TierMemory)
		diskKeys := s.Keys(cache.TierDisk)
		assert.False(t, slices.Contains(memKeys, key) && slices.Contains(diskKeys, key), "key %s resident twice", key)
		assert.Equal(t, resident, slices.Contains(memKeys, key) || slices.Contains(diskKeys, key))
	}
}

func TestTieredStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 100, 1000)

	s.Store(ctx, "k", payload(500))
	s.Store(ctx, "k", []byte("small"))

	assert.Equal(t, int64(0), s.Usage(cache.TierDisk))
	assert.Equal(t, int64(5), s.Usage(cache.TierMemory))

	e, ok := s.Lookup(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("small"), e.Value)
	assert.Equal(t, 1, s.Len(cache.TierMemory)+s.Len(cache.TierDisk))
}

func TestTieredStore_WithSize(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 100, 1000)

	s.Store(ctx, "k", []byte("tiny"), cache.WithSize(150))

	e, ok := s.Lookup(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, int64(150), e.Size)
	assert.Equal(t, cache.TierDisk, e.Tier)
	assert.Equal(t, []byte("tiny"), e.Value)
}

func TestTieredStore_LastAccess(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 100, 1000)

	s.Store(ctx, "a", payload(1))
	s.Store(ctx, "b", payload(1))

	a1, _ := s.Lookup(ctx, "a")
	b1, _ := s.Lookup(ctx, "b")
	a2, _ := s.Lookup(ctx, "a")

	assert.Less(t, a1.LastAccess, b1.LastAccess)
	assert.Less(t, b1.LastAccess, a2.LastAccess)
}

func TestTieredStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 100, 1000)

	s.Store(ctx, "mem", payload(10))
	s.Store(ctx, "disk", payload(200))

	s.Remove(ctx, "mem")
	s.Remove(ctx, "disk")
	s.Remove(ctx, "absent")

	_, ok := s.Lookup(ctx, "mem")
	assert.False(t, ok)
	_, ok = s.Lookup(ctx, "disk")
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.Usage(cache.TierMemory))
	assert.Equal(t, int64(0), s.Usage(cache.TierDisk))
}

func TestTieredStore_RemoveAll(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemoryBackend()
	s, err := cache.NewTieredStore(100, 1000, backend, cache.WithLogger(logger.Nop()))
	require.NoError(t, err)

	s.Store(ctx, "a", payload(60))
	s.Store(ctx, "b", payload(50))
	s.Store(ctx, "c", payload(300))

	s.RemoveAll(ctx)

	for _, key := range []string{"a", "b", "c"} {
		_, ok := s.Lookup(ctx, key)
		assert.False(t, ok)
	}
	assert.Equal(t, int64(0), s.Usage(cache.TierMemory))
	assert.Equal(t, int64(0), s.Usage(cache.TierDisk))

	records, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTieredStore_SetCapacity(t *testing.T) {
	ctx := context.Background()

	t.Run("lowering memory demotes", func(t *testing.T) {
		s := newStore(t, 100, 1000)
		s.Store(ctx, "a", payload(30))
		s.Store(ctx, "b", payload(30))
		s.Store(ctx, "c", payload(30))

		require.NoError(t, s.SetCapacity(ctx, cache.TierMemory, 40))

		assert.Equal(t, int64(30), s.Usage(cache.TierMemory))
		assert.Equal(t, []string{"c"}, s.Keys(cache.TierMemory))
		assert.Equal(t, []string{"a", "b"}, s.Keys(cache.TierDisk))
		assert.Equal(t, int64(40), s.Capacity(cache.TierMemory))
	})

	t.Run("lowering disk discards", func(t *testing.T) {
		s := newStore(t, 0, 100)
		s.Store(ctx, "a", payload(40))
		s.Store(ctx, "b", payload(40))

		require.NoError(t, s.SetCapacity(ctx, cache.TierDisk, 50))

		assert.Equal(t, []string{"b"}, s.Keys(cache.TierDisk))
		assert.Equal(t, int64(40), s.Usage(cache.TierDisk))
	})

	t.Run("zero disables a tier", func(t *testing.T) {
		s := newStore(t, 100, 1000)
		s.Store(ctx, "a", payload(10))

		require.NoError(t, s.SetCapacity(ctx, cache.TierMemory, 0))
		assert.Equal(t, int64(0), s.Usage(cache.TierMemory))

		e, ok := s.Lookup(ctx, "a")
		require.True(t, ok)
		assert.Equal(t, cache.TierDisk, e.Tier)
	})

	t.Run("raising keeps entries", func(t *testing.T) {
		s := newStore(t, 10, 10)
		s.Store(ctx, "a", payload(10))

		require.NoError(t, s.SetCapacity(ctx, cache.TierMemory, 1000))
		s.Store(ctx, "b", payload(500))
		assert.Equal(t, int64(510), s.Usage(cache.TierMemory))
	})

	t.Run("invalid input", func(t *testing.T) {
		s := newStore(t, 10, 10)
		assert.ErrorIs(t, s.SetCapacity(ctx, cache.TierMemory, -1), cache.ErrInvalidCapacity)
		assert.ErrorIs(t, s.SetCapacity(ctx, cache.Tier(9), 1), cache.ErrInvalidTier)
	})
}

// MockBackend lets tests inject backend failures
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Write(ctx context.Context, key string, data []byte) error {
	return m.Called(ctx, key, data).Error(0)
}

func (m *MockBackend) Read(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackend) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockBackend) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) List(ctx context.Context) ([]cache.BackendRecord, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]cache.BackendRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestTieredStore_BackendFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("write failure drops the entry", func(t *testing.T) {
		backend := new(MockBackend)
		backend.On("Write", ctx, "k", mock.Anything).Return(errors.New("disk full"))

		s, err := cache.NewTieredStore(10, 1000, backend, cache.WithLogger(logger.Nop()))
		require.NoError(t, err)

		s.Store(ctx, "k", payload(100))

		_, ok := s.TierOf("k")
		assert.False(t, ok)
		assert.Equal(t, int64(0), s.Usage(cache.TierDisk))
		backend.AssertExpectations(t)
	})

	t.Run("read failure is a miss", func(t *testing.T) {
		backend := new(MockBackend)
		backend.On("Write", ctx, "k", mock.Anything).Return(nil)
		backend.On("Read", ctx, "k").Return(nil, cache.ErrNotFound)
		backend.On("Delete", ctx, "k").Return(nil)

		s, err := cache.NewTieredStore(10, 1000, backend, cache.WithLogger(logger.Nop()))
		require.NoError(t, err)

		s.Store(ctx, "k", payload(100))
		_, ok := s.Lookup(ctx, "k")
		assert.False(t, ok)

		_, ok = s.TierOf("k")
		assert.False(t, ok)
		assert.Equal(t, int64(0), s.Usage(cache.TierDisk))
		backend.AssertExpectations(t)
	})
}

func TestTieredStore_Restore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := cache.NewFileBackend(dir)
	require.NoError(t, err)
	first, err := cache.NewTieredStore(0, 1000, backend, cache.WithLogger(logger.Nop()))
	require.NoError(t, err)
	first.Store(ctx, "a", payload(100))
	first.Store(ctx, "b", payload(200))

	reopened, err := cache.NewFileBackend(dir)
	require.NoError(t, err)
	second, err := cache.NewTieredStore(100, 1000, reopened, cache.WithLogger(logger.Nop()))
	require.NoError(t, err)

	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(300), second.Usage(cache.TierDisk))

	e, ok := second.Lookup(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, payload(200), e.Value)

	e, ok = second.Lookup(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, cache.TierMemory, e.Tier)
	assert.Equal(t, payload(100), e.Value)
}

func TestTieredStore_RestoreOverBudget(t *testing.T) {
	ctx := context.Background()
	backend := new(MockBackend)
	backend.On("List", ctx).Return([]cache.BackendRecord{
		{Key: "big", Size: 500},
		{Key: "a", Size: 60},
		{Key: "b", Size: 60},
	}, nil)
	backend.On("Delete", ctx, "big").Return(nil)
	backend.On("Delete", ctx, "a").Return(nil)

	s, err := cache.NewTieredStore(0, 100, backend, cache.WithLogger(logger.Nop()))
	require.NoError(t, err)

	n, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b"}, s.Keys(cache.TierDisk))
	backend.AssertExpectations(t)
}

func TestTieredStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 200, 400)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			s.Store(ctx, fmt.Sprintf("k%d", i%10), payload(10+i))
		}(i)
		go func(i int) {
			defer wg.Done()
			s.Lookup(ctx, fmt.Sprintf("k%d", i%10))
		}(i)
		go func(i int) {
			defer wg.Done()
			if i%7 == 0 {
				s.Remove(ctx, fmt.Sprintf("k%d", i%10))
			}
		}(i)
	}
	wg.Wait()

	assertWithinBudgets(t, s)
}

// gatedBackend blocks Write for one key until release is closed.
type gatedBackend struct {
	cache.Backend
	key     string
	entered chan struct{}
	release chan struct{}
}

func (b *gatedBackend) Write(ctx context.Context, key string, data []byte) error {
	if key == b.key {
		close(b.entered)
		<-b.release
	}
	return b.Backend.Write(ctx, key, data)
}

func TestTieredStore_EvictionIsAtomic(t *testing.T) {
	ctx := context.Background()
	backend := &gatedBackend{
		Backend: cache.NewMemoryBackend(),
		key:     "a",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, err := cache.NewTieredStore(100, 1000, backend, cache.WithLogger(logger.Nop()))
	require.NoError(t, err)

	s.Store(ctx, "a", payload(60))

	stored := make(chan struct{})
	go func() {
		defer close(stored)
		s.Store(ctx, "b", payload(50))
	}()
	<-backend.entered

	type view struct {
		memory, disk int64
		memKeys      []string
		diskKeys     []string
	}
	observed := make(chan view, 1)
	go func() {
		observed <- view{
			memory:   s.Usage(cache.TierMemory),
			disk:     s.Usage(cache.TierDisk),
			memKeys:  s.Keys(cache.TierMemory),
			diskKeys: s.Keys(cache.TierDisk),
		}
	}()

	select {
	case v := <-observed:
		t.Fatalf("read store state while a demotion was in progress: %+v", v)
	case <-time.After(50 * time.Millisecond):
	}

	close(backend.release)
	<-stored

	v := <-observed
	assert.Equal(t, int64(50), v.memory)
	assert.Equal(t, int64(60), v.disk)
	assert.Equal(t, []string{"b"}, v.memKeys)
	assert.Equal(t, []string{"a"}, v.diskKeys)
}
