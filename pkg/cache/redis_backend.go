package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores payloads in Redis under prefix+"data:"+key and keeps
// access times in the sorted set prefix+"access".
type RedisBackend struct {
	db     redis.UniversalClient
	prefix string
}

// NewRedisBackend wraps a connected client. An empty prefix defaults to "urlcache:".
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "urlcache:"
	}
	return &RedisBackend{db: client, prefix: prefix}
}

func (b *RedisBackend) Write(ctx context.Context, key string, data []byte) error {
	_, err := b.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.dataKey(key), data, 0)
		pipe.ZAdd(ctx, b.accessKey(), redis.Z{Score: score(time.Now()), Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWriteRecord, err)
	}
	return nil
}

func (b *RedisBackend) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := b.db.Get(ctx, b.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}
	_ = b.db.ZAdd(ctx, b.accessKey(), redis.Z{Score: score(time.Now()), Member: key}).Err()
	return data, nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.dataKey(key))
		pipe.ZRem(ctx, b.accessKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteRecord, err)
	}
	return nil
}

// Clear removes every key under the data prefix using SCAN, then the access index.
func (b *RedisBackend) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		batch, next, err := b.db.Scan(ctx, cursor, escapeGlob(b.prefix+"data:")+"*", 1000).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToDeleteRecord, err)
		}
		if len(batch) > 0 {
			if err := b.db.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrFailedToDeleteRecord, err)
			}
		}
		if cursor = next; cursor == 0 {
			break
		}
	}
	if err := b.db.Del(ctx, b.accessKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteRecord, err)
	}
	return nil
}

// List reports the records present in the access index. Index members whose
// payload has disappeared are skipped.
func (b *RedisBackend) List(ctx context.Context) ([]BackendRecord, error) {
	members, err := b.db.ZRangeWithScores(ctx, b.accessKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	sizes := make([]*redis.IntCmd, len(members))
	exists := make([]*redis.IntCmd, len(members))
	_, err = b.db.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			key := b.dataKey(fmt.Sprint(m.Member))
			exists[i] = pipe.Exists(ctx, key)
			sizes[i] = pipe.StrLen(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToReadRecord, err)
	}

	out := make([]BackendRecord, 0, len(members))
	for i, m := range members {
		if exists[i].Val() == 0 {
			continue
		}
		out = append(out, BackendRecord{
			Key:        fmt.Sprint(m.Member),
			Size:       sizes[i].Val(),
			AccessedAt: time.UnixMicro(int64(m.Score)),
		})
	}
	return out, nil
}

func (b *RedisBackend) dataKey(key string) string {
	return b.prefix + "data:" + key
}

func (b *RedisBackend) accessKey() string {
	return b.prefix + "access"
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}
