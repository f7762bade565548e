package urlcache

import (
	"github.com/dmitrymomot/foundation/pkg/config"
	"github.com/dmitrymomot/foundation/pkg/redis"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

const (
	DefaultMemoryCapacity int64 = 4 << 20
	DefaultDiskCapacity   int64 = 20 << 20
)

// Config describes a Cache. Capacities are byte budgets; zero disables a tier.
type Config struct {
	MemoryCapacity int64  `env:"URLCACHE_MEMORY_CAPACITY" envDefault:"4194304"`
	DiskCapacity   int64  `env:"URLCACHE_DISK_CAPACITY" envDefault:"20971520"`
	DiskPath       string `env:"URLCACHE_DISK_PATH"`
	// Backend is memory, file or redis. Empty selects file when DiskPath is
	// set and memory otherwise.
	Backend     string `env:"URLCACHE_BACKEND"`
	RedisPrefix string `env:"URLCACHE_REDIS_PREFIX" envDefault:"urlcache:"`
	// Restore rebuilds the disk index from a persistent backend on start.
	Restore bool `env:"URLCACHE_RESTORE" envDefault:"true"`

	Redis redis.Config
}

// DefaultConfig returns the configuration used by Shared.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity: DefaultMemoryCapacity,
		DiskCapacity:   DefaultDiskCapacity,
		RedisPrefix:    "urlcache:",
		Restore:        true,
	}
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) backend() string {
	if c.Backend != "" {
		return c.Backend
	}
	if c.DiskPath != "" {
		return BackendFile
	}
	return BackendMemory
}
