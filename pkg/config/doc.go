// Package config loads configuration structs from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for struct-tag parsing:
//
//   - Load parses a struct once per type and caches the result.
//   - Parse parses without caching and supports a variable prefix, for
//     components that can be instantiated more than once.
//   - LoadEnv reads .env files into the process environment.
//   - MustLoad and MustLoadEnv panic on failure for startup code.
//   - ResetCache clears cached structs between tests.
//
// # Usage
//
//	type Config struct {
//	    MemoryCapacity int64  `env:"URLCACHE_MEMORY_CAPACITY" envDefault:"4194304"`
//	    DiskCapacity   int64  `env:"URLCACHE_DISK_CAPACITY" envDefault:"20971520"`
//	    DiskPath       string `env:"URLCACHE_DISK_PATH"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// # Errors
//
// Errors wrap the sentinels ErrParsingConfig, ErrConfigNotLoaded,
// ErrNilPointer and ErrLoadingEnvFile and can be matched with errors.Is.
package config
