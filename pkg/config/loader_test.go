package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/foundation/pkg/config"
)

type capacityConfig struct {
	Memory int64  `env:"TEST_CFG_MEMORY" envDefault:"1024"`
	Disk   int64  `env:"TEST_CFG_DISK" envDefault:"4096"`
	Path   string `env:"TEST_CFG_PATH"`
}

type singletonConfig struct {
	Value string `env:"TEST_CFG_SINGLETON" envDefault:"default_value"`
}

type requiredConfig struct {
	Required string `env:"TEST_CFG_REQUIRED,required"`
}

type envFileConfig struct {
	FromFile string `env:"TEST_CFG_FROM_FILE"`
}

type prefixedConfig struct {
	Capacity int64 `env:"CAPACITY" envDefault:"10"`
}

func TestLoad(t *testing.T) {
	t.Run("reads environment", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TEST_CFG_MEMORY", "100")
		t.Setenv("TEST_CFG_DISK", "1000")
		t.Setenv("TEST_CFG_PATH", "/var/cache/app")

		var cfg capacityConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, int64(100), cfg.Memory)
		assert.Equal(t, int64(1000), cfg.Disk)
		assert.Equal(t, "/var/cache/app", cfg.Path)
	})

	t.Run("uses defaults", func(t *testing.T) {
		config.ResetCache()
		os.Unsetenv("TEST_CFG_MEMORY")
		os.Unsetenv("TEST_CFG_DISK")

		var cfg capacityConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, int64(1024), cfg.Memory)
		assert.Equal(t, int64(4096), cfg.Disk)
	})

	t.Run("caches per type", func(t *testing.T) {
		config.ResetCache()
		t.Setenv("TEST_CFG_SINGLETON", "first")

		var first singletonConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("TEST_CFG_SINGLETON", "second")
		var second singletonConfig
		require.NoError(t, config.Load(&second))

		assert.Equal(t, "first", second.Value)
	})

	t.Run("missing required value", func(t *testing.T) {
		config.ResetCache()
		os.Unsetenv("TEST_CFG_REQUIRED")

		var cfg requiredConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, config.ErrParsingConfig))
	})

	t.Run("retries after a failed parse", func(t *testing.T) {
		config.ResetCache()
		os.Unsetenv("TEST_CFG_REQUIRED")

		var cfg requiredConfig
		require.Error(t, config.Load(&cfg))

		t.Setenv("TEST_CFG_REQUIRED", "now-set")
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "now-set", cfg.Required)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *capacityConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	config.ResetCache()
	os.Unsetenv("TEST_CFG_REQUIRED")

	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}

func TestParse(t *testing.T) {
	t.Run("applies prefix", func(t *testing.T) {
		t.Setenv("PRIMARY_CAPACITY", "50")
		t.Setenv("SECONDARY_CAPACITY", "70")

		var primary, secondary prefixedConfig
		require.NoError(t, config.Parse(&primary, "PRIMARY_"))
		require.NoError(t, config.Parse(&secondary, "SECONDARY_"))

		assert.Equal(t, int64(50), primary.Capacity)
		assert.Equal(t, int64(70), secondary.Capacity)
	})

	t.Run("does not cache", func(t *testing.T) {
		t.Setenv("PARSE_CAPACITY", "1")
		var cfg prefixedConfig
		require.NoError(t, config.Parse(&cfg, "PARSE_"))

		t.Setenv("PARSE_CAPACITY", "2")
		require.NoError(t, config.Parse(&cfg, "PARSE_"))
		assert.Equal(t, int64(2), cfg.Capacity)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("BAD_CAPACITY", "lots")
		var cfg prefixedConfig
		assert.ErrorIs(t, config.Parse(&cfg, "BAD_"), config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		var cfg *prefixedConfig
		assert.ErrorIs(t, config.Parse(cfg, ""), config.ErrNilPointer)
	})
}

func TestLoadEnv(t *testing.T) {
	t.Run("loads custom file", func(t *testing.T) {
		config.ResetCache()
		os.Unsetenv("TEST_CFG_FROM_FILE")
		t.Cleanup(func() { os.Unsetenv("TEST_CFG_FROM_FILE") })

		path := filepath.Join(t.TempDir(), ".env.test")
		require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_FROM_FILE=from_file\n"), 0o600))

		require.NoError(t, config.LoadEnv(path))

		var cfg envFileConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "from_file", cfg.FromFile)
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	})

	t.Run("must variant panics", func(t *testing.T) {
		assert.Panics(t, func() {
			config.MustLoadEnv(filepath.Join(t.TempDir(), "missing.env"))
		})
	})
}
