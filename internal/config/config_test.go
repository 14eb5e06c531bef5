package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsondelta/internal/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "compact", cfg.Output.Format)
	assert.False(t, cfg.Output.Color)
	assert.Equal(t, 10000, cfg.Diff.MaxDepth)
	assert.True(t, cfg.Diff.ValidateDiffs)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 256, cfg.Server.CacheSize)
	assert.Equal(t, ".jsondelta", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "logfmt", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_LoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, `
output:
  format: human
  color: true
diff:
  max_depth: 64
server:
  listen: "127.0.0.1:9000"
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "human", cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
	assert.Equal(t, 64, cfg.Diff.MaxDepth)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched sections keep their defaults
	assert.True(t, cfg.Diff.ValidateDiffs)
	assert.Equal(t, 256, cfg.Server.CacheSize)
	assert.Equal(t, "logfmt", cfg.Log.Format)
}

func TestConfig_LoadNonExistentFile(t *testing.T) {
	_, err := LoadConfig("/non/existent/config.yml")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "no such file or directory")
}

func TestConfig_LoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yml")
	writeFile(t, path, "output: [unclosed array\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_FindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, "", findConfigFrom(nested))

	configPath := filepath.Join(root, ".jsondelta.yml")
	writeFile(t, configPath, "log:\n  level: warn\n")
	assert.Equal(t, configPath, findConfigFrom(nested))

	closer := filepath.Join(root, "a", "jsondelta.yaml")
	writeFile(t, closer, "log:\n  level: error\n")
	assert.Equal(t, closer, findConfigFrom(nested))
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "JSONDELTA_SERVER_CACHE_SIZE", EnvName("server.cache_size"))
	assert.Equal(t, "JSONDELTA_OUTPUT_FORMAT", EnvName("output.format"))
	assert.Equal(t, "JSONDELTA_DIFF_MAX_DEPTH", EnvName("diff.max_depth"))
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"JSONDELTA_OUTPUT_FORMAT":         "stats",
		"JSONDELTA_OUTPUT_COLOR":          "true",
		"JSONDELTA_DIFF_MAX_DEPTH":        "12",
		"JSONDELTA_DIFF_VALIDATE_DIFFS":   "false",
		"JSONDELTA_SERVER_MAX_BODY_BYTES": "1024",
		"JSONDELTA_STORE_PATH":            "/tmp/history",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	cfg := NewConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, "stats", cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
	assert.Equal(t, 12, cfg.Diff.MaxDepth)
	assert.False(t, cfg.Diff.ValidateDiffs)
	assert.Equal(t, int64(1024), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "/tmp/history", cfg.Store.Path)
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestConfig_ApplyEnvInvalid(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "JSONDELTA_SERVER_CACHE_SIZE" {
			return "lots", true
		}
		return "", false
	}

	err := NewConfig().ApplyEnv(lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSONDELTA_SERVER_CACHE_SIZE")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"max depth", func(c *Config) { c.Diff.MaxDepth = 0 }},
		{"cache size", func(c *Config) { c.Server.CacheSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
		})
	}
}

func TestMergeConfigs(t *testing.T) {
	base := NewConfig()
	base.Output.Format = "human"
	base.Server.CacheSize = 32

	merged, err := MergeConfigs(base, &Config{
		Output: OutputConfig{Color: true},
		Log:    LogConfig{Level: "debug"},
	})
	require.NoError(t, err)

	assert.Equal(t, "human", merged.Output.Format, "zero override keeps base value")
	assert.True(t, merged.Output.Color)
	assert.Equal(t, "debug", merged.Log.Level)
	assert.Equal(t, 32, merged.Server.CacheSize)

	assert.Equal(t, "info", base.Log.Level, "base is not modified")

	same, err := MergeConfigs(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base, same)
}

func TestLoadConfigWithCLI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, "output:\n  format: pretty\nlog:\n  level: warn\n")

	t.Setenv("JSONDELTA_LOG_LEVEL", "error")

	cfg, err := LoadConfigWithCLI(path, &Config{Output: OutputConfig{Format: "stats"}})
	require.NoError(t, err)
	assert.Equal(t, "stats", cfg.Output.Format)
	assert.Equal(t, "error", cfg.Log.Level)

	_, err = LoadConfigWithCLI(path, &Config{Log: LogConfig{Format: "xml"}})
	assert.Error(t, err)
}
