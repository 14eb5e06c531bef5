package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/imdario/mergo"
	"gopkg.in/yaml.v3"

	"github.com/mcncl/jsondelta/internal/errors"
)

// EnvPrefix starts the name of every environment override
const EnvPrefix = "JSONDELTA"

// Config represents the complete configuration for jsondelta
type Config struct {
	Output OutputConfig `yaml:"output"`
	Diff   DiffConfig   `yaml:"diff"`
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// OutputConfig controls how diffs and documents are printed
type OutputConfig struct {
	Format         string `yaml:"format"`
	Color          bool   `yaml:"color"`
	JSONPatchTests bool   `yaml:"jsonpatch_tests"`
}

// DiffConfig controls the diff engines
type DiffConfig struct {
	MaxDepth      int  `yaml:"max_depth"`
	ValidateDiffs bool `yaml:"validate_diffs"`
}

// ServerConfig controls the HTTP service
type ServerConfig struct {
	Listen       string `yaml:"listen"`
	CacheSize    int    `yaml:"cache_size"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// StoreConfig controls the version history store
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format: "compact",
		},
		Diff: DiffConfig{
			MaxDepth:      10000,
			ValidateDiffs: true,
		},
		Server: ServerConfig{
			Listen:       ":8080",
			CacheSize:    256,
			MaxBodyBytes: 10 << 20,
		},
		Store: StoreConfig{
			Path: ".jsondelta",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "logfmt",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("failed to read config file", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("failed to parse config file", err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in the current directory and its
// parents
func FindConfigFile() string {
	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findConfigFrom(currentDir)
}

func findConfigFrom(dir string) string {
	configNames := []string{".jsondelta.yml", ".jsondelta.yaml", "jsondelta.yml", "jsondelta.yaml"}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(dir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(dir)
		if parentDir == dir {
			// Reached root directory
			break
		}
		dir = parentDir
	}

	return ""
}

type setting struct {
	key   string
	apply func(c *Config, value string) error
}

var settings = []setting{
	{"output.format", func(c *Config, v string) error { c.Output.Format = v; return nil }},
	{"output.color", func(c *Config, v string) error { return setBool(&c.Output.Color, v) }},
	{"output.jsonpatch_tests", func(c *Config, v string) error { return setBool(&c.Output.JSONPatchTests, v) }},
	{"diff.max_depth", func(c *Config, v string) error { return setInt(&c.Diff.MaxDepth, v) }},
	{"diff.validate_diffs", func(c *Config, v string) error { return setBool(&c.Diff.ValidateDiffs, v) }},
	{"server.listen", func(c *Config, v string) error { c.Server.Listen = v; return nil }},
	{"server.cache_size", func(c *Config, v string) error { return setInt(&c.Server.CacheSize, v) }},
	{"server.max_body_bytes", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Server.MaxBodyBytes = n
		return nil
	}},
	{"store.path", func(c *Config, v string) error { c.Store.Path = v; return nil }},
	{"log.level", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"log.format", func(c *Config, v string) error { c.Log.Format = v; return nil }},
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// EnvName returns the environment variable that overrides a setting, e.g.
// "server.cache_size" is JSONDELTA_SERVER_CACHE_SIZE
func EnvName(key string) string {
	return EnvPrefix + "_" + strcase.ToScreamingSnake(strings.ReplaceAll(key, ".", "_"))
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, s := range settings {
		name := EnvName(s.key)
		value, ok := lookup(name)
		if !ok {
			continue
		}
		if err := s.apply(c, value); err != nil {
			return errors.NewConfigError(fmt.Sprintf("invalid value %q for %s", value, name), err)
		}
	}
	return nil
}

// Validate reports settings no component can work with
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown log level %q", c.Log.Level), nil)
	}
	switch c.Log.Format {
	case "logfmt", "json":
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown log format %q", c.Log.Format), nil)
	}
	if c.Diff.MaxDepth < 1 {
		return errors.NewConfigError(fmt.Sprintf("diff.max_depth must be positive, got %d", c.Diff.MaxDepth), nil)
	}
	if c.Server.CacheSize < 0 {
		return errors.NewConfigError(fmt.Sprintf("server.cache_size must not be negative, got %d", c.Server.CacheSize), nil)
	}
	return nil
}

// MergeConfigs merges CLI overrides into a base config. Non-zero values from
// override take precedence, so a flag left at its zero value keeps the file
// or default setting.
func MergeConfigs(base, override *Config) (*Config, error) {
	merged := *base
	if override == nil {
		return &merged, nil
	}
	if err := mergo.Merge(&merged, *override, mergo.WithOverride); err != nil {
		return nil, errors.NewConfigError("failed to merge command line settings", err)
	}
	return &merged, nil
}

// LoadConfigWithCLI builds the effective configuration: defaults, then the
// config file (configPath, or the nearest one found walking up from the
// working directory), then the environment, then CLI overrides
func LoadConfigWithCLI(configPath string, cli *Config) (*Config, error) {
	cfg := NewConfig()

	if configPath == "" {
		configPath = FindConfigFile()
	}
	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg, err := MergeConfigs(cfg, cli)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
