// Package config reads delegate settings from a YAML file, DELEGATE_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/delegate/internal/delegation"
)

// EnvPrefix is prepended to every environment key, e.g. DELEGATE_DELEGATION_MAX_ROWS.
const EnvPrefix = "DELEGATE"

type Config struct {
	Delegation struct {
		Enabled bool `mapstructure:"enabled"`
		MaxRows int  `mapstructure:"max_rows"`
	} `mapstructure:"delegation"`

	Schema struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"schema"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"max-rows": "delegation.max_rows",
}

// Load builds the configuration. path may be empty, in which case only
// defaults, environment and flags apply. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("delegation.enabled", true)
	v.SetDefault("delegation.max_rows", delegation.DefaultMaxRows)
	v.SetDefault("schema.dir", "")
	v.SetDefault("log.level", "warn")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		// --no-delegation is the negation of delegation.enabled.
		if f := flags.Lookup("no-delegation"); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("delegation.enabled", false)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Delegation.MaxRows < 0 {
		return nil, fmt.Errorf("delegation.max_rows must be non-negative, got %d", cfg.Delegation.MaxRows)
	}
	if _, err := cfg.level(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Options returns the delegation options the configuration describes.
func (c *Config) Options(logger *slog.Logger) delegation.Options {
	return delegation.Options{
		Disabled: !c.Delegation.Enabled,
		MaxRows:  c.Delegation.MaxRows,
		Logger:   logger,
	}
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := c.level()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
