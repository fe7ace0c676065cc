// Package config loads libpspproxy's runtime configuration (spec section
// 10): the transport device URI, connect timeout, logging, metrics, and
// scratch region fields, from CLI flags, PSPPROXY_* environment
// variables, and an optional YAML config file, in that order of
// precedence, mirroring the teacher's pkg/config layering.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for psppdu and any embedder of
// pkg/proxy that wants file/env-driven setup instead of wiring a Proxy by
// hand.
type Config struct {
	// Device is the transport URI to connect to, e.g.
	// "serial:///dev/ttyUSB0:115200:8:n:1", "tcp://host:port", or
	// "em100tcp://host:port" (see internal/transport.Open).
	Device string `mapstructure:"device" validate:"required" yaml:"device"`

	// RequestTimeout bounds the connect handshake cmdutil.Dial performs;
	// requests made after Connect are not bounded by it.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0" yaml:"request_timeout"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Scratch is decoded, saved and loaded with the rest of the file but is
	// not applied: the scratch allocator always uses the region the stub
	// reports at Connect time.
	Scratch ScratchConfig `mapstructure:"scratch" yaml:"scratch"`
}

// LoggingConfig controls the internal/logger output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig controls metrics collection: Enabled attaches the
// Prometheus collector to the proxy. Listen is validated but no HTTP server
// is started from it.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" validate:"omitempty,hostname_port" yaml:"listen"`
}

// ScratchConfig holds a scratch region (start and length). Nothing reads it
// back into the allocator; the region from ConnectResponse is always used.
type ScratchConfig struct {
	Start  uint32 `mapstructure:"start" yaml:"start,omitempty"`
	Length uint32 `mapstructure:"length" yaml:"length,omitempty"`
}

var validate = validator.New()

// Load reads configuration from configPath (or the default search path if
// empty), layering PSPPROXY_* environment variables and defaults on top,
// and returns a validated Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	} else {
		applyEnvOverrides(v, cfg)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides copies PSPPROXY_DEVICE, PSPPROXY_REQUEST_TIMEOUT and
// PSPPROXY_LOGGING_LEVEL, when viper picked them up, onto cfg when no config file was found, so "no file, just env"
// still works without an Unmarshal pass over zero-value viper keys.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if d := v.GetString("device"); d != "" {
		cfg.Device = d
	}
	if t := v.GetDuration("request_timeout"); t > 0 {
		cfg.RequestTimeout = t
	}
	if l := v.GetString("logging.level"); l != "" {
		cfg.Logging.Level = l
	}
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PSPPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

func defaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "psppdu")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".psppdu"
	}
	return filepath.Join(home, ".config", "psppdu")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}
