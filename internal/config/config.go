// Package config loads and watches the arena2api YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file omits or zeroes a value.
const (
	DefaultPort                  = 9090
	DefaultUpstreamBaseURL       = "https://arena.ai"
	DefaultUpstreamTimeoutSec    = 300
	DefaultPoolCapacity          = 30
	DefaultTokenTTLSeconds       = 110
	DefaultMinTokenLength        = 20
	DefaultProfileTimeoutSeconds = 120
	DefaultSweepIntervalSeconds  = 30
	DefaultLogDir                = "logs"
)

// Config is the process configuration, populated from YAML with kebab-case
// keys and sanitized on load.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port int `yaml:"port"`

	// APIKeys lists the bearer keys accepted on the OpenAI-compatible
	// surface. Empty means no inbound authentication.
	APIKeys []string `yaml:"api-keys"`

	// PushSecret guards the extension push endpoints when non-empty.
	PushSecret string `yaml:"push-secret"`

	// Debug switches log level and gin mode.
	Debug bool `yaml:"debug"`

	// LoggingToFile mirrors logs into rotated files under LogDir.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogDir is the rotated log directory when LoggingToFile is set.
	LogDir string `yaml:"log-dir"`

	// ProxyURL routes upstream calls through an http(s) or socks5 proxy.
	ProxyURL string `yaml:"proxy-url"`

	// UsageEstimate fills missing upstream usage with a tokenizer estimate
	// in buffered responses. Disabled, usage falls back to zeros.
	UsageEstimate *bool `yaml:"usage-estimate"`

	Upstream UpstreamConfig `yaml:"upstream"`
	Pool     PoolConfig     `yaml:"pool"`
}

// UpstreamConfig describes the arena.ai endpoint.
type UpstreamConfig struct {
	BaseURL        string `yaml:"base-url"`
	TimeoutSeconds int    `yaml:"timeout-seconds"`
}

// PoolConfig tunes the per-profile challenge token pools.
type PoolConfig struct {
	Capacity              int `yaml:"capacity"`
	TokenTTLSeconds       int `yaml:"token-ttl-seconds"`
	MinTokenLength        int `yaml:"min-token-length"`
	ProfileTimeoutSeconds int `yaml:"profile-timeout-seconds"`
	SweepIntervalSeconds  int `yaml:"sweep-interval-seconds"`
}

// UsageEstimateEnabled reports the effective usage-estimate setting
// (default true when the key is absent).
func (c *Config) UsageEstimateEnabled() bool {
	if c == nil || c.UsageEstimate == nil {
		return true
	}
	return *c.UsageEstimate
}

// Default returns a Config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.sanitize()
	return cfg
}

// Load reads and sanitizes the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.sanitize()
	return cfg, nil
}

// LoadOptional behaves like Load but returns defaults when the file does
// not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func (c *Config) sanitize() {
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = DefaultPort
	}
	keys := make([]string, 0, len(c.APIKeys))
	for _, k := range c.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	c.APIKeys = keys
	c.PushSecret = strings.TrimSpace(c.PushSecret)
	c.ProxyURL = strings.TrimSpace(c.ProxyURL)
	if strings.TrimSpace(c.LogDir) == "" {
		c.LogDir = DefaultLogDir
	}
	c.Upstream.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.Upstream.BaseURL), "/")
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = DefaultUpstreamTimeoutSec
	}
	if c.Pool.Capacity <= 0 {
		c.Pool.Capacity = DefaultPoolCapacity
	}
	if c.Pool.TokenTTLSeconds <= 0 {
		c.Pool.TokenTTLSeconds = DefaultTokenTTLSeconds
	}
	if c.Pool.MinTokenLength <= 0 {
		c.Pool.MinTokenLength = DefaultMinTokenLength
	}
	if c.Pool.ProfileTimeoutSeconds <= 0 {
		c.Pool.ProfileTimeoutSeconds = DefaultProfileTimeoutSeconds
	}
	if c.Pool.SweepIntervalSeconds <= 0 {
		c.Pool.SweepIntervalSeconds = DefaultSweepIntervalSeconds
	}
}
