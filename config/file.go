package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for YAML and TOML files.
// Nil fields keep the value from the previous layer.
type FileConfig struct {
	App struct {
		Name            *string `yaml:"name" toml:"name"`
		Environment     *string `yaml:"environment" toml:"environment"`
		ShutdownTimeout *string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	} `yaml:"app" toml:"app"`

	Store struct {
		Driver         *string `yaml:"driver" toml:"driver"`
		URL            *string `yaml:"url" toml:"url"`
		Path           *string `yaml:"path" toml:"path"`
		MaxConns       *int32  `yaml:"max_conns" toml:"max_conns"`
		ConnectRetries *int    `yaml:"connect_retries" toml:"connect_retries"`
	} `yaml:"store" toml:"store"`

	Redis struct {
		Enabled  *bool   `yaml:"enabled" toml:"enabled"`
		Addr     *string `yaml:"addr" toml:"addr"`
		Password *string `yaml:"password" toml:"password"`
		DB       *int    `yaml:"db" toml:"db"`
		TTL      *string `yaml:"ttl" toml:"ttl"`
	} `yaml:"redis" toml:"redis"`

	HTTP struct {
		Host               *string  `yaml:"host" toml:"host"`
		Port               *int     `yaml:"port" toml:"port"`
		RateLimitPerMinute *int     `yaml:"rate_limit" toml:"rate_limit"`
		AllowedOrigins     []string `yaml:"allowed_origins" toml:"allowed_origins"`
	} `yaml:"http" toml:"http"`

	Analysis struct {
		DefaultK       *int     `yaml:"k" toml:"k"`
		NInit          *int     `yaml:"n_init" toml:"n_init"`
		Seed           *uint64  `yaml:"seed" toml:"seed"`
		WinsorizeLimit *float64 `yaml:"winsorize" toml:"winsorize"`
		ScaleMax       *float64 `yaml:"scale_max" toml:"scale_max"`
		FeatureSet     *string  `yaml:"features" toml:"features"`
	} `yaml:"analysis" toml:"analysis"`

	Auth struct {
		CoachKeyHash *string `yaml:"coach_key_hash" toml:"coach_key_hash"`
	} `yaml:"auth" toml:"auth"`

	Scheduler struct {
		Enabled      *bool   `yaml:"enabled" toml:"enabled"`
		WarmInterval *string `yaml:"warm_interval" toml:"warm_interval"`
	} `yaml:"scheduler" toml:"scheduler"`

	Observability struct {
		LogLevel       *string `yaml:"log_level" toml:"log_level"`
		LogFormat      *string `yaml:"log_format" toml:"log_format"`
		MetricsEnabled *bool   `yaml:"metrics" toml:"metrics"`
	} `yaml:"observability" toml:"observability"`

	durations map[string]time.Duration
}

// LoadFile decodes a .yaml, .yml or .toml file by extension.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("decode yaml %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return nil, fmt.Errorf("decode toml %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}

	if err := fc.parseDurations(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &fc, nil
}

func (fc *FileConfig) parseDurations() error {
	fc.durations = make(map[string]time.Duration)
	for key, raw := range map[string]*string{
		"app.shutdown_timeout":    fc.App.ShutdownTimeout,
		"redis.ttl":               fc.Redis.TTL,
		"scheduler.warm_interval": fc.Scheduler.WarmInterval,
	} {
		if raw == nil {
			continue
		}
		d, err := time.ParseDuration(*raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		fc.durations[key] = d
	}
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.App.Name, fc.App.Name)
	if fc.App.Environment != nil {
		c.App.Environment = Environment(*fc.App.Environment)
	}
	setDuration(&c.App.ShutdownTimeout, fc.durations, "app.shutdown_timeout")

	setString(&c.Store.Driver, fc.Store.Driver)
	setString(&c.Store.URL, fc.Store.URL)
	setString(&c.Store.Path, fc.Store.Path)
	set(&c.Store.MaxConns, fc.Store.MaxConns)
	set(&c.Store.ConnectRetries, fc.Store.ConnectRetries)

	set(&c.Redis.Enabled, fc.Redis.Enabled)
	setString(&c.Redis.Addr, fc.Redis.Addr)
	setString(&c.Redis.Password, fc.Redis.Password)
	set(&c.Redis.DB, fc.Redis.DB)
	setDuration(&c.Redis.TTL, fc.durations, "redis.ttl")

	setString(&c.HTTP.Host, fc.HTTP.Host)
	set(&c.HTTP.Port, fc.HTTP.Port)
	set(&c.HTTP.RateLimitPerMinute, fc.HTTP.RateLimitPerMinute)
	if len(fc.HTTP.AllowedOrigins) > 0 {
		c.HTTP.AllowedOrigins = fc.HTTP.AllowedOrigins
	}

	set(&c.Analysis.DefaultK, fc.Analysis.DefaultK)
	set(&c.Analysis.NInit, fc.Analysis.NInit)
	set(&c.Analysis.Seed, fc.Analysis.Seed)
	set(&c.Analysis.WinsorizeLimit, fc.Analysis.WinsorizeLimit)
	set(&c.Analysis.ScaleMax, fc.Analysis.ScaleMax)
	setString(&c.Analysis.FeatureSet, fc.Analysis.FeatureSet)

	setString(&c.Auth.CoachKeyHash, fc.Auth.CoachKeyHash)

	set(&c.Scheduler.Enabled, fc.Scheduler.Enabled)
	setDuration(&c.Scheduler.WarmInterval, fc.durations, "scheduler.warm_interval")

	setString(&c.Observability.LogLevel, fc.Observability.LogLevel)
	setString(&c.Observability.LogFormat, fc.Observability.LogFormat)
	set(&c.Observability.MetricsEnabled, fc.Observability.MetricsEnabled)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil && strings.TrimSpace(*src) != "" {
		*dst = strings.TrimSpace(*src)
	}
}

func setDuration(dst *time.Duration, parsed map[string]time.Duration, key string) {
	if d, ok := parsed[key]; ok {
		*dst = d
	}
}
