package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"coderun/internal/common/cache"
	commonmw "coderun/internal/common/http/middleware"
	"coderun/internal/execution/registry"
	"coderun/internal/execution/sampler"
	"coderun/internal/server"
	"coderun/pkg/utils/logger"
)

const (
	defaultConfigPath      = "configs/coderun.yaml"
	defaultHTTPAddr        = "0.0.0.0:3000"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultWorkDir         = "tmp"
	defaultScriptDir       = "scripts"
	defaultHistoryTTL      = 24 * time.Hour
	defaultHistoryRecent   = 100
)

// ExecutionConfig holds pipeline settings.
type ExecutionConfig struct {
	SampleInterval time.Duration `yaml:"sampleInterval"`
}

// ServiceConfig holds service-mode run settings.
type ServiceConfig struct {
	WorkDir        string        `yaml:"workDir"`
	ScriptDir      string        `yaml:"scriptDir"`
	Input          string        `yaml:"input"`
	MaxConcurrent  int           `yaml:"maxConcurrent"`
	QueueWait      time.Duration `yaml:"queueWait"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// HistoryConfig holds run history settings. History needs redis.addr.
type HistoryConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Recent  int           `yaml:"recent"`
}

// AppConfig holds coderun config.
type AppConfig struct {
	Server    server.ServerConfig `yaml:"server"`
	Logger    logger.Config       `yaml:"logger"`
	Execution ExecutionConfig     `yaml:"execution"`
	Service   ServiceConfig       `yaml:"service"`
	CORS      commonmw.CORSConfig `yaml:"cors"`
	Redis     cache.RedisConfig   `yaml:"redis"`
	History   HistoryConfig       `yaml:"history"`
	Languages []registry.Spec     `yaml:"languages"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads path and fills defaults. When required is false a
// missing file yields the defaults.
func loadAppConfig(path string, required bool) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		if required || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if cfg.History.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required when history is enabled")
	}
	if cfg.Service.MaxConcurrent < 0 {
		return nil, fmt.Errorf("service.maxConcurrent must not be negative")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Execution.SampleInterval <= 0 {
		cfg.Execution.SampleInterval = sampler.DefaultInterval
	}
	if cfg.Service.WorkDir == "" {
		cfg.Service.WorkDir = defaultWorkDir
	}
	if cfg.Service.ScriptDir == "" {
		cfg.Service.ScriptDir = defaultScriptDir
	}
	if cfg.Service.Input == "" {
		cfg.Service.Input = server.DefaultInput
	}
	if cfg.History.TTL == 0 {
		cfg.History.TTL = defaultHistoryTTL
	}
	if cfg.History.Recent <= 0 {
		cfg.History.Recent = defaultHistoryRecent
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
}

// buildRegistry layers config-declared languages over the built-in table.
func buildRegistry(specs []registry.Spec) (*registry.Registry, error) {
	extra, err := registry.FromSpecs(specs)
	if err != nil {
		return nil, err
	}
	return registry.New(append(registry.Builtin(), extra...)...)
}
