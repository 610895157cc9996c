// Package config loads and validates the maildesk YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for maildesk.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	CRM      CRMConfig      `yaml:"crm"`
	Provider ProviderConfig `yaml:"provider"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Prompts  PromptsConfig  `yaml:"prompts"`
	Locks    LocksConfig    `yaml:"locks"`
	Usage    UsageConfig    `yaml:"usage"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Seed     SeedConfig     `yaml:"seed"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects the item store backend. The memory driver needs no
// further settings; postgres uses URL, sqlite uses Path.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // memory, postgres, sqlite
	URL             string        `yaml:"url"`
	Path            string        `yaml:"path"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CRMConfig selects the business-database read model the lookup tools query.
type CRMConfig struct {
	Driver string `yaml:"driver"` // memory, postgres
	URL    string `yaml:"url"`
}

// ProviderConfig selects and configures the chat-completion provider.
type ProviderConfig struct {
	Name      string        `yaml:"name"` // openai, anthropic, google, bedrock
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`

	// Bedrock only. Empty credentials fall back to the default AWS chain.
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

type PipelineConfig struct {
	BatchLimit    int `yaml:"batch_limit"`
	MaxIterations int `yaml:"max_iterations"`
}

type PromptsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type LocksConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type UsageConfig struct {
	Limit int `yaml:"limit"`
}

// ScheduleConfig optionally starts batch runs on a cron expression.
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// SeedConfig points at a YAML file of demo inbox items and CRM records,
// loaded into the memory stores at startup.
type SeedConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Environment  string  `yaml:"environment"`
	Insecure     bool    `yaml:"insecure"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no file is given: memory
// stores, OpenAI provider, standard pipeline bounds.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.CRM.Driver == "" {
		cfg.CRM.Driver = "memory"
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "openai"
	}
	if cfg.Provider.MaxTokens == 0 {
		cfg.Provider.MaxTokens = 1024
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 90 * time.Second
	}
	if cfg.Pipeline.BatchLimit == 0 {
		cfg.Pipeline.BatchLimit = 100
	}
	if cfg.Pipeline.MaxIterations == 0 {
		cfg.Pipeline.MaxIterations = 6
	}
	if cfg.Locks.TTL == 0 {
		cfg.Locks.TTL = 15 * time.Minute
	}
	if cfg.Usage.Limit == 0 {
		cfg.Usage.Limit = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
}
