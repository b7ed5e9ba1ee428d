package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig holds configuration for a single model provider instance.
type ProviderConfig struct {
	Type              string        `yaml:"type"` // "anthropic", "openrouter", "gemini"
	APIKey            string        `yaml:"api_key"`
	ModelName         string        `yaml:"model_name"`
	Tier              string        `yaml:"tier"` // "fast" or "smart"
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Auth struct {
		Enabled   bool   `yaml:"enabled"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Routing struct {
		Enabled         bool     `yaml:"enabled"` // off forces everything to smart
		SimpleKeywords  []string `yaml:"simple_keywords"`
		ComplexKeywords []string `yaml:"complex_keywords"`
		FinancialTerms  []string `yaml:"financial_terms"`
		MaxSimpleLength int      `yaml:"max_simple_length"`
		MaxHistoryLen   int      `yaml:"max_history_len"`
	} `yaml:"routing"`

	Providers []ProviderConfig `yaml:"providers"`

	Model struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"model"`

	Knowledge struct {
		URL         string `yaml:"url"`
		SearchLimit int    `yaml:"search_limit"`
		Cache       struct {
			Enabled    bool   `yaml:"enabled"`
			Addr       string `yaml:"addr"`
			Password   string `yaml:"password"`
			DB         int    `yaml:"db"`
			TTLSeconds int    `yaml:"ttl_seconds"`
		} `yaml:"cache"`
	} `yaml:"knowledge"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Defaults
	if config.Server.Port == "" {
		config.Server.Port = "8010"
	}
	if config.Model.TimeoutSeconds == 0 {
		config.Model.TimeoutSeconds = 60
	}
	if config.Routing.MaxSimpleLength == 0 {
		config.Routing.MaxSimpleLength = 80
	}
	if config.Routing.MaxHistoryLen == 0 {
		config.Routing.MaxHistoryLen = 6
	}
	if config.Knowledge.SearchLimit == 0 {
		config.Knowledge.SearchLimit = 3
	}
	if config.Knowledge.Cache.TTLSeconds == 0 {
		config.Knowledge.Cache.TTLSeconds = 300
	}

	// Expand environment variables in secrets
	for i := range config.Providers {
		config.Providers[i].APIKey = os.ExpandEnv(config.Providers[i].APIKey)
		if config.Providers[i].Tier == "" {
			config.Providers[i].Tier = "smart"
		}
	}
	config.Auth.JWTSecret = os.ExpandEnv(config.Auth.JWTSecret)
	config.Database.URL = os.ExpandEnv(config.Database.URL)

	return config, nil
}
