package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds the full runtime configuration
type Config struct {
	API          APIConfig    `yaml:"api" mapstructure:"api"`
	HTTP         HTTPConfig   `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig  `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Robots       RobotsConfig `yaml:"robots" mapstructure:"robots"`
	Output       OutputConfig `yaml:"output" mapstructure:"output"`
	LLM          LLMConfig    `yaml:"llm" mapstructure:"llm"`
}

// APIConfig identifies the upstream taxon API
type APIConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	PathPrefix string `yaml:"path_prefix" mapstructure:"path_prefix"`
}

// HTTPConfig controls the HTTP client
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy" mapstructure:"https_proxy"`
}

// CacheConfig controls the raw-response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateConfig controls the politeness delay between requests
type RateConfig struct {
	RequestDelay time.Duration `yaml:"request_delay" mapstructure:"request_delay"`
}

// RobotsConfig controls robots.txt compliance
type RobotsConfig struct {
	Respect bool `yaml:"respect" mapstructure:"respect"`
}

// OutputConfig controls where results land
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LLMConfig holds the optional run-digest provider settings.
// Provider "" means disabled.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "https://explorer.natureserve.org",
			PathPrefix: "/api/data/taxon/",
		},
		HTTP: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "taxopull/0.1 (+https://github.com/mkrivoshein/taxopull)",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       filepath.Join(os.TempDir(), "taxopull-cache"),
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   24 * time.Hour,
		},
		RateLimiting: RateConfig{
			RequestDelay: 500 * time.Millisecond,
		},
		Robots: RobotsConfig{
			Respect: true,
		},
		Output: OutputConfig{
			Dir: "results",
		},
		LLM: LLMConfig{
			Provider:  "",
			Model:     "gpt-4o-mini",
			Timeout:   30,
			MaxTokens: 800,
		},
	}
}
