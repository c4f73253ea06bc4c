package model

import "time"

// Config holds every tunable of sito
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Storage      StorageConfig      `yaml:"storage" mapstructure:"storage"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// HTTPConfig configures the HTTP fetcher
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"` // 0 means unlimited
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	MaxRedirects  int           `yaml:"max_redirects" mapstructure:"max_redirects"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the fetch result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig configures batch retrieval
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig configures per-host request pacing
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// StorageConfig configures object storage fetchers
type StorageConfig struct {
	S3  S3Config  `yaml:"s3" mapstructure:"s3"`
	GCS GCSConfig `yaml:"gcs" mapstructure:"gcs"`
}

// S3Config configures s3:// retrieval
type S3Config struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint"` // MinIO, LocalStack, ...
}

// GCSConfig configures gs:// retrieval
type GCSConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// OutputConfig configures CLI output
type OutputConfig struct {
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       2 * time.Minute,
			UserAgent:     "sito/0.1 (+https://github.com/ppiankov/sito)",
			MaxBodyBytes:  0,
			MaxRetries:    3,
			MaxRedirects:  5,
			RespectRobots: false,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		Storage: StorageConfig{
			S3:  S3Config{Enabled: true, Region: "us-east-1"},
			GCS: GCSConfig{Enabled: true},
		},
		Output: OutputConfig{
			LogLevel: "info",
		},
	}
}
