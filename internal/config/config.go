package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config wraps viper and is constructed once at process start. Service
// credentials are read through it rather than memoized in package globals;
// Revalidate covers the refresh behavior explicitly.
type Config struct {
	v        *viper.Viper
	mu       sync.Mutex
	loadedAt time.Time
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/threat-engine/")
	v.AddConfigPath("$HOME/.threat-engine")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("THREAT_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v, loadedAt: time.Now()}, nil
}

// NewFromFile creates a configuration instance from an explicit config file
// path, skipping the default search paths
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("THREAT_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Config{v: v, loadedAt: time.Now()}, nil
}

// NewFromViper creates a configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v, loadedAt: time.Now()}
}

// NewEmptyViper creates a new Viper instance with defaults applied
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// Revalidate re-reads the config file when the loaded values are older than
// maxAge. Replaces the TTL-cached credential globals of the previous
// implementation with an explicit refresh point.
func (c *Config) Revalidate(maxAge time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxAge > 0 && time.Since(c.loadedAt) < maxAge {
		return nil
	}
	if c.v.ConfigFileUsed() == "" {
		c.loadedAt = time.Now()
		return nil
	}
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to revalidate config: %w", err)
	}
	c.loadedAt = time.Now()
	return nil
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Classification service defaults
	v.SetDefault("classifier.endpoint", "http://localhost:8500/classify")
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.max_concurrency", 8)

	// Reputation scanning service defaults
	v.SetDefault("reputation.base_url", "https://www.virustotal.com/api/v3")
	v.SetDefault("reputation.api_key", "")
	v.SetDefault("reputation.scan_timeout", "15s")
	v.SetDefault("reputation.max_concurrency", 4)

	// Relationship graph store defaults
	v.SetDefault("graph.endpoint", "http://localhost:8600")
	v.SetDefault("graph.timeout", "10s")
	v.SetDefault("graph.max_concurrency", 8)

	// Explanation provider defaults
	v.SetDefault("explainer.provider", "openai")
	v.SetDefault("explainer.timeout", "20s")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Detection store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.tenant_id", "default")
	v.SetDefault("store.sqlite_path", "/data/threat_engine.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/threat_engine")

	// Enrichment queue defaults
	v.SetDefault("enrichment.workers", 2)
	v.SetDefault("enrichment.queue_depth", 128)
	v.SetDefault("enrichment.timeout", "10s")

	// Server defaults
	v.SetDefault("server.filter_type", "smtp")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.block_critical", false)
	v.SetDefault("server.headers.level", "X-Threat-Level")
	v.SetDefault("server.headers.score", "X-Threat-Score")
	v.SetDefault("server.headers.reason", "X-Threat-Reason")
	v.SetDefault("server.relay_address", "127.0.0.1")
	v.SetDefault("server.relay_port", 10026)
	v.SetDefault("server.relay_enabled", false)

	// Sender list defaults
	v.SetDefault("senders.allowed", []string{})
	v.SetDefault("senders.blocked", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
