package config

import "time"

// ClassifierConfig represents the classification-service configuration
type ClassifierConfig struct {
	Endpoint       string
	Timeout        time.Duration
	MaxConcurrency int
}

// ReputationConfig represents the reputation-scanning service configuration
type ReputationConfig struct {
	BaseURL        string
	APIKey         string
	ScanTimeout    time.Duration
	MaxConcurrency int
}

// GraphConfig represents the relationship graph store configuration
type GraphConfig struct {
	Endpoint       string
	Timeout        time.Duration
	MaxConcurrency int
}

// ExplainerConfig represents the explanation provider selection
type ExplainerConfig struct {
	Provider string
	Timeout  time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

func (c *Config) duration(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return fallback
	}
	return d
}

// GetClassifier returns the classification-service configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		Endpoint:       c.GetString("classifier.endpoint"),
		Timeout:        c.duration("classifier.timeout", 30*time.Second),
		MaxConcurrency: c.GetInt("classifier.max_concurrency"),
	}
}

// GetReputation returns the reputation-service configuration
func (c *Config) GetReputation() ReputationConfig {
	return ReputationConfig{
		BaseURL:        c.GetString("reputation.base_url"),
		APIKey:         c.GetString("reputation.api_key"),
		ScanTimeout:    c.duration("reputation.scan_timeout", 15*time.Second),
		MaxConcurrency: c.GetInt("reputation.max_concurrency"),
	}
}

// GetGraph returns the relationship store configuration
func (c *Config) GetGraph() GraphConfig {
	return GraphConfig{
		Endpoint:       c.GetString("graph.endpoint"),
		Timeout:        c.duration("graph.timeout", 10*time.Second),
		MaxConcurrency: c.GetInt("graph.max_concurrency"),
	}
}

// GetExplainer returns the explanation provider configuration
func (c *Config) GetExplainer() ExplainerConfig {
	return ExplainerConfig{
		Provider: c.GetString("explainer.provider"),
		Timeout:  c.duration("explainer.timeout", 20*time.Second),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
