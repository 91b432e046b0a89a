package config

import "time"

// ClassifierConfig represents the configuration for the local classifier
type ClassifierConfig struct {
	ModelPath string
}

// SpamConfig represents the configuration for the spam pipeline
type SpamConfig struct {
	RefineThreshold    float32
	MaxAttempts        int
	MaxTextBytes       int
	WhitelistedDomains []string
}

// RefinerConfig represents the configuration for the refinement engine
type RefinerConfig struct {
	Provider           string
	MinInterval        time.Duration
	MaxRetries         int
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// CacheConfig represents the configuration for the result cache
type CacheConfig struct {
	Enabled          bool
	Type             string
	SQLitePath       string
	MySQLDSN         string
	RedisURL         string
	TTL              time.Duration
	CleanupFrequency time.Duration
}

// HTTPConfig represents the configuration for the HTTP API server
type HTTPConfig struct {
	Enabled       bool
	ListenAddress string
}

// SMTPConfig represents the configuration for the SMTP front end
type SMTPConfig struct {
	Enabled        bool
	ListenAddress  string
	BlockSpam      bool
	RefineSpam     bool
	RelayEnabled   bool
	RelayAddress   string
	RelayPort      int
	FlagHeader     string
	ScoreHeader    string
	AttemptsHeader string
	RefinedHeader  string
}

// ServerConfig represents the configuration for the serving front ends
type ServerConfig struct {
	FilterType string
	HTTP       HTTPConfig
	SMTP       SMTPConfig
}

// BatchConfig represents the configuration for batch processing
type BatchConfig struct {
	RateLimit float64
}

// GetClassifier returns the classifier configuration
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		ModelPath: c.GetString("classifier.model_path"),
	}
}

// GetSpam returns the spam pipeline configuration
func (c *Config) GetSpam() SpamConfig {
	return SpamConfig{
		RefineThreshold:    float32(c.GetFloat64("spam.refine_threshold")),
		MaxAttempts:        c.GetInt("spam.max_attempts"),
		MaxTextBytes:       c.GetInt("spam.max_text_bytes"),
		WhitelistedDomains: c.GetStringSlice("spam.whitelisted_domains"),
	}
}

// GetRefiner returns the refiner configuration
func (c *Config) GetRefiner() RefinerConfig {
	return RefinerConfig{
		Provider:           c.GetString("refiner.provider"),
		MinInterval:        c.v.GetDuration("refiner.min_interval"),
		MaxRetries:         c.GetInt("refiner.max_retries"),
		BreakerMaxFailures: uint32(c.GetInt("refiner.breaker.max_failures")),
		BreakerTimeout:     c.v.GetDuration("refiner.breaker.timeout"),
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
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		Type:             c.GetString("cache.type"),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisURL:         c.GetString("cache.redis_url"),
		TTL:              c.v.GetDuration("cache.ttl"),
		CleanupFrequency: c.v.GetDuration("cache.cleanup_frequency"),
	}
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType: c.GetString("server.filter_type"),
		HTTP: HTTPConfig{
			Enabled:       c.GetBool("server.http.enabled"),
			ListenAddress: c.GetString("server.http.listen_address"),
		},
		SMTP: SMTPConfig{
			Enabled:        c.GetBool("server.smtp.enabled"),
			ListenAddress:  c.GetString("server.smtp.listen_address"),
			BlockSpam:      c.GetBool("server.smtp.block_spam"),
			RefineSpam:     c.GetBool("server.smtp.refine_spam"),
			RelayEnabled:   c.GetBool("server.smtp.relay.enabled"),
			RelayAddress:   c.GetString("server.smtp.relay.address"),
			RelayPort:      c.GetInt("server.smtp.relay.port"),
			FlagHeader:     c.GetString("server.smtp.headers.flag"),
			ScoreHeader:    c.GetString("server.smtp.headers.score"),
			AttemptsHeader: c.GetString("server.smtp.headers.attempts"),
			RefinedHeader:  c.GetString("server.smtp.headers.refined"),
		},
	}
}

// GetBatch returns the batch processing configuration
func (c *Config) GetBatch() BatchConfig {
	return BatchConfig{
		RateLimit: c.GetFloat64("batch.rate_limit"),
	}
}
