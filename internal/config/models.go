package config

import (
	"fmt"
	"strings"
	"time"
)

// LLMConfig represents the remote model selection
type LLMConfig struct {
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

// OpenAIConfig represents the configuration for OpenAI or a compatible endpoint
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ScoringConfig holds the verdict threshold and trusted sender domains
type ScoringConfig struct {
	Threshold      int
	TrustedDomains []string
}

// CacheConfig represents the analysis cache and safe list store
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddress     string
	RedisPassword    string
	RedisDB          int
	RedisPrefix      string
}

// ServerConfig represents the mail filter front end
type ServerConfig struct {
	FilterType           string
	ListenAddress        string
	PostfixAddress       string
	BlockPhishing        bool
	SubjectPrefix        string
	StatusHeader         string
	ScoreHeader          string
	HeuristicScoreHeader string
	ReasonHeader         string
}

// APIConfig represents the HTTP API
type APIConfig struct {
	Enabled        bool
	ListenAddress  string
	AllowedOrigin  string
	AllowlistCIDRs []string
	Mode           string
}

// ReportConfig represents phishing report delivery
type ReportConfig struct {
	SecurityMailbox string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	Sender          string
	UseTLS          bool
	StartTLS        bool
	Timeout         time.Duration
	DedupeWindow    time.Duration
	DedupeStore     string
}

// EnvelopeSender returns the configured sender, falling back to the SMTP user
func (r ReportConfig) EnvelopeSender() string {
	switch {
	case r.Sender != "":
		return r.Sender
	case r.SMTPUser != "":
		return r.SMTPUser
	default:
		return "no-reply@localhost"
	}
}

// LoggingConfig represents logger output
type LoggingConfig struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// GetLLM returns the remote model configuration
func (c *Config) GetLLM() (LLMConfig, error) {
	timeout, err := c.GetDuration("llm.timeout")
	if err != nil {
		return LLMConfig{}, err
	}
	return LLMConfig{
		Provider: strings.ToLower(c.GetString("llm.provider")),
		Timeout:  timeout,
	}, nil
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
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetScoring returns the scoring configuration
func (c *Config) GetScoring() (ScoringConfig, error) {
	threshold := c.GetInt("scoring.threshold")
	if threshold < 0 || threshold > 100 {
		return ScoringConfig{}, fmt.Errorf("scoring.threshold must be within 0-100, got %d", threshold)
	}
	return ScoringConfig{
		Threshold:      threshold,
		TrustedDomains: c.GetStringSlice("scoring.trusted_domains"),
	}, nil
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             strings.ToLower(c.GetString("cache.type")),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisAddress:     c.GetString("cache.redis_address"),
		RedisPassword:    c.GetString("cache.redis_password"),
		RedisDB:          c.GetInt("cache.redis_db"),
		RedisPrefix:      c.GetString("cache.redis_prefix"),
	}, nil
}

// GetServer returns the mail filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:           strings.ToLower(c.GetString("server.filter_type")),
		ListenAddress:        c.GetString("server.listen_address"),
		PostfixAddress:       c.GetString("server.postfix_address"),
		BlockPhishing:        c.GetBool("server.block_phishing"),
		SubjectPrefix:        c.GetString("server.subject_prefix"),
		StatusHeader:         c.GetString("server.headers.status"),
		ScoreHeader:          c.GetString("server.headers.score"),
		HeuristicScoreHeader: c.GetString("server.headers.heuristic_score"),
		ReasonHeader:         c.GetString("server.headers.reason"),
	}
}

// GetAPI returns the HTTP API configuration
func (c *Config) GetAPI() APIConfig {
	return APIConfig{
		Enabled:        c.GetBool("api.enabled"),
		ListenAddress:  c.GetString("api.listen_address"),
		AllowedOrigin:  c.GetString("api.allowed_origin"),
		AllowlistCIDRs: c.GetStringSlice("api.allowlist_cidrs"),
		Mode:           c.GetString("api.mode"),
	}
}

// GetReport returns the report delivery configuration
func (c *Config) GetReport() (ReportConfig, error) {
	timeout, err := c.GetDuration("report.timeout")
	if err != nil {
		return ReportConfig{}, err
	}
	window, err := c.GetDuration("report.dedupe_window")
	if err != nil {
		return ReportConfig{}, err
	}
	return ReportConfig{
		SecurityMailbox: c.GetString("report.security_mailbox"),
		SMTPHost:        c.GetString("report.smtp_host"),
		SMTPPort:        c.GetInt("report.smtp_port"),
		SMTPUser:        c.GetString("report.smtp_user"),
		SMTPPassword:    c.GetString("report.smtp_password"),
		Sender:          c.GetString("report.sender"),
		UseTLS:          c.GetBool("report.use_tls"),
		StartTLS:        c.GetBool("report.starttls"),
		Timeout:         timeout,
		DedupeWindow:    window,
		DedupeStore:     strings.ToLower(c.GetString("report.dedupe_store")),
	}, nil
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:      strings.ToLower(c.GetString("logging.level")),
		Format:     c.GetString("logging.format"),
		FilePath:   c.GetString("logging.file_path"),
		MaxSizeMB:  c.GetInt("logging.max_size_mb"),
		MaxBackups: c.GetInt("logging.max_backups"),
		MaxAgeDays: c.GetInt("logging.max_age_days"),
	}
}
