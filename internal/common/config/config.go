package config

import (
	"fmt"
	"time"
)

// Config is the root configuration of the assistant workers.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Integrations  IntegrationConfig       `mapstructure:"integrations"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPPort    int    `mapstructure:"http_port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the lib/pq connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	ContentIndex string   `mapstructure:"content_index"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// WorkerConfig holds the settings shared by every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type APIsConfig struct {
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Semantic SemanticConfig `mapstructure:"semantic"`
}

// GenAIConfig configures the generative text backend.
type GenAIConfig struct {
	Provider          string  `mapstructure:"provider"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// SemanticConfig configures the external similarity service.
type SemanticConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// PipelineConfig carries every tunable of the message pipeline.
type PipelineConfig struct {
	ConfidenceThreshold float64         `mapstructure:"confidence_threshold"`
	Weights             WeightsConfig   `mapstructure:"weights"`
	Retrieval           RetrievalConfig `mapstructure:"retrieval"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
	Features            FeatureFlags    `mapstructure:"features"`
	GeneratorTimeout    int             `mapstructure:"generator_timeout"` // milliseconds
	MaxInputLength      int             `mapstructure:"max_input_length"`
	MaxOutputLength     int             `mapstructure:"max_output_length"`
	StoreBackend        string          `mapstructure:"store_backend"` // postgres | memory
	SessionBackend      string          `mapstructure:"session_backend"`
}

type WeightsConfig struct {
	Relevance     float64 `mapstructure:"relevance"`
	Completeness  float64 `mapstructure:"completeness"`
	SourceQuality float64 `mapstructure:"source_quality"`
	SemanticMatch float64 `mapstructure:"semantic_match"`
}

type RetrievalConfig struct {
	Backend        string  `mapstructure:"backend"` // postgres | elasticsearch | memory
	DefaultLimit   int     `mapstructure:"default_limit"`
	MaxLimit       int     `mapstructure:"max_limit"`
	Threshold      float64 `mapstructure:"threshold"`
	LexicalWeight  float64 `mapstructure:"lexical_weight"`
	SemanticWeight float64 `mapstructure:"semantic_weight"`
	CacheTTL       int     `mapstructure:"cache_ttl"` // seconds, 0 disables
}

type RateLimitConfig struct {
	Backend       string `mapstructure:"backend"` // memory | redis
	Requests      int    `mapstructure:"requests"`
	WindowSeconds int    `mapstructure:"window_seconds"`
}

type FeatureFlags struct {
	LeadTracking       bool `mapstructure:"lead_tracking"`
	UnansweredTracking bool `mapstructure:"unanswered_tracking"`
	OutputGuardrail    bool `mapstructure:"output_guardrail"`
	SemanticScore      bool `mapstructure:"semantic_score"`
}

type IntegrationConfig struct {
	Zoho struct {
		Enabled   bool   `mapstructure:"enabled"`
		BaseURL   string `mapstructure:"base_url"`
		AuthToken string `mapstructure:"oauth_token"`
	} `mapstructure:"zoho"`
}

// NotificationConfig drives human-handoff escalations.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Escalation struct {
		Enabled     bool   `mapstructure:"enabled"`
		SNSTopicARN string `mapstructure:"sns_topic_arn"`
		FromEmail   string `mapstructure:"from_email"`
		ToEmail     string `mapstructure:"to_email"`
	} `mapstructure:"escalation"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig returns the worker entry or the defaults when absent.
func GetWorkerConfig(cfg *Config, taskType string) WorkerConfig {
	if w, ok := cfg.Workers[taskType]; ok {
		return w
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, taskType string) bool {
	return GetWorkerConfig(cfg, taskType).Enabled
}
