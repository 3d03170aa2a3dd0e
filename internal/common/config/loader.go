package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName("config." + env)
	_ = v.MergeInConfig()

	return finalize(v)
}

// LoadFromFile loads a single configuration file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finalize(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// booleans cannot be defaulted after unmarshal
	v.SetDefault("pipeline.features.lead_tracking", true)
	v.SetDefault("pipeline.features.unanswered_tracking", true)
	v.SetDefault("pipeline.features.output_guardrail", true)
	v.SetDefault("pipeline.features.semantic_score", true)
	return v
}

func finalize(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	candidates := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in yaml string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.APIs.GenAI.APIKey, "ANTHROPIC_API_KEY")
	setIfEmpty(&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY")
	setIfEmpty(&cfg.APIs.Semantic.APIKey, "SEMANTIC_API_KEY")
	setIfEmpty(&cfg.Integrations.Zoho.AuthToken, "ZOHO_CRM_OAUTH_TOKEN")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "assistant-workers"
	}
	if cfg.App.HTTPPort == 0 {
		cfg.App.HTTPPort = 8080
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	pg := &cfg.Database.Postgres
	if pg.Port == 0 {
		pg.Port = 5432
	}
	if pg.MaxConnections == 0 {
		pg.MaxConnections = 25
	}
	if pg.MaxIdle == 0 {
		pg.MaxIdle = 5
	}
	if pg.SSLMode == "" {
		pg.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.ContentIndex == "" {
		cfg.Database.Elasticsearch.ContentIndex = "business-content"
	}
	if cfg.Database.Redis.KeyPrefix == "" {
		cfg.Database.Redis.KeyPrefix = "assistant"
	}

	for key, w := range cfg.Workers {
		if w.MaxJobsActive == 0 {
			w.MaxJobsActive = 5
		}
		if w.Timeout == 0 {
			w.Timeout = 30000
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = 3
		}
		cfg.Workers[key] = w
	}

	genai := &cfg.APIs.GenAI
	if genai.Provider == "" {
		genai.Provider = "anthropic"
	}
	if genai.Model == "" {
		genai.Model = "claude-3-5-haiku-latest"
	}
	if genai.MaxTokens == 0 {
		genai.MaxTokens = 500
	}
	if genai.Temperature == 0 {
		genai.Temperature = 0.3
	}
	if genai.Timeout == 0 {
		genai.Timeout = 8000
	}
	if genai.RequestsPerSecond == 0 {
		genai.RequestsPerSecond = 5
	}
	if genai.Burst == 0 {
		genai.Burst = 10
	}
	if cfg.APIs.Semantic.Timeout == 0 {
		cfg.APIs.Semantic.Timeout = 3000
	}

	applyPipelineDefaults(&cfg.Pipeline)

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyPipelineDefaults(p *PipelineConfig) {
	if p.ConfidenceThreshold == 0 {
		p.ConfidenceThreshold = 0.7
	}
	if p.Weights == (WeightsConfig{}) {
		p.Weights = WeightsConfig{Relevance: 0.3, Completeness: 0.25, SourceQuality: 0.2, SemanticMatch: 0.25}
	}

	r := &p.Retrieval
	if r.Backend == "" {
		r.Backend = "postgres"
	}
	if r.DefaultLimit == 0 {
		r.DefaultLimit = 5
	}
	if r.MaxLimit == 0 || r.MaxLimit > 20 {
		r.MaxLimit = 20
	}
	if r.Threshold == 0 {
		r.Threshold = 0.3
	}
	if r.LexicalWeight == 0 && r.SemanticWeight == 0 {
		r.LexicalWeight, r.SemanticWeight = 0.4, 0.6
	}

	if p.RateLimit.Backend == "" {
		p.RateLimit.Backend = "memory"
	}
	if p.RateLimit.Requests == 0 {
		p.RateLimit.Requests = 10
	}
	if p.RateLimit.WindowSeconds == 0 {
		p.RateLimit.WindowSeconds = 60
	}

	if p.GeneratorTimeout == 0 {
		p.GeneratorTimeout = 8000
	}
	if p.MaxInputLength == 0 {
		p.MaxInputLength = 2000
	}
	if p.MaxOutputLength == 0 {
		p.MaxOutputLength = 1000
	}
	if p.StoreBackend == "" {
		p.StoreBackend = "postgres"
	}
	if p.SessionBackend == "" {
		p.SessionBackend = p.RateLimit.Backend
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	p := cfg.Pipeline
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("pipeline.confidence_threshold must be within [0,1], got %v", p.ConfidenceThreshold)
	}
	for name, w := range map[string]float64{
		"relevance":      p.Weights.Relevance,
		"completeness":   p.Weights.Completeness,
		"source_quality": p.Weights.SourceQuality,
		"semantic_match": p.Weights.SemanticMatch,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("pipeline.weights.%s must be within [0,1], got %v", name, w)
		}
	}
	if p.RateLimit.Requests < 0 || p.RateLimit.WindowSeconds < 0 {
		return fmt.Errorf("pipeline.rate_limit values must be positive")
	}

	needsPostgres := p.StoreBackend == "postgres" || p.Retrieval.Backend == "postgres"
	if needsPostgres && (cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" || cfg.Database.Postgres.User == "") {
		return fmt.Errorf("database.postgres host, database and user are required for the postgres backend")
	}
	if p.Retrieval.Backend == "elasticsearch" && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch backend")
	}
	needsRedis := p.RateLimit.Backend == "redis" || p.SessionBackend == "redis" || p.Retrieval.CacheTTL > 0
	if needsRedis && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required for redis-backed rate limiting, sessions or caching")
	}
	return nil
}
