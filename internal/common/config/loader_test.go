package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesPipelineDefaults(t *testing.T) {
	path := writeConfig(t, `
camunda:
  broker_address: localhost:26500
pipeline:
  store_backend: memory
  retrieval:
    backend: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	p := cfg.Pipeline
	assert.Equal(t, 0.7, p.ConfidenceThreshold)
	assert.Equal(t, WeightsConfig{Relevance: 0.3, Completeness: 0.25, SourceQuality: 0.2, SemanticMatch: 0.25}, p.Weights)
	assert.Equal(t, 5, p.Retrieval.DefaultLimit)
	assert.Equal(t, 20, p.Retrieval.MaxLimit)
	assert.Equal(t, 10, p.RateLimit.Requests)
	assert.Equal(t, 60, p.RateLimit.WindowSeconds)
	assert.Equal(t, "memory", p.RateLimit.Backend)
	assert.Equal(t, 2000, p.MaxInputLength)
	assert.Equal(t, 1000, p.MaxOutputLength)
	assert.Equal(t, 8000, p.GeneratorTimeout)
	assert.True(t, p.Features.LeadTracking)
	assert.True(t, p.Features.OutputGuardrail)
	assert.Equal(t, "anthropic", cfg.APIs.GenAI.Provider)
}

func TestLoadFromFile_MaxLimitNeverExceedsCeiling(t *testing.T) {
	path := writeConfig(t, `
camunda:
  broker_address: localhost:26500
pipeline:
  store_backend: memory
  retrieval:
    backend: memory
    max_limit: 100
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Pipeline.Retrieval.MaxLimit)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_BROKER", "zeebe:26500")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	path := writeConfig(t, `
camunda:
  broker_address: ${TEST_BROKER}
pipeline:
  store_backend: memory
  retrieval:
    backend: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "zeebe:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, "sk-test", cfg.APIs.GenAI.APIKey)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "pipeline:\n  store_backend: memory\n  retrieval:\n    backend: memory\n",
			wantErr: "camunda.broker_address",
		},
		{
			name: "threshold out of range",
			body: `
camunda:
  broker_address: localhost:26500
pipeline:
  confidence_threshold: 1.5
  store_backend: memory
  retrieval:
    backend: memory
`,
			wantErr: "confidence_threshold",
		},
		{
			name: "postgres backend without host",
			body: `
camunda:
  broker_address: localhost:26500
pipeline:
  store_backend: postgres
`,
			wantErr: "database.postgres",
		},
		{
			name: "redis rate limit without address",
			body: `
camunda:
  broker_address: localhost:26500
pipeline:
  store_backend: memory
  retrieval:
    backend: memory
  rate_limit:
    backend: redis
`,
			wantErr: "database.redis.address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_DefaultsWhenMissing(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"retrieve-context": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "retrieve-context"))
	assert.True(t, IsWorkerEnabled(cfg, "score-confidence"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "score-confidence").MaxJobsActive)
}
