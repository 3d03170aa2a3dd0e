package scoreconfidence

import "time"

// Weights are applied as given; they are not renormalised to sum to 1.
type Weights struct {
	Relevance     float64
	Completeness  float64
	SourceQuality float64
	SemanticMatch float64
}

type Config struct {
	Weights          Weights
	DefaultThreshold float64
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Weights: Weights{
			Relevance:     0.30,
			Completeness:  0.25,
			SourceQuality: 0.20,
			SemanticMatch: 0.25,
		},
		DefaultThreshold: 0.7,
		Timeout:          10 * time.Second,
	}
}
