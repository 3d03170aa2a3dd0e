package retrievecontext

import "time"

type Config struct {
	Backend        string
	DefaultLimit   int
	MaxLimit       int
	Threshold      float64
	LexicalWeight  float64
	SemanticWeight float64
	CacheTTL       time.Duration
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Backend:        "memory",
		DefaultLimit:   5,
		MaxLimit:       20,
		Threshold:      0.3,
		LexicalWeight:  0.4,
		SemanticWeight: 0.6,
		Timeout:        10 * time.Second,
	}
}
