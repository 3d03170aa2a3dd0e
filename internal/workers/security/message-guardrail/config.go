package messageguardrail

import "time"

type Config struct {
	MaxInputLength  int
	MaxOutputLength int
	Placeholder     string
	Timeout         time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxInputLength:  2000,
		MaxOutputLength: 1000,
		Placeholder:     "[FILTERED]",
		Timeout:         5 * time.Second,
	}
}
