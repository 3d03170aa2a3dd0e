package synthesizeresponse

import "time"

type Config struct {
	GeneratorTimeout    time.Duration
	MaxTokens           int
	Temperature         float64
	GreetingTemperature float64
	MaxSources          int
	Timeout             time.Duration
}

func LoadConfig() *Config {
	return &Config{
		GeneratorTimeout:    8 * time.Second,
		MaxTokens:           500,
		Temperature:         0.3,
		GreetingTemperature: 0.7,
		MaxSources:          3,
		Timeout:             15 * time.Second,
	}
}
