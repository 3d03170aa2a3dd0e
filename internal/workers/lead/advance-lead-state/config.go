package advanceleadstate

import "time"

type Config struct {
	UseGenerative    bool
	GeneratorTimeout time.Duration
	HistoryLimit     int
	MaxTokens        int
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		UseGenerative:    true,
		GeneratorTimeout: 8 * time.Second,
		HistoryLimit:     10,
		MaxTokens:        400,
		Timeout:          20 * time.Second,
	}
}
