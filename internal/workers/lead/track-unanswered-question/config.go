package trackunansweredquestion

import "time"

type Config struct {
	TopLimit int
	Timeout  time.Duration
}

func LoadConfig() *Config {
	return &Config{
		TopLimit: 20,
		Timeout:  10 * time.Second,
	}
}
