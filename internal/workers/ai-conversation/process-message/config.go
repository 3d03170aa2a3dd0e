package processmessage

import "time"

// Features replace the separate "simple" and "enhanced" pipelines with one pipeline and switches.
type Features struct {
	LeadTracking       bool
	UnansweredTracking bool
	OutputGuardrail    bool
	SemanticScore      bool
}

type Config struct {
	Features        Features
	DefaultLanguage string
	Timeout         time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Features: Features{
			LeadTracking:       true,
			UnansweredTracking: true,
			OutputGuardrail:    true,
			SemanticScore:      true,
		},
		DefaultLanguage: "en",
		Timeout:         30 * time.Second,
	}
}
