package messageguardrail

import (
	"encoding/json"
	"time"
)

type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// Input is the job payload. Text stays raw so a non-string variable degrades to "" instead of failing the job.
type Input struct {
	Direction Direction       `json:"direction"`
	Text      json.RawMessage `json:"text"`
}

// Result is returned for every validation; it never carries an error.
type Result struct {
	IsSafe        bool     `json:"isSafe"`
	SanitizedText string   `json:"sanitizedText"`
	Flags         []string `json:"flags"`
	Categories    []string `json:"categories"`
	Severity      Severity `json:"severity,omitempty"`
	Warnings      []string `json:"warnings"`
	Truncated     bool     `json:"truncated"`
}

type Output struct {
	Direction Direction `json:"direction"`
	Result
}

// SecurityEvent is emitted once per validation that matched at least one rule.
type SecurityEvent struct {
	ID             string    `json:"id"`
	Direction      Direction `json:"direction"`
	Severity       Severity  `json:"severity"`
	Categories     []string  `json:"categories"`
	FlagCount      int       `json:"flagCount"`
	RuleSetVersion string    `json:"ruleSetVersion"`
	DetectedAt     time.Time `json:"detectedAt"`
}
