package synthesizeresponse

import "assistant-workers/internal/models"

// Methods recorded in Metadata.Method; every fallback path has its own value.
const (
	MethodGreeting        = "greeting"
	MethodGreetingStatic  = "greeting_static"
	MethodConfident       = "confident"
	MethodConfidentStatic = "confident_static"
	MethodFallback        = "fallback"
)

type Input struct {
	Question        string                 `json:"question"`
	Sources         []models.ContextSource `json:"contextSources"`
	ConfidenceScore float64                `json:"confidenceScore"`
	IsConfident     bool                   `json:"isConfident"`
	Business        models.BusinessProfile `json:"business"`
	Language        string                 `json:"language"`
	LeadState       models.LeadState       `json:"leadState"`
}

type Metadata struct {
	Method         string `json:"method"`
	Language       string `json:"language"`
	BusinessID     string `json:"businessId"`
	ContextCount   int    `json:"contextCount"`
	ResponseLength int    `json:"responseLength"`
	WordCount      int    `json:"wordCount"`
	GeneratorError string `json:"generatorError,omitempty"`
}

type Output struct {
	Response           string                 `json:"response"`
	ResponseTimeMs     int64                  `json:"responseTimeMs"`
	ConfidenceScore    float64                `json:"confidenceScore"`
	IsConfident        bool                   `json:"isConfident"`
	ContextSourcesUsed []models.ContextSource `json:"contextSourcesUsed"`
	RequiresEscalation bool                   `json:"requiresEscalation"`
	Metadata           Metadata               `json:"metadata"`
}
