package scoreconfidence

import "assistant-workers/internal/models"

const (
	completenessWordFloor = 20
	minSentenceWords      = 5
	lengthAdequacyChars   = 200
	templateBonus         = 0.1
	degenerateCap         = 0.1
	weakComponent         = 0.5
)

const (
	RecommendRelevance     = "Add content that covers the key terms of this question"
	RecommendCompleteness  = "Expand the answer; the grounding text is too short to be complete"
	RecommendSourceQuality = "Add longer or more specific source sections for this topic"
	RecommendSemanticMatch = "Rephrase or extend content; it is semantically distant from the question"
)

type BusinessConfig struct {
	ConfidenceThreshold *float64 `json:"confidenceThreshold,omitempty"`
}

type Input struct {
	Question       string                 `json:"question"`
	Response       string                 `json:"response"`
	Sources        []models.ContextSource `json:"contextSources"`
	SemanticScore  *float64               `json:"semanticScore,omitempty"`
	BusinessConfig BusinessConfig         `json:"businessConfig"`
}

type Output struct {
	models.ConfidenceAssessment
}
