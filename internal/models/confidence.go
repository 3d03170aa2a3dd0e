package models

type ConfidenceBreakdown struct {
	Relevance     float64 `json:"relevance"`
	Completeness  float64 `json:"completeness"`
	SourceQuality float64 `json:"sourceQuality"`
	SemanticMatch float64 `json:"semanticMatch"`
}

// ConfidenceAssessment is built once per scored question and never mutated.
type ConfidenceAssessment struct {
	ConfidenceScore float64             `json:"confidenceScore"`
	IsConfident     bool                `json:"isConfident"`
	Threshold       float64             `json:"threshold"`
	Breakdown       ConfidenceBreakdown `json:"breakdown"`
	Recommendations []string            `json:"recommendations"`
}
