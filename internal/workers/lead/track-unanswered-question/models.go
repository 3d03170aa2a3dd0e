package trackunansweredquestion

import (
	"context"

	"assistant-workers/internal/models"
)

type QuestionStore interface {
	Upsert(ctx context.Context, obs models.QuestionObservation) (*models.UnansweredQuestion, bool, error)
	Top(ctx context.Context, businessID string, limit int) ([]models.UnansweredQuestion, error)
}

type Input struct {
	Question            string                 `json:"question"`
	BusinessID          string                 `json:"businessId"`
	SessionID           string                 `json:"sessionId"`
	ConfidenceScore     float64                `json:"confidenceScore"`
	ConversationContext map[string]interface{} `json:"conversationContext,omitempty"`
}

type Output struct {
	Recorded           bool    `json:"recorded"`
	Created            bool    `json:"created"`
	QuestionID         string  `json:"questionId,omitempty"`
	NormalizedQuestion string  `json:"normalizedQuestion"`
	QuestionHash       string  `json:"questionHash,omitempty"`
	Frequency          int     `json:"frequency"`
	AverageConfidence  float64 `json:"averageConfidence"`
	Error              string  `json:"error,omitempty"`
}
