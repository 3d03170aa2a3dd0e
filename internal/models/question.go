package models

import (
	"sort"
	"time"
)

type QuestionStatus string

const (
	QuestionPending    QuestionStatus = "pending"
	QuestionUnanswered QuestionStatus = "unanswered"
	QuestionInProgress QuestionStatus = "in_progress"
	QuestionResolved   QuestionStatus = "resolved"
)

// UnansweredQuestion aggregates every low-confidence occurrence of one normalized question per business.
type UnansweredQuestion struct {
	ID                  string                 `json:"id"`
	BusinessID          string                 `json:"businessId"`
	Question            string                 `json:"question"`
	NormalizedQuestion  string                 `json:"normalizedQuestion"`
	QuestionHash        string                 `json:"questionHash"`
	Frequency           int                    `json:"frequency"`
	ConfidenceScores    []float64              `json:"confidenceScores"`
	AverageConfidence   float64                `json:"averageConfidence"`
	SourceSessions      []string               `json:"sourceSessions"`
	Status              QuestionStatus         `json:"status"`
	ConversationContext map[string]interface{} `json:"conversationContext,omitempty"`
	FirstSeenAt         time.Time              `json:"firstSeenAt"`
	LastSeenAt          time.Time              `json:"lastSeenAt"`
}

// QuestionObservation is one low-confidence occurrence.
type QuestionObservation struct {
	BusinessID          string
	Question            string
	NormalizedQuestion  string
	QuestionHash        string
	SessionID           string
	ConfidenceScore     float64
	ConversationContext map[string]interface{}
	ObservedAt          time.Time
}

func NewUnansweredQuestion(id string, obs QuestionObservation) *UnansweredQuestion {
	q := &UnansweredQuestion{
		ID:                  id,
		BusinessID:          obs.BusinessID,
		Question:            obs.Question,
		NormalizedQuestion:  obs.NormalizedQuestion,
		QuestionHash:        obs.QuestionHash,
		Frequency:           1,
		ConfidenceScores:    []float64{obs.ConfidenceScore},
		AverageConfidence:   obs.ConfidenceScore,
		Status:              QuestionPending,
		ConversationContext: obs.ConversationContext,
		FirstSeenAt:         obs.ObservedAt,
		LastSeenAt:          obs.ObservedAt,
	}
	if obs.SessionID != "" {
		q.SourceSessions = []string{obs.SessionID}
	}
	return q
}

// Observe folds another occurrence into q. Status is left untouched.
func (q *UnansweredQuestion) Observe(obs QuestionObservation) {
	q.Frequency++
	q.Question = obs.Question
	q.ConfidenceScores = append(q.ConfidenceScores, obs.ConfidenceScore)
	q.AverageConfidence = mean(q.ConfidenceScores)
	if obs.ConversationContext != nil {
		q.ConversationContext = obs.ConversationContext
	}
	q.LastSeenAt = obs.ObservedAt

	if obs.SessionID == "" {
		return
	}
	i := sort.SearchStrings(q.SourceSessions, obs.SessionID)
	if i < len(q.SourceSessions) && q.SourceSessions[i] == obs.SessionID {
		return
	}
	q.SourceSessions = append(q.SourceSessions, "")
	copy(q.SourceSessions[i+1:], q.SourceSessions[i:])
	q.SourceSessions[i] = obs.SessionID
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
