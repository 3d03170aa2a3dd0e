package models

import "time"

// SessionStats is the read model returned by GetSessionStats.
type SessionStats struct {
	SessionID           string    `json:"sessionId"`
	TotalMessages       int       `json:"totalMessages"`
	AnsweredMessages    int       `json:"answeredMessages"`
	UnansweredMessages  int       `json:"unansweredMessages"`
	RejectedMessages    int       `json:"rejectedMessages"`
	RateLimitedMessages int       `json:"rateLimitedMessages"`
	ConfidenceTotal     float64   `json:"-"`
	AverageConfidence   float64   `json:"averageConfidence"`
	LastMethod          string    `json:"lastMethod,omitempty"`
	LastActivityAt      time.Time `json:"lastActivityAt"`
}

// MessageOutcome is what the pipeline reports into session stats per message.
type MessageOutcome struct {
	Method          string
	Answered        bool
	Rejected        bool
	RateLimited     bool
	ConfidenceScore float64
	At              time.Time
}

// Apply folds one outcome into the stats. Rejected and rate-limited messages carry no confidence.
func (s *SessionStats) Apply(o MessageOutcome) {
	s.TotalMessages++
	s.LastMethod = o.Method
	s.LastActivityAt = o.At

	switch {
	case o.Rejected:
		s.RejectedMessages++
		return
	case o.RateLimited:
		s.RateLimitedMessages++
		return
	case o.Answered:
		s.AnsweredMessages++
	default:
		s.UnansweredMessages++
	}

	s.ConfidenceTotal += o.ConfidenceScore
	if scored := s.AnsweredMessages + s.UnansweredMessages; scored > 0 {
		s.AverageConfidence = s.ConfidenceTotal / float64(scored)
	}
}
