package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnansweredQuestion_Observe(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := NewUnansweredQuestion("q-1", QuestionObservation{
		BusinessID: "biz", Question: "Do you ship?", NormalizedQuestion: "do you ship",
		QuestionHash: "h", SessionID: "s2", ConfidenceScore: 0.3, ObservedAt: t0,
	})

	q.Observe(QuestionObservation{Question: "do you SHIP", SessionID: "s1", ConfidenceScore: 0.5, ObservedAt: t0.Add(time.Minute)})
	q.Observe(QuestionObservation{Question: "Do you ship!", SessionID: "s2", ConfidenceScore: 0.1, ObservedAt: t0.Add(2 * time.Minute)})

	assert.Equal(t, 3, q.Frequency)
	assert.Equal(t, []float64{0.3, 0.5, 0.1}, q.ConfidenceScores)
	assert.InDelta(t, 0.3, q.AverageConfidence, 1e-9)
	assert.Equal(t, []string{"s1", "s2"}, q.SourceSessions)
	assert.Equal(t, QuestionPending, q.Status)
	assert.Equal(t, "Do you ship!", q.Question)
	assert.Equal(t, t0, q.FirstSeenAt)
	assert.Equal(t, t0.Add(2*time.Minute), q.LastSeenAt)
}

func TestSessionStats_Apply(t *testing.T) {
	s := SessionStats{SessionID: "s"}
	now := time.Now()

	s.Apply(MessageOutcome{Method: "confident", Answered: true, ConfidenceScore: 0.9, At: now})
	s.Apply(MessageOutcome{Method: "fallback", ConfidenceScore: 0.3, At: now})
	s.Apply(MessageOutcome{Method: "rejected", Rejected: true, At: now})
	s.Apply(MessageOutcome{Method: "rate_limited", RateLimited: true, At: now})

	assert.Equal(t, 4, s.TotalMessages)
	assert.Equal(t, 1, s.AnsweredMessages)
	assert.Equal(t, 1, s.UnansweredMessages)
	assert.Equal(t, 1, s.RejectedMessages)
	assert.Equal(t, 1, s.RateLimitedMessages)
	assert.InDelta(t, 0.6, s.AverageConfidence, 1e-9)
	assert.Equal(t, "rate_limited", s.LastMethod)
}

func TestLeadState_IsValid(t *testing.T) {
	assert.True(t, StateReadyToConvert.IsValid())
	assert.False(t, LeadState("closed_won").IsValid())
	assert.True(t, IntentPriceConcern.IsValid())
	assert.False(t, Intent("buy").IsValid())
}

func TestRateLimitWindow_Expired(t *testing.T) {
	reset := time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)
	w := RateLimitWindow{Count: 10, ResetTime: reset}

	assert.False(t, w.Expired(reset.Add(-time.Second)))
	assert.False(t, w.Expired(reset))
	assert.True(t, w.Expired(reset.Add(time.Nanosecond)))
}
