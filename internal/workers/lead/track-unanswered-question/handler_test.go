package trackunansweredquestion

import (
	"context"
	"errors"
	"testing"

	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/models"
	"assistant-workers/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Upsert(context.Context, models.QuestionObservation) (*models.UnansweredQuestion, bool, error) {
	return nil, false, errors.New("deadlock detected")
}

func (brokenStore) Top(context.Context, string, int) ([]models.UnansweredQuestion, error) {
	return nil, errors.New("deadlock detected")
}

func TestNormalizeQuestion(t *testing.T) {
	a := NormalizeQuestion("What services do YOU offer?")
	b := NormalizeQuestion("what    services   do   you   offer?")
	assert.Equal(t, "what services do you offer", a)
	assert.Equal(t, a, b)
	assert.Equal(t, a, NormalizeQuestion(a))
	assert.Equal(t, HashQuestion(a), HashQuestion(b))
	assert.Len(t, HashQuestion(a), 64)
}

func TestHandler_Record(t *testing.T) {
	store := repository.NewMemoryQuestionStore()
	h := NewHandler(LoadConfig(), store, logger.NewTestLogger(t))
	ctx := context.Background()

	first := h.Record(ctx, Input{Question: "What services do YOU offer?", BusinessID: "b1", SessionID: "s1", ConfidenceScore: 0.2})
	require.True(t, first.Recorded)
	assert.True(t, first.Created)
	assert.Equal(t, 1, first.Frequency)

	second := h.Record(ctx, Input{Question: "what    services   do   you   offer", BusinessID: "b1", SessionID: "s1", ConfidenceScore: 0.4})
	require.True(t, second.Recorded)
	assert.False(t, second.Created)
	assert.Equal(t, first.QuestionID, second.QuestionID)
	assert.Equal(t, 2, second.Frequency)
	assert.InDelta(t, 0.3, second.AverageConfidence, 1e-9)

	other := h.Record(ctx, Input{Question: "What services do you offer?", BusinessID: "b2", ConfidenceScore: 0.1})
	assert.True(t, other.Created)

	top, err := h.Top(ctx, "b1", 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, []string{"s1"}, top[0].SourceSessions)
	assert.Equal(t, models.QuestionPending, top[0].Status)
	assert.Equal(t, []float64{0.2, 0.4}, top[0].ConfidenceScores)
}

func TestHandler_Record_SkipsEmpty(t *testing.T) {
	h := NewHandler(LoadConfig(), repository.NewMemoryQuestionStore(), logger.NewTestLogger(t))

	out := h.Record(context.Background(), Input{Question: "?!", BusinessID: "b1"})
	assert.False(t, out.Recorded)
	assert.Empty(t, out.QuestionHash)

	out = h.Record(context.Background(), Input{Question: "Where are you?"})
	assert.False(t, out.Recorded)
}

func TestHandler_Record_ClampsScore(t *testing.T) {
	h := NewHandler(LoadConfig(), repository.NewMemoryQuestionStore(), logger.NewTestLogger(t))

	out := h.Record(context.Background(), Input{Question: "Do you deliver?", BusinessID: "b1", ConfidenceScore: 1.7})
	assert.Equal(t, 1.0, out.AverageConfidence)
}

func TestHandler_Record_StoreErrorIsSwallowed(t *testing.T) {
	h := NewHandler(LoadConfig(), brokenStore{}, logger.NewTestLogger(t))

	out := h.Record(context.Background(), Input{Question: "Do you deliver?", BusinessID: "b1", ConfidenceScore: 0.2})
	require.NotNil(t, out)
	assert.False(t, out.Recorded)
	assert.Equal(t, string(apperrors.ErrCodePersistenceFailed), out.Error)
	assert.NotEmpty(t, out.QuestionHash)
}

func TestHandler_Top(t *testing.T) {
	h := NewHandler(LoadConfig(), brokenStore{}, logger.NewTestLogger(t))

	_, err := h.Top(context.Background(), "", 5)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	_, err = h.Top(context.Background(), "b1", 5)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed))

	empty := NewHandler(LoadConfig(), repository.NewMemoryQuestionStore(), logger.NewTestLogger(t))
	got, err := empty.Top(context.Background(), "b1", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
