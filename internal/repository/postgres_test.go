package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"assistant-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var questionCols = []string{
	"id", "business_id", "question", "normalized_question", "question_hash", "frequency",
	"confidence_scores", "average_confidence", "source_sessions", "status", "conversation_context",
	"first_seen_at", "last_seen_at",
}

func TestPostgresConversationStore_GetBusiness(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresConversationStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM business_profiles WHERE id = \$1`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "industry", "description", "default_language", "confidence_threshold"}).
			AddRow("b1", "Acme Web", "software", "Web agency", "en", 0.8))

	b, err := store.GetBusiness(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Web", b.Name)
	require.NotNil(t, b.ConfidenceThreshold)
	assert.Equal(t, 0.8, *b.ConfidenceThreshold)

	mock.ExpectQuery(`SELECT (.+) FROM business_profiles WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "industry", "description", "default_language", "confidence_threshold"}))

	_, err = store.GetBusiness(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConversationStore_State(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresConversationStore(db)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"conversation_id", "business_id", "state", "lead_score", "sentiment_score", "updated_at"}

	mock.ExpectQuery(`SELECT (.+) FROM conversation_states WHERE conversation_id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("c1", "b1", "interested", 40, 0.3, now))

	st, err := store.GetState(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StateInterested, st.State)
	assert.Equal(t, 40, st.LeadScore)

	mock.ExpectQuery(`SELECT (.+) FROM conversation_states WHERE conversation_id = \$1`).
		WithArgs("c2").
		WillReturnRows(sqlmock.NewRows(cols))

	st, err = store.GetState(context.Background(), "c2")
	require.NoError(t, err)
	assert.Nil(t, st)

	mock.ExpectExec(`INSERT INTO conversation_states`).
		WithArgs("c1", "b1", "qualified", 55, 0.2, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.SaveState(context.Background(), models.ConversationState{
		ConversationID: "c1", BusinessID: "b1", State: models.StateQualified, LeadScore: 55, SentimentScore: 0.2, UpdatedAt: now,
	})
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO conversation_states`).
		WillReturnError(errors.New("connection reset"))
	err = store.SaveState(context.Background(), models.ConversationState{ConversationID: "c1"})
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConversationStore_RecentMessages(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresConversationStore(db)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT role, text, sent_at FROM conversation_messages WHERE conversation_id = \$1 ORDER BY sent_at DESC LIMIT \$2`).
		WithArgs("c1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text", "sent_at"}).
			AddRow("assistant", "We open at 9.", t0.Add(time.Minute)).
			AddRow("customer", "When do you open?", t0))

	msgs, err := store.RecentMessages(context.Background(), "c1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleCustomer, msgs[0].Role)
	assert.Equal(t, "We open at 9.", msgs[1].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContentStore_ListCandidates(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresContentStore(db)
	used := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM content_sections WHERE business_id = \$1`).
		WithArgs("b1", "en").
		WillReturnRows(sqlmock.NewRows([]string{"id", "business_id", "language", "origin_type", "section_name", "title", "content", "last_used_at"}).
			AddRow("t1", "b1", "en", "template", "services", "Our services", "We build websites.", used).
			AddRow("f1", "b1", "en", "faq", "hours", "Hours", "Open 9-5.", nil))

	out, err := store.ListCandidates(context.Background(), "b1", "en", "services")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, models.OriginTemplate, out[0].OriginType)
	assert.Equal(t, used, out[0].LastUsedAt)
	assert.True(t, out[1].LastUsedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQuestionStore_UpsertCreates(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresQuestionStore(db)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO unanswered_questions (.+) ON CONFLICT \(business_id, question_hash\) DO NOTHING`).
		WithArgs(sqlmock.AnyArg(), "b1", "What is the meaning of life?", "what is the meaning of life", "h1", 1,
			sqlmock.AnyArg(), 0.2, sqlmock.AnyArg(), "pending", sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	q, created, err := store.Upsert(context.Background(), observation("b1", "h1", "s1", 0.2, now))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, q.Frequency)
	assert.Equal(t, []string{"s1"}, q.SourceSessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQuestionStore_UpsertUpdates(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresQuestionStore(db)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO unanswered_questions (.+) ON CONFLICT`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM unanswered_questions WHERE business_id = \$1 AND question_hash = \$2 FOR UPDATE`).
		WithArgs("b1", "h1").
		WillReturnRows(sqlmock.NewRows(questionCols).AddRow(
			"q1", "b1", "what is the meaning of life", "what is the meaning of life", "h1", 1,
			"{0.4}", 0.4, "{s1}", "unanswered", []byte(`{"channel":"web"}`), t0, t0,
		))
	mock.ExpectExec(`UPDATE unanswered_questions SET`).
		WithArgs("q1", "What is the meaning of life?", 2, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), t1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	q, created, err := store.Upsert(context.Background(), observation("b1", "h1", "s0", 0.6, t1))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, q.Frequency)
	assert.InDelta(t, 0.5, q.AverageConfidence, 1e-9)
	assert.Equal(t, []string{"s0", "s1"}, q.SourceSessions)
	assert.Equal(t, models.QuestionUnanswered, q.Status)
	assert.Equal(t, "web", q.ConversationContext["channel"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQuestionStore_UpsertRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO unanswered_questions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM unanswered_questions`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, _, err := store.Upsert(context.Background(), observation("b1", "h1", "s1", 0.2, time.Now()))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQuestionStore_UpsertInsertErrorRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO unanswered_questions`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err := store.Upsert(context.Background(), observation("b1", "h1", "s1", 0.2, time.Now()))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A concurrent writer inserted the row first: the insert is a no-op and the
// observation is folded into the committed row instead of being dropped.
func TestPostgresQuestionStore_UpsertAfterConcurrentInsert(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresQuestionStore(db)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO unanswered_questions (.+) ON CONFLICT \(business_id, question_hash\) DO NOTHING`).
		WithArgs(sqlmock.AnyArg(), "b1", "What is the meaning of life?", "what is the meaning of life", "h1", 1,
			sqlmock.AnyArg(), 0.4, sqlmock.AnyArg(), "pending", sqlmock.AnyArg(), t0, t0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM unanswered_questions WHERE business_id = \$1 AND question_hash = \$2 FOR UPDATE`).
		WithArgs("b1", "h1").
		WillReturnRows(sqlmock.NewRows(questionCols).AddRow(
			"q-other", "b1", "what is the meaning of life", "what is the meaning of life", "h1", 1,
			"{0.2}", 0.2, "{s2}", "pending", nil, t0, t0,
		))
	mock.ExpectExec(`UPDATE unanswered_questions SET`).
		WithArgs("q-other", "What is the meaning of life?", 2, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	q, created, err := store.Upsert(context.Background(), observation("b1", "h1", "s1", 0.4, t0))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "q-other", q.ID)
	assert.Equal(t, 2, q.Frequency)
	assert.Equal(t, []float64{0.2, 0.4}, q.ConfidenceScores)
	assert.InDelta(t, 0.3, q.AverageConfidence, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQuestionStore_Top(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPostgresQuestionStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM unanswered_questions WHERE business_id = \$1 ORDER BY frequency DESC, last_seen_at DESC LIMIT \$2`).
		WithArgs("b1", 5).
		WillReturnRows(sqlmock.NewRows(questionCols).
			AddRow("q1", "b1", "Q1", "q1", "h1", 4, "{0.1,0.2,0.3,0.2}", 0.2, "{a,b}", "pending", nil, now, now).
			AddRow("q2", "b1", "Q2", "q2", "h2", 1, "{0.3}", 0.3, "{}", "pending", nil, now, now))

	out, err := store.Top(context.Background(), "b1", 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 4, out[0].Frequency)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.2}, out[0].ConfidenceScores)
	assert.Equal(t, []string{"a", "b"}, out[0].SourceSessions)
	assert.Nil(t, out[1].ConversationContext)
	assert.NoError(t, mock.ExpectationsWereMet())
}
