package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"assistant-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const questionColumns = `id, business_id, question, normalized_question, question_hash, frequency,
	confidence_scores, average_confidence, source_sessions, status, conversation_context,
	first_seen_at, last_seen_at`

// PostgresQuestionStore keeps one row per (business_id, question_hash).
type PostgresQuestionStore struct {
	db *sql.DB
}

func NewPostgresQuestionStore(db *sql.DB) *PostgresQuestionStore {
	return &PostgresQuestionStore{db: db}
}

// Upsert inserts the question when it is new. Otherwise, or when a concurrent writer inserted it
// first, it locks the row, folds the observation in and writes it back in the same transaction.
func (s *PostgresQuestionStore) Upsert(ctx context.Context, obs models.QuestionObservation) (*models.UnansweredQuestion, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	fresh := models.NewUnansweredQuestion(uuid.NewString(), obs)
	inserted, err := insertQuestion(ctx, tx, fresh)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit: %w", err)
		}
		return fresh, true, nil
	}

	q, err := scanQuestion(tx.QueryRowContext(ctx, `
		SELECT `+questionColumns+`
		FROM unanswered_questions
		WHERE business_id = $1 AND question_hash = $2
		FOR UPDATE`, obs.BusinessID, obs.QuestionHash))
	if err != nil {
		return nil, false, fmt.Errorf("select question: %w", err)
	}
	q.Observe(obs)
	if err := updateQuestion(ctx, tx, q); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return q, false, nil
}

func (s *PostgresQuestionStore) Top(ctx context.Context, businessID string, limit int) ([]models.UnansweredQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+questionColumns+`
		FROM unanswered_questions
		WHERE business_id = $1
		ORDER BY frequency DESC, last_seen_at DESC
		LIMIT $2`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list questions %s: %w", businessID, err)
	}
	defer rows.Close()

	var out []models.UnansweredQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (*models.UnansweredQuestion, error) {
	var q models.UnansweredQuestion
	var status string
	var contextJSON []byte

	err := row.Scan(
		&q.ID, &q.BusinessID, &q.Question, &q.NormalizedQuestion, &q.QuestionHash, &q.Frequency,
		pq.Array(&q.ConfidenceScores), &q.AverageConfidence, pq.Array(&q.SourceSessions), &status, &contextJSON,
		&q.FirstSeenAt, &q.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	q.Status = models.QuestionStatus(status)
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &q.ConversationContext); err != nil {
			return nil, fmt.Errorf("decode conversation context: %w", err)
		}
	}
	return &q, nil
}

func encodeContext(ctxMap map[string]interface{}) ([]byte, error) {
	if ctxMap == nil {
		return nil, nil
	}
	return json.Marshal(ctxMap)
}

// insertQuestion reports false when a row for (business_id, question_hash) already exists.
func insertQuestion(ctx context.Context, tx *sql.Tx, q *models.UnansweredQuestion) (bool, error) {
	contextJSON, err := encodeContext(q.ConversationContext)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO unanswered_questions (`+questionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (business_id, question_hash) DO NOTHING`,
		q.ID, q.BusinessID, q.Question, q.NormalizedQuestion, q.QuestionHash, q.Frequency,
		pq.Array(q.ConfidenceScores), q.AverageConfidence, pq.Array(q.SourceSessions), string(q.Status), contextJSON,
		q.FirstSeenAt, q.LastSeenAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert question: %w", err)
	}
	return n == 1, nil
}

func updateQuestion(ctx context.Context, tx *sql.Tx, q *models.UnansweredQuestion) error {
	contextJSON, err := encodeContext(q.ConversationContext)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE unanswered_questions SET
			question = $2,
			frequency = $3,
			confidence_scores = $4,
			average_confidence = $5,
			source_sessions = $6,
			conversation_context = $7,
			last_seen_at = $8
		WHERE id = $1`,
		q.ID, q.Question, q.Frequency, pq.Array(q.ConfidenceScores), q.AverageConfidence,
		pq.Array(q.SourceSessions), contextJSON, q.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}
