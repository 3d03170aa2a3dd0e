package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"assistant-workers/internal/models"
)

// PostgresConversationStore reads business profiles and persists lead state and history.
type PostgresConversationStore struct {
	db *sql.DB
}

func NewPostgresConversationStore(db *sql.DB) *PostgresConversationStore {
	return &PostgresConversationStore{db: db}
}

func (s *PostgresConversationStore) GetBusiness(ctx context.Context, businessID string) (*models.BusinessProfile, error) {
	var b models.BusinessProfile
	var threshold sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, industry, description, default_language, confidence_threshold
		FROM business_profiles
		WHERE id = $1`, businessID).Scan(
		&b.ID, &b.Name, &b.Industry, &b.Description, &b.DefaultLanguage, &threshold,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get business %s: %w", businessID, err)
	}
	if threshold.Valid {
		v := threshold.Float64
		b.ConfidenceThreshold = &v
	}
	return &b, nil
}

func (s *PostgresConversationStore) GetState(ctx context.Context, conversationID string) (*models.ConversationState, error) {
	var st models.ConversationState
	var state string

	err := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, business_id, state, lead_score, sentiment_score, updated_at
		FROM conversation_states
		WHERE conversation_id = $1`, conversationID).Scan(
		&st.ConversationID, &st.BusinessID, &state, &st.LeadScore, &st.SentimentScore, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation state %s: %w", conversationID, err)
	}
	st.State = models.LeadState(state)
	return &st, nil
}

func (s *PostgresConversationStore) SaveState(ctx context.Context, st models.ConversationState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_states (conversation_id, business_id, state, lead_score, sentiment_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_id) DO UPDATE SET
			state = EXCLUDED.state,
			lead_score = EXCLUDED.lead_score,
			sentiment_score = EXCLUDED.sentiment_score,
			updated_at = EXCLUDED.updated_at`,
		st.ConversationID, st.BusinessID, string(st.State), st.LeadScore, st.SentimentScore, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversation state %s: %w", st.ConversationID, err)
	}
	return nil
}

// RecentMessages returns up to limit messages in chronological order.
func (s *PostgresConversationStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text, sent_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages %s: %w", conversationID, err)
	}
	defer rows.Close()

	var msgs []models.ConversationMessage
	for rows.Next() {
		var m models.ConversationMessage
		var role string
		if err := rows.Scan(&role, &m.Text, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = models.MessageRole(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *PostgresConversationStore) AppendMessage(ctx context.Context, conversationID string, msg models.ConversationMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (conversation_id, role, text, sent_at)
		VALUES ($1, $2, $3, $4)`,
		conversationID, string(msg.Role), msg.Text, msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("append message %s: %w", conversationID, err)
	}
	return nil
}
