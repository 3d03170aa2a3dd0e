package repository

import (
	"context"
	"database/sql"
	"fmt"

	"assistant-workers/internal/models"
)

// PostgresContentStore reads template, context and FAQ sections from content_sections.
type PostgresContentStore struct {
	db *sql.DB
}

func NewPostgresContentStore(db *sql.DB) *PostgresContentStore {
	return &PostgresContentStore{db: db}
}

// ListCandidates returns every section for the business and language; scoring happens in the retriever.
func (s *PostgresContentStore) ListCandidates(ctx context.Context, businessID, language, _ string) ([]models.ContentCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_id, language, origin_type, section_name, title, content, last_used_at
		FROM content_sections
		WHERE business_id = $1 AND ($2 = '' OR language = $2)`, businessID, language)
	if err != nil {
		return nil, fmt.Errorf("list content %s: %w", businessID, err)
	}
	defer rows.Close()

	var out []models.ContentCandidate
	for rows.Next() {
		var c models.ContentCandidate
		var origin string
		var lastUsed sql.NullTime
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.Language, &origin, &c.SectionName, &c.Title, &c.Content, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		c.OriginType = models.OriginType(origin)
		if lastUsed.Valid {
			c.LastUsedAt = lastUsed.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
