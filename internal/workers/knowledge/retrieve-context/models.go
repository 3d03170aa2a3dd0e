package retrievecontext

import (
	"context"
	"time"

	"assistant-workers/internal/models"
)

// ContentStore yields the candidate sections of one business; query may be used for pre-selection.
type ContentStore interface {
	ListCandidates(ctx context.Context, businessID, language, query string) ([]models.ContentCandidate, error)
}

// Cache stores finished search results. Misses and backend errors look the same to the caller.
type Cache interface {
	Get(ctx context.Context, key string) (*SearchResult, bool)
	Set(ctx context.Context, key string, result *SearchResult, ttl time.Duration)
}

type Input struct {
	Question   string   `json:"question"`
	BusinessID string   `json:"businessId"`
	Language   string   `json:"language"`
	Limit      int      `json:"limit"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

type Query struct {
	Text       string
	BusinessID string
	Language   string
	Limit      int
	Threshold  *float64
}

type Metadata struct {
	TotalResults    int            `json:"totalResults"`
	PerOriginCounts map[string]int `json:"perOriginCounts"`
	SemanticUsed    bool           `json:"semanticUsed"`
	RetrievalFailed bool           `json:"retrievalFailed"`
	Cached          bool           `json:"cached"`
	Error           string         `json:"error,omitempty"`
}

type SearchResult struct {
	Results  []models.ContextSource `json:"results"`
	Metadata Metadata               `json:"metadata"`
}

type Output struct {
	ContextSources []models.ContextSource `json:"contextSources"`
	Metadata       Metadata               `json:"retrievalMetadata"`
}
