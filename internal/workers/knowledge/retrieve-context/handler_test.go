package retrievecontext

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"assistant-workers/internal/common/database"
	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/models"
	"assistant-workers/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedScorer struct {
	score float64
	err   error
}

func (s fixedScorer) Similarity(_ context.Context, _ string, docs []string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(docs))
	for i := range out {
		out[i] = s.score
	}
	return out, nil
}

type countingStore struct {
	ContentStore
	calls int32
	err   error
}

func (s *countingStore) ListCandidates(ctx context.Context, businessID, language, query string) ([]models.ContentCandidate, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.ContentStore.ListCandidates(ctx, businessID, language, query)
}

func sampleStore() *repository.MemoryContentStore {
	return repository.NewMemoryContentStore(
		models.ContentCandidate{
			ID: "tpl-services", BusinessID: "b1", Language: "en", OriginType: models.OriginTemplate,
			SectionName: "services", Title: "Our services",
			Content: "We offer web design, hosting and digital marketing services for small businesses.",
		},
		models.ContentCandidate{
			ID: "faq-hours", BusinessID: "b1", Language: "en", OriginType: models.OriginFAQ,
			SectionName: "hours", Title: "Opening hours", Content: "We are open from 9 to 5 on weekdays.",
		},
		models.ContentCandidate{
			ID: "other-biz", BusinessID: "b2", Language: "en", OriginType: models.OriginTemplate,
			Title: "Services", Content: "We offer services.",
		},
	)
}

func newTestHandler(t *testing.T, store ContentStore, scorer fixedScorer, useScorer bool) *Handler {
	cfg := LoadConfig()
	if !useScorer {
		return NewHandler(cfg, store, nil, nil, logger.NewTestLogger(t))
	}
	return NewHandler(cfg, store, scorer, nil, logger.NewTestLogger(t))
}

func TestSearch_LexicalOnly(t *testing.T) {
	h := newTestHandler(t, sampleStore(), fixedScorer{}, false)

	result := h.Search(context.Background(), Query{Text: "What services do you offer?", BusinessID: "b1", Language: "en"})

	require.Len(t, result.Results, 1)
	top := result.Results[0]
	assert.Equal(t, "tpl-services", top.ID)
	assert.Equal(t, 1.0, top.SimilarityScore)
	assert.Equal(t, 12, top.Metadata.WordCount)
	assert.Equal(t, 1, result.Metadata.TotalResults)
	assert.Equal(t, map[string]int{"template": 1}, result.Metadata.PerOriginCounts)
	assert.False(t, result.Metadata.SemanticUsed)
}

func TestSearch_FusesSemanticScore(t *testing.T) {
	h := newTestHandler(t, sampleStore(), fixedScorer{score: 0.5}, true)

	result := h.Search(context.Background(), Query{Text: "What services do you offer?", BusinessID: "b1", Language: "en"})

	require.Len(t, result.Results, 2)
	assert.Equal(t, "tpl-services", result.Results[0].ID)
	assert.InDelta(t, 0.7, result.Results[0].SimilarityScore, 1e-9)
	assert.Equal(t, "faq-hours", result.Results[1].ID)
	assert.InDelta(t, 0.3, result.Results[1].SimilarityScore, 1e-9)
	assert.True(t, result.Metadata.SemanticUsed)
}

func TestSearch_ThresholdFiltersBeforeCounting(t *testing.T) {
	h := newTestHandler(t, sampleStore(), fixedScorer{score: 0.5}, true)
	threshold := 0.99

	result := h.Search(context.Background(), Query{Text: "What services do you offer?", BusinessID: "b1", Threshold: &threshold})

	assert.Empty(t, result.Results)
	assert.Equal(t, 0, result.Metadata.TotalResults)
	assert.False(t, result.Metadata.RetrievalFailed)
}

func TestSearch_TieBreakOrder(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	store := repository.NewMemoryContentStore(
		models.ContentCandidate{ID: "f", BusinessID: "b1", OriginType: models.OriginFAQ, Content: "pricing details", LastUsedAt: newer},
		models.ContentCandidate{ID: "c-old", BusinessID: "b1", OriginType: models.OriginContext, Content: "pricing details", LastUsedAt: older},
		models.ContentCandidate{ID: "c-b", BusinessID: "b1", OriginType: models.OriginContext, Content: "pricing details", LastUsedAt: newer},
		models.ContentCandidate{ID: "c-a", BusinessID: "b1", OriginType: models.OriginContext, Content: "pricing details", LastUsedAt: newer},
		models.ContentCandidate{ID: "t", BusinessID: "b1", OriginType: models.OriginTemplate, Content: "pricing details", LastUsedAt: older},
	)
	h := newTestHandler(t, store, fixedScorer{}, false)

	result := h.Search(context.Background(), Query{Text: "pricing", BusinessID: "b1", Limit: 10})

	ids := make([]string, len(result.Results))
	for i, r := range result.Results {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"t", "c-a", "c-b", "c-old", "f"}, ids)
}

func TestSearch_LimitIsCapped(t *testing.T) {
	store := repository.NewMemoryContentStore()
	for i := 0; i < 30; i++ {
		store.Add(models.ContentCandidate{
			ID: fmt.Sprintf("s%02d", i), BusinessID: "b1", OriginType: models.OriginContext, Content: "refund policy",
		})
	}
	h := newTestHandler(t, store, fixedScorer{}, false)

	capped := h.Search(context.Background(), Query{Text: "refund", BusinessID: "b1", Limit: 50})
	assert.Len(t, capped.Results, 20)
	assert.Equal(t, 30, capped.Metadata.TotalResults)
	assert.Equal(t, 20, capped.Metadata.PerOriginCounts["context"])

	defaulted := h.Search(context.Background(), Query{Text: "refund", BusinessID: "b1"})
	assert.Len(t, defaulted.Results, 5)
}

func TestSearch_StoreFailureYieldsEmptyResult(t *testing.T) {
	store := &countingStore{ContentStore: sampleStore(), err: errors.New("connection refused")}
	h := newTestHandler(t, store, fixedScorer{}, false)

	result := h.Search(context.Background(), Query{Text: "services", BusinessID: "b1"})

	assert.Empty(t, result.Results)
	assert.True(t, result.Metadata.RetrievalFailed)
	assert.Contains(t, result.Metadata.Error, string(apperrors.ErrCodeRetrievalFailed))
}

func TestSearch_SemanticFailureDegradesToLexical(t *testing.T) {
	h := newTestHandler(t, sampleStore(), fixedScorer{err: errors.New("503")}, true)

	result := h.Search(context.Background(), Query{Text: "What services do you offer?", BusinessID: "b1"})

	require.Len(t, result.Results, 1)
	assert.Equal(t, 1.0, result.Results[0].SimilarityScore)
	assert.False(t, result.Metadata.SemanticUsed)
	assert.False(t, result.Metadata.RetrievalFailed)
}

func TestSearch_EmptyQuery(t *testing.T) {
	store := &countingStore{ContentStore: sampleStore()}
	h := newTestHandler(t, store, fixedScorer{}, false)

	result := h.Search(context.Background(), Query{Text: "   ", BusinessID: "b1"})

	assert.Empty(t, result.Results)
	assert.Equal(t, int32(0), store.calls)
}

func TestSearch_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := LoadConfig()
	cfg.CacheTTL = time.Minute
	store := &countingStore{ContentStore: sampleStore()}
	h := NewHandler(cfg, store, nil, NewRedisCache(database.WrapRedis(rdb, "test")), logger.NewTestLogger(t))
	q := Query{Text: "What services do you offer?", BusinessID: "b1", Language: "en"}

	first := h.Search(context.Background(), q)
	second := h.Search(context.Background(), q)

	assert.False(t, first.Metadata.Cached)
	assert.True(t, second.Metadata.Cached)
	require.Len(t, second.Results, 1)
	assert.Equal(t, first.Results[0].ID, second.Results[0].ID)
	assert.Equal(t, int32(1), store.calls)

	mr.FastForward(2 * time.Minute)
	third := h.Search(context.Background(), q)
	assert.False(t, third.Metadata.Cached)
	assert.Equal(t, int32(2), store.calls)
}

func TestExecute_RequiresBusiness(t *testing.T) {
	h := newTestHandler(t, sampleStore(), fixedScorer{}, false)

	_, err := h.Execute(context.Background(), &Input{Question: "hours?"})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}

func TestExecute_ReturnsSources(t *testing.T) {
	h := newTestHandler(t, sampleStore(), fixedScorer{}, false)

	out, err := h.Execute(context.Background(), &Input{Question: "opening hours", BusinessID: "b1", Language: "en"})

	require.NoError(t, err)
	require.Len(t, out.ContextSources, 1)
	assert.Equal(t, models.OriginFAQ, out.ContextSources[0].OriginType)
}
