package retrievecontext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/semantic"
	"assistant-workers/internal/common/textutil"
	"assistant-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "retrieve-context"

type Handler struct {
	config *Config
	store  ContentStore
	scorer semantic.Scorer
	cache  Cache
	logger logger.Logger
}

// NewHandler wires the retriever. scorer and cache may be nil.
func NewHandler(config *Config, store ContentStore, scorer semantic.Scorer, cache Cache, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		scorer: scorer,
		cache:  cache,
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.HandleJob(client, job, h.config.Timeout, h.logger, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := camunda.DecodeVariables(job, &input); err != nil {
			return nil, err
		}
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.BusinessID) == "" {
		return nil, errors.NewInvalidInputError("businessId is required")
	}

	result := h.Search(ctx, Query{
		Text:       input.Question,
		BusinessID: input.BusinessID,
		Language:   input.Language,
		Limit:      input.Limit,
		Threshold:  input.Threshold,
	})
	return &Output{ContextSources: result.Results, Metadata: result.Metadata}, nil
}

// Search never fails: store errors come back as an empty result with RetrievalFailed set.
func (h *Handler) Search(ctx context.Context, q Query) *SearchResult {
	limit := h.effectiveLimit(q.Limit)
	threshold := h.config.Threshold
	if q.Threshold != nil {
		threshold = clamp01(*q.Threshold)
	}

	result := &SearchResult{
		Results:  []models.ContextSource{},
		Metadata: Metadata{PerOriginCounts: map[string]int{}},
	}
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return result
	}

	key := cacheKey(q.BusinessID, q.Language, text, limit, threshold)
	if h.cache != nil && h.config.CacheTTL > 0 {
		if cached, ok := h.cache.Get(ctx, key); ok {
			cached.Metadata.Cached = true
			return cached
		}
	}

	candidates, err := h.store.ListCandidates(ctx, q.BusinessID, q.Language, text)
	if err != nil {
		rerr := h.retrievalError(ctx, "content_store", err)
		h.logger.Error("content retrieval failed", map[string]interface{}{
			"businessId": q.BusinessID,
			"errorCode":  string(rerr.Code),
			"error":      err.Error(),
		})
		result.Metadata.RetrievalFailed = true
		result.Metadata.Error = rerr.Error()
		metrics.RetrievalResults.WithLabelValues(h.config.Backend).Observe(0)
		return result
	}

	semanticScores := h.semanticScores(ctx, text, candidates)
	result.Metadata.SemanticUsed = semanticScores != nil

	scored := make([]models.ContextSource, 0, len(candidates))
	for i, c := range candidates {
		similarity := lexicalScore(text, c)
		if semanticScores != nil {
			similarity = h.config.LexicalWeight*similarity + h.config.SemanticWeight*semanticScores[i]
		}
		similarity = clamp01(similarity)
		if similarity < threshold {
			continue
		}
		scored = append(scored, models.ContextSource{
			ID:              c.ID,
			OriginType:      c.OriginType,
			SectionName:     c.SectionName,
			Content:         c.Content,
			SimilarityScore: similarity,
			LastUsedAt:      c.LastUsedAt,
			Metadata: models.SourceMetadata{
				CharacterCount: textutil.CharCount(c.Content),
				WordCount:      textutil.WordCount(c.Content),
			},
		})
	}

	rank(scored)
	result.Metadata.TotalResults = len(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	for _, s := range scored {
		result.Metadata.PerOriginCounts[string(s.OriginType)]++
	}
	result.Results = scored

	metrics.RetrievalResults.WithLabelValues(h.config.Backend).Observe(float64(len(scored)))
	h.logger.Debug("context retrieved", map[string]interface{}{
		"businessId":   q.BusinessID,
		"candidates":   len(candidates),
		"totalResults": result.Metadata.TotalResults,
		"returned":     len(scored),
		"semanticUsed": result.Metadata.SemanticUsed,
	})

	if h.cache != nil && h.config.CacheTTL > 0 {
		h.cache.Set(ctx, key, result, h.config.CacheTTL)
	}
	return result
}

func (h *Handler) effectiveLimit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = h.config.DefaultLimit
	}
	if limit > h.config.MaxLimit {
		limit = h.config.MaxLimit
	}
	return limit
}

// semanticScores returns nil when no scorer is wired or the call fails.
func (h *Handler) semanticScores(ctx context.Context, text string, candidates []models.ContentCandidate) []float64 {
	if h.scorer == nil || len(candidates) == 0 {
		return nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = strings.TrimSpace(c.Title + "\n" + c.Content)
	}

	scores, err := h.scorer.Similarity(ctx, text, docs)
	if err == nil && len(scores) != len(docs) {
		err = fmt.Errorf("got %d scores for %d documents", len(scores), len(docs))
	}
	if err != nil {
		h.logger.Warn("semantic scoring failed, using lexical scores only", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return scores
}

func (h *Handler) retrievalError(ctx context.Context, source string, err error) *errors.StandardError {
	if stdErr, ok := errors.AsStandard(err); ok {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewRetrievalTimeoutError(source)
	}
	return errors.NewRetrievalError(source, err)
}

// lexicalScore is 1 when the whole query appears in the section, otherwise the share of query keywords it contains.
func lexicalScore(query string, c models.ContentCandidate) float64 {
	lq := strings.ToLower(query)
	if strings.Contains(strings.ToLower(c.Title), lq) || strings.Contains(strings.ToLower(c.Content), lq) {
		return 1
	}

	keywords := textutil.Keywords(query)
	if len(keywords) == 0 {
		return 0
	}
	docWords := make(map[string]struct{})
	for _, w := range textutil.Words(c.Title + " " + c.Content) {
		docWords[w] = struct{}{}
	}

	found := 0
	for _, kw := range keywords {
		if _, ok := docWords[kw]; ok {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

// rank orders by similarity, then template before context before faq, then most recently used, then ID.
func rank(sources []models.ContextSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		a, b := sources[i], sources[j]
		if a.SimilarityScore != b.SimilarityScore {
			return a.SimilarityScore > b.SimilarityScore
		}
		if ra, rb := a.OriginType.Rank(), b.OriginType.Rank(); ra != rb {
			return ra < rb
		}
		if !a.LastUsedAt.Equal(b.LastUsedAt) {
			return a.LastUsedAt.After(b.LastUsedAt)
		}
		return a.ID < b.ID
	})
}

func cacheKey(businessID, language, text string, limit int, threshold float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%.4f|%s", businessID, language, limit, threshold, strings.ToLower(text))))
	return businessID + ":" + hex.EncodeToString(sum[:16])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
