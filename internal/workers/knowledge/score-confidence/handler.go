package scoreconfidence

import (
	"context"
	"math"
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

const (
	TaskType = "score-confidence"

	semanticSourceCount = 3
)

type Handler struct {
	config *Config
	scorer semantic.Scorer
	logger logger.Logger
}

// NewHandler builds the scorer. semanticScorer may be nil, in which case the semantic component
// is whatever the caller supplies.
func NewHandler(config *Config, semanticScorer semantic.Scorer, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		scorer: semanticScorer,
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
	if strings.TrimSpace(input.Question) == "" {
		return nil, errors.NewInvalidInputError("question is required")
	}
	if input.SemanticScore == nil {
		input.SemanticScore = h.SemanticScore(ctx, input.Question, input.Sources)
	}
	return &Output{ConfidenceAssessment: h.Score(*input)}, nil
}

// SemanticScore asks the similarity service how close the top sources are to the question and
// returns the best match. It returns nil when there is nothing to compare or the call fails.
func (h *Handler) SemanticScore(ctx context.Context, question string, sources []models.ContextSource) *float64 {
	if h.scorer == nil || len(sources) == 0 {
		return nil
	}
	n := len(sources)
	if n > semanticSourceCount {
		n = semanticSourceCount
	}
	docs := make([]string, n)
	for i := 0; i < n; i++ {
		docs[i] = sources[i].Content
	}

	scores, err := h.scorer.Similarity(ctx, question, docs)
	if err != nil || len(scores) == 0 {
		fields := map[string]interface{}{"sources": n}
		if err != nil {
			fields["error"] = err.Error()
		}
		h.logger.Warn("semantic score unavailable", fields)
		return nil
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	best = clamp01(best)
	return &best
}

// Score is deterministic and never fails.
func (h *Handler) Score(input Input) models.ConfidenceAssessment {
	breakdown := models.ConfidenceBreakdown{
		Relevance:     relevance(input.Question, input.Response, input.Sources),
		Completeness:  completeness(input.Response),
		SourceQuality: sourceQuality(input.Sources),
	}
	if input.SemanticScore != nil {
		breakdown.SemanticMatch = clamp01(*input.SemanticScore)
	}

	w := h.config.Weights
	score := clamp01(w.Relevance*breakdown.Relevance +
		w.Completeness*breakdown.Completeness +
		w.SourceQuality*breakdown.SourceQuality +
		w.SemanticMatch*breakdown.SemanticMatch)

	threshold := h.config.DefaultThreshold
	if t := input.BusinessConfig.ConfidenceThreshold; t != nil {
		threshold = *t
	}
	threshold = clamp01(threshold)

	assessment := models.ConfidenceAssessment{
		ConfidenceScore: score,
		IsConfident:     score >= threshold,
		Threshold:       threshold,
		Breakdown:       breakdown,
		Recommendations: []string{},
	}
	if !assessment.IsConfident {
		assessment.Recommendations = recommendations(breakdown)
	}

	metrics.ConfidenceScore.Observe(score)
	return assessment
}

func relevance(question, response string, sources []models.ContextSource) float64 {
	if len(sources) == 0 {
		return 0
	}
	questionKeywords := textutil.Keywords(question)
	if len(questionKeywords) == 0 {
		return 0
	}

	var b strings.Builder
	b.WriteString(response)
	for _, s := range sources {
		b.WriteByte(' ')
		b.WriteString(s.Content)
	}
	grounding := textutil.KeywordSet(b.String())
	if len(grounding) == 0 {
		return 0
	}

	found := 0
	for _, kw := range questionKeywords {
		if _, ok := grounding[kw]; ok {
			found++
		}
	}
	return clamp01(float64(found) / float64(len(questionKeywords)))
}

func completeness(response string) float64 {
	text := strings.TrimSpace(response)
	words := textutil.WordCount(text)
	if words == 0 {
		return 0
	}

	score := 0.8 * minFloat(1, float64(words)/completenessWordFloor)
	if words >= minSentenceWords && strings.ContainsAny(text[len(text)-1:], ".!?") {
		score += 0.2
	}

	distinct := make(map[string]struct{})
	for _, w := range textutil.Words(text) {
		distinct[w] = struct{}{}
	}
	if len(distinct) <= 1 {
		score = minFloat(score, degenerateCap)
	}
	return clamp01(score)
}

func sourceQuality(sources []models.ContextSource) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		adequacy := minFloat(1, float64(textutil.CharCount(s.Content))/lengthAdequacyChars)
		sum += (clamp01(s.SimilarityScore) + adequacy) / 2
	}
	quality := sum / float64(len(sources))
	if sources[0].OriginType == models.OriginTemplate {
		quality += templateBonus
	}
	return clamp01(quality)
}

func recommendations(b models.ConfidenceBreakdown) []string {
	out := []string{}
	if b.Relevance < weakComponent {
		out = append(out, RecommendRelevance)
	}
	if b.Completeness < weakComponent {
		out = append(out, RecommendCompleteness)
	}
	if b.SourceQuality < weakComponent {
		out = append(out, RecommendSourceQuality)
	}
	if b.SemanticMatch < weakComponent {
		out = append(out, RecommendSemanticMatch)
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
