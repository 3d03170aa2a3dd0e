package trackunansweredquestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/textutil"
	"assistant-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "track-unanswered-question"

type Handler struct {
	config *Config
	store  QuestionStore
	logger logger.Logger
}

func NewHandler(config *Config, store QuestionStore, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.HandleJob(client, job, h.config.Timeout, h.logger, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := camunda.DecodeVariables(job, &input); err != nil {
			return nil, err
		}
		return h.Record(ctx, input), nil
	})
}

// NormalizeQuestion lowercases, strips punctuation and collapses whitespace.
func NormalizeQuestion(q string) string {
	return textutil.Normalize(q)
}

// HashQuestion is the dedup key of a normalized question within a business.
func HashQuestion(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Record folds one low-confidence occurrence into the business's question set.
// Store failures are logged and reported in the output, never returned.
func (h *Handler) Record(ctx context.Context, input Input) *Output {
	normalized := NormalizeQuestion(input.Question)
	out := &Output{NormalizedQuestion: normalized}

	if normalized == "" || strings.TrimSpace(input.BusinessID) == "" {
		metrics.UnansweredRecorded.WithLabelValues("skipped").Inc()
		h.logger.Debug("unanswered question skipped", map[string]interface{}{
			"businessId": input.BusinessID,
		})
		return out
	}
	out.QuestionHash = HashQuestion(normalized)

	score := input.ConfidenceScore
	if math.IsNaN(score) || score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	q, created, err := h.store.Upsert(ctx, models.QuestionObservation{
		BusinessID:          input.BusinessID,
		Question:            strings.TrimSpace(input.Question),
		NormalizedQuestion:  normalized,
		QuestionHash:        out.QuestionHash,
		SessionID:           input.SessionID,
		ConfidenceScore:     score,
		ConversationContext: input.ConversationContext,
		ObservedAt:          time.Now().UTC(),
	})
	if err != nil {
		perr := errors.NewPersistenceError("record unanswered question", err)
		metrics.UnansweredRecorded.WithLabelValues("failed").Inc()
		h.logger.Error("failed to record unanswered question", map[string]interface{}{
			"businessId":   input.BusinessID,
			"questionHash": out.QuestionHash,
			"errorCode":    string(perr.Code),
			"error":        err.Error(),
		})
		out.Error = string(perr.Code)
		return out
	}

	outcome := "updated"
	if created {
		outcome = "created"
	}
	metrics.UnansweredRecorded.WithLabelValues(outcome).Inc()

	out.Recorded = true
	out.Created = created
	out.QuestionID = q.ID
	out.Frequency = q.Frequency
	out.AverageConfidence = q.AverageConfidence

	h.logger.Info("unanswered question recorded", map[string]interface{}{
		"businessId":        input.BusinessID,
		"questionId":        q.ID,
		"frequency":         q.Frequency,
		"averageConfidence": q.AverageConfidence,
		"created":           created,
	})
	return out
}

// Top returns the most frequent unanswered questions of a business.
func (h *Handler) Top(ctx context.Context, businessID string, limit int) ([]models.UnansweredQuestion, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, errors.NewInvalidInputError("businessId is required")
	}
	if limit <= 0 || limit > h.config.TopLimit {
		limit = h.config.TopLimit
	}
	questions, err := h.store.Top(ctx, businessID, limit)
	if err != nil {
		return nil, errors.NewPersistenceError("list unanswered questions", err)
	}
	if questions == nil {
		questions = []models.UnansweredQuestion{}
	}
	return questions, nil
}
