package processmessage

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/observability"
	"assistant-workers/internal/models"
	"assistant-workers/internal/repository"
	synthesizeresponse "assistant-workers/internal/workers/ai-conversation/synthesize-response"
	retrievecontext "assistant-workers/internal/workers/knowledge/retrieve-context"
	scoreconfidence "assistant-workers/internal/workers/knowledge/score-confidence"
	advanceleadstate "assistant-workers/internal/workers/lead/advance-lead-state"
	trackunansweredquestion "assistant-workers/internal/workers/lead/track-unanswered-question"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"golang.org/x/sync/errgroup"
)

const TaskType = "process-inbound-message"

type Handler struct {
	config *Config
	deps   Dependencies
	obs    *observability.Observability
	logger logger.Logger
}

func NewHandler(config *Config, deps Dependencies, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = &observability.Observability{}
	}
	return &Handler{
		config: config,
		deps:   deps,
		obs:    obs,
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.HandleJob(client, job, h.config.Timeout, h.logger, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := camunda.DecodeVariables(job, &input); err != nil {
			return nil, err
		}
		return h.Process(ctx, &input)
	})
}

// answerResult is what the retrieval/scoring/synthesis branch hands back to Process.
type answerResult struct {
	sources    []models.ContextSource
	assessment models.ConfidenceAssessment
	reply      *synthesizeresponse.Output
	response   string
	method     string
	flags      []string
}

// Process runs one inbound message through the pipeline. Unsafe input is the only refusal;
// every other failure degrades to a best-effort reply whose Method names the fallback taken.
func (h *Handler) Process(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()
	if strings.TrimSpace(input.BusinessID) == "" {
		return nil, errors.NewInvalidInputError("businessId is required")
	}
	sessionID := firstNonEmpty(input.SessionID, input.ConversationID)
	if sessionID == "" {
		return nil, errors.NewInvalidInputError("sessionId or conversationId is required")
	}
	conversationID := firstNonEmpty(input.ConversationID, input.SessionID)

	out := &Output{ContextSources: []models.ContextSource{}}
	log := h.logger.WithFields(map[string]interface{}{
		"businessId":     input.BusinessID,
		"conversationId": conversationID,
	})

	stageCtx, end := h.obs.StartStage(ctx, "guardrail.input")
	check := h.deps.Guardrail.ValidateInput(stageCtx, input.Question)
	end()
	out.SecurityFlags = check.Flags
	if !check.IsSafe {
		rejected := errors.NewUnsafeInputError(check.Categories)
		out.Error = string(rejected.Code)
		out.Method = MethodRejected
		h.finish(ctx, input, sessionID, conversationID, "", out, start)
		log.Warn("message rejected", map[string]interface{}{"categories": check.Categories})
		return out, nil
	}
	question := check.SanitizedText

	business := h.business(ctx, input.BusinessID, log)
	language := firstNonEmpty(input.Language, business.DefaultLanguage, h.config.DefaultLanguage)
	currentState := h.leadState(ctx, conversationID, log)
	out.LeadState = currentState

	if h.deps.Limiter != nil {
		if d := h.deps.Limiter.Allow(ctx, sessionID); !d.Allowed {
			out.Success = true
			out.Method = MethodRateLimited
			out.Response = synthesizeresponse.StaticReply(language, currentState)
			h.finish(ctx, input, sessionID, conversationID, question, out, start)
			log.Info("message rate limited", map[string]interface{}{
				"sessionId": sessionID,
				"count":     d.Count,
				"resetAt":   d.ResetAt,
			})
			return out, nil
		}
	}

	var (
		lead   *advanceleadstate.Output
		answer answerResult
	)
	g, gctx := errgroup.WithContext(ctx)
	if h.config.Features.LeadTracking && h.deps.Leads != nil {
		g.Go(func() error {
			stageCtx, end := h.obs.StartStage(gctx, "lead.advance")
			defer end()
			res, err := h.deps.Leads.Advance(stageCtx, &advanceleadstate.Input{
				ConversationID: conversationID,
				BusinessID:     input.BusinessID,
				SessionID:      sessionID,
				Message:        question,
				Business:       &business,
			})
			if err != nil {
				log.Warn("lead tracking skipped", map[string]interface{}{"error": err.Error()})
				return nil
			}
			lead = res
			return nil
		})
	}
	g.Go(func() error {
		answer = h.answer(gctx, question, language, business, currentState)
		return nil
	})
	_ = g.Wait()

	out.Success = true
	out.Response = answer.response
	out.Method = answer.method
	out.ConfidenceScore = answer.assessment.ConfidenceScore
	out.ContextSources = answer.reply.ContextSourcesUsed
	out.IsAnswered = isAnswered(answer.method)
	out.SecurityFlags = append(out.SecurityFlags, answer.flags...)
	if lead != nil {
		out.LeadState = lead.NewState
	}

	if answer.method == synthesizeresponse.MethodFallback && h.config.Features.UnansweredTracking && h.deps.Questions != nil {
		stageCtx, end := h.obs.StartStage(ctx, "unanswered.record")
		h.deps.Questions.Record(stageCtx, trackunansweredquestion.Input{
			Question:        question,
			BusinessID:      input.BusinessID,
			SessionID:       sessionID,
			ConfidenceScore: out.ConfidenceScore,
			ConversationContext: map[string]interface{}{
				"conversationId": conversationID,
				"language":       language,
				"leadState":      string(out.LeadState),
				"userContext":    input.UserContext,
			},
		})
		end()
	}

	h.finish(ctx, input, sessionID, conversationID, question, out, start)
	log.Info("message processed", map[string]interface{}{
		"method":          out.Method,
		"confidenceScore": out.ConfidenceScore,
		"isAnswered":      out.IsAnswered,
		"leadState":       string(out.LeadState),
		"responseTimeMs":  out.ResponseTimeMs,
	})
	return out, nil
}

func (h *Handler) answer(ctx context.Context, question, language string, business models.BusinessProfile, state models.LeadState) answerResult {
	var res answerResult

	stageCtx, end := h.obs.StartStage(ctx, "retrieve")
	search := h.deps.Retriever.Search(stageCtx, retrievecontext.Query{
		Text:       question,
		BusinessID: business.ID,
		Language:   language,
	})
	end()
	res.sources = search.Results

	stageCtx, end = h.obs.StartStage(ctx, "score")
	var semantic *float64
	if h.config.Features.SemanticScore {
		semantic = h.deps.Scorer.SemanticScore(stageCtx, question, res.sources)
	}
	// Scoring runs before synthesis, so the top source stands in for the reply.
	grounding := ""
	if len(res.sources) > 0 {
		grounding = res.sources[0].Content
	}
	res.assessment = h.deps.Scorer.Score(scoreconfidence.Input{
		Question:       question,
		Response:       grounding,
		Sources:        res.sources,
		SemanticScore:  semantic,
		BusinessConfig: scoreconfidence.BusinessConfig{ConfidenceThreshold: business.ConfidenceThreshold},
	})
	end()

	stageCtx, end = h.obs.StartStage(ctx, "synthesize")
	res.reply = h.deps.Synthesizer.Generate(stageCtx, &synthesizeresponse.Input{
		Question:        question,
		Sources:         res.sources,
		ConfidenceScore: res.assessment.ConfidenceScore,
		IsConfident:     res.assessment.IsConfident,
		Business:        business,
		Language:        language,
		LeadState:       state,
	})
	end()
	res.response = res.reply.Response
	res.method = res.reply.Metadata.Method

	if h.config.Features.OutputGuardrail {
		stageCtx, end = h.obs.StartStage(ctx, "guardrail.output")
		check := h.deps.Guardrail.ValidateResponse(stageCtx, res.response)
		end()
		res.flags = check.Flags
		if check.IsSafe {
			res.response = check.SanitizedText
		} else {
			res.response = synthesizeresponse.StaticReply(language, state)
			res.method = MethodOutputFiltered
		}
	}
	return res
}

// business falls back to a bare profile when the store cannot be read.
func (h *Handler) business(ctx context.Context, businessID string, log logger.Logger) models.BusinessProfile {
	if h.deps.Conversations == nil {
		return models.BusinessProfile{ID: businessID}
	}
	b, err := h.deps.Conversations.GetBusiness(ctx, businessID)
	if err != nil || b == nil {
		if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
			log.Warn("business profile unavailable", map[string]interface{}{"error": err.Error()})
		}
		return models.BusinessProfile{ID: businessID}
	}
	return *b
}

func (h *Handler) leadState(ctx context.Context, conversationID string, log logger.Logger) models.LeadState {
	if h.deps.Conversations == nil {
		return models.StateInitialContact
	}
	st, err := h.deps.Conversations.GetState(ctx, conversationID)
	if err != nil {
		log.Warn("conversation state unavailable", map[string]interface{}{"error": err.Error()})
		return models.StateInitialContact
	}
	if st == nil || !st.State.IsValid() {
		return models.StateInitialContact
	}
	return st.State
}

// finish records the exchange in the conversation history and the session read model.
func (h *Handler) finish(ctx context.Context, input *Input, sessionID, conversationID, question string, out *Output, start time.Time) {
	now := time.Now().UTC()
	out.ResponseTimeMs = time.Since(start).Milliseconds()
	metrics.MessagesProcessed.WithLabelValues(out.Method).Inc()
	h.obs.RecordMessage(ctx, out.Method, out.IsAnswered)

	if h.deps.Conversations != nil && out.Method != MethodRejected {
		msgs := []models.ConversationMessage{
			{Role: models.RoleCustomer, Text: question, SentAt: now},
			{Role: models.RoleAssistant, Text: out.Response, SentAt: now},
		}
		for _, m := range msgs {
			if err := h.deps.Conversations.AppendMessage(ctx, conversationID, m); err != nil {
				h.logger.Warn("failed to append conversation message", map[string]interface{}{
					"conversationId": conversationID,
					"errorCode":      string(errors.NewPersistenceError("append message", err).Code),
					"error":          err.Error(),
				})
				break
			}
		}
	}

	if h.deps.Sessions == nil {
		return
	}
	err := h.deps.Sessions.Record(ctx, sessionID, models.MessageOutcome{
		Method:          out.Method,
		Answered:        out.IsAnswered,
		Rejected:        out.Method == MethodRejected,
		RateLimited:     out.Method == MethodRateLimited,
		ConfidenceScore: out.ConfidenceScore,
		At:              now,
	})
	if err != nil {
		h.logger.Warn("failed to record session stats", map[string]interface{}{
			"sessionId":  sessionID,
			"businessId": input.BusinessID,
			"error":      err.Error(),
		})
	}
}

// GetSessionStats returns the session read model; an unknown session has zero counts.
func (h *Handler) GetSessionStats(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.NewInvalidInputError("sessionId is required")
	}
	if h.deps.Sessions == nil {
		return &models.SessionStats{SessionID: sessionID}, nil
	}
	stats, err := h.deps.Sessions.Get(ctx, sessionID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return &models.SessionStats{SessionID: sessionID}, nil
	}
	if err != nil {
		return nil, errors.NewPersistenceError("get session stats", err)
	}
	return stats, nil
}

func isAnswered(method string) bool {
	switch method {
	case synthesizeresponse.MethodGreeting, synthesizeresponse.MethodGreetingStatic, synthesizeresponse.MethodConfident:
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
