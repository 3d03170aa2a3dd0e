package advanceleadstate

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"assistant-workers/internal/common/aws"
	"assistant-workers/internal/common/camunda"
	"assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/genai"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/validation"
	"assistant-workers/internal/common/zoho"
	"assistant-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "advance-lead-state"

type Handler struct {
	config    *Config
	store     ConversationStore
	generator genai.Generator
	notifier  EscalationNotifier
	crm       LeadSink
	rules     RuleAnalyzer
	logger    logger.Logger
}

// NewHandler accepts nil notifier and crm; those side effects are then skipped.
func NewHandler(config *Config, store ConversationStore, generator genai.Generator, notifier EscalationNotifier, crm LeadSink, log logger.Logger) *Handler {
	if generator == nil {
		generator = genai.Unavailable{}
	}
	return &Handler{
		config:    config,
		store:     store,
		generator: generator,
		notifier:  notifier,
		crm:       crm,
		logger:    log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	camunda.HandleJob(client, job, h.config.Timeout, h.logger, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := camunda.DecodeVariables(job, &input); err != nil {
			return nil, err
		}
		return h.Advance(ctx, &input)
	})
}

// Advance analyses the message, moves the conversation through the funnel and persists the result.
// Only invalid input is returned as an error.
func (h *Handler) Advance(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.ConversationID) == "" {
		return nil, errors.NewInvalidInputError("conversationId is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, errors.NewInvalidInputError("message is required")
	}

	out := &Output{HumanReasons: []string{}}

	previous, err := h.store.GetState(ctx, input.ConversationID)
	if err != nil {
		h.persistenceFailed(out, "load state", input.ConversationID, err)
		previous = nil
	}
	current := models.StateInitialContact
	if previous != nil && previous.State.IsValid() {
		current = previous.State
	}
	out.PreviousState = current

	history := input.History
	if len(history) == 0 && h.config.HistoryLimit > 0 {
		history, err = h.store.RecentMessages(ctx, input.ConversationID, h.config.HistoryLimit)
		if err != nil {
			h.logger.Warn("failed to load conversation history", map[string]interface{}{
				"conversationId": input.ConversationID,
				"error":          err.Error(),
			})
			history = nil
		}
	}

	analysis := h.Analyze(ctx, input.Message, history)
	transition := h.transition(ctx, current, analysis, history)

	out.Analysis = analysis
	out.NewState = transition.State
	out.Changed = transition.State != current
	out.Reason = transition.Reason
	out.TransitionSource = transition.Source
	out.LeadScore = BlendLeadScore(previous, analysis.LeadScore)
	out.RequiresHuman, out.HumanReasons = RequiresHuman(input.Message, analysis)

	businessID := input.BusinessID
	if businessID == "" && previous != nil {
		businessID = previous.BusinessID
	}
	saveErr := h.store.SaveState(ctx, models.ConversationState{
		ConversationID: input.ConversationID,
		BusinessID:     businessID,
		State:          out.NewState,
		LeadScore:      out.LeadScore,
		SentimentScore: analysis.Sentiment,
		UpdatedAt:      time.Now().UTC(),
	})
	if saveErr != nil {
		h.persistenceFailed(out, "save state", input.ConversationID, saveErr)
	}

	if out.Changed {
		metrics.LeadTransitions.WithLabelValues(string(current), string(out.NewState), transition.Source).Inc()
	}

	if out.RequiresHuman {
		out.Escalated = h.escalate(ctx, input, businessID, out)
	}
	if out.Changed && out.NewState == models.StateReadyToConvert {
		out.CRMLeadID = h.pushLead(ctx, input, businessID, out)
	}

	h.logger.Info("lead state advanced", map[string]interface{}{
		"conversationId":   input.ConversationID,
		"previousState":    string(current),
		"newState":         string(out.NewState),
		"transitionSource": transition.Source,
		"intent":           string(analysis.Intent),
		"analysisSource":   analysis.Source,
		"leadScore":        out.LeadScore,
		"requiresHuman":    out.RequiresHuman,
	})
	return out, nil
}

// Analyze uses the generator when enabled and falls back to RuleAnalyzer on any failure.
func (h *Handler) Analyze(ctx context.Context, message string, history []models.ConversationMessage) models.MessageAnalysis {
	if !h.config.UseGenerative {
		return h.rules.Analyze(message, history)
	}

	raw, err := h.complete(ctx, genai.CompletionRequest{
		Operation:    "analyze_message",
		Prompt:       analysisPrompt(message, history),
		SystemPrompt: fmt.Sprintf(analysisSystemPrompt, strings.Join(models.AllIntents(), ", ")),
		MaxTokens:    h.config.MaxTokens,
		Temperature:  genai.Temperature(0),
	})
	if err != nil {
		return h.rules.Analyze(message, history)
	}

	res := validation.Decode[generativeAnalysis](analysisSchema, raw)
	if !res.Ok() {
		h.logger.Warn("generated analysis rejected, using rules", map[string]interface{}{
			"error": res.Err.Error(),
		})
		return h.rules.Analyze(message, history)
	}
	return res.Value.toModel()
}

func (h *Handler) transition(ctx context.Context, current models.LeadState, a models.MessageAnalysis, history []models.ConversationMessage) Transition {
	fallback := NextState(current, a, history)
	if !h.config.UseGenerative {
		return fallback
	}

	raw, err := h.complete(ctx, genai.CompletionRequest{
		Operation:    "lead_transition",
		Prompt:       transitionPrompt(current, a, history),
		SystemPrompt: transitionSystemPrompt,
		MaxTokens:    h.config.MaxTokens,
		Temperature:  genai.Temperature(0),
	})
	if err != nil {
		return fallback
	}

	res := validation.Decode[generativeTransition](transitionSchema, raw)
	if !res.Ok() {
		h.logger.Warn("generated transition rejected, using rules", map[string]interface{}{
			"error":        res.Err.Error(),
			"currentState": string(current),
		})
		return fallback
	}
	return Transition{
		State:      models.LeadState(res.Value.NewState),
		Reason:     res.Value.Reason,
		Confidence: clamp(res.Value.Confidence, 0, 1),
		Source:     SourceGenerative,
	}
}

func (h *Handler) complete(ctx context.Context, req genai.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.GeneratorTimeout)
	defer cancel()

	text, err := h.generator.Complete(ctx, req)
	if err != nil {
		code := "UNKNOWN"
		if stdErr, ok := errors.AsStandard(err); ok {
			code = string(stdErr.Code)
		} else if stderrors.Is(err, context.DeadlineExceeded) {
			code = string(errors.ErrCodeGenerationTimeout)
		}
		h.logger.Debug("generator call failed, using rules", map[string]interface{}{
			"operation": req.Operation,
			"errorCode": code,
		})
		return "", err
	}
	return text, nil
}

func (h *Handler) persistenceFailed(out *Output, op, conversationID string, err error) {
	out.PersistenceFailed = true
	perr := errors.NewPersistenceError(op, err)
	h.logger.Error("conversation store failure", map[string]interface{}{
		"conversationId": conversationID,
		"errorCode":      string(perr.Code),
		"operation":      op,
		"error":          err.Error(),
	})
}

func (h *Handler) escalate(ctx context.Context, input *Input, businessID string, out *Output) bool {
	if h.notifier == nil {
		return false
	}
	err := h.notifier.NotifyEscalation(ctx, aws.Escalation{
		BusinessID:     businessID,
		ConversationID: input.ConversationID,
		SessionID:      input.SessionID,
		LeadState:      string(out.NewState),
		LeadScore:      out.LeadScore,
		Reasons:        out.HumanReasons,
		Message:        input.Message,
	})
	if err != nil {
		h.logger.Warn("escalation notification failed", map[string]interface{}{
			"conversationId": input.ConversationID,
			"error":          err.Error(),
		})
		return false
	}
	return true
}

func (h *Handler) pushLead(ctx context.Context, input *Input, businessID string, out *Output) string {
	if h.crm == nil {
		return ""
	}
	company := businessID
	if input.Business != nil && input.Business.Name != "" {
		company = input.Business.Name
	}
	id, err := h.crm.CreateLead(ctx, zoho.Lead{
		Company:     company,
		LastName:    "Conversation " + input.ConversationID,
		LeadSource:  "Chat Assistant",
		LeadStatus:  "Pre-Qualified",
		Description: fmt.Sprintf("Lead score %d. Last message: %s", out.LeadScore, input.Message),
		Rating:      "Hot",
	})
	if err != nil {
		h.logger.Warn("crm lead push failed", map[string]interface{}{
			"conversationId": input.ConversationID,
			"errorCode":      string(errors.NewCRMSyncFailedError(err).Code),
			"error":          err.Error(),
		})
		return ""
	}
	return id
}
