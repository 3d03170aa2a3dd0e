package processmessage

import (
	"context"

	"assistant-workers/internal/common/ratelimit"
	"assistant-workers/internal/models"
	synthesizeresponse "assistant-workers/internal/workers/ai-conversation/synthesize-response"
	retrievecontext "assistant-workers/internal/workers/knowledge/retrieve-context"
	scoreconfidence "assistant-workers/internal/workers/knowledge/score-confidence"
	advanceleadstate "assistant-workers/internal/workers/lead/advance-lead-state"
	trackunansweredquestion "assistant-workers/internal/workers/lead/track-unanswered-question"
	messageguardrail "assistant-workers/internal/workers/security/message-guardrail"
)

// Methods added by the pipeline on top of the synthesizer's own.
const (
	MethodRejected       = "rejected"
	MethodRateLimited    = "rate_limited"
	MethodOutputFiltered = "output_filtered"
)

type Guardrail interface {
	ValidateInput(ctx context.Context, text string) messageguardrail.Result
	ValidateResponse(ctx context.Context, text string) messageguardrail.Result
}

type Retriever interface {
	Search(ctx context.Context, q retrievecontext.Query) *retrievecontext.SearchResult
}

type ConfidenceScorer interface {
	SemanticScore(ctx context.Context, question string, sources []models.ContextSource) *float64
	Score(input scoreconfidence.Input) models.ConfidenceAssessment
}

type Synthesizer interface {
	Generate(ctx context.Context, input *synthesizeresponse.Input) *synthesizeresponse.Output
}

type LeadTracker interface {
	Advance(ctx context.Context, input *advanceleadstate.Input) (*advanceleadstate.Output, error)
}

type QuestionTracker interface {
	Record(ctx context.Context, input trackunansweredquestion.Input) *trackunansweredquestion.Output
}

type RateLimiter interface {
	Allow(ctx context.Context, actorID string) ratelimit.Decision
}

type ConversationStore interface {
	GetBusiness(ctx context.Context, businessID string) (*models.BusinessProfile, error)
	GetState(ctx context.Context, conversationID string) (*models.ConversationState, error)
	AppendMessage(ctx context.Context, conversationID string, msg models.ConversationMessage) error
}

type SessionStore interface {
	Record(ctx context.Context, sessionID string, outcome models.MessageOutcome) error
	Get(ctx context.Context, sessionID string) (*models.SessionStats, error)
}

// Dependencies are the pipeline stages. Leads, Questions and Limiter may be nil.
type Dependencies struct {
	Guardrail     Guardrail
	Retriever     Retriever
	Scorer        ConfidenceScorer
	Synthesizer   Synthesizer
	Leads         LeadTracker
	Questions     QuestionTracker
	Limiter       RateLimiter
	Conversations ConversationStore
	Sessions      SessionStore
}

type Input struct {
	Question       string                 `json:"question"`
	SessionID      string                 `json:"sessionId"`
	ConversationID string                 `json:"conversationId"`
	BusinessID     string                 `json:"businessId"`
	Language       string                 `json:"language"`
	UserContext    map[string]interface{} `json:"userContext,omitempty"`
}

type Output struct {
	Success         bool                   `json:"success"`
	Response        string                 `json:"response"`
	ConfidenceScore float64                `json:"confidenceScore"`
	IsAnswered      bool                   `json:"isAnswered"`
	ContextSources  []models.ContextSource `json:"contextSources"`
	SecurityFlags   []string               `json:"securityFlags,omitempty"`
	Error           string                 `json:"error,omitempty"`
	Method          string                 `json:"method"`
	LeadState       models.LeadState       `json:"leadState,omitempty"`
	ResponseTimeMs  int64                  `json:"responseTimeMs"`
}
