package advanceleadstate

import (
	"context"

	"assistant-workers/internal/common/aws"
	"assistant-workers/internal/common/zoho"
	"assistant-workers/internal/models"
)

const (
	SourceGenerative = "generative"
	SourceRules      = "rules"
)

type ConversationStore interface {
	GetState(ctx context.Context, conversationID string) (*models.ConversationState, error)
	SaveState(ctx context.Context, state models.ConversationState) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.ConversationMessage, error)
}

type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, e aws.Escalation) error
}

type LeadSink interface {
	CreateLead(ctx context.Context, lead zoho.Lead) (string, error)
}

type Input struct {
	ConversationID string                       `json:"conversationId"`
	BusinessID     string                       `json:"businessId"`
	SessionID      string                       `json:"sessionId"`
	Message        string                       `json:"message"`
	History        []models.ConversationMessage `json:"history,omitempty"`
	Business       *models.BusinessProfile      `json:"business,omitempty"`
}

type Output struct {
	PreviousState     models.LeadState       `json:"previousState"`
	NewState          models.LeadState       `json:"newState"`
	Changed           bool                   `json:"changed"`
	Reason            string                 `json:"reason"`
	TransitionSource  string                 `json:"transitionSource"`
	LeadScore         int                    `json:"leadScore"`
	Analysis          models.MessageAnalysis `json:"analysis"`
	RequiresHuman     bool                   `json:"requiresHuman"`
	HumanReasons      []string               `json:"humanReasons"`
	Escalated         bool                   `json:"escalated"`
	CRMLeadID         string                 `json:"crmLeadId,omitempty"`
	PersistenceFailed bool                   `json:"persistenceFailed"`
}

// Transition is a proposed state change with its provenance.
type Transition struct {
	State      models.LeadState
	Reason     string
	Confidence float64
	Source     string
}
