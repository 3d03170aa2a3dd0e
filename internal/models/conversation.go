package models

import "time"

// LeadState is a position in the sales funnel.
type LeadState string

const (
	StateInitialContact LeadState = "initial_contact"
	StateEngaged        LeadState = "engaged"
	StateInterested     LeadState = "interested"
	StateQualified      LeadState = "qualified"
	StateReadyToConvert LeadState = "ready_to_convert"
	StateObjection      LeadState = "objection"
	StateLost           LeadState = "lost"
)

func AllLeadStates() []string {
	return []string{
		string(StateInitialContact), string(StateEngaged), string(StateInterested), string(StateQualified),
		string(StateReadyToConvert), string(StateObjection), string(StateLost),
	}
}

func (s LeadState) IsValid() bool {
	for _, v := range AllLeadStates() {
		if string(s) == v {
			return true
		}
	}
	return false
}

// ConversationState is the persisted funnel position of one conversation.
type ConversationState struct {
	ConversationID string    `json:"conversationId"`
	BusinessID     string    `json:"businessId"`
	State          LeadState `json:"state"`
	LeadScore      int       `json:"leadScore"`
	SentimentScore float64   `json:"sentimentScore"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type MessageRole string

const (
	RoleCustomer  MessageRole = "customer"
	RoleAssistant MessageRole = "assistant"
)

type ConversationMessage struct {
	Role   MessageRole `json:"role"`
	Text   string      `json:"text"`
	SentAt time.Time   `json:"sentAt"`
}

// BusinessProfile is the read-only tenant data the pipeline needs.
type BusinessProfile struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Industry            string   `json:"industry"`
	Description         string   `json:"description"`
	DefaultLanguage     string   `json:"defaultLanguage"`
	ConfidenceThreshold *float64 `json:"confidenceThreshold,omitempty"`
}
