package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"assistant-workers/internal/common/errors"
)

// Escalation describes a conversation that needs a human.
type Escalation struct {
	BusinessID     string   `json:"businessId"`
	ConversationID string   `json:"conversationId"`
	SessionID      string   `json:"sessionId"`
	LeadState      string   `json:"leadState"`
	LeadScore      int      `json:"leadScore"`
	Reasons        []string `json:"reasons"`
	Message        string   `json:"message"`
}

// EscalationNotifier fans an escalation out to SNS and/or SES. Either client may be nil.
type EscalationNotifier struct {
	sns       *SNSClient
	ses       *SESClient
	topicARN  string
	fromEmail string
	toEmail   string
}

func NewEscalationNotifier(snsClient *SNSClient, sesClient *SESClient, topicARN, fromEmail, toEmail string) *EscalationNotifier {
	return &EscalationNotifier{
		sns:       snsClient,
		ses:       sesClient,
		topicARN:  topicARN,
		fromEmail: fromEmail,
		toEmail:   toEmail,
	}
}

func (n *EscalationNotifier) NotifyEscalation(ctx context.Context, e Escalation) error {
	if n.sns != nil && n.topicARN != "" {
		payload, err := json.Marshal(e)
		if err != nil {
			return errors.NewNotificationSendFailedError("sns", err)
		}
		_, err = n.sns.PublishJSON(ctx, n.topicARN, "Conversation needs a human", string(payload), map[string]string{
			"businessId": e.BusinessID,
			"leadState":  e.LeadState,
		})
		if err != nil {
			return errors.NewNotificationSendFailedError("sns", err)
		}
	}

	if n.ses != nil && n.fromEmail != "" && n.toEmail != "" {
		subject := fmt.Sprintf("[%s] conversation %s needs attention", e.BusinessID, e.ConversationID)
		if _, err := n.ses.SendText(ctx, n.fromEmail, n.toEmail, subject, escalationBody(e)); err != nil {
			return errors.NewNotificationSendFailedError("ses", err)
		}
	}
	return nil
}

func escalationBody(e Escalation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation: %s\n", e.ConversationID)
	fmt.Fprintf(&b, "Lead state: %s (score %d)\n", e.LeadState, e.LeadScore)
	fmt.Fprintf(&b, "Reasons: %s\n\n", strings.Join(e.Reasons, ", "))
	fmt.Fprintf(&b, "Customer message:\n%s\n", e.Message)
	return b.String()
}
