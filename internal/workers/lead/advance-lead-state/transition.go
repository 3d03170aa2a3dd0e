package advanceleadstate

import (
	"fmt"
	"regexp"
	"strings"

	"assistant-workers/internal/common/validation"
	"assistant-workers/internal/models"
)

// NextState is the deterministic transition function. The first matching rule wins.
func NextState(current models.LeadState, a models.MessageAnalysis, history []models.ConversationMessage) Transition {
	if !current.IsValid() {
		current = models.StateInitialContact
	}
	t := Transition{Confidence: 0.6, Source: SourceRules}

	switch {
	case a.Sentiment < -0.5:
		t.State, t.Reason = models.StateLost, "strongly negative sentiment"
	case a.Intent == models.IntentReadyToBuy:
		t.State, t.Reason = models.StateReadyToConvert, "customer is ready to buy"
	case a.Intent == models.IntentShowingInterest || a.Intent == models.IntentStrongInterest:
		t.State, t.Reason = models.StateInterested, "customer is showing interest"
	case a.Intent == models.IntentPriceConcern || a.Intent == models.IntentHasObjection:
		t.State, t.Reason = models.StateObjection, "customer raised an objection"
	case a.Urgency > 0.7:
		t.State, t.Reason = models.StateQualified, "urgent need expressed"
	case current == models.StateInitialContact && a.Intent != models.IntentGreeting:
		t.State, t.Reason = models.StateInterested, "first substantive message"
	default:
		t.State, t.Reason = current, "no transition rule matched"
		if len(history) == 0 {
			t.Confidence = 0.5
		}
	}
	return t
}

var transitionSchema = validation.MustCompile("lead_transition", map[string]interface{}{
	"type":     "object",
	"required": []string{"new_state", "reason", "confidence"},
	"properties": map[string]interface{}{
		"new_state":  map[string]interface{}{"type": "string", "enum": models.AllLeadStates()},
		"reason":     map[string]interface{}{"type": "string"},
		"confidence": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
	},
})

type generativeTransition struct {
	NewState   string  `json:"new_state"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

const transitionSystemPrompt = `You manage the sales funnel state of a customer conversation.
States: initial_contact, engaged, interested, qualified, ready_to_convert, objection, lost.
Given the current state, the analysis of the latest message and the recent history,
respond with a single JSON object {"new_state": "...", "reason": "...", "confidence": 0.0-1.0} and nothing else.`

func transitionPrompt(current models.LeadState, a models.MessageAnalysis, history []models.ConversationMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current state: %s\n", current)
	fmt.Fprintf(&b, "Analysis: intent=%s sentiment=%.2f urgency=%.2f lead_score=%d buying_signals=%s objections=%s\n",
		a.Intent, a.Sentiment, a.Urgency, a.LeadScore,
		strings.Join(a.BuyingSignals, ","), strings.Join(a.Objections, ","))
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		writeHistory(&b, history)
	}
	return b.String()
}

type humanTopic struct {
	reason  string
	pattern *regexp.Regexp
}

// Matched against the raw message, independently of any generated analysis.
var humanTopics = []humanTopic{
	{"custom_pricing", regexp.MustCompile(`(?i)\b(custom|special|negotiat\w*)\s+(pric\w*|quote|rate|deal)\b|precio especial|preço especial`)},
	{"enterprise", regexp.MustCompile(`(?i)\benterprise\b|\bempresarial\b|\bcorporativ[oa]\b`)},
	{"contract", regexp.MustCompile(`(?i)\bcontracts?\b|\bcontrato\b|\bsla\b`)},
	{"legal", regexp.MustCompile(`(?i)\blegal\b|\blawyer\b|\blawsuit\b|\battorney\b|\babogado\b|\badvogado\b`)},
	{"compliance", regexp.MustCompile(`(?i)\bcompliance\b|\bgdpr\b|\bhipaa\b|\blgpd\b|\bsoc ?2\b`)},
	{"api_limits", regexp.MustCompile(`(?i)\bapi\b.{0,20}\b(limits?|quotas?|rate)\b|\brate.?limit`)},
	{"billing", regexp.MustCompile(`(?i)\bbilling\b|\brefunds?\b|\bcharged?\b|\binvoice\b|\breembolso\b|\bfactura\b|\bcobran[çc]a\b`)},
	{"account", regexp.MustCompile(`(?i)\b(my|mi|minha)\s+(account|cuenta|conta)\b|\blocked out\b|\bcan'?t log ?in\b`)},
}

// RequiresHuman reports the matched high-stakes topics. An explicit analysis flag is sufficient on its own.
func RequiresHuman(message string, a models.MessageAnalysis) (bool, []string) {
	reasons := []string{}
	for _, topic := range humanTopics {
		if topic.pattern.MatchString(message) {
			reasons = append(reasons, topic.reason)
		}
	}
	if a.RequiresHuman {
		reasons = append(reasons, "analysis_flag")
	}
	return len(reasons) > 0, reasons
}

// BlendLeadScore weights the stored score against the latest analysis. A fresh conversation takes the analysis score.
func BlendLeadScore(previous *models.ConversationState, analysisScore int) int {
	if previous == nil {
		return clampScore(float64(analysisScore))
	}
	return clampScore(float64(previous.LeadScore)*0.6 + float64(analysisScore)*0.4)
}
