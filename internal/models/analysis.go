package models

type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentGeneralInquiry  Intent = "general_inquiry"
	IntentQuestion        Intent = "question"
	IntentShowingInterest Intent = "showing_interest"
	IntentStrongInterest  Intent = "strong_interest"
	IntentReadyToBuy      Intent = "ready_to_buy"
	IntentPriceConcern    Intent = "price_concern"
	IntentHasObjection    Intent = "has_objection"
	IntentComplaint       Intent = "complaint"
	IntentUnknown         Intent = "unknown"
)

var knownIntents = map[Intent]struct{}{
	IntentGreeting: {}, IntentGeneralInquiry: {}, IntentQuestion: {}, IntentShowingInterest: {},
	IntentStrongInterest: {}, IntentReadyToBuy: {}, IntentPriceConcern: {}, IntentHasObjection: {},
	IntentComplaint: {}, IntentUnknown: {},
}

func (i Intent) IsValid() bool {
	_, ok := knownIntents[i]
	return ok
}

// AllIntents lists intents in declaration order, e.g. for schema enums.
func AllIntents() []string {
	return []string{
		string(IntentGreeting), string(IntentGeneralInquiry), string(IntentQuestion),
		string(IntentShowingInterest), string(IntentStrongInterest), string(IntentReadyToBuy),
		string(IntentPriceConcern), string(IntentHasObjection), string(IntentComplaint), string(IntentUnknown),
	}
}

// MessageAnalysis is produced once per inbound message.
type MessageAnalysis struct {
	Intent         Intent   `json:"intent"`
	Sentiment      float64  `json:"sentiment"`
	Urgency        float64  `json:"urgency"`
	LeadScore      int      `json:"leadScore"`
	BuyingSignals  []string `json:"buyingSignals"`
	Objections     []string `json:"objections"`
	Questions      []string `json:"questions"`
	RequiresHuman  bool     `json:"requiresHuman"`
	IsContinuation bool     `json:"isContinuation"`
	Confidence     float64  `json:"confidence"`
	Source         string   `json:"source"`
}
