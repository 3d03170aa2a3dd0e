package advanceleadstate

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"assistant-workers/internal/common/textutil"
	"assistant-workers/internal/common/validation"
	"assistant-workers/internal/models"
)

// Phrases are written in normalized form: lowercase, no punctuation, so "let's" is "lets".
type intentClass struct {
	intent  models.Intent
	phrases []string
}

// Checked in order; the first class with a matching phrase wins.
var intentClasses = []intentClass{
	{models.IntentComplaint, []string{
		"terrible", "awful", "worst", "complaint", "unacceptable", "disappointed", "scam", "horrible",
		"very unhappy", "not happy", "queja", "pésimo", "reclamação", "péssimo", "horrível",
	}},
	{models.IntentReadyToBuy, []string{
		"ready to buy", "buy now", "sign me up", "sign up", "i want to buy", "purchase", "where do i pay",
		"how do i pay", "lets do it", "ill take it", "place an order", "book now", "send me the contract",
		"quiero comprar", "comprar ahora", "quero comprar", "quero contratar", "quiero contratar",
	}},
	{models.IntentPriceConcern, []string{
		"too expensive", "expensive", "pricey", "cheaper", "discount", "costly", "out of my budget",
		"over budget", "too much money", "muy caro", "caro", "descuento", "desconto", "muito caro",
	}},
	{models.IntentHasObjection, []string{
		"not interested", "not sure", "not convinced", "concerned", "worried", "competitor", "already have", "dont need",
		"dont think", "not now", "no estoy seguro", "não tenho certeza", "nao tenho certeza",
	}},
	{models.IntentStrongInterest, []string{
		"very interested", "really interested", "definitely", "exactly what i need", "exactly what we need",
		"love it", "sounds perfect", "muy interesado", "muy interesada", "muito interessado", "muito interessada",
	}},
	{models.IntentShowingInterest, []string{
		"interested", "tell me more", "more info", "more information", "sounds good", "how does it work",
		"demo", "free trial", "me interesa", "tenho interesse", "mais informações", "más información",
	}},
}

var greetingWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hola": true, "olá": true, "ola": true, "oi": true,
	"good": true, "buenos": true, "buenas": true, "bom": true, "boa": true,
}

var questionStarters = map[string]bool{
	"what": true, "how": true, "when": true, "where": true, "why": true, "which": true, "who": true,
	"can": true, "could": true, "do": true, "does": true, "is": true, "are": true, "will": true,
	"qué": true, "que": true, "cómo": true, "como": true, "cuándo": true, "cuando": true, "dónde": true,
	"donde": true, "cuánto": true, "quanto": true, "quando": true, "onde": true, "qual": true,
}

var (
	positiveWords = map[string]float64{
		"great": 1, "good": 1, "love": 1, "excellent": 1, "perfect": 1, "thanks": 1, "thank": 1,
		"awesome": 1, "amazing": 1, "happy": 1, "nice": 1, "interested": 1, "helpful": 1,
		"excelente": 1, "genial": 1, "gracias": 1, "bueno": 1, "ótimo": 1, "otimo": 1, "obrigado": 1, "obrigada": 1,
	}
	negativeWords = map[string]float64{
		"bad": 1, "poor": 1, "problem": 1, "issue": 1, "slow": 1, "expensive": 1, "unhappy": 1,
		"disappointed": 1, "useless": 1, "angry": 1, "malo": 1, "problema": 1, "ruim": 1, "caro": 1,
		"terrible": 1.5, "awful": 1.5, "worst": 1.5, "hate": 1.5, "horrible": 1.5, "scam": 1.5,
		"pésimo": 1.5, "péssimo": 1.5, "horrível": 1.5,
	}
	negators = map[string]bool{"not": true, "no": true, "never": true, "dont": true, "isnt": true, "wasnt": true, "nunca": true, "não": true, "nao": true}
)

var urgencyPhrases = []string{
	"urgent", "urgently", "asap", "immediately", "right away", "as soon as possible", "today", "right now",
	"emergency", "quickly", "deadline", "this week", "urgente", "hoy", "ahora mismo", "hoje", "agora", "rápido",
}

var buyingSignalPhrases = []string{
	"price", "pricing", "cost", "how much", "quote", "budget", "payment", "pay", "buy", "purchase",
	"sign up", "subscribe", "plan", "demo", "trial", "timeline", "when can you start", "invoice",
	"precio", "cuánto cuesta", "preço", "quanto custa",
}

var objectionPhrases = []string{
	"too expensive", "not sure", "competitor", "already have", "no budget", "dont need", "not now",
	"too long", "too complicated", "cheaper", "muy caro", "muito caro",
}

var continuationStarters = map[string]bool{
	"and": true, "also": true, "but": true, "so": true, "then": true, "what about": true, "how about": true,
	"yes": true, "no": true, "ok": true, "okay": true, "sure": true, "y": true, "e": true, "también": true, "também": true,
}

var questionPattern = regexp.MustCompile(`[^.!?\n]*\?`)

// RuleAnalyzer derives a MessageAnalysis from keyword lists. It is deterministic and always available.
type RuleAnalyzer struct{}

func (RuleAnalyzer) Analyze(message string, history []models.ConversationMessage) models.MessageAnalysis {
	normalized := textutil.Normalize(message)
	padded := " " + normalized + " "
	words := strings.Fields(normalized)

	intent, matched := classifyIntent(padded, words, message)
	sentiment := scoreSentiment(words)
	urgency := scoreUrgency(padded)
	signals := matchPhrases(padded, buyingSignalPhrases)

	a := models.MessageAnalysis{
		Intent:         intent,
		Sentiment:      sentiment,
		Urgency:        urgency,
		BuyingSignals:  signals,
		Objections:     matchPhrases(padded, objectionPhrases),
		Questions:      extractQuestions(message),
		RequiresHuman:  intent == models.IntentComplaint,
		IsContinuation: isContinuation(normalized, words, history),
		Confidence:     0.3,
		Source:         SourceRules,
	}
	if matched {
		a.Confidence = 0.6
	}
	a.LeadScore = heuristicLeadScore(a)
	return a
}

func containsPhrase(padded, phrase string) bool {
	return strings.Contains(padded, " "+phrase+" ")
}

func matchPhrases(padded string, phrases []string) []string {
	out := []string{}
	for _, p := range phrases {
		if containsPhrase(padded, p) {
			out = append(out, p)
		}
	}
	return out
}

func classifyIntent(padded string, words []string, raw string) (models.Intent, bool) {
	for _, class := range intentClasses {
		for _, p := range class.phrases {
			if containsPhrase(padded, p) {
				return class.intent, true
			}
		}
	}
	if len(words) == 0 {
		return models.IntentUnknown, false
	}
	if greetingWords[words[0]] && len(words) <= 4 && !strings.Contains(raw, "?") {
		return models.IntentGreeting, true
	}
	if strings.Contains(raw, "?") || questionStarters[words[0]] {
		return models.IntentQuestion, true
	}
	if len(words) >= 3 {
		return models.IntentGeneralInquiry, false
	}
	return models.IntentUnknown, false
}

// scoreSentiment sums lexicon weights, flipping a word preceded by a negator, and scales by a third.
func scoreSentiment(words []string) float64 {
	var total float64
	for i, w := range words {
		v := positiveWords[w] - negativeWords[w]
		if v == 0 {
			continue
		}
		if i > 0 && negators[words[i-1]] {
			v = -v
		}
		total += v
	}
	return clamp(total/3, -1, 1)
}

func scoreUrgency(padded string) float64 {
	n := len(matchPhrases(padded, urgencyPhrases))
	if n == 0 {
		return 0
	}
	return clamp(0.1+0.35*float64(n), 0, 1)
}

func extractQuestions(message string) []string {
	out := []string{}
	for _, q := range questionPattern.FindAllString(message, -1) {
		if q = strings.TrimSpace(q); len(q) > 1 {
			out = append(out, q)
		}
	}
	return out
}

func isContinuation(normalized string, words []string, history []models.ConversationMessage) bool {
	if len(history) == 0 || len(words) == 0 {
		return false
	}
	if continuationStarters[words[0]] {
		return true
	}
	if len(words) >= 2 && continuationStarters[words[0]+" "+words[1]] {
		return true
	}
	return len(words) <= 3 && normalized != ""
}

var intentBaseScore = map[models.Intent]float64{
	models.IntentGreeting:        10,
	models.IntentGeneralInquiry:  20,
	models.IntentQuestion:        30,
	models.IntentShowingInterest: 50,
	models.IntentStrongInterest:  70,
	models.IntentReadyToBuy:      90,
	models.IntentPriceConcern:    40,
	models.IntentHasObjection:    30,
	models.IntentComplaint:       10,
	models.IntentUnknown:         15,
}

func heuristicLeadScore(a models.MessageAnalysis) int {
	score := intentBaseScore[a.Intent]
	score += math.Min(20, 5*float64(len(a.BuyingSignals)))
	score += 10 * a.Urgency
	switch {
	case a.Sentiment > 0.3:
		score += 10
	case a.Sentiment < -0.3:
		score -= 10
	}
	return clampScore(score)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampScore(v float64) int {
	return int(math.Round(clamp(v, 0, 100)))
}

var analysisSchema = validation.MustCompile("message_analysis", map[string]interface{}{
	"type":     "object",
	"required": []string{"intent", "sentiment", "urgency", "lead_score"},
	"properties": map[string]interface{}{
		"intent":          map[string]interface{}{"type": "string", "enum": models.AllIntents()},
		"sentiment":       map[string]interface{}{"type": "number", "minimum": -1, "maximum": 1},
		"urgency":         map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
		"lead_score":      map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
		"buying_signals":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"objections":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"questions":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"requires_human":  map[string]interface{}{"type": "boolean"},
		"is_continuation": map[string]interface{}{"type": "boolean"},
		"confidence":      map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
	},
})

type generativeAnalysis struct {
	Intent         string   `json:"intent"`
	Sentiment      float64  `json:"sentiment"`
	Urgency        float64  `json:"urgency"`
	LeadScore      float64  `json:"lead_score"`
	BuyingSignals  []string `json:"buying_signals"`
	Objections     []string `json:"objections"`
	Questions      []string `json:"questions"`
	RequiresHuman  bool     `json:"requires_human"`
	IsContinuation bool     `json:"is_continuation"`
	Confidence     *float64 `json:"confidence"`
}

func (g generativeAnalysis) toModel() models.MessageAnalysis {
	a := models.MessageAnalysis{
		Intent:         models.Intent(g.Intent),
		Sentiment:      clamp(g.Sentiment, -1, 1),
		Urgency:        clamp(g.Urgency, 0, 1),
		LeadScore:      clampScore(g.LeadScore),
		BuyingSignals:  nonNil(g.BuyingSignals),
		Objections:     nonNil(g.Objections),
		Questions:      nonNil(g.Questions),
		RequiresHuman:  g.RequiresHuman,
		IsContinuation: g.IsContinuation,
		Confidence:     0.7,
		Source:         SourceGenerative,
	}
	if g.Confidence != nil {
		a.Confidence = clamp(*g.Confidence, 0, 1)
	}
	return a
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const analysisSystemPrompt = `You analyse one customer message sent to a business messaging assistant.
Respond with a single JSON object and nothing else, with these fields:
intent (one of: %s), sentiment (-1 to 1), urgency (0 to 1), lead_score (0 to 100),
buying_signals, objections, questions (arrays of short strings), requires_human (boolean),
is_continuation (boolean) and confidence (0 to 1).`

func analysisPrompt(message string, history []models.ConversationMessage) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		writeHistory(&b, history)
		b.WriteString("\n")
	}
	b.WriteString("Message to analyse:\n")
	b.WriteString(strings.TrimSpace(message))
	return b.String()
}

func writeHistory(b *strings.Builder, history []models.ConversationMessage) {
	for _, m := range history {
		fmt.Fprintf(b, "%s: %s\n", m.Role, strings.TrimSpace(m.Text))
	}
}
