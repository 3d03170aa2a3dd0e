package synthesizeresponse

import (
	"fmt"
	"regexp"
	"strings"

	"assistant-workers/internal/common/textutil"
	"assistant-workers/internal/models"
)

const defaultLanguage = "en"

// Matched against the normalized message, so punctuation and case are already gone.
var pleasantryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hello|hey|hiya|howdy|greetings|good (morning|afternoon|evening|day)|hola|buenas|buenos d[ií]as|buenas (tardes|noches)|buen d[ií]a|ol[aá]|oi|bom dia|boa (tarde|noite))( (there|team|all|everyone|amigo|amigos|pessoal|tudo bem))?$`),
	regexp.MustCompile(`^(thanks?|thank you|thx|ty|cheers|much appreciated|gracias|muchas gracias|mil gracias|obrigad[oa]|muito obrigad[oa]|valeu)( (so|very) much)?( for (your|the) help)?$`),
	regexp.MustCompile(`^((hi|hello|hey|hola|ol[aá]|oi) )?(how are you( doing)?( today)?|hows it going|how do you do|whats up|c[oó]mo est[aá]s|qu[eé] tal|como vai|como voc[eê] est[aá]|tudo bem)$`),
	regexp.MustCompile(`^((hi|hello|hey|hola|ol[aá]|oi) )?(can you help( me)?|could you help( me)?|i need (some )?help|help( me)?|can i ask (you )?(a|some) questions?|are you there|anyone there|ayuda|necesito ayuda|me puedes ayudar|puedes ayudarme|preciso de ajuda|pode me ajudar|ajuda)( please| por favor)?$`),
}

// IsPleasantry reports whether the message is only a greeting, thanks, "how are you" or a generic help request.
func IsPleasantry(message string) bool {
	normalized := textutil.Normalize(message)
	if normalized == "" {
		return false
	}
	for _, p := range pleasantryPatterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}

// supportedLanguage maps "es-MX" to "es" and anything unknown to English.
func supportedLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if len(lang) > 2 {
		lang = lang[:2]
	}
	switch lang {
	case "en", "es", "pt":
		return lang
	default:
		return defaultLanguage
	}
}

var languageNames = map[string]string{"en": "English", "es": "Spanish", "pt": "Portuguese"}

var fallbackReplies = map[string]string{
	"en": "I'm sorry, I don't have enough information to answer that right now. I've passed your question to our team and someone will follow up with you shortly.",
	"es": "Lo siento, en este momento no tengo suficiente información para responder. He enviado tu pregunta a nuestro equipo y alguien te contactará pronto.",
	"pt": "Desculpe, no momento não tenho informações suficientes para responder. Encaminhei sua pergunta para nossa equipe e alguém entrará em contato em breve.",
}

var greetingReplies = map[string]string{
	"en": "Hello! Thanks for reaching out to %s. How can I help you today?",
	"es": "¡Hola! Gracias por comunicarte con %s. ¿En qué puedo ayudarte hoy?",
	"pt": "Olá! Obrigado por entrar em contato com %s. Como posso ajudar hoje?",
}

var stateReplies = map[string]map[models.LeadState]string{
	"en": {
		models.StateInitialContact: "Thanks for your message! Could you tell me a bit more about what you're looking for?",
		models.StateEngaged:        "Thanks for the details. Let me make sure I point you in the right direction. What matters most to you here?",
		models.StateInterested:     "Great to hear you're interested! I can share more details or connect you with our team. Which would you prefer?",
		models.StateQualified:      "Thanks, that helps a lot. The best next step is a quick call with our team. Would you like us to reach out?",
		models.StateReadyToConvert: "Wonderful! Our team will contact you shortly to get everything set up.",
		models.StateObjection:      "I understand your concern. Our team can walk you through the options that might fit better. Shall I arrange that?",
		models.StateLost:           "Thanks for letting us know. If anything changes, we're always happy to help.",
	},
	"es": {
		models.StateInitialContact: "¡Gracias por tu mensaje! ¿Podrías contarme un poco más sobre lo que buscas?",
		models.StateEngaged:        "Gracias por los detalles. ¿Qué es lo más importante para ti?",
		models.StateInterested:     "¡Qué bueno que te interesa! Puedo darte más detalles o ponerte en contacto con nuestro equipo.",
		models.StateQualified:      "Gracias, eso ayuda mucho. El siguiente paso es una llamada breve con nuestro equipo. ¿Te contactamos?",
		models.StateReadyToConvert: "¡Excelente! Nuestro equipo te contactará pronto para dejar todo listo.",
		models.StateObjection:      "Entiendo tu preocupación. Nuestro equipo puede mostrarte opciones que se ajusten mejor.",
		models.StateLost:           "Gracias por avisarnos. Si algo cambia, con gusto te ayudaremos.",
	},
	"pt": {
		models.StateInitialContact: "Obrigado pela mensagem! Pode me contar um pouco mais sobre o que você procura?",
		models.StateEngaged:        "Obrigado pelos detalhes. O que é mais importante para você?",
		models.StateInterested:     "Que bom que você se interessou! Posso enviar mais detalhes ou conectar você com nossa equipe.",
		models.StateQualified:      "Obrigado, isso ajuda muito. O próximo passo é uma conversa rápida com nossa equipe. Podemos entrar em contato?",
		models.StateReadyToConvert: "Ótimo! Nossa equipe entrará em contato em breve para finalizar tudo.",
		models.StateObjection:      "Entendo sua preocupação. Nossa equipe pode mostrar opções que se encaixem melhor.",
		models.StateLost:           "Obrigado por avisar. Se algo mudar, estamos sempre à disposição.",
	},
}

func fallbackReply(lang string) string {
	return fallbackReplies[supportedLanguage(lang)]
}

func greetingReply(lang, businessName string) string {
	if businessName == "" {
		businessName = "us"
		if l := supportedLanguage(lang); l != "en" {
			businessName = map[string]string{"es": "nosotros", "pt": "a gente"}[l]
		}
	}
	return fmt.Sprintf(greetingReplies[supportedLanguage(lang)], businessName)
}

// StaticReply is the canned answer for a lead state, used whenever the generator cannot be reached.
func StaticReply(lang string, state models.LeadState) string {
	replies := stateReplies[supportedLanguage(lang)]
	if r, ok := replies[state]; ok {
		return r
	}
	return replies[models.StateInitialContact]
}
