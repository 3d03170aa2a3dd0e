package messageguardrail

import "regexp"

// RuleSetVersion changes whenever a rule is added, removed or edited.
const RuleSetVersion = "2025.2"

const (
	CategoryRoleOverride    = "role_override"
	CategoryChatDelimiter   = "chat_delimiter"
	CategoryMarkupInjection = "markup_injection"
	CategoryPromptLeak      = "prompt_leak"
)

type Rule struct {
	ID       string
	Category string
	Severity Severity
	Pattern  *regexp.Regexp
}

func rule(id, category string, severity Severity, pattern string) Rule {
	return Rule{ID: id, Category: category, Severity: severity, Pattern: regexp.MustCompile(pattern)}
}

// DefaultRules is evaluated in order; later rules see the output of earlier replacements.
var DefaultRules = []Rule{
	rule("RO-001", CategoryRoleOverride, SeverityHigh, `(?i)\bignore\s+(all\s+)?(of\s+)?(the\s+|your\s+)?(previous|prior|above|earlier)\s+(instructions|prompts?|rules|messages)`),
	rule("RO-002", CategoryRoleOverride, SeverityHigh, `(?i)\bdisregard\s+(all\s+)?(the\s+|your\s+|any\s+)?(previous\s+|prior\s+|above\s+)?(instructions|rules|guidelines)`),
	rule("RO-003", CategoryRoleOverride, SeverityHigh, `(?i)\bforget\s+(all\s+)?(your|the|previous|prior)\s+(instructions|rules|guidelines|training)`),
	rule("RO-004", CategoryRoleOverride, SeverityHigh, `(?i)\byou\s+are\s+now\b`),
	rule("RO-005", CategoryRoleOverride, SeverityHigh, `(?i)\bpretend\s+(to\s+be|you\s+are)\b`),
	rule("RO-006", CategoryRoleOverride, SeverityHigh, `(?i)\bact\s+as\s+(if|though)\b`),
	rule("RO-007", CategoryRoleOverride, SeverityHigh, `(?i)\brole-?play\s+as\b`),
	rule("RO-008", CategoryRoleOverride, SeverityHigh, `(?i)\bnew\s+instructions\s*:`),
	rule("RO-009", CategoryRoleOverride, SeverityHigh, `(?i)\b(reveal|show|print|repeat)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions)\b`),

	rule("CD-001", CategoryChatDelimiter, SeverityHigh, `(?im)^\s*(system|assistant|user)\s*:`),
	rule("CD-002", CategoryChatDelimiter, SeverityHigh, `<\|[^|>]{0,40}\|>`),
	rule("CD-003", CategoryChatDelimiter, SeverityHigh, `(?i)\[/?INST\]`),
	rule("CD-004", CategoryChatDelimiter, SeverityHigh, `(?i)</?s>`),
	rule("CD-005", CategoryChatDelimiter, SeverityHigh, `(?i)<<\s*/?SYS\s*>>`),
	rule("CD-006", CategoryChatDelimiter, SeverityHigh, `#{3,}`),
	rule("CD-007", CategoryChatDelimiter, SeverityHigh, `-{3,}`),
	rule("CD-008", CategoryChatDelimiter, SeverityHigh, "`{3,}"),

	rule("MI-001", CategoryMarkupInjection, SeverityHigh, `(?i)<\s*/?\s*script\b[^>]*>?`),
	rule("MI-002", CategoryMarkupInjection, SeverityHigh, `(?i)\bjavascript\s*:`),
	rule("MI-003", CategoryMarkupInjection, SeverityHigh, `(?i)\bvbscript\s*:`),
	rule("MI-004", CategoryMarkupInjection, SeverityHigh, `(?i)\bdata:[a-z]+/[a-z0-9.+-]+`),
	rule("MI-005", CategoryMarkupInjection, SeverityHigh, `(?i)\bon(load|error|click|dblclick|mouseover|mouseout|focus|blur|submit|change|input|keydown|keyup|keypress)\s*=`),
	rule("MI-006", CategoryMarkupInjection, SeverityHigh, `(?i)\beval\s*\(`),
	rule("MI-007", CategoryMarkupInjection, SeverityHigh, `(?i)<\s*(iframe|object|embed)\b`),

	rule("PL-001", CategoryPromptLeak, SeverityMedium, `(?i)\bmy\s+(system\s+)?instructions\s+(are|say)\b`),
	rule("PL-002", CategoryPromptLeak, SeverityMedium, `(?i)\bmy\s+system\s+prompt\b`),
	rule("PL-003", CategoryPromptLeak, SeverityMedium, `(?i)\bi\s+(was|have\s+been)\s+(instructed|told|programmed)\s+to\b`),
}
