// Package textutil holds the tokenisation shared by retrieval, scoring and question tracking.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MinKeywordLength is the shortest token kept as a keyword, in runes.
const MinKeywordLength = 4

var stopWords = toSet(
	// en
	"about", "above", "after", "again", "also", "been", "before", "being", "both", "could", "does",
	"doing", "down", "during", "each", "from", "further", "have", "having", "here", "hers", "herself",
	"himself", "into", "itself", "just", "more", "most", "myself", "once", "only", "other", "ours",
	"ourselves", "over", "same", "should", "some", "such", "than", "that", "their", "theirs", "them",
	"themselves", "then", "there", "these", "they", "this", "those", "through", "under", "until",
	"very", "want", "were", "what", "when", "where", "which", "while", "whom", "will", "with",
	"would", "your", "yours", "yourself", "yourselves", "please", "thanks", "hello", "tell", "know",
	"like", "need", "much", "many", "make",
	// es / pt
	"para", "como", "cual", "cuál", "esta", "este", "esto", "pero", "porque", "sobre", "tiene",
	"tienen", "quiero", "puede", "pode", "qual", "você", "voce", "isso", "essa", "esse", "mais",
	"muito", "também", "tambem", "donde", "onde", "cuando", "quando",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Words lowercases s and splits it on anything that is not a letter or digit.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Keywords returns distinct non-stop-word tokens of at least MinKeywordLength runes, in first-seen order.
func Keywords(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range Words(s) {
		if len([]rune(w)) < MinKeywordLength || IsStopWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// KeywordSet is Keywords as a set.
func KeywordSet(s string) map[string]struct{} {
	kw := Keywords(s)
	set := make(map[string]struct{}, len(kw))
	for _, w := range kw {
		set[w] = struct{}{}
	}
	return set
}

func WordCount(s string) int {
	return len(strings.Fields(s))
}

func CharCount(s string) int {
	return len([]rune(s))
}

// Normalize applies NFKC, lowercases, drops everything but letters, digits and spaces,
// then collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	lowered := strings.ToLower(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// Truncate cuts s to max runes and appends marker. It reports whether anything was cut.
func Truncate(s string, max int, marker string) (string, bool) {
	if max <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}
	return string(runes[:max]) + marker, true
}
