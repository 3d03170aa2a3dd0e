package models

import "time"

// OriginType identifies which content collection a source came from.
type OriginType string

const (
	OriginTemplate OriginType = "template"
	OriginContext  OriginType = "context"
	OriginFAQ      OriginType = "faq"
)

// Rank orders origins for tie-breaking: template < context < faq.
func (o OriginType) Rank() int {
	switch o {
	case OriginTemplate:
		return 0
	case OriginContext:
		return 1
	case OriginFAQ:
		return 2
	default:
		return 3
	}
}

// ContentCandidate is a raw content row before scoring.
type ContentCandidate struct {
	ID          string     `json:"id"`
	BusinessID  string     `json:"businessId"`
	Language    string     `json:"language"`
	OriginType  OriginType `json:"originType"`
	SectionName string     `json:"sectionName"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	LastUsedAt  time.Time  `json:"lastUsedAt"`
}

type SourceMetadata struct {
	CharacterCount int `json:"characterCount"`
	WordCount      int `json:"wordCount"`
}

// ContextSource is a scored snapshot of a candidate for one query.
type ContextSource struct {
	ID              string         `json:"id"`
	OriginType      OriginType     `json:"originType"`
	SectionName     string         `json:"sectionName"`
	Content         string         `json:"content"`
	SimilarityScore float64        `json:"similarityScore"`
	LastUsedAt      time.Time      `json:"lastUsedAt"`
	Metadata        SourceMetadata `json:"metadata"`
}
