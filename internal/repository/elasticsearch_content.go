package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"assistant-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const defaultCandidateSize = 50

// ElasticsearchContentStore pre-selects candidates with a BM25 query over the business's sections.
type ElasticsearchContentStore struct {
	client *elasticsearch.Client
	index  string
	size   int
}

func NewElasticsearchContentStore(client *elasticsearch.Client, index string) *ElasticsearchContentStore {
	return &ElasticsearchContentStore{client: client, index: index, size: defaultCandidateSize}
}

type contentDocument struct {
	BusinessID  string    `json:"business_id"`
	Language    string    `json:"language"`
	OriginType  string    `json:"origin_type"`
	SectionName string    `json:"section_name"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source contentDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildContentQuery(businessID, language, query string) map[string]interface{} {
	filterClauses := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"business_id": businessID}},
	}
	if language != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"language": language},
		})
	}

	boolQuery := map[string]interface{}{"filter": filterClauses}
	if strings.TrimSpace(query) != "" {
		boolQuery["should"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  query,
					"fields": []string{"title^2", "content", "section_name"},
					"type":   "best_fields",
				},
			},
		}
	}
	return map[string]interface{}{"query": map[string]interface{}{"bool": boolQuery}}
}

func (s *ElasticsearchContentStore) ListCandidates(ctx context.Context, businessID, language, query string) ([]models.ContentCandidate, error) {
	body, err := json.Marshal(buildContentQuery(businessID, language, query))
	if err != nil {
		return nil, err
	}

	size := s.size
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s failed: %s", s.index, res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]models.ContentCandidate, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := hit.Source
		out = append(out, models.ContentCandidate{
			ID:          hit.ID,
			BusinessID:  doc.BusinessID,
			Language:    doc.Language,
			OriginType:  models.OriginType(doc.OriginType),
			SectionName: doc.SectionName,
			Title:       doc.Title,
			Content:     doc.Content,
			LastUsedAt:  doc.LastUsedAt,
		})
	}
	return out, nil
}
