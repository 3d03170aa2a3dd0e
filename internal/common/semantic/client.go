// Package semantic calls the external similarity service that supplies the semantic signal
// for retrieval and confidence scoring.
package semantic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/errors"
	httpclient "assistant-workers/internal/common/http"
)

// Scorer returns one similarity in [0,1] per document, in input order.
type Scorer interface {
	Similarity(ctx context.Context, query string, documents []string) ([]float64, error)
}

type HTTPScorer struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewHTTPScorer returns nil when no service is configured, which callers treat as "no semantic signal".
func NewHTTPScorer(cfg config.SemanticConfig) *HTTPScorer {
	if cfg.BaseURL == "" {
		return nil
	}
	return &HTTPScorer{
		http:    httpclient.NewClient(0),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: config.GetDuration(cfg.Timeout),
	}
}

type similarityRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type similarityResponse struct {
	Scores []float64 `json:"scores"`
}

func (s *HTTPScorer) Similarity(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	headers := map[string]string{}
	if s.apiKey != "" {
		headers["Authorization"] = "Bearer " + s.apiKey
	}

	var resp similarityResponse
	err := s.http.PostJSON(ctx, s.baseURL+"/v1/similarity", headers,
		similarityRequest{Query: query, Documents: documents}, &resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewRetrievalTimeoutError("semantic")
		}
		return nil, errors.NewRetrievalError("semantic", err)
	}
	if len(resp.Scores) != len(documents) {
		return nil, errors.NewRetrievalError("semantic",
			fmt.Errorf("got %d scores for %d documents", len(resp.Scores), len(documents)))
	}

	for i, v := range resp.Scores {
		resp.Scores[i] = clamp01(v)
	}
	return resp.Scores, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
