package semantic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPScorer_Similarity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/similarity", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req similarityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "opening hours", req.Query)
		assert.Len(t, req.Documents, 2)

		_ = json.NewEncoder(w).Encode(similarityResponse{Scores: []float64{0.92, 1.4}})
	}))
	defer server.Close()

	s := NewHTTPScorer(config.SemanticConfig{BaseURL: server.URL + "/", APIKey: "k", Timeout: 1000})
	scores, err := s.Similarity(context.Background(), "opening hours", []string{"We open at 9", "Closed Sundays"})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.92, 1}, scores)
}

func TestHTTPScorer_Errors(t *testing.T) {
	t.Run("length mismatch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(similarityResponse{Scores: []float64{0.5}})
		}))
		defer server.Close()

		_, err := NewHTTPScorer(config.SemanticConfig{BaseURL: server.URL, Timeout: 1000}).
			Similarity(context.Background(), "q", []string{"a", "b"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeRetrievalFailed))
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
			}
		}))
		defer server.Close()

		_, err := NewHTTPScorer(config.SemanticConfig{BaseURL: server.URL, Timeout: 20}).
			Similarity(context.Background(), "q", []string{"a"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeRetrievalTimeout))
	})
}

func TestNewHTTPScorer_NilWithoutBaseURL(t *testing.T) {
	assert.Nil(t, NewHTTPScorer(config.SemanticConfig{}))
}
