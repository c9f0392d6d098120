package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
)

func TestEmbedStringsOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Equal(t, []string{"first", "second"}, req.Input)

		// Out-of-order response, items carry their input index.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(domain.EmbeddingConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	})
	require.NoError(t, err)

	vectors, err := client.EmbedStrings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)
}

func TestEmbedStringsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(domain.EmbeddingConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.EmbedStrings(context.Background(), []string{"x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 429")
}

func TestEmbedStringsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float64{1}}},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(domain.EmbeddingConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.EmbedStrings(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestEmbedStringsEmptyInput(t *testing.T) {
	client, err := NewOpenAIClient(domain.EmbeddingConfig{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	vectors, err := client.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vectors)
}

func TestNewOpenAIClientRequiresBaseURL(t *testing.T) {
	_, err := NewOpenAIClient(domain.EmbeddingConfig{})
	require.Error(t, err)
}
