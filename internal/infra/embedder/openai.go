// Package embedder provides the HTTP embedding client backing the
// capability index and the semantic router.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"toolgate/internal/domain"
)

const defaultTimeout = 30 * time.Second

// OpenAIClient implements embedding.Embedder against an OpenAI-compatible
// embeddings endpoint: POST {BaseURL}/embeddings with a bearer token,
// body { "model": string, "input": string[] }, response
// { "data": [ { "index": number, "embedding": number[] } ] }.
type OpenAIClient struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	http      *http.Client
}

var _ embedding.Embedder = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from config. The API key may come from
// the config directly or from the named environment variable.
func NewOpenAIClient(cfg domain.EmbeddingConfig) (*OpenAIClient, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("embedding base URL is required")
	}
	apiKey := cfg.APIKey
	if apiKey == "" && cfg.APIKeyEnvVar != "" {
		apiKey = os.Getenv(cfg.APIKeyEnvVar)
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = domain.DefaultEmbeddingDimension
	}
	return &OpenAIClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     cfg.Model,
		dimension: dimension,
		http:      &http.Client{Timeout: defaultTimeout},
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// EmbedStrings embeds all texts in one request. The returned vectors are
// ordered to match the input regardless of response ordering.
func (c *OpenAIClient) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding provider returned HTTP %d: %s", resp.StatusCode, truncateBody(body))
	}

	var decoded embedResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(decoded.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range decoded.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
