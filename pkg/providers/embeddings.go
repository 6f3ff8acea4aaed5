package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// embeddingsClient calls an OpenAI-compatible /embeddings endpoint.
type embeddingsClient struct {
	client *apiClient
	model  string
}

func newEmbeddingsClient(opts httpClientOptions, model string) (*embeddingsClient, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("%s embedding model is required", opts.providerName)
	}
	client, err := newAPIClient(opts)
	if err != nil {
		return nil, err
	}
	return &embeddingsClient{client: client, model: model}, nil
}

func (c *embeddingsClient) Model() string { return c.model }

func (c *embeddingsClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := c.client.postJSON(ctx, "/embeddings", map[string]interface{}{
		"model": c.model,
		"input": text,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s embeddings response: %w", c.client.providerName, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%s returned no embedding", c.client.providerName)
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
