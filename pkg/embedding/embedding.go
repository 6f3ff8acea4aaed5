// Package embedding provides the vector encoders a focus.MemoryStore can be
// built with: two offline hashing encoders and a remote provider wrapper.
// Every encoder returns unit-length vectors, or the zero vector for text
// without tokens.
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/dotsetgreg/dotfocus/pkg/config"
	"github.com/dotsetgreg/dotfocus/pkg/providers"
	"github.com/dotsetgreg/dotfocus/pkg/textutil"
)

const (
	DefaultHashDim     = 512
	DefaultChargramDim = 384

	// positionSalt spreads repeated tokens across buckets by position.
	positionSalt = 0x9E3779B1
)

type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// HashEmbedder is a feature-hashing bag of positioned tokens.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) ModelID() string { return fmt.Sprintf("dotfocus-hash-%d-v1", e.Dim) }

func (e *HashEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dim)
	for i, tok := range textutil.Tokenize(text) {
		bucket := (hash64(tok) ^ uint64(i)*positionSalt) % uint64(e.Dim)
		sign := float32(1)
		if hash64(tok+"$")&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}
	textutil.Normalize(vec)
	return vec, nil
}

// ChargramEmbedder hashes boundary-padded character trigrams plus whole
// tokens, so spelling variants still land close together.
type ChargramEmbedder struct {
	Dim int
}

func NewChargramEmbedder(dim int) *ChargramEmbedder {
	if dim <= 0 {
		dim = DefaultChargramDim
	}
	return &ChargramEmbedder{Dim: dim}
}

func (e *ChargramEmbedder) ModelID() string { return fmt.Sprintf("dotfocus-chargram-%d-v1", e.Dim) }

func (e *ChargramEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.Dim)
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return vec, nil
	}
	window := "#" + normalized + "#"
	for i := 0; i+3 <= len(window); i++ {
		vec[hash64(window[i:i+3])%uint64(e.Dim)] += 1
	}
	for _, tok := range textutil.Tokenize(normalized) {
		vec[hash64("tok:"+tok)%uint64(e.Dim)] += 1.25
	}
	textutil.Normalize(vec)
	return vec, nil
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Remote normalizes the vectors of a provider embedding client.
type Remote struct {
	client providers.EmbeddingClient
}

func NewRemote(client providers.EmbeddingClient) *Remote {
	return &Remote{client: client}
}

func (r *Remote) ModelID() string { return r.client.Model() }

func (r *Remote) Encode(ctx context.Context, text string) ([]float32, error) {
	raw, err := r.client.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed with %s: %w", r.client.Model(), err)
	}
	vec := make([]float32, len(raw))
	copy(vec, raw)
	textutil.Normalize(vec)
	return vec, nil
}

// New builds the encoder selected by cfg. client is only used, and then
// required, when the resolved kind is openai.
func New(cfg *config.Config, client providers.EmbeddingClient) (Encoder, error) {
	switch kind := cfg.EncoderKind(); kind {
	case config.EncoderHash:
		return NewHashEmbedder(cfg.Embedding.Dim), nil
	case config.EncoderChargram:
		dim := cfg.Embedding.Dim
		if dim == DefaultHashDim {
			dim = DefaultChargramDim
		}
		return NewChargramEmbedder(dim), nil
	case config.EncoderOpenAI:
		if client == nil {
			return nil, fmt.Errorf("embedding kind %q requires an embedding client", kind)
		}
		return NewRemote(client), nil
	default:
		return nil, fmt.Errorf("unknown embedding kind %q", kind)
	}
}
