package providers

import "context"

// Message is one chat message in OpenAI wire shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type LLMResponse struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        *UsageInfo `json:"usage,omitempty"`
}

// LLMProvider completes a chat. Options understood by every provider are
// "max_tokens" and "temperature".
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}

// EmbeddingClient turns text into a raw, provider-scaled vector.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}
