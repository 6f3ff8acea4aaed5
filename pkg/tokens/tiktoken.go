package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/dotsetgreg/dotfocus/pkg/logger"
)

// FallbackEncoding is used for models tiktoken has no mapping for.
const FallbackEncoding = "cl100k_base"

func init() {
	// Rank files ship inside the binary; nothing is downloaded.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Tiktoken counts tokens with the BPE encoding of an OpenAI model.
type Tiktoken struct {
	encoding string

	mu  sync.Mutex // guards enc
	enc *tiktoken.Tiktoken
}

// NewTiktoken resolves the encoding for model, falling back to
// cl100k_base when the model is unknown.
func NewTiktoken(model string) (*Tiktoken, error) {
	model = strings.TrimSpace(model)
	if model != "" {
		enc, err := tiktoken.EncodingForModel(model)
		if err == nil {
			return &Tiktoken{encoding: encodingLabel(model), enc: enc}, nil
		}
		logger.DebugCF("tokens", "No encoding for model, using fallback", map[string]interface{}{
			"model":    model,
			"encoding": FallbackEncoding,
			"error":    err.Error(),
		})
	}
	return NewTiktokenEncoding(FallbackEncoding)
}

// NewTiktokenEncoding loads a named encoding such as cl100k_base.
func NewTiktokenEncoding(name string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", name, err)
	}
	return &Tiktoken{encoding: name, enc: enc}, nil
}

// Encoding is the encoding name, or "model:<name>" when it was resolved
// from a model.
func (t *Tiktoken) Encoding() string { return t.encoding }

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

func encodingLabel(model string) string { return "model:" + model }

func newTiktokenOrWords(model string) Counter {
	tk, err := NewTiktoken(model)
	if err != nil {
		logger.WarnCF("tokens", "Tiktoken unavailable, counting words", map[string]interface{}{
			"model": model,
			"error": err.Error(),
		})
		return WordCounter{}
	}
	return tk
}
