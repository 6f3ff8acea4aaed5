// Package tokens provides model-token length metrics.
package tokens

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	CounterTiktoken = "tiktoken"
	CounterWords    = "words"
	CounterRunes    = "runes"
)

// Counter estimates the model-token length of text. It must be
// deterministic and return 0 for empty text.
type Counter interface {
	Count(text string) int
}

// WordCounter counts whitespace-separated words. Any non-empty text costs at
// least one token.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(strings.Fields(text))
	if n < 1 {
		return 1
	}
	return n
}

// RuneEstimator approximates BPE tokenizers at roughly 2.5 runes per token,
// rounding up.
type RuneEstimator struct{}

func (RuneEstimator) Count(text string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	return (runes*2 + 4) / 5
}

// New returns the counter registered under name for model. An empty name
// selects the tiktoken counter. When no BPE encoding can be loaded the
// tiktoken counter degrades to WordCounter.
func New(name, model string) (Counter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CounterTiktoken:
		return newTiktokenOrWords(model), nil
	case CounterWords, "word", "whitespace":
		return WordCounter{}, nil
	case CounterRunes, "rune", "chars":
		return RuneEstimator{}, nil
	default:
		return nil, fmt.Errorf("unknown token counter %q", name)
	}
}

// Describe names c for startup logs, e.g. "tiktoken/cl100k_base".
func Describe(c Counter) string {
	switch v := c.(type) {
	case *Tiktoken:
		return CounterTiktoken + "/" + v.Encoding()
	case WordCounter:
		return CounterWords
	case RuneEstimator:
		return CounterRunes
	default:
		return fmt.Sprintf("%T", c)
	}
}
