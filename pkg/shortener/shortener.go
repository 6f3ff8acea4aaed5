// Package shortener rewrites turn text to fit a target token count. Both
// strategies return the text unchanged when it already fits.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dotsetgreg/dotfocus/pkg/config"
	"github.com/dotsetgreg/dotfocus/pkg/logger"
	"github.com/dotsetgreg/dotfocus/pkg/providers"
	"github.com/dotsetgreg/dotfocus/pkg/textutil"
	"github.com/dotsetgreg/dotfocus/pkg/tokens"
)

var (
	ErrNoMetric   = errors.New("shortener: token metric is required")
	ErrNoProvider = errors.New("shortener: chat provider is required")
)

type Shortener interface {
	Shorten(ctx context.Context, text string, targetTokens int, hint string) (string, error)
}

// Heuristic is an extractive shortener. It ranks sentences by overlap with
// the hint, favouring early and short sentences, and keeps the best ones
// that fit.
type Heuristic struct {
	Metric tokens.Counter
}

func NewHeuristic(metric tokens.Counter) *Heuristic {
	return &Heuristic{Metric: metric}
}

type scoredSentence struct {
	text  string
	score float64
}

func (h *Heuristic) Shorten(_ context.Context, text string, targetTokens int, hint string) (string, error) {
	if h.Metric == nil {
		return "", ErrNoMetric
	}
	if h.Metric.Count(text) <= targetTokens {
		return text, nil
	}

	sentences := textutil.SplitSentences(text)
	if len(sentences) == 0 {
		return textutil.TruncateToTokens(text, targetTokens, h.Metric), nil
	}

	hintTokens := map[string]struct{}{}
	for _, tok := range textutil.Tokenize(hint) {
		hintTokens[tok] = struct{}{}
	}

	scored := make([]scoredSentence, len(sentences))
	for i, s := range sentences {
		scored[i] = scoredSentence{text: s, score: sentenceScore(s, i, hintTokens)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	out := make([]string, 0, len(scored))
	used := 0
	for _, s := range scored {
		need := h.Metric.Count(s.text)
		if used+need > targetTokens {
			continue
		}
		out = append(out, s.text)
		used += need
		if used >= targetTokens {
			break
		}
	}

	if len(out) == 0 {
		return textutil.TruncateToTokens(sentences[0], targetTokens, h.Metric), nil
	}
	return strings.Join(out, " "), nil
}

func sentenceScore(sentence string, index int, hint map[string]struct{}) float64 {
	unique := map[string]struct{}{}
	for _, tok := range textutil.Tokenize(sentence) {
		unique[tok] = struct{}{}
	}
	overlap := 0
	for tok := range unique {
		if _, ok := hint[tok]; ok {
			overlap++
		}
	}
	lenPenalty := math.Pow(math.Max(1, float64(len(unique))), 0.15)
	posBias := 1.0 / (1 + float64(index)*0.05)
	return float64(1+overlap) * posBias / lenPenalty
}

const llmSystemPrompt = "You are a compression module. Rewrite the provided text to preserve key facts " +
	"and task-relevant details while staying under the specified token budget."

// LLM asks a chat model to rewrite the text. Replies that are empty or no
// shorter than the input are replaced by the Fallback result.
type LLM struct {
	Provider    providers.LLMProvider
	Model       string
	Temperature float64
	Metric      tokens.Counter
	Fallback    Shortener
}

func (l *LLM) Shorten(ctx context.Context, text string, targetTokens int, hint string) (string, error) {
	switch {
	case l.Metric == nil:
		return "", ErrNoMetric
	case l.Provider == nil:
		return "", ErrNoProvider
	}
	if l.Metric.Count(text) <= targetTokens {
		return text, nil
	}

	promptHint := hint
	if promptHint == "" {
		promptHint = "N/A"
	}
	prompt := fmt.Sprintf("Target token budget: ~%d tokens.\nCompression hint: %s\n\n%s", targetTokens, promptHint, text)
	resp, err := l.Provider.Chat(ctx, []providers.Message{
		{Role: "system", Content: llmSystemPrompt},
		{Role: "user", Content: prompt},
	}, l.Model, map[string]interface{}{"temperature": l.Temperature})
	if err != nil {
		return "", fmt.Errorf("llm shorten: %w", err)
	}

	out := strings.TrimSpace(resp.Content)
	if out != "" && l.Metric.Count(out) < l.Metric.Count(text) {
		return out, nil
	}
	logger.WarnCF("shortener", "Model reply was not shorter, using fallback", map[string]interface{}{
		"target": targetTokens,
		"reply":  l.Metric.Count(out),
	})
	if l.Fallback == nil {
		return textutil.TruncateToTokens(text, targetTokens, l.Metric), nil
	}
	return l.Fallback.Shorten(ctx, text, targetTokens, hint)
}

// New builds the shortener selected by cfg. metric is always required and
// provider is required when the resolved kind is llm.
func New(cfg *config.Config, provider providers.LLMProvider, metric tokens.Counter) (Shortener, error) {
	if metric == nil {
		return nil, ErrNoMetric
	}
	heuristic := NewHeuristic(metric)
	switch kind := cfg.ShortenerKind(); kind {
	case config.ShortenerHeuristic:
		return heuristic, nil
	case config.ShortenerLLM:
		if provider == nil {
			return nil, fmt.Errorf("shortener kind %q: %w", kind, ErrNoProvider)
		}
		return &LLM{
			Provider:    provider,
			Model:       cfg.Shortener.Model,
			Temperature: cfg.Shortener.Temperature,
			Metric:      metric,
			Fallback:    heuristic,
		}, nil
	default:
		return nil, fmt.Errorf("unknown shortener kind %q", kind)
	}
}
