package textutil

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestTokenize(t *testing.T) {
	got := Tokenize("Plan a (weekend) trip to Chicago! -- deep-dish, please.")
	assert.Equal(t, []string{"plan", "a", "weekend", "trip", "to", "chicago", "deep-dish", "please"}, got)
	assert.Empty(t, Tokenize("  ... !! "))
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First one. Second one!\nThird line? trailing words")
	assert.Equal(t, []string{"First one.", "Second one!", "Third line?", "trailing words"}, got)
	assert.Empty(t, SplitSentences("   "))
}

func TestTruncateToTokens(t *testing.T) {
	c := wordCounter{}
	assert.Equal(t, "one two three", TruncateToTokens("one two three four five", 3, c))
	assert.Equal(t, "", TruncateToTokens("one two", 0, c))
	assert.Equal(t, "one two", TruncateToTokens("one   two", 10, c))
}

func TestNormalizeAndDot(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 1.0, Norm(v), 1e-6)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)

	zero := []float32{0, 0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0, 0}, zero)

	assert.InDelta(t, 1.0, Dot(v, v), 1e-6)
	assert.InDelta(t, 0.6, Dot(v, []float32{1}), 1e-6)
	assert.Equal(t, 0.0, Dot(nil, v))
	assert.False(t, math.IsNaN(Dot(zero, zero)))
}
