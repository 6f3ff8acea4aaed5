// Package textutil holds the small text and vector helpers shared by the
// focus controller and its strategies.
package textutil

import (
	"math"
	"strings"

	"github.com/dotsetgreg/dotfocus/pkg/tokens"
)

const tokenTrimSet = ".,;:!?()[]{}\"'`-_/"

// Tokenize lowercases text, splits on whitespace and strips surrounding
// punctuation. Empty tokens are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, tokenTrimSet)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SplitSentences splits after every '.', '!', '?' or newline and trims the
// pieces. Blank pieces are skipped.
func SplitSentences(text string) []string {
	parts := []string{}
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				parts = append(parts, s)
			}
			start = i + 1
		}
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// TruncateToTokens keeps whole words from the front of text while their
// summed cost stays within target.
func TruncateToTokens(text string, target int, counter tokens.Counter) string {
	if target <= 0 {
		return ""
	}
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	used := 0
	for _, w := range words {
		need := counter.Count(w)
		if used+need > target {
			break
		}
		out = append(out, w)
		used += need
	}
	return strings.Join(out, " ")
}

func Norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize scales vec to unit length in place. A zero vector is left as is.
func Normalize(vec []float32) {
	n := Norm(vec)
	if n == 0 {
		return
	}
	inv := float32(1.0 / n)
	for i := range vec {
		vec[i] *= inv
	}
}

// Dot returns the dot product over the shorter of the two vectors. For unit
// vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
