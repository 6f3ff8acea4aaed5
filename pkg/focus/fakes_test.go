package focus

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dotsetgreg/dotfocus/pkg/tokens"
)

var errBoom = errors.New("boom")

// planeEncoder maps text to a unit vector in the plane whose dot product
// with the query axis equals the similarity registered for that text.
type planeEncoder struct {
	mu    sync.Mutex
	sims  map[string]float64
	calls map[string]int
	fail  map[string]bool
}

func newPlaneEncoder() *planeEncoder {
	return &planeEncoder{sims: map[string]float64{}, calls: map[string]int{}, fail: map[string]bool{}}
}

func (e *planeEncoder) set(text string, sim float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sims[text] = sim
}

func (e *planeEncoder) failOn(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[text] = true
}

func (e *planeEncoder) callsFor(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[text]
}

func (e *planeEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[text]++
	if e.fail[text] {
		return nil, errBoom
	}
	sim, ok := e.sims[text]
	if !ok {
		// Unregistered text (the query included) lies on the query axis.
		return []float32{1, 0}, nil
	}
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}, nil
}

// prefixShortener keeps the first targetTokens words and counts calls.
type prefixShortener struct {
	calls atomic.Int64
	fail  atomic.Bool
	words int // when > 0, always keep this many words regardless of target
}

func (s *prefixShortener) Shorten(_ context.Context, text string, target int, _ string) (string, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return "", errBoom
	}
	keep := target
	if s.words > 0 {
		keep = s.words
	}
	words := strings.Fields(text)
	if len(words) <= keep {
		return text, nil
	}
	return strings.Join(words[:keep], " "), nil
}

func words(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

type fixture struct {
	enc       *planeEncoder
	shortener *prefixShortener
	store     *MemoryStore
	ctrl      *Controller
}

func newFixture(cfg FocusConfig) (*fixture, error) {
	enc := newPlaneEncoder()
	store, err := NewMemoryStore(enc, tokens.WordCounter{})
	if err != nil {
		return nil, err
	}
	sh := &prefixShortener{}
	ctrl, err := NewController(store, sh, cfg)
	if err != nil {
		return nil, err
	}
	return &fixture{enc: enc, shortener: sh, store: store, ctrl: ctrl}, nil
}
