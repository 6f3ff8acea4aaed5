package focus

import (
	"sync"
	"time"
)

// Turn is one message of the conversation. Text, role and id never change
// after append; the cache fields are written only by this package.
type Turn struct {
	id          int
	role        Role
	text        string
	createdAt   time.Time
	tokenLength int

	mu           sync.Mutex
	embedding    []float32
	shortened    string
	hasShortened bool
	fidelity     Fidelity
	lastScore    float64

	// shortenMu serializes the memoized shortening call so at most one
	// caller computes it.
	shortenMu sync.Mutex
}

func (t *Turn) ID() int              { return t.id }
func (t *Turn) Role() Role           { return t.role }
func (t *Turn) Text() string         { return t.text }
func (t *Turn) CreatedAt() time.Time { return t.createdAt }
func (t *Turn) TokenLength() int     { return t.tokenLength }

// Embedding returns a copy of the cached vector, or nil when it is absent.
func (t *Turn) Embedding() []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.embedding == nil {
		return nil
	}
	out := make([]float32, len(t.embedding))
	copy(out, t.embedding)
	return out
}

// ShortenedText returns the memoized shortened text, if it was computed.
func (t *Turn) ShortenedText() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shortened, t.hasShortened
}

// Fidelity returns the level this turn was last packed at. ok is false
// until a BuildContext call emits the turn.
func (t *Turn) Fidelity() (f Fidelity, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fidelity, t.fidelity != ""
}

// LastScore is the score computed by the most recent BuildContext call.
func (t *Turn) LastScore() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastScore
}

func (t *Turn) vector() []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.embedding
}

func (t *Turn) setVector(vec []float32) {
	t.mu.Lock()
	t.embedding = vec
	t.mu.Unlock()
}

func (t *Turn) setLastScore(score float64) {
	t.mu.Lock()
	t.lastScore = score
	t.mu.Unlock()
}

func (t *Turn) setFidelity(f Fidelity) {
	t.mu.Lock()
	t.fidelity = f
	t.mu.Unlock()
}

// shortenOnce returns the memoized shortened text, running compute only
// when no value is cached. A failed compute leaves the memo empty.
func (t *Turn) shortenOnce(compute func() (string, error)) (string, error) {
	t.shortenMu.Lock()
	defer t.shortenMu.Unlock()

	if s, ok := t.ShortenedText(); ok {
		return s, nil
	}
	s, err := compute()
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	t.shortened = s
	t.hasShortened = true
	t.mu.Unlock()
	return s, nil
}
