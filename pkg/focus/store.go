package focus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotsetgreg/dotfocus/pkg/logger"
)

// maxBatchEncoders bounds concurrent encoder calls in AppendBatch.
const maxBatchEncoders = 4

// MemoryStore is an append-only, insertion-ordered collection of turns.
// It owns the per-turn caches and is safe for concurrent use.
type MemoryStore struct {
	encoder VectorEncoder
	metric  TextMetric
	now     func() time.Time

	mu     sync.RWMutex
	turns  []*Turn
	nextID int
}

// NewMemoryStore returns an empty store whose first turn gets id 1. Both
// collaborators are required.
func NewMemoryStore(encoder VectorEncoder, metric TextMetric) (*MemoryStore, error) {
	if encoder == nil {
		return nil, errors.New("focus: vector encoder is required")
	}
	if metric == nil {
		return nil, errors.New("focus: text metric is required")
	}
	return &MemoryStore{
		encoder: encoder,
		metric:  metric,
		now:     time.Now,
		nextID:  1,
	}, nil
}

// Append measures and embeds text, then stores it as the newest turn. When
// the encoder fails nothing is stored and no id is consumed.
func (s *MemoryStore) Append(ctx context.Context, role Role, text string) (*Turn, error) {
	role, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	t, err := s.prepare(ctx, role, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.commitLocked(t)
	s.mu.Unlock()

	logger.DebugCF("focus", "Appended turn", map[string]interface{}{
		"turn_id": t.id,
		"role":    string(t.role),
		"tokens":  t.tokenLength,
	})
	return t, nil
}

// AppendBatch encodes independent messages concurrently and appends them in
// input order. Either every message is stored or none is.
func (s *MemoryStore) AppendBatch(ctx context.Context, msgs []Message) ([]*Turn, error) {
	roles := make([]Role, len(msgs))
	for i, m := range msgs {
		r, err := ParseRole(m.Role)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		roles[i] = r
	}

	prepared := make([]*Turn, len(msgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchEncoders)
	for i := range msgs {
		i := i
		g.Go(func() error {
			t, err := s.prepare(gctx, roles[i], msgs[i].Content)
			if err != nil {
				return err
			}
			prepared[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, t := range prepared {
		s.commitLocked(t)
	}
	s.mu.Unlock()

	logger.DebugCF("focus", "Appended turn batch", map[string]interface{}{"count": len(prepared)})
	return prepared, nil
}

func (s *MemoryStore) prepare(ctx context.Context, role Role, text string) (*Turn, error) {
	vec, err := s.encoder.Encode(ctx, text)
	if err != nil {
		return nil, &DependencyError{Op: "encode turn", Err: err}
	}
	return &Turn{
		role:        role,
		text:        text,
		tokenLength: s.metric.Count(text),
		embedding:   vec,
	}, nil
}

func (s *MemoryStore) commitLocked(t *Turn) {
	t.id = s.nextID
	s.nextID++
	t.createdAt = s.now()
	s.turns = append(s.turns, t)
}

// Turns returns every turn in ascending id order.
func (s *MemoryStore) Turns() []*Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len is the number of stored turns.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Get finds a turn by id with a binary search; ids ascend in append order.
func (s *MemoryStore) Get(id int) (*Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.turns), func(i int) bool { return s.turns[i].id >= id })
	if i < len(s.turns) && s.turns[i].id == id {
		return s.turns[i], true
	}
	return nil, false
}

// InvalidateEmbedding drops the cached vector of a turn so the next scoring
// pass recomputes it.
func (s *MemoryStore) InvalidateEmbedding(id int) bool {
	t, ok := s.Get(id)
	if !ok {
		return false
	}
	t.setVector(nil)
	return true
}

// Metric returns the token metric the store measures turns with.
func (s *MemoryStore) Metric() TextMetric { return s.metric }

func (s *MemoryStore) embeddingFor(ctx context.Context, t *Turn) ([]float32, error) {
	if vec := t.vector(); vec != nil {
		return vec, nil
	}
	vec, err := s.encoder.Encode(ctx, t.text)
	if err != nil {
		return nil, &DependencyError{Op: "encode turn", TurnID: t.id, Err: err}
	}
	t.setVector(vec)
	return vec, nil
}

func (s *MemoryStore) encodeQuery(ctx context.Context, query string) ([]float32, error) {
	vec, err := s.encoder.Encode(ctx, query)
	if err != nil {
		return nil, &DependencyError{Op: "encode query", Err: err}
	}
	return vec, nil
}
