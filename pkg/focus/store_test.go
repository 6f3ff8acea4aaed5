package focus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dotsetgreg/dotfocus/pkg/tokens"
)

func newTestStore(t *testing.T) (*MemoryStore, *planeEncoder) {
	t.Helper()
	enc := newPlaneEncoder()
	store, err := NewMemoryStore(enc, tokens.WordCounter{})
	require.NoError(t, err)
	return store, enc
}

func TestMemoryStore_AppendAssignsIncreasingIDs(t *testing.T) {
	store, _ := newTestStore(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	a, err := store.Append(context.Background(), RoleSystem, "be helpful")
	require.NoError(t, err)
	b, err := store.Append(context.Background(), RoleUser, "plan a trip to Seattle")
	require.NoError(t, err)

	assert.Equal(t, 1, a.ID())
	assert.Equal(t, 2, b.ID())
	assert.Equal(t, 5, b.TokenLength())
	assert.Equal(t, RoleUser, b.Role())
	assert.Equal(t, fixed, b.CreatedAt())
	assert.NotNil(t, b.Embedding())
	_, ok := b.Fidelity()
	assert.False(t, ok)

	got, ok := store.Get(2)
	require.True(t, ok)
	assert.Same(t, b, got)
	_, ok = store.Get(3)
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStore_EmptyTextCostsZero(t *testing.T) {
	store, _ := newTestStore(t)
	turn, err := store.Append(context.Background(), RoleAssistant, "")
	require.NoError(t, err)
	assert.Equal(t, 0, turn.TokenLength())
}

func TestMemoryStore_RejectsUnknownRole(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Append(context.Background(), Role("tool"), "hi")
	assert.ErrorIs(t, err, ErrInvalidRole)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_EncoderFailureStoresNothing(t *testing.T) {
	store, enc := newTestStore(t)
	enc.failOn("broken")

	_, err := store.Append(context.Background(), RoleUser, "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependency)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, store.Len())

	turn, err := store.Append(context.Background(), RoleUser, "works")
	require.NoError(t, err)
	assert.Equal(t, 1, turn.ID(), "failed append consumes no id")
}

func TestMemoryStore_AppendBatchKeepsInputOrder(t *testing.T) {
	store, _ := newTestStore(t)
	msgs := make([]Message, 12)
	for i := range msgs {
		msgs[i] = Message{Role: "user", Content: fmt.Sprintf("message number %d", i)}
	}

	turns, err := store.AppendBatch(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, turns, len(msgs))
	for i, turn := range store.Turns() {
		assert.Equal(t, i+1, turn.ID())
		assert.Equal(t, msgs[i].Content, turn.Text())
	}
}

func TestMemoryStore_AppendBatchIsAllOrNothing(t *testing.T) {
	defer goleak.VerifyNone(t)
	store, enc := newTestStore(t)
	enc.failOn("bad")
	_, err := store.Append(context.Background(), RoleUser, "before")
	require.NoError(t, err)

	_, err = store.AppendBatch(context.Background(), []Message{
		{Role: "user", Content: "good"},
		{Role: "assistant", Content: "bad"},
		{Role: "user", Content: "also good"},
	})
	assert.ErrorIs(t, err, ErrDependency)
	assert.Equal(t, 1, store.Len())

	_, err = store.AppendBatch(context.Background(), []Message{{Role: "narrator", Content: "x"}})
	assert.ErrorIs(t, err, ErrInvalidRole)

	next, err := store.Append(context.Background(), RoleUser, "after")
	require.NoError(t, err)
	assert.Equal(t, 2, next.ID())
}

func TestMemoryStore_InvalidateUnknownTurn(t *testing.T) {
	store, _ := newTestStore(t)
	assert.False(t, store.InvalidateEmbedding(7))
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"system", "user", "assistant"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, Role(s), r)
	}
	r, err := ParseRole(" User")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)
	_, err = ParseRole("tool")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestStats_MapUsesStableKeys(t *testing.T) {
	s := Stats{Budget: 40, Used: 12, ItemsTotal: 3, StubCount: 1}
	m := s.Map()
	for _, k := range StatKeys {
		_, ok := m[k]
		assert.True(t, ok, "missing %s", k)
	}
	assert.Equal(t, float64(40), m["budget"])
	assert.Equal(t, float64(12), m["used"])
	assert.Equal(t, 2, s.Omitted())
}

func TestMemoryStore_GetFindsEveryID(t *testing.T) {
	store, _ := newTestStore(t)
	for i := 0; i < 9; i++ {
		_, err := store.Append(context.Background(), RoleUser, fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 9, store.Len())
	for id := 1; id <= 9; id++ {
		got, ok := store.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, id, got.ID())
	}
	for _, id := range []int{0, -1, 10} {
		_, ok := store.Get(id)
		assert.False(t, ok, id)
	}
}

func TestDefaultFocusConfig_Validates(t *testing.T) {
	cfg := DefaultFocusConfig()
	require.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.HighThreshold, cfg.MidThreshold)
}
