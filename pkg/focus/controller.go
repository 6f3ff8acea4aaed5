package focus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dotsetgreg/dotfocus/pkg/logger"
	"github.com/dotsetgreg/dotfocus/pkg/textutil"
)

const stubHeadRunes = 200

// Controller scores, plans and packs the turns of one MemoryStore. Calls to
// BuildContext are serialized because they update shared turn state.
type Controller struct {
	store     *MemoryStore
	metric    TextMetric
	shortener TextShortener
	cfg       FocusConfig

	mu sync.Mutex
}

// NewController validates cfg and binds the controller to store. Query and
// turn vectors both come from the store's encoder, so they are comparable.
func NewController(store *MemoryStore, shortener TextShortener, cfg FocusConfig) (*Controller, error) {
	if store == nil {
		return nil, errors.New("focus: memory store is required")
	}
	if shortener == nil {
		return nil, errors.New("focus: text shortener is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		store:     store,
		metric:    store.metric,
		shortener: shortener,
		cfg:       cfg,
	}, nil
}

// Config returns the validated configuration the controller was built with.
func (c *Controller) Config() FocusConfig { return c.cfg }

// Store returns the store the controller packs from.
func (c *Controller) Store() *MemoryStore { return c.store }

// ScoreTurn scores t at position out of total against query and records the
// result on the turn.
func (c *Controller) ScoreTurn(t *Turn, query []float32, position, total int) float64 {
	score := Score(textutil.Dot(t.vector(), query), position, total, c.cfg.RecencyHalfLife)
	t.setLastScore(score)
	return score
}

type plannedTurn struct {
	turn    *Turn
	desired Fidelity
}

// BuildContext packs the stored conversation for query under budget tokens.
// A non-empty preamble is emitted first as a system message when it fits.
// Turns are emitted in chronological order; a turn that fits no level is
// left out and only shows up in the stats.
func (c *Controller) BuildContext(ctx context.Context, query string, budget int, preamble string) ([]Message, Stats, error) {
	if budget < 0 {
		return nil, Stats{}, fmt.Errorf("%w: %d", ErrInvalidBudget, budget)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	plan, stats, err := c.plan(ctx, query)
	if err != nil {
		return nil, Stats{}, err
	}
	stats.Budget = budget

	remaining := budget
	messages := make([]Message, 0, len(plan)+1)
	if preamble != "" {
		if cost := c.metric.Count(preamble); cost <= remaining {
			messages = append(messages, Message{Role: string(RoleSystem), Content: preamble})
			remaining -= cost
			stats.PreambleTokens = cost
			stats.Used += cost
		}
	}

	achieved := make([]Fidelity, len(plan))
	for i, p := range plan {
		for _, level := range cascade(p.desired) {
			text, cost, err := c.render(ctx, p.turn, level, query)
			if err != nil {
				return nil, Stats{}, err
			}
			if cost > remaining {
				continue
			}
			messages = append(messages, Message{Role: string(p.turn.role), Content: text})
			remaining -= cost
			stats.record(level, cost)
			achieved[i] = level
			break
		}
	}

	// Fidelity is written only once the whole pass succeeded.
	for i, p := range plan {
		if achieved[i] != "" {
			p.turn.setFidelity(achieved[i])
		}
	}

	logger.DebugCF("focus", "Packed context", map[string]interface{}{
		"budget":   stats.Budget,
		"used":     stats.Used,
		"full":     stats.ExpandedCount,
		"compress": stats.CompressedCount,
		"stub":     stats.StubCount,
		"omitted":  stats.Omitted(),
	})
	return messages, stats, nil
}

// plan scores every turn and maps each score to its desired fidelity. It
// does not consider the budget.
func (c *Controller) plan(ctx context.Context, query string) ([]plannedTurn, Stats, error) {
	qvec, err := c.store.encodeQuery(ctx, query)
	if err != nil {
		return nil, Stats{}, err
	}

	turns := c.store.Turns()
	for _, t := range turns {
		if _, err := c.store.embeddingFor(ctx, t); err != nil {
			return nil, Stats{}, err
		}
	}

	var stats Stats
	stats.ItemsTotal = len(turns)
	plan := make([]plannedTurn, len(turns))
	for i, t := range turns {
		desired := c.cfg.Desired(c.ScoreTurn(t, qvec, i, len(turns)))
		plan[i] = plannedTurn{turn: t, desired: desired}
		stats.plan(desired)
	}
	return plan, stats, nil
}

// render returns the text and cost of t at level.
func (c *Controller) render(ctx context.Context, t *Turn, level Fidelity, query string) (string, int, error) {
	switch level {
	case FidelityFull:
		return t.text, t.tokenLength, nil
	case FidelityCompressed:
		s, err := c.shortened(ctx, t, query)
		if err != nil {
			return "", 0, err
		}
		return s, c.metric.Count(s), nil
	default:
		s := c.Stub(t)
		return s, c.metric.Count(s), nil
	}
}

// shortened returns the memoized shortened text of t. The first call fixes
// the value; later calls reuse it even when their query differs.
func (c *Controller) shortened(ctx context.Context, t *Turn, query string) (string, error) {
	return t.shortenOnce(func() (string, error) {
		s, err := c.shortener.Shorten(ctx, t.text, c.compressTarget(t), query)
		if err != nil {
			return "", &DependencyError{Op: "shorten turn", TurnID: t.id, Err: err}
		}
		return s, nil
	})
}

func (c *Controller) compressTarget(t *Turn) int {
	target := int(math.Floor(float64(t.tokenLength) * c.cfg.DefaultCompressRatio))
	if target < 1 {
		return 1
	}
	return target
}

// Stub builds the reference placeholder for t: a marker naming the turn
// followed by as much of its first line as fits MaxPlaceholderTokens.
func (c *Controller) Stub(t *Turn) string {
	prefix := fmt.Sprintf("[ref #%d • %s] ", t.id, t.role)
	room := c.cfg.MaxPlaceholderTokens - c.metric.Count(prefix)
	if room <= 0 {
		return strings.TrimSpace(prefix)
	}

	head := strings.TrimSpace(t.text)
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if r := []rune(head); len(r) > stubHeadRunes {
		head = string(r[:stubHeadRunes])
	}

	words := strings.Fields(textutil.TruncateToTokens(head, room, c.metric))
	for {
		stub := strings.TrimSpace(prefix + strings.Join(words, " "))
		if len(words) == 0 || c.metric.Count(stub) <= c.cfg.MaxPlaceholderTokens {
			return stub
		}
		words = words[:len(words)-1]
	}
}
