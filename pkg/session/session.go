// Package session drives one conversation: every user turn is stored,
// packed under the token budget and answered by a Replier.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dotsetgreg/dotfocus/pkg/focus"
	"github.com/dotsetgreg/dotfocus/pkg/logger"
	"github.com/dotsetgreg/dotfocus/pkg/providers"
)

// FallbackQuery is used for the final report when no user turn was a
// meaningful query.
const FallbackQuery = "end the convo"

var endWords = map[string]struct{}{
	"exit":             {},
	"quit":             {},
	"end":              {},
	"end the convo":    {},
	"end conversation": {},
}

// IsEndWord reports whether text asks to finish the conversation.
func IsEndWord(text string) bool {
	_, ok := endWords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// IsMeaningfulQuery filters out end words and short filler such as "hi".
func IsMeaningfulQuery(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" || IsEndWord(t) {
		return false
	}
	return len(t) >= 6
}

// Replier produces the assistant reply for userText given the packed
// context.
type Replier interface {
	Reply(ctx context.Context, userText string, packed []focus.Message) (string, error)
}

// ProviderReplier sends the packed context to a chat model.
type ProviderReplier struct {
	Provider    providers.LLMProvider
	Model       string
	Temperature float64
}

func (r *ProviderReplier) Reply(ctx context.Context, _ string, packed []focus.Message) (string, error) {
	msgs := make([]providers.Message, len(packed))
	for i, m := range packed {
		msgs[i] = providers.Message{Role: m.Role, Content: m.Content}
	}
	resp, err := r.Provider.Chat(ctx, msgs, r.Model, map[string]interface{}{"temperature": r.Temperature})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// EchoReplier answers without a model so the controller can be exercised
// offline.
type EchoReplier struct{}

func (EchoReplier) Reply(_ context.Context, userText string, _ []focus.Message) (string, error) {
	return "[stub reply] You said: " + userText, nil
}

type Options struct {
	Budget   int
	Preamble string
}

// TurnResult is the outcome of one exchange.
type TurnResult struct {
	Reply   string
	Context []focus.Message
	Stats   focus.Stats
}

type Session struct {
	ID string

	ctrl    *focus.Controller
	replier Replier
	opts    Options

	mu        sync.Mutex
	lastQuery string
}

func New(ctrl *focus.Controller, replier Replier, opts Options) *Session {
	return &Session{
		ID:      uuid.NewString(),
		ctrl:    ctrl,
		replier: replier,
		opts:    opts,
	}
}

func (s *Session) Controller() *focus.Controller { return s.ctrl }

func (s *Session) Options() Options { return s.opts }

// LastQuery returns the most recent meaningful user query, if any.
func (s *Session) LastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// Seed preloads earlier conversation turns in order.
func (s *Session) Seed(ctx context.Context, msgs []focus.Message) error {
	if _, err := s.ctrl.Store().AppendBatch(ctx, msgs); err != nil {
		return fmt.Errorf("seed session: %w", err)
	}
	return nil
}

// Turn stores userText, packs the history for it and stores the reply. A
// failure after the user turn was stored leaves that turn in place.
func (s *Session) Turn(ctx context.Context, userText string) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ctrl.Store().Append(ctx, focus.RoleUser, userText); err != nil {
		return nil, fmt.Errorf("store user turn: %w", err)
	}
	if IsMeaningfulQuery(userText) {
		s.lastQuery = strings.TrimSpace(userText)
	}

	packed, stats, err := s.ctrl.BuildContext(ctx, userText, s.opts.Budget, s.opts.Preamble)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	reply, err := s.replier.Reply(ctx, userText, packed)
	if err != nil {
		return nil, fmt.Errorf("reply: %w", err)
	}
	if _, err := s.ctrl.Store().Append(ctx, focus.RoleAssistant, reply); err != nil {
		return nil, fmt.Errorf("store assistant turn: %w", err)
	}

	logger.InfoCF("session", "Turn completed", map[string]interface{}{
		"session_id": s.ID,
		"turns":      s.ctrl.Store().Len(),
		"used":       stats.Used,
		"budget":     stats.Budget,
		"omitted":    stats.Omitted(),
	})
	return &TurnResult{Reply: reply, Context: packed, Stats: stats}, nil
}
