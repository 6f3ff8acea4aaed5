// Package focus decides, per turn of a conversation, how much of each past
// turn to replay to a language model under a fixed token budget.
//
// A MemoryStore keeps every turn in append order. A Controller scores the
// stored turns against the current query (relevance blended with recency),
// plans a fidelity level for each, and packs a chronological context that
// never exceeds the budget, stepping FULL -> COMPRESSED -> PLACEHOLDER when
// a planned level does not fit.
package focus

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the author of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole accepts system, user or assistant in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Fidelity is the level of detail a turn is rendered at.
type Fidelity string

const (
	FidelityFull        Fidelity = "FULL"
	FidelityCompressed  Fidelity = "COMPRESSED"
	FidelityPlaceholder Fidelity = "PLACEHOLDER"
)

// rank orders fidelities by cost; higher is more expensive.
func (f Fidelity) rank() int {
	switch f {
	case FidelityFull:
		return 3
	case FidelityCompressed:
		return 2
	case FidelityPlaceholder:
		return 1
	default:
		return 0
	}
}

// AtMost reports whether f is no more expensive than other.
func (f Fidelity) AtMost(other Fidelity) bool {
	return f.rank() <= other.rank()
}

// cascade lists the levels attempted for a desired fidelity, most expensive
// first. The packer only ever steps down this list.
func cascade(desired Fidelity) []Fidelity {
	switch desired {
	case FidelityFull:
		return []Fidelity{FidelityFull, FidelityCompressed, FidelityPlaceholder}
	case FidelityCompressed:
		return []Fidelity{FidelityCompressed, FidelityPlaceholder}
	default:
		return []Fidelity{FidelityPlaceholder}
	}
}

// Message is one (role, text) pair of a packed context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FocusConfig tunes one Controller. It is copied at construction and never
// mutated afterwards.
type FocusConfig struct {
	HighThreshold        float64 `json:"high_threshold" yaml:"high_threshold"`
	MidThreshold         float64 `json:"mid_threshold" yaml:"mid_threshold"`
	RecencyHalfLife      int     `json:"recency_half_life" yaml:"recency_half_life"`
	MaxPlaceholderTokens int     `json:"max_placeholder_tokens" yaml:"max_placeholder_tokens"`
	DefaultCompressRatio float64 `json:"default_compress_ratio" yaml:"default_compress_ratio"`
}

// DefaultFocusConfig returns the library defaults; it always validates.
func DefaultFocusConfig() FocusConfig {
	return FocusConfig{
		HighThreshold:        0.55,
		MidThreshold:         0.30,
		RecencyHalfLife:      12,
		MaxPlaceholderTokens: 12,
		DefaultCompressRatio: 0.35,
	}
}

// Validate reports every invalid field at once. Each error matches
// ErrInvalidConfig.
func (c FocusConfig) Validate() error {
	var errs []error
	if c.HighThreshold < 0 || c.HighThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: high_threshold must be in [0,1], got %v", ErrInvalidConfig, c.HighThreshold))
	}
	if c.MidThreshold < 0 || c.MidThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: mid_threshold must be in [0,1], got %v", ErrInvalidConfig, c.MidThreshold))
	}
	if c.HighThreshold <= c.MidThreshold {
		errs = append(errs, fmt.Errorf("%w: high_threshold (%v) must be greater than mid_threshold (%v)", ErrInvalidConfig, c.HighThreshold, c.MidThreshold))
	}
	if c.RecencyHalfLife <= 0 {
		errs = append(errs, fmt.Errorf("%w: recency_half_life must be positive, got %d", ErrInvalidConfig, c.RecencyHalfLife))
	}
	if c.MaxPlaceholderTokens <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_placeholder_tokens must be positive, got %d", ErrInvalidConfig, c.MaxPlaceholderTokens))
	}
	if c.DefaultCompressRatio <= 0 || c.DefaultCompressRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: default_compress_ratio must be in (0,1], got %v", ErrInvalidConfig, c.DefaultCompressRatio))
	}
	return errors.Join(errs...)
}

// Desired maps a score to the fidelity it deserves, ignoring budget.
func (c FocusConfig) Desired(score float64) Fidelity {
	switch {
	case score >= c.HighThreshold:
		return FidelityFull
	case score >= c.MidThreshold:
		return FidelityCompressed
	default:
		return FidelityPlaceholder
	}
}
