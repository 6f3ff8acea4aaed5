package session

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dotsetgreg/dotfocus/pkg/focus"
)

// MemoryEntry summarizes one stored turn after the final pack.
type MemoryEntry struct {
	ID       int
	Role     string
	Fidelity string
	Preview  string
}

type Report struct {
	Query   string
	Context []focus.Message
	Stats   focus.Stats
	Memory  []MemoryEntry
}

// Report packs the whole history once more for the last meaningful query
// and summarizes where every turn ended up.
func (s *Session) Report(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	query := s.lastQuery
	s.mu.Unlock()
	if query == "" {
		query = FallbackQuery
	}

	packed, stats, err := s.ctrl.BuildContext(ctx, query, s.opts.Budget, s.opts.Preamble)
	if err != nil {
		return nil, fmt.Errorf("build final context: %w", err)
	}

	turns := s.ctrl.Store().Turns()
	memory := make([]MemoryEntry, len(turns))
	for i, t := range turns {
		fid, ok := t.Fidelity()
		state := string(fid)
		if !ok {
			state = "-"
		}
		memory[i] = MemoryEntry{
			ID:       t.ID(),
			Role:     string(t.Role()),
			Fidelity: state,
			Preview:  preview(t.Text(), 80),
		}
	}
	return &Report{Query: query, Context: packed, Stats: stats, Memory: memory}, nil
}

func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "\n--- Final packed context for query: %q ---\n", r.Query)
	WriteContext(w, r.Context, 160)

	fmt.Fprintln(w, "\n--- Token stats ---")
	WriteStats(w, r.Stats)

	fmt.Fprintln(w, "\n--- Memory summary ---")
	for _, m := range r.Memory {
		fmt.Fprintf(w, "[%02d] %-9s | %-11s | %s\n", m.ID, m.Role, m.Fidelity, m.Preview)
	}
}

// WriteContext prints one line per packed message, newlines flattened and
// content cut at width runes.
func WriteContext(w io.Writer, msgs []focus.Message, width int) {
	for _, m := range msgs {
		fmt.Fprintf(w, "%-9s | %s\n", m.Role, preview(strings.ReplaceAll(m.Content, "\n", " "), width))
	}
}

func WriteStats(w io.Writer, stats focus.Stats) {
	values := stats.Map()
	for _, k := range focus.StatKeys {
		fmt.Fprintf(w, "%s: %v\n", k, values[k])
	}
}

func preview(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width]) + "..."
}
