package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dotsetgreg/dotfocus/pkg/config"
	"github.com/dotsetgreg/dotfocus/pkg/session"
)

func runDemo(ctx context.Context, out io.Writer, cfg *config.Config, budget int, query string) error {
	c := *cfg
	c.Session.Budget = budget
	c.Session.Preamble = session.DemoPreamble

	s, wiring, err := session.Build(&c, true)
	if err != nil {
		return err
	}
	if err := s.Seed(ctx, session.DemoConversation()); err != nil {
		return err
	}

	msgs, stats, err := s.Controller().BuildContext(ctx, query, budget, c.Session.Preamble)
	if err != nil {
		return fmt.Errorf("build context: %w", err)
	}

	fmt.Fprintf(out, "%s demo (%s)\n", appName, wiring)
	fmt.Fprintf(out, "\n=== Packed context for query: %q ===\n", query)
	session.WriteContext(out, msgs, 120)
	fmt.Fprintln(out, "\n=== Token stats ===")
	session.WriteStats(out, stats)
	return nil
}
