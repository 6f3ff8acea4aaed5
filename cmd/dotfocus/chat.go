package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/dotsetgreg/dotfocus/pkg/config"
	"github.com/dotsetgreg/dotfocus/pkg/focus"
	"github.com/dotsetgreg/dotfocus/pkg/session"
)

const chatPrompt = "You: "

// lineReader yields one line of user input per call and io.EOF when the
// user is done.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

type readlineInput struct {
	rl *readline.Instance
}

func (r *readlineInput) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (r *readlineInput) Close() error { return r.rl.Close() }

type bufioInput struct {
	reader *bufio.Reader
	out    io.Writer
}

func newBufioInput(in io.Reader, out io.Writer) *bufioInput {
	return &bufioInput{reader: bufio.NewReader(in), out: out}
}

func (b *bufioInput) ReadLine() (string, error) {
	fmt.Fprint(b.out, chatPrompt)
	line, err := b.reader.ReadString('\n')
	if err != nil && line != "" && errors.Is(err, io.EOF) {
		// Last line without a trailing newline.
		return line, nil
	}
	return line, err
}

func (b *bufioInput) Close() error { return nil }

func runChat(cmd *cobra.Command, cfg *config.Config, offline bool, message string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, wiring, err := session.Build(cfg, offline)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if message != "" {
		res, err := s.Turn(ctx, message)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", res.Reply)
		return nil
	}

	fmt.Fprintf(out, "%s chat (%s)\n", appName, wiring)
	fmt.Fprintf(out, "Budget %d tokens. Type 'exit' or 'end the convo' to finish.\n\n", cfg.Session.Budget)

	in, err := newChatInput(cmd, cfg)
	if err != nil {
		fmt.Fprintf(out, "Error initializing readline: %v\n", err)
		fmt.Fprintln(out, "Falling back to simple input mode...")
		in = newBufioInput(cmd.InOrStdin(), out)
	}
	defer in.Close()

	return chatLoop(ctx, s, in, out)
}

func newChatInput(cmd *cobra.Command, cfg *config.Config) (lineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          chatPrompt,
		HistoryFile:     config.ExpandHome(cfg.Session.HistoryFile),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cmd.OutOrStdout(),
	})
	if err != nil {
		return nil, err
	}
	return &readlineInput{rl: rl}, nil
}

// chatLoop runs turns until an end word, EOF or cancellation, then prints
// the final report.
func chatLoop(ctx context.Context, s *session.Session, in lineReader, out io.Writer) error {
	for {
		line, err := in.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				break
			}
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if session.IsEndWord(input) {
			break
		}

		res, err := s.Turn(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\nAssistant: %s\n", res.Reply)
		fmt.Fprintf(out, "%s\n\n", contextSummary(res.Stats))
	}

	// The report must still be built after a Ctrl+C.
	report, err := s.Report(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	report.Write(out)
	fmt.Fprintln(out, "\nGoodbye!")
	return nil
}

func contextSummary(st focus.Stats) string {
	return fmt.Sprintf("[context %d/%d tokens: %d full, %d compressed, %d stub, %d omitted]",
		st.Used, st.Budget, st.ExpandedCount, st.CompressedCount, st.StubCount, st.Omitted())
}
