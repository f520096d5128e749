// SPDX-License-Identifier: MPL-2.0

// Package prompt asks the user yes/no questions. The CLI uses a huh-backed
// terminal form; tests and --yes runs use the non-interactive implementations.
package prompt

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNoMoreAnswers is returned by Scripted when it runs out of answers.
var ErrNoMoreAnswers = errors.New("scripted confirmer has no answers left")

type (
	// Confirmer asks a yes/no question and returns the answer.
	Confirmer interface {
		Confirm(ctx context.Context, question string) (bool, error)
	}

	// TerminalConfirmer renders the question as a huh confirm field.
	TerminalConfirmer struct {
		// Accessible switches huh into line-based prompts for screen readers
		// and non-terminal stdin.
		Accessible bool
		// Output receives the rendered prompt. Nil means stdout, or stderr in
		// accessible mode so command substitution does not swallow it.
		Output io.Writer
		// Input is read for answers. Nil means stdin.
		Input io.Reader
	}

	// AlwaysYes confirms every question without asking.
	AlwaysYes struct{}

	// Scripted answers questions from a fixed list and records what was asked.
	Scripted struct {
		mu        sync.Mutex
		answers   []bool
		questions []string
	}
)

// NewTerminalConfirmer returns a confirmer that falls back to accessible mode
// when stdin is not a terminal or ACCESSIBLE is set.
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{
		Accessible: !term.IsTerminal(int(os.Stdin.Fd())) || os.Getenv("ACCESSIBLE") != "",
	}
}

// Confirm shows question with Yes/No options. An interrupted form (ctrl+c, esc)
// counts as a "no" answer.
func (c *TerminalConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	var answer bool

	field := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&answer)

	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huh.ThemeBase()).
		WithAccessible(c.Accessible).
		WithOutput(c.output())
	if c.Input != nil {
		form = form.WithInput(c.Input)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return answer, nil
}

func (c *TerminalConfirmer) output() io.Writer {
	switch {
	case c.Output != nil:
		return c.Output
	case c.Accessible:
		return os.Stderr
	default:
		return os.Stdout
	}
}

// Confirm returns true.
func (AlwaysYes) Confirm(context.Context, string) (bool, error) { return true, nil }

// NewScripted returns a confirmer that replies with answers in order.
func NewScripted(answers ...bool) *Scripted {
	return &Scripted{answers: answers}
}

// Confirm returns the next scripted answer.
func (s *Scripted) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, question)
	if len(s.answers) == 0 {
		return false, ErrNoMoreAnswers
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Questions returns the questions asked so far.
func (s *Scripted) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}
