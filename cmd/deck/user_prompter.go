// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/deckdev/deck/cmd/deck/internal/launch"
)

// =============================================================================
// InteractivePrompter
// =============================================================================

// InteractivePrompter asks the user questions on the terminal.
//
// On a real TTY, Select renders a huh menu; with injected IO (tests,
// pipes) it falls back to a numbered plain-text menu read line by line.
// Confirm is always plain text: y/yes (any case) means yes, everything
// else means no.
type InteractivePrompter struct {
	in  io.Reader
	out io.Writer

	// tui enables the huh menu; only ever true for the default
	// constructor on a terminal.
	tui bool
}

// NewInteractivePrompter creates a prompter on stdin/stdout.
func NewInteractivePrompter() *InteractivePrompter {
	return &InteractivePrompter{
		in:  os.Stdin,
		out: os.Stdout,
		tui: isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// NewInteractivePrompterWithIO creates a prompter with injected IO.
// Used by tests; the huh menu is disabled because it needs a terminal.
func NewInteractivePrompterWithIO(in io.Reader, out io.Writer) *InteractivePrompter {
	return &InteractivePrompter{in: in, out: out}
}

// Confirm asks a yes/no question and interprets the answer.
func (p *InteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Select presents options and returns the chosen index.
func (p *InteractivePrompter) Select(ctx context.Context, title string, options []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(options) == 0 {
		return 0, errors.New("no options to select from")
	}

	if p.tui {
		return p.selectTUI(title, options)
	}
	return p.selectPlain(title, options)
}

func (p *InteractivePrompter) selectTUI(title string, options []string) (int, error) {
	opts := make([]huh.Option[int], len(options))
	for i, label := range options {
		opts[i] = huh.NewOption(label, i)
	}

	var choice int
	err := huh.NewSelect[int]().
		Title(title).
		Options(opts...).
		Value(&choice).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return 0, launch.ErrCancelled
	}
	if err != nil {
		return 0, fmt.Errorf("selection failed: %w", err)
	}
	return choice, nil
}

func (p *InteractivePrompter) selectPlain(title string, options []string) (int, error) {
	fmt.Fprintf(p.out, "%s\n", title)
	for i, label := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, label)
	}
	fmt.Fprintf(p.out, "Enter a number (or q to cancel): ")

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("read selection: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "" || answer == "q" || answer == "quit" {
		return 0, launch.ErrCancelled
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(options) {
		return 0, fmt.Errorf("invalid selection %q: enter 1-%d", answer, len(options))
	}
	return n - 1, nil
}

// =============================================================================
// NonInteractivePrompter
// =============================================================================

// NonInteractivePrompter serves scripted runs (no TTY, or --yes).
//
// Confirmations resolve to AssumeYes. Selections fail closed unless
// there is exactly one option: picking a container to run is a real
// decision, and guessing it in a script would be worse than failing.
type NonInteractivePrompter struct {
	// AssumeYes answers every confirmation with yes.
	AssumeYes bool
}

func (p *NonInteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.AssumeYes, nil
}

func (p *NonInteractivePrompter) Select(ctx context.Context, title string, options []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(options) == 1 {
		return 0, nil
	}
	return 0, fmt.Errorf("%q needs an interactive terminal (%d options)", title, len(options))
}

// =============================================================================
// MockPrompter
// =============================================================================

// MockPrompter is a scripted test double.
type MockPrompter struct {
	// ConfirmResponses are returned in order; when exhausted, Confirm
	// returns false.
	ConfirmResponses []bool

	// SelectResponses are returned in order; when exhausted, Select
	// returns 0.
	SelectResponses []int

	// Err, when set, is returned by every call.
	Err error

	// ConfirmPrompts and SelectTitles record what was asked.
	ConfirmPrompts []string
	SelectTitles   []string

	confirmIdx int
	selectIdx  int
}

func (m *MockPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	m.ConfirmPrompts = append(m.ConfirmPrompts, prompt)
	if m.Err != nil {
		return false, m.Err
	}
	if m.confirmIdx >= len(m.ConfirmResponses) {
		return false, nil
	}
	response := m.ConfirmResponses[m.confirmIdx]
	m.confirmIdx++
	return response, nil
}

func (m *MockPrompter) Select(ctx context.Context, title string, options []string) (int, error) {
	m.SelectTitles = append(m.SelectTitles, title)
	if m.Err != nil {
		return 0, m.Err
	}
	if m.selectIdx >= len(m.SelectResponses) {
		return 0, nil
	}
	response := m.SelectResponses[m.selectIdx]
	m.selectIdx++
	return response, nil
}

var (
	_ launch.UserPrompter = (*InteractivePrompter)(nil)
	_ launch.UserPrompter = (*NonInteractivePrompter)(nil)
	_ launch.UserPrompter = (*MockPrompter)(nil)
)
