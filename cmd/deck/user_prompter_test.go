// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/deckdev/deck/cmd/deck/internal/launch"
)

func TestInteractivePrompter_Confirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"lowercase y", "y\n", true},
		{"uppercase Y", "Y\n", true},
		{"yes", "yes\n", true},
		{"YES", "YES\n", true},
		{"with whitespace", "  y  \n", true},
		{"n", "n\n", false},
		{"no", "no\n", false},
		{"empty defaults to no", "\n", false},
		{"anything else", "maybe\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewInteractivePrompterWithIO(strings.NewReader(tt.input), &out)

			got, err := p.Confirm(context.Background(), "Proceed?")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Proceed? [y/N]:") {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestInteractivePrompter_SelectPlain(t *testing.T) {
	var out bytes.Buffer
	p := NewInteractivePrompterWithIO(strings.NewReader("2\n"), &out)

	idx, err := p.Select(context.Background(), "Pick one", []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 1 {
		t.Errorf("Select() = %d, want 1", idx)
	}
	menu := out.String()
	if !strings.Contains(menu, "1) alpha") || !strings.Contains(menu, "3) gamma") {
		t.Errorf("menu = %q", menu)
	}
}

func TestInteractivePrompter_SelectCancel(t *testing.T) {
	for _, input := range []string{"q\n", "quit\n", "\n"} {
		p := NewInteractivePrompterWithIO(strings.NewReader(input), &bytes.Buffer{})
		_, err := p.Select(context.Background(), "Pick", []string{"a"})
		if !errors.Is(err, launch.ErrCancelled) {
			t.Errorf("Select(%q) err = %v, want ErrCancelled", input, err)
		}
	}
}

func TestInteractivePrompter_SelectInvalid(t *testing.T) {
	for _, input := range []string{"0\n", "4\n", "x\n"} {
		p := NewInteractivePrompterWithIO(strings.NewReader(input), &bytes.Buffer{})
		_, err := p.Select(context.Background(), "Pick", []string{"a", "b", "c"})
		if err == nil || errors.Is(err, launch.ErrCancelled) {
			t.Errorf("Select(%q) err = %v, want a validation error", input, err)
		}
	}
}

func TestInteractivePrompter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewInteractivePrompterWithIO(strings.NewReader("y\n"), &bytes.Buffer{})
	if _, err := p.Confirm(ctx, "Proceed?"); !errors.Is(err, context.Canceled) {
		t.Errorf("Confirm() = %v, want context.Canceled", err)
	}
}

func TestNonInteractivePrompter(t *testing.T) {
	yes := &NonInteractivePrompter{AssumeYes: true}
	got, err := yes.Confirm(context.Background(), "Proceed?")
	if err != nil || !got {
		t.Errorf("Confirm() with AssumeYes = %v, %v", got, err)
	}

	no := &NonInteractivePrompter{}
	got, err = no.Confirm(context.Background(), "Proceed?")
	if err != nil || got {
		t.Errorf("Confirm() without AssumeYes = %v, %v", got, err)
	}

	// The single option is unambiguous; anything more needs a human.
	if idx, err := no.Select(context.Background(), "Pick", []string{"only"}); err != nil || idx != 0 {
		t.Errorf("Select(single) = %d, %v", idx, err)
	}
	if _, err := no.Select(context.Background(), "Pick", []string{"a", "b"}); err == nil {
		t.Error("Select(multiple) should fail without a terminal")
	}
}

func TestMockPrompter(t *testing.T) {
	m := &MockPrompter{
		ConfirmResponses: []bool{true, false},
		SelectResponses:  []int{2},
	}
	ctx := context.Background()

	if got, _ := m.Confirm(ctx, "first"); !got {
		t.Error("first confirm should be true")
	}
	if got, _ := m.Confirm(ctx, "second"); got {
		t.Error("second confirm should be false")
	}
	if got, _ := m.Confirm(ctx, "exhausted"); got {
		t.Error("exhausted confirm should default to false")
	}

	if idx, _ := m.Select(ctx, "pick", []string{"a", "b", "c"}); idx != 2 {
		t.Errorf("Select() = %d", idx)
	}

	if len(m.ConfirmPrompts) != 3 || m.ConfirmPrompts[2] != "exhausted" {
		t.Errorf("ConfirmPrompts = %v", m.ConfirmPrompts)
	}
	if len(m.SelectTitles) != 1 || m.SelectTitles[0] != "pick" {
		t.Errorf("SelectTitles = %v", m.SelectTitles)
	}
}
