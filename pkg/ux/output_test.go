// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestPlainModeOutput(t *testing.T) {
	SetPlainMode(true)

	tests := []struct {
		name string
		fn   func()
		want string
	}{
		{"title", func() { Title("Launch") }, "== Launch ==\n"},
		{"success", func() { Success("done") }, "OK: done\n"},
		{"info", func() { Info("3 templates") }, "3 templates\n"},
		{"muted", func() { Muted("skipping") }, "skipping\n"},
		{"box", func() { Box("Ports", "13000 free") }, "Ports: 13000 free\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := captureStdout(t, tt.fn); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlainModeOutput_NoAnsi(t *testing.T) {
	SetPlainMode(true)
	out := captureStdout(t, func() {
		Title("Deck")
		Success("engine ready")
	})
	if strings.Contains(out, "\x1b[") {
		t.Errorf("plain mode emitted ANSI escapes: %q", out)
	}
}

func TestIcon_RenderUnstyledFallback(t *testing.T) {
	// Icons without a dedicated style render as bare runes.
	if got := IconArrow.Render(); got != string(IconArrow) {
		t.Errorf("IconArrow.Render() = %q, want %q", got, string(IconArrow))
	}
	if got := IconBullet.Render(); got != string(IconBullet) {
		t.Errorf("IconBullet.Render() = %q, want %q", got, string(IconBullet))
	}
}
