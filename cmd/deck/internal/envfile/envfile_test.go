// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package envfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleEnv = `# base ports
DEV_PORT=3000
DEBUG_PORT=9229

# project
PROJECT_NAME=tauri-dev
EMPTY_OK=
`

// TestParse_RoundTrip verifies that parse followed by serialize returns
// the input byte-for-byte, including comments and the trailing newline.
func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"typical file", sampleEnv},
		{"no trailing newline", "A=1\nB=2"},
		{"only comments", "# one\n# two\n"},
		{"empty", ""},
		{"blank lines between keys", "A=1\n\n\nB=2\n"},
		{"malformed lines preserved", "not a key value\n=leading equals\nA=1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.content).Serialize()
			if got != tt.content {
				t.Errorf("round trip mismatch:\nin:  %q\nout: %q", tt.content, got)
			}
		})
	}
}

func TestGet_LastOccurrenceWins(t *testing.T) {
	f := Parse("DEV_PORT=3000\nDEV_PORT=4000\n")
	v, err := f.Get("DEV_PORT")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if v != "4000" {
		t.Errorf("Get() = %q, want %q", v, "4000")
	}
}

func TestGet_Missing(t *testing.T) {
	f := Parse(sampleEnv)
	_, err := f.Get("NOPE")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
	}
}

func TestSet_UpdatesInPlace(t *testing.T) {
	f := Parse(sampleEnv)
	f.Set("DEV_PORT", "3001")

	want := `# base ports
DEV_PORT=3001
DEBUG_PORT=9229

# project
PROJECT_NAME=tauri-dev
EMPTY_OK=
`
	if got := f.Serialize(); got != want {
		t.Errorf("Serialize() after Set:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestSet_AppendsBeforeTrailingNewline(t *testing.T) {
	f := Parse("A=1\n")
	f.Set("B", "2")
	if got, want := f.Serialize(), "A=1\nB=2\n"; got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestSet_AppendsWithoutTrailingNewline(t *testing.T) {
	f := Parse("A=1")
	f.Set("B", "2")
	if got, want := f.Serialize(), "A=1\nB=2"; got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestPortMappings(t *testing.T) {
	f := Parse(sampleEnv)
	mappings, err := f.PortMappings()
	if err != nil {
		t.Fatalf("PortMappings() unexpected error: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("PortMappings() len = %d, want 2", len(mappings))
	}
	if mappings[0].Key != "DEV_PORT" || mappings[0].HostPort != 3000 {
		t.Errorf("mappings[0] = %+v, want DEV_PORT/3000", mappings[0])
	}
	if mappings[1].Key != "DEBUG_PORT" || mappings[1].HostPort != 9229 {
		t.Errorf("mappings[1] = %+v, want DEBUG_PORT/9229", mappings[1])
	}
	for _, m := range mappings {
		if m.Protocol != ProtocolTCP {
			t.Errorf("mapping %s protocol = %q, want tcp", m.Key, m.Protocol)
		}
		if m.ContainerPort != m.HostPort {
			t.Errorf("mapping %s container port %d != host port %d", m.Key, m.ContainerPort, m.HostPort)
		}
	}
}

func TestPortMappings_InvalidValue(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"non-integer", "DEV_PORT=abc\n"},
		{"zero", "DEV_PORT=0\n"},
		{"too large", "DEV_PORT=70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content).PortMappings()
			if !errors.Is(err, ErrInvalidPort) {
				t.Errorf("PortMappings() error = %v, want ErrInvalidPort", err)
			}
		})
	}
}

func TestWriteWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(sampleEnv), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	f.Set("DEV_PORT", "3001")
	if err := f.WriteWithBackup(); err != nil {
		t.Fatalf("WriteWithBackup() unexpected error: %v", err)
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if string(backup) != sampleEnv {
		t.Errorf("backup does not hold the prior bytes:\ngot:  %q\nwant: %q", backup, sampleEnv)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	updated, err := Parse(string(current)).Get("DEV_PORT")
	if err != nil || updated != "3001" {
		t.Errorf("rewritten DEV_PORT = %q (err %v), want 3001", updated, err)
	}
}

func TestWriteWithBackup_NoPath(t *testing.T) {
	f := Parse(sampleEnv)
	if err := f.WriteWithBackup(); err == nil {
		t.Error("WriteWithBackup() on a pathless file should fail")
	}
}
