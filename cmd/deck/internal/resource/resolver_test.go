// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeResource creates a resource directory with the given files.
func writeResource(t *testing.T, root string, layer Layer, name string, files ...string) string {
	t.Helper()
	dir := filepath.Join(root, DeckDir, layer.DirName(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestEnsureLayout_Idempotent(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)

	for i := 0; i < 2; i++ {
		if err := r.EnsureLayout(); err != nil {
			t.Fatalf("EnsureLayout() run %d: %v", i+1, err)
		}
	}
	for _, layer := range []Layer{LayerTemplates, LayerCustom, LayerImages} {
		if _, err := os.Stat(r.LayerRoot(layer)); err != nil {
			t.Errorf("layer %s not created: %v", layer, err)
		}
	}
}

// TestResolve_EmptyLayers covers the all-empty project: three empty
// lists, no error, no nils.
func TestResolve_EmptyLayers(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)
	if err := r.EnsureLayout(); err != nil {
		t.Fatal(err)
	}

	set := r.Resolve(EnvUnknown)
	if set.Images == nil || set.Custom == nil || set.Templates == nil {
		t.Fatal("Resolve() returned nil lists for empty layers")
	}
	if !set.Empty() {
		t.Errorf("Set.Empty() = false for empty layers, total %d", set.Total())
	}
}

// TestResolve_MissingDeckDir treats an absent hierarchy like an empty one.
func TestResolve_MissingDeckDir(t *testing.T) {
	r := NewResolver(t.TempDir())
	set := r.Resolve(EnvUnknown)
	if !set.Empty() {
		t.Errorf("Resolve() without .deck/ should be empty, total %d", set.Total())
	}
}

func TestResolve_Availability(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, LayerImages, "complete", RequiredFiles...)
	writeResource(t, root, LayerImages, "partial", ".env", "compose.yaml")

	set := NewResolver(root).Resolve(EnvUnknown)
	if len(set.Images) != 2 {
		t.Fatalf("Images len = %d, want 2", len(set.Images))
	}

	byName := map[string]Resource{}
	for _, res := range set.Images {
		byName[res.Name] = res
	}

	if !byName["complete"].IsAvailable {
		t.Errorf("complete resource marked unavailable: %s", byName["complete"].UnavailableReason)
	}
	partial := byName["partial"]
	if partial.IsAvailable {
		t.Error("partial resource marked available")
	}
	if !strings.Contains(partial.UnavailableReason, "Dockerfile") {
		t.Errorf("UnavailableReason = %q, want mention of Dockerfile", partial.UnavailableReason)
	}
}

// TestResolve_FilterPrefix verifies the "<env>-" name prefix rule.
func TestResolve_FilterPrefix(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, LayerCustom, "test-api", RequiredFiles...)
	writeResource(t, root, LayerCustom, "testing-ground", RequiredFiles...)
	writeResource(t, root, LayerCustom, "prod-api", RequiredFiles...)
	writeResource(t, root, LayerCustom, "api", RequiredFiles...)

	set := NewResolver(root).Resolve(EnvTest)
	if len(set.Custom) != 1 {
		t.Fatalf("filtered Custom len = %d, want 1: %+v", len(set.Custom), set.Custom)
	}
	if set.Custom[0].Name != "test-api" {
		t.Errorf("filtered resource = %q, want test-api", set.Custom[0].Name)
	}
	for _, res := range set.Custom {
		if !strings.HasPrefix(res.Name, "test-") {
			t.Errorf("resource %q does not match the filter prefix", res.Name)
		}
	}
}

func TestResolve_SkipsFilesAndDotDirs(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, LayerTemplates, "real", RequiredFiles...)
	layerRoot := filepath.Join(root, DeckDir, LayerTemplates.DirName())
	if err := os.WriteFile(filepath.Join(layerRoot, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(layerRoot, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	set := NewResolver(root).Resolve(EnvUnknown)
	if len(set.Templates) != 1 || set.Templates[0].Name != "real" {
		t.Errorf("Templates = %+v, want only \"real\"", set.Templates)
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writeResource(t, root, LayerImages, "tauri-20240101-0900", RequiredFiles...)

	r := NewResolver(root)
	res := r.Find(LayerImages, "tauri-20240101-0900")
	if res == nil {
		t.Fatal("Find() = nil for existing resource")
	}
	if !res.IsAvailable {
		t.Errorf("Find() resource unavailable: %s", res.UnavailableReason)
	}
	if r.Find(LayerImages, "ghost") != nil {
		t.Error("Find() should return nil for a missing resource")
	}
}

func TestParseEnvironmentType(t *testing.T) {
	tests := []struct {
		in   string
		want EnvironmentType
	}{
		{"dev", EnvDevelopment},
		{"Development", EnvDevelopment},
		{"TEST", EnvTest},
		{"prod", EnvProduction},
		{"production", EnvProduction},
		{"", EnvUnknown},
		{"staging", EnvUnknown},
	}
	for _, tt := range tests {
		if got := ParseEnvironmentType(tt.in); got != tt.want {
			t.Errorf("ParseEnvironmentType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvironmentSuffix(t *testing.T) {
	if got := EnvDevelopment.Suffix(); got != "-dev" {
		t.Errorf("dev suffix = %q", got)
	}
	if got := EnvUnknown.Suffix(); got != "" {
		t.Errorf("unknown suffix = %q, want empty", got)
	}
}
