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
	"testing"
	"time"
)

func TestMetadata_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := &ImageMetadata{
		ImageName:     "tauri-20240101-0900-test",
		ContainerName: "tauri-20240101-0900-test",
		CreatedAt:     time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		BuildStatus:   BuildStatusBuilt,
		RuntimeVariables: map[string]string{
			"DEV_PORT": "13000",
		},
	}
	if err := WriteMetadata(dir, in); err != nil {
		t.Fatalf("WriteMetadata() error: %v", err)
	}

	out, err := ReadMetadata(dir)
	if err != nil {
		t.Fatalf("ReadMetadata() error: %v", err)
	}
	if out == nil {
		t.Fatal("ReadMetadata() = nil after write")
	}
	if out.ImageName != in.ImageName || out.BuildStatus != in.BuildStatus {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("CreatedAt = %s, want %s", out.CreatedAt, in.CreatedAt)
	}
	if out.RuntimeVariables["DEV_PORT"] != "13000" {
		t.Errorf("RuntimeVariables = %+v", out.RuntimeVariables)
	}
}

// Metadata is advisory; a missing file is not an error.
func TestReadMetadata_Missing(t *testing.T) {
	meta, err := ReadMetadata(t.TempDir())
	if err != nil {
		t.Fatalf("ReadMetadata() on empty dir: %v", err)
	}
	if meta != nil {
		t.Errorf("ReadMetadata() = %+v, want nil", meta)
	}
}

func TestReadMetadata_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadMetadata(dir); err == nil {
		t.Fatal("ReadMetadata() should fail on malformed yaml")
	}
}
