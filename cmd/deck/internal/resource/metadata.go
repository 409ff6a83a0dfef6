// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Image Metadata
// =============================================================================

// BuildStatus tracks where an Images entry is in its build lifecycle.
type BuildStatus string

const (
	BuildStatusBuilding BuildStatus = "building"
	BuildStatusBuilt    BuildStatus = "built"
	BuildStatusRunning  BuildStatus = "running"
	BuildStatusStopped  BuildStatus = "stopped"
	BuildStatusFailed   BuildStatus = "failed"
)

// ImageMetadata is the `.deck-metadata` record of an Images entry.
//
// Written after a successful build, read before launch. The file is
// advisory: launch works without it, but status displays and rebuild
// decisions use it when present.
type ImageMetadata struct {
	// ImageName is the engine image name built from this entry.
	ImageName string `yaml:"image_name"`

	// ContainerName is the container derived from the image name.
	ContainerName string `yaml:"container_name"`

	// CreatedAt is when the entry was built.
	CreatedAt time.Time `yaml:"created_at"`

	// BuildStatus is the last observed lifecycle position.
	BuildStatus BuildStatus `yaml:"build_status"`

	// RuntimeVariables are env values injected at container start.
	RuntimeVariables map[string]string `yaml:"runtime_variables,omitempty"`

	// BuildTimeVariables are env values fixed at image build.
	BuildTimeVariables map[string]string `yaml:"build_time_variables,omitempty"`
}

// ReadMetadata loads `.deck-metadata` from an Images entry directory.
// A missing file returns (nil, nil); metadata is optional.
func ReadMetadata(dir string) (*ImageMetadata, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta ImageMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return &meta, nil
}

// WriteMetadata persists `.deck-metadata` into an Images entry directory.
func WriteMetadata(dir string, meta *ImageMetadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	path := filepath.Join(dir, MetadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
