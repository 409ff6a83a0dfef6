// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package resource resolves launchable resources across deck's three-layer
configuration hierarchy.

# The Three Layers

	.deck/templates/<name>/   curated starting points, synced from git
	.deck/custom/<name>/      user-edited configurations
	.deck/images/<name>/      built, launchable entries with metadata

Provenance flows Templates → Custom → Images: a template is copied into
Custom for editing, and Custom is copied into Images (with a timestamped
name) at build time. The directory name of an Images entry is its
identity; the container engine's image and container names are derived
from it, so these directories must never be renamed or deleted by deck
(see guard.go).

A resource is *available* when its directory contains `.env`,
`compose.yaml`, and `Dockerfile`. Availability is recomputed on every
resolution pass; nothing is cached, because the filesystem is the source
of truth and users edit it directly.
*/
package resource

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Layers
// =============================================================================

// Layer identifies one tier of the configuration hierarchy.
type Layer string

const (
	LayerTemplates Layer = "templates"
	LayerCustom    Layer = "custom"
	LayerImages    Layer = "images"
)

// DirName returns the layer's directory name under `.deck/`.
func (l Layer) DirName() string {
	return string(l)
}

// DeckDir is the per-project root of the configuration hierarchy.
const DeckDir = ".deck"

// RequiredFiles are the files a resource directory must contain to be
// considered launchable.
var RequiredFiles = []string{".env", "compose.yaml", "Dockerfile"}

// MetadataFile is the optional per-Images-entry metadata file.
const MetadataFile = ".deck-metadata"

// =============================================================================
// Environment Types
// =============================================================================

// EnvironmentType selects which environment flavor of a project to run.
//
// Each environment has a name suffix used in derived container, service,
// and host names, and a configurable port offset so Development, Test,
// and Production instances of the same project can run concurrently.
type EnvironmentType string

const (
	EnvDevelopment EnvironmentType = "dev"
	EnvTest        EnvironmentType = "test"
	EnvProduction  EnvironmentType = "prod"

	// EnvUnknown disables environment filtering.
	EnvUnknown EnvironmentType = ""
)

// Suffix returns the name suffix for the environment ("-dev", "-test",
// "-prod").
func (e EnvironmentType) Suffix() string {
	if e == EnvUnknown {
		return ""
	}
	return "-" + string(e)
}

// ParseEnvironmentType maps user input to an EnvironmentType. Unrecognized
// values resolve to EnvUnknown rather than an error; an unknown filter
// means "no filter".
func ParseEnvironmentType(s string) EnvironmentType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment
	case "test", "testing":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvUnknown
	}
}

// Environments lists the concrete environment types in fixed order.
func Environments() []EnvironmentType {
	return []EnvironmentType{EnvDevelopment, EnvTest, EnvProduction}
}

// =============================================================================
// Resource
// =============================================================================

// Resource is a named, directory-backed configuration unit within a layer.
//
// Resources are snapshots of a single resolution pass; they are never
// mutated and never persisted.
type Resource struct {
	// Name is the directory name, which is also the resource identity.
	Name string

	// Layer is the tier the resource was found in.
	Layer Layer

	// Path is the absolute directory path.
	Path string

	// IsAvailable is true when all RequiredFiles are present.
	IsAvailable bool

	// UnavailableReason lists the missing files when IsAvailable is false.
	UnavailableReason string

	// ModTime is the directory's last modification time.
	ModTime time.Time

	// RelativeAge is a human-readable age ("3 days ago") for menus.
	RelativeAge string
}

// Set groups the resolved resources per layer. A layer that could not be
// read resolves to an empty (never nil-checked) slice.
type Set struct {
	Images    []Resource
	Custom    []Resource
	Templates []Resource
}

// Empty reports whether no resource was found in any layer.
func (s *Set) Empty() bool {
	return len(s.Images) == 0 && len(s.Custom) == 0 && len(s.Templates) == 0
}

// Total returns the number of resources across all layers.
func (s *Set) Total() int {
	return len(s.Images) + len(s.Custom) + len(s.Templates)
}

// relativeAge renders the duration since t in coarse human units. Menus
// show this next to Images entries so users can tell builds apart.
func relativeAge(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
