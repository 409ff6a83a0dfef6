// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resource

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Resolver
// =============================================================================

// Resolver scans the three layer roots and produces availability-annotated
// resource lists.
//
// # Description
//
// Resolution is a read-only filesystem scan with no side effects and no
// caching. An unreadable layer root yields an empty list for that layer
// rather than an error; a missing layer is indistinguishable from an
// empty one at this level, and the orchestrator decides whether that is
// fatal.
//
// # Thread Safety
//
// Resolver is stateless after construction and safe for concurrent use.
type Resolver struct {
	// projectRoot is the directory containing `.deck/`.
	projectRoot string

	// now is injectable for deterministic RelativeAge in tests.
	now func() time.Time
}

// NewResolver creates a resolver rooted at projectRoot.
func NewResolver(projectRoot string) *Resolver {
	return &Resolver{
		projectRoot: projectRoot,
		now:         time.Now,
	}
}

// LayerRoot returns the absolute path of a layer's directory.
func (r *Resolver) LayerRoot(layer Layer) string {
	return filepath.Join(r.projectRoot, DeckDir, layer.DirName())
}

// EnsureLayout creates the `.deck/{templates,custom,images}` skeleton.
// Idempotent; existing directories are left untouched.
func (r *Resolver) EnsureLayout() error {
	for _, layer := range []Layer{LayerTemplates, LayerCustom, LayerImages} {
		if err := os.MkdirAll(r.LayerRoot(layer), 0o755); err != nil {
			return fmt.Errorf("create layer directory %s: %w", layer, err)
		}
	}
	return nil
}

// Resolve scans all three layers, filtered by environment type.
//
// # Description
//
// A resource is included when filter is EnvUnknown or the directory name
// starts with "<filter>-". Within each layer, results are sorted newest
// first so recently built images lead the menu.
//
// # Inputs
//
//   - filter: environment type filter, EnvUnknown for no filtering
//
// # Outputs
//
//   - *Set: per-layer resource lists, empty per layer on I/O error
func (r *Resolver) Resolve(filter EnvironmentType) *Set {
	return &Set{
		Images:    r.scanLayer(LayerImages, filter),
		Custom:    r.scanLayer(LayerCustom, filter),
		Templates: r.scanLayer(LayerTemplates, filter),
	}
}

// Find locates a single resource by layer and name. Returns nil when the
// directory does not exist.
func (r *Resolver) Find(layer Layer, name string) *Resource {
	dir := filepath.Join(r.LayerRoot(layer), name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}
	res := r.inspect(layer, name, dir, info)
	return &res
}

func (r *Resolver) scanLayer(layer Layer, filter EnvironmentType) []Resource {
	root := r.LayerRoot(layer)
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("layer root unreadable", "layer", layer, "path", root, "error", err)
		}
		return []Resource{}
	}

	resources := []Resource{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if filter != EnvUnknown && !strings.HasPrefix(name, string(filter)+"-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		resources = append(resources, r.inspect(layer, name, filepath.Join(root, name), info))
	}

	sort.Slice(resources, func(i, j int) bool {
		if !resources[i].ModTime.Equal(resources[j].ModTime) {
			return resources[i].ModTime.After(resources[j].ModTime)
		}
		return resources[i].Name < resources[j].Name
	})
	return resources
}

func (r *Resolver) inspect(layer Layer, name, dir string, info os.FileInfo) Resource {
	var missing []string
	for _, f := range RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			missing = append(missing, f)
		}
	}

	res := Resource{
		Name:        name,
		Layer:       layer,
		Path:        dir,
		IsAvailable: len(missing) == 0,
		ModTime:     info.ModTime(),
		RelativeAge: relativeAge(info.ModTime(), r.now()),
	}
	if len(missing) > 0 {
		res.UnavailableReason = "missing " + strings.Join(missing, ", ")
	}
	return res
}
