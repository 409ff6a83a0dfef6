// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the deck user configuration from
// ~/.deck/deck.yaml, creating a commented default on first run.
package config

import "time"

// DeckConfig is the user-level configuration.
type DeckConfig struct {
	// Templates controls the git-backed Templates layer sync.
	Templates TemplatesConfig `yaml:"templates"`

	// Machine configures the podman machine on macOS/Windows.
	Machine MachineConfig `yaml:"machine"`

	// Environments holds the per-environment port offsets. Offsets are
	// configuration, not invariants: projects with crowded port ranges
	// tune them.
	Environments EnvironmentsConfig `yaml:"environments"`
}

// TemplatesConfig points at the template repository.
type TemplatesConfig struct {
	// Repository is the git URL templates are synced from.
	Repository string `yaml:"repository"`

	// Branch is the branch to sync (default "main").
	Branch string `yaml:"branch"`

	// CacheTTL is how long a successful sync is considered fresh;
	// within the TTL, a non-forced sync is a no-op.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// AutoUpdate triggers a sync at the start of every launch.
	AutoUpdate bool `yaml:"auto_update"`
}

// MachineConfig configures the podman machine used on macOS/Windows.
type MachineConfig struct {
	Name     string `yaml:"name"`      // e.g. podman-machine-default
	CPUCount int    `yaml:"cpu_count"` // e.g. 4
	MemoryMB int    `yaml:"memory_mb"` // e.g. 8192
}

// EnvironmentsConfig holds the deterministic port offsets applied when
// deriving Test/Production variants from a base development `.env`.
type EnvironmentsConfig struct {
	// TestPortOffset is added to every declared dev port for Test.
	TestPortOffset int `yaml:"test_port_offset"`

	// ProdPortOffset is added to every declared dev port for Production.
	ProdPortOffset int `yaml:"prod_port_offset"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() DeckConfig {
	return DeckConfig{
		Templates: TemplatesConfig{
			Repository: "https://github.com/deckdev/deck-templates",
			Branch:     "main",
			CacheTTL:   24 * time.Hour,
			AutoUpdate: true,
		},
		Machine: MachineConfig{
			Name:     "podman-machine-default",
			CPUCount: 4,
			MemoryMB: 8192,
		},
		Environments: EnvironmentsConfig{
			TestPortOffset: 10000,
			ProdPortOffset: 20000,
		},
	}
}

// applyDefaults fills zero values after unmarshal so a hand-trimmed
// config file keeps working.
func (c *DeckConfig) applyDefaults() {
	def := DefaultConfig()
	if c.Templates.Branch == "" {
		c.Templates.Branch = def.Templates.Branch
	}
	if c.Templates.CacheTTL == 0 {
		c.Templates.CacheTTL = def.Templates.CacheTTL
	}
	if c.Machine.Name == "" {
		c.Machine.Name = def.Machine.Name
	}
	if c.Machine.CPUCount == 0 {
		c.Machine.CPUCount = def.Machine.CPUCount
	}
	if c.Machine.MemoryMB == 0 {
		c.Machine.MemoryMB = def.Machine.MemoryMB
	}
	if c.Environments.TestPortOffset == 0 {
		c.Environments.TestPortOffset = def.Environments.TestPortOffset
	}
	if c.Environments.ProdPortOffset == 0 {
		c.Environments.ProdPortOffset = def.Environments.ProdPortOffset
	}
}
