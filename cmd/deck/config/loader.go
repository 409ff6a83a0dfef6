// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// Global is the process-wide configuration singleton, populated by
	// Load. Commands read it after cobra's PersistentPreRun loads it.
	Global DeckConfig

	once sync.Once
)

// Load reads ~/.deck/deck.yaml into Global, creating a default file on
// first run. Safe to call from multiple commands; only the first call
// does work.
func Load() error {
	var err error
	once.Do(func() {
		err = loadInternal()
	})
	return err
}

func loadInternal() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	path := filepath.Join(home, ".deck", "deck.yaml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating default config at %s\n", path)
		if err := writeDefault(path); err != nil {
			return err
		}
	}

	return LoadFrom(path, &Global)
}

// LoadFrom parses a config file into cfg and applies defaults for
// missing values. Exported for tests and non-standard config locations.
func LoadFrom(path string, cfg *DeckConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return nil
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
