// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package launch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deckdev/deck/cmd/deck/config"
	"github.com/deckdev/deck/cmd/deck/internal/envfile"
	"github.com/deckdev/deck/cmd/deck/internal/resource"
)

// devSuffix is the base suffix every template and custom config is
// authored against. Environment rewrite substitutes it.
const devSuffix = "-dev"

// AdjustPort maps a base (development) port to its target-environment
// port.
//
// The result depends only on the inputs: the same (port, environment,
// offsets) triple always yields the same value, and different
// environments yield different values for a shared base port as long as
// the configured offsets are distinct and non-zero.
func AdjustPort(basePort int, env resource.EnvironmentType, offsets config.EnvironmentsConfig) int {
	switch env {
	case resource.EnvTest:
		return basePort + offsets.TestPortOffset
	case resource.EnvProduction:
		return basePort + offsets.ProdPortOffset
	default:
		return basePort
	}
}

// substituteSuffix rewrites a "-dev" marker inside a name to the target
// environment suffix. Names without the marker are returned unchanged:
// only names authored for environment substitution participate.
func substituteSuffix(name, envSuffix string) string {
	if !strings.Contains(name, devSuffix) {
		return name
	}
	return strings.Replace(name, devSuffix, envSuffix, 1)
}

// RewriteEnvironment specializes a freshly copied Images entry for one
// environment.
//
// # Description
//
// Two files change. In `.env`, every well-known port key is shifted by
// the environment's configured offset and PROJECT_NAME gets its suffix
// substituted. In `compose.yaml`, service keys and their container_name
// and hostname values get the same suffix substitution. Development is
// the authored baseline, so rewriting for Development is a no-op.
//
// The compose file is edited through its yaml node tree, not a typed
// struct, so keys this tool does not understand survive untouched.
func RewriteEnvironment(dir string, env resource.EnvironmentType, offsets config.EnvironmentsConfig) error {
	if env == resource.EnvDevelopment || env == resource.EnvUnknown {
		return nil
	}

	if err := rewriteEnvFile(filepath.Join(dir, ".env"), env, offsets); err != nil {
		return err
	}
	return rewriteComposeNames(filepath.Join(dir, "compose.yaml"), env.Suffix())
}

func rewriteEnvFile(path string, env resource.EnvironmentType, offsets config.EnvironmentsConfig) error {
	f, err := envfile.Load(path)
	if err != nil {
		return fmt.Errorf("rewrite env file: %w", err)
	}

	for _, key := range envfile.PortKeys {
		port, err := f.GetInt(key)
		if errors.Is(err, envfile.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("rewrite env file: key %s: %w", key, err)
		}
		f.Set(key, strconv.Itoa(AdjustPort(port, env, offsets)))
	}

	if name, err := f.Get(envfile.ProjectNameKey); err == nil {
		f.Set(envfile.ProjectNameKey, substituteSuffix(name, env.Suffix()))
	}

	return os.WriteFile(path, []byte(f.Serialize()), 0o644)
}

func rewriteComposeNames(path, envSuffix string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rewrite compose names: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("rewrite compose names: parse %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		slog.Warn("compose file is empty, nothing to rewrite", "path", path)
		return nil
	}

	services := mappingValue(root.Content[0], "services")
	if services == nil {
		slog.Warn("compose file has no services block", "path", path)
		return nil
	}

	for i := 0; i+1 < len(services.Content); i += 2 {
		key := services.Content[i]
		key.Value = substituteSuffix(key.Value, envSuffix)

		service := services.Content[i+1]
		for _, field := range []string{"container_name", "hostname"} {
			if node := mappingValue(service, field); node != nil {
				node.Value = substituteSuffix(node.Value, envSuffix)
			}
		}
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return fmt.Errorf("rewrite compose names: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// mappingValue returns the value node for a key in a yaml mapping node,
// or nil when the key is absent or the node is not a mapping.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
