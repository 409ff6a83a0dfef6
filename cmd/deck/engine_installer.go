// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/deckdev/deck/cmd/deck/internal/launch"
	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/cmd/deck/internal/util"
	"github.com/deckdev/deck/pkg/ux"
)

// PackageManagerInstaller installs podman through the host's package
// manager, after an explicit confirmation.
//
// Only ever invoked by the orchestrator when no engine was detected.
// Hosts without a recognized package manager get printed instructions
// instead of an installation attempt; deck never downloads binaries
// itself.
type PackageManagerInstaller struct {
	runner   proc.Runner
	prompter launch.UserPrompter

	// goos is injectable for tests.
	goos string
}

// NewPackageManagerInstaller creates the default engine installer.
func NewPackageManagerInstaller(runner proc.Runner, prompter launch.UserPrompter) *PackageManagerInstaller {
	return &PackageManagerInstaller{
		runner:   runner,
		prompter: prompter,
		goos:     runtime.GOOS,
	}
}

// EnsureInstalled attempts a podman installation.
//
// Returns true when an installation ran to completion and re-detection
// is worth trying; false when the user declined or no package manager
// was found. Only a failed package-manager run is an error.
func (i *PackageManagerInstaller) EnsureInstalled(ctx context.Context) (bool, error) {
	commands := i.installCommands()
	if len(commands) == 0 {
		ux.Warning("No supported package manager found.")
		ux.Info("Install podman manually: https://podman.io/docs/installation")
		return false, nil
	}

	ok, err := i.prompter.Confirm(ctx,
		fmt.Sprintf("Install podman via %s?", commands[0][0]))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	for _, args := range commands {
		installCtx, cancel := context.WithTimeout(ctx, util.DefaultMachineTimeout)
		result, err := i.runner.Run(installCtx, args[0], args[1:]...)
		cancel()
		if err != nil {
			return false, fmt.Errorf("install %v: %w", args, err)
		}
		slog.Debug("install step finished", "command", args, "duration", result.Duration)
	}
	return true, nil
}

// installCommands returns the package-manager invocations for this
// host, in execution order. podman-compose rides along because the
// detector requires the compose companion.
func (i *PackageManagerInstaller) installCommands() [][]string {
	switch i.goos {
	case "darwin":
		if _, err := i.runner.LookPath("brew"); err == nil {
			return [][]string{
				{"brew", "install", "podman"},
				{"brew", "install", "podman-compose"},
			}
		}
	case "linux":
		if _, err := i.runner.LookPath("apt-get"); err == nil {
			return [][]string{
				{"sudo", "apt-get", "update"},
				{"sudo", "apt-get", "install", "-y", "podman", "podman-compose"},
			}
		}
		if _, err := i.runner.LookPath("dnf"); err == nil {
			return [][]string{
				{"sudo", "dnf", "install", "-y", "podman", "podman-compose"},
			}
		}
	case "windows":
		if _, err := i.runner.LookPath("winget"); err == nil {
			return [][]string{
				{"winget", "install", "RedHat.Podman"},
			}
		}
	}
	return nil
}

var _ launch.EngineInstaller = (*PackageManagerInstaller)(nil)
