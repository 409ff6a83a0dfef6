// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/deckdev/deck/cmd/deck/config"
	"github.com/deckdev/deck/cmd/deck/internal/engine"
	"github.com/deckdev/deck/cmd/deck/internal/launch"
	"github.com/deckdev/deck/cmd/deck/internal/ports"
	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/cmd/deck/internal/resource"
	"github.com/deckdev/deck/cmd/deck/internal/templates"
)

// =============================================================================
// INTERFACES
// =============================================================================

// LauncherFactory creates Orchestrator instances with all required
// dependencies.
//
// This interface enables dependency injection for testing - production
// code uses DefaultLauncherFactory, while tests can provide mock
// implementations.
type LauncherFactory interface {
	// CreateOrchestrator builds a fully configured launch orchestrator.
	//
	// # Inputs
	//
	//   - cfg: The global deck configuration.
	//   - projectRoot: Directory whose .deck/ hierarchy is launched from.
	//   - prompter: The interactive surface for the session.
	//
	// # Outputs
	//
	//   - *launch.Orchestrator: Ready-to-use session driver.
	//   - error: Non-nil if any dependency creation fails.
	CreateOrchestrator(cfg *config.DeckConfig, projectRoot string, prompter launch.UserPrompter) (*launch.Orchestrator, error)
}

// =============================================================================
// STRUCTS
// =============================================================================

// DefaultLauncherFactory is the production implementation of
// LauncherFactory. It wires real subprocess-backed collaborators;
// tests assemble launch.Deps by hand with mocks instead.
type DefaultLauncherFactory struct{}

// =============================================================================
// METHODS
// =============================================================================

// NewDefaultLauncherFactory creates a new DefaultLauncherFactory.
func NewDefaultLauncherFactory() *DefaultLauncherFactory {
	return &DefaultLauncherFactory{}
}

// CreateOrchestrator wires the production launch stack: exec-backed
// runner, resolver rooted at projectRoot, engine detector, port
// checker, git template syncer, and the package-manager installer.
func (f *DefaultLauncherFactory) CreateOrchestrator(cfg *config.DeckConfig, projectRoot string, prompter launch.UserPrompter) (*launch.Orchestrator, error) {
	runner := proc.NewExecRunner()
	resolver := resource.NewResolver(projectRoot)

	syncer := &templates.GitSyncer{
		RepoURL:  cfg.Templates.Repository,
		Branch:   cfg.Templates.Branch,
		Dest:     resolver.LayerRoot(resource.LayerTemplates),
		CacheTTL: cfg.Templates.CacheTTL,
	}

	return launch.NewOrchestrator(launch.Deps{
		Resolver:  resolver,
		Detector:  engine.NewDetector(runner),
		Checker:   ports.NewChecker(runner),
		Runner:    runner,
		Syncer:    syncer,
		Installer: NewPackageManagerInstaller(runner, prompter),
		UI:        prompter,
		Config:    cfg,
		Out:       os.Stdout,
	})
}

var _ LauncherFactory = (*DefaultLauncherFactory)(nil)
