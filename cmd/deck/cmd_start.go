// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/deckdev/deck/cmd/deck/config"
	"github.com/deckdev/deck/cmd/deck/internal/launch"
	"github.com/deckdev/deck/cmd/deck/internal/resource"
	"github.com/deckdev/deck/pkg/ux"
)

// runStart drives one interactive launch session.
func runStart(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		ux.Error("Cannot determine working directory: " + err.Error())
		os.Exit(1)
	}

	orchestrator, err := NewDefaultLauncherFactory().
		CreateOrchestrator(&config.Global, cwd, sessionPrompter())
	if err != nil {
		ux.Error("Cannot assemble launcher: " + err.Error())
		os.Exit(1)
	}

	ux.Title("Deck Launch")
	result := orchestrator.Launch(ctx, launch.Options{
		EnvFilter: resource.ParseEnvironmentType(envName),
		ForceSync: forceSync,
	})

	if !result.Success {
		ux.Error(result.Message)
		os.Exit(1)
	}
	ux.Success(result.Message)
}

// sessionPrompter picks the interactive surface for this invocation:
// --yes or a missing TTY means scripted mode.
func sessionPrompter() launch.UserPrompter {
	if assumeYes {
		return &NonInteractivePrompter{AssumeYes: true}
	}
	return NewInteractivePrompter()
}
