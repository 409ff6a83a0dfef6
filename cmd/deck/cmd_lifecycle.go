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
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/deckdev/deck/cmd/deck/internal/engine"
	"github.com/deckdev/deck/cmd/deck/internal/lifecycle"
	"github.com/deckdev/deck/cmd/deck/internal/ports"
	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/pkg/ux"
)

// detectedEngine finds a usable engine or exits with guidance. Shared
// by every lifecycle command; launching has its own path through the
// orchestrator.
func detectedEngine(ctx context.Context, runner proc.Runner) engine.Engine {
	info := engine.NewDetector(runner).Detect(ctx)
	if !info.IsAvailable {
		ux.Error("No usable container engine: " + info.ErrorMessage)
		ux.Info("Install podman (preferred) or docker, then retry.")
		os.Exit(1)
	}

	eng, err := engine.Handle(info, runner)
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	return eng
}

func runStop(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := proc.NewExecRunner()
	controller, err := lifecycle.NewController(detectedEngine(ctx, runner), ports.NewChecker(runner))
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	name := args[0]
	// WithSpinner reports the outcome itself; only the exit code is ours.
	err = ux.WithSpinner("Stopping "+name, func() error {
		return controller.Stop(ctx, name)
	})
	if err != nil {
		os.Exit(1)
	}
}

func runRestart(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := proc.NewExecRunner()
	controller, err := lifecycle.NewController(detectedEngine(ctx, runner), ports.NewChecker(runner))
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	name := args[0]
	err = ux.WithSpinner("Restarting "+name, func() error {
		return controller.Restart(ctx, name)
	})
	if err != nil {
		os.Exit(1)
	}
}

func runLogsCommand(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng := detectedEngine(ctx, proc.NewExecRunner())
	name := args[0]
	if err := eng.Logs(ctx, name, os.Stdout, followLogs); err != nil {
		// Interrupting --follow is a normal way to leave, not a failure.
		if ctx.Err() != nil {
			return
		}
		ux.Error(fmt.Sprintf("Could not read logs for %s: %v", name, err))
		os.Exit(1)
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng := detectedEngine(ctx, proc.NewExecRunner())
	containers, err := eng.ListContainers(ctx)
	if err != nil {
		ux.Error("Could not list containers: " + err.Error())
		os.Exit(1)
	}
	if len(containers) == 0 {
		ux.Info("No containers found.")
		return
	}

	ux.Title(fmt.Sprintf("Containers (%s)", eng.Type()))
	for _, c := range containers {
		state := lifecycle.ParseState(c.Status)
		line := fmt.Sprintf("%-12s %-40s %s", state, c.Name, c.Image)
		if state == lifecycle.StateRunning {
			ux.Success(line)
		} else {
			ux.Muted(line)
		}
	}
}
