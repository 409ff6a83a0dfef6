// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/deckdev/deck/cmd/deck/config"
)

// --- Global Command Variables ---
var (
	envName    string // --env: restrict to one environment type (dev/test/prod)
	forceSync  bool   // --sync: force a template sync even inside the cache TTL
	assumeYes  bool   // --yes: answer every confirmation with yes (non-interactive)
	followLogs bool   // --follow: stream logs instead of dumping them
	fixIssues  bool   // --fix: let doctor attempt remediations

	rootCmd = &cobra.Command{
		Use:   "deck",
		Short: "A cli to launch containerized development environments",
		Long: `Deck manages containerized dev environments from a three-layer
				configuration hierarchy (templates, custom, images) under .deck/,
				driving podman or docker entirely through their CLIs.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				log.Fatalf("Error loading configuration: %v", err)
			}
		},
	}

	// --- Launch ---
	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Launch a dev environment from templates, custom configs, or built images",
		Run:   runStart, // Defined in cmd_start.go
	}

	// --- Lifecycle ---
	stopCmd = &cobra.Command{
		Use:   "stop [container_name]",
		Short: "Stop a running deck container",
		Args:  cobra.ExactArgs(1),
		Run:   runStop, // Defined in cmd_lifecycle.go
	}
	restartCmd = &cobra.Command{
		Use:   "restart [container_name]",
		Short: "Restart a deck container",
		Args:  cobra.ExactArgs(1),
		Run:   runRestart, // Defined in cmd_lifecycle.go
	}
	logsCmd = &cobra.Command{
		Use:   "logs [container_name]",
		Short: "Show logs from a deck container",
		Args:  cobra.ExactArgs(1),
		Run:   runLogsCommand, // Defined in cmd_lifecycle.go
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show all containers known to the detected engine",
		Run:   runStatus, // Defined in cmd_lifecycle.go
	}

	removeCmd = &cobra.Command{
		Use:   "remove [layer] [name]",
		Short: "Delete a templates or custom entry (images entries are protected)",
		Args:  cobra.ExactArgs(2),
		Run:   runRemove, // Defined in cmd_remove.go
	}

	// --- Diagnostics ---
	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Run a full diagnostic of the deck environment",
		Run:   runDoctor, // Defined in cmd_doctor.go
	}

	// --- Templates ---
	templatesCmd = &cobra.Command{
		Use:   "templates",
		Short: "Manage the templates layer",
	}
	templatesSyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Sync the templates layer from the configured git repository",
		Run:   runTemplatesSync, // Defined in cmd_templates.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false,
		"Assume yes for every confirmation (non-interactive use)")

	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&envName, "env", "",
		"Restrict resolution to one environment type: dev, test, or prod")
	startCmd.Flags().BoolVar(&forceSync, "sync", false,
		"Force a template sync before launching, ignoring the cache TTL")

	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)

	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolVarP(&followLogs, "follow", "f", false,
		"Follow log output until interrupted")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(removeCmd)

	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&fixIssues, "fix", false,
		"Attempt automatic remediation of fixable issues")

	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesSyncCmd)
}
