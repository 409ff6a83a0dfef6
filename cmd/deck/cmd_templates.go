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

	"github.com/deckdev/deck/cmd/deck/config"
	"github.com/deckdev/deck/cmd/deck/internal/resource"
	"github.com/deckdev/deck/cmd/deck/internal/templates"
	"github.com/deckdev/deck/pkg/ux"
)

// runTemplatesSync forces a sync of the templates layer. The explicit
// command always bypasses the cache TTL; the TTL exists to keep
// launches fast, not to second-guess a direct request.
func runTemplatesSync(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		ux.Error("Cannot determine working directory: " + err.Error())
		os.Exit(1)
	}
	resolver := resource.NewResolver(cwd)
	if err := resolver.EnsureLayout(); err != nil {
		ux.Error("Cannot create layer skeleton: " + err.Error())
		os.Exit(1)
	}

	syncer := &templates.GitSyncer{
		RepoURL:  config.Global.Templates.Repository,
		Branch:   config.Global.Templates.Branch,
		Dest:     resolver.LayerRoot(resource.LayerTemplates),
		CacheTTL: config.Global.Templates.CacheTTL,
	}

	spinner := ux.NewSpinner("Syncing templates from " + config.Global.Templates.Repository)
	spinner.Start()
	result, err := syncer.Sync(ctx, true)
	spinner.Stop()

	if result != nil {
		for _, line := range result.Logs {
			ux.Muted("  " + line)
		}
	}
	if err != nil || result == nil || !result.Success {
		ux.Error(fmt.Sprintf("Template sync failed: %v", err))
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Templates synced (%d available).", result.SyncedCount))
}
