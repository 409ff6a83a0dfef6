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

	"github.com/deckdev/deck/cmd/deck/internal/launch"
	"github.com/deckdev/deck/cmd/deck/internal/resource"
	"github.com/deckdev/deck/pkg/ux"
)

// runRemove deletes a Templates or Custom entry. Images entries are
// refused by the directory-identity guard; the refusal text explains
// the provenance model and the Custom-variant workflow to use instead.
func runRemove(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	layer, err := parseLayerArg(args[0])
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	name := args[1]

	cwd, err := os.Getwd()
	if err != nil {
		ux.Error("Cannot determine working directory: " + err.Error())
		os.Exit(1)
	}

	if err := removeEntry(ctx, resource.NewResolver(cwd), sessionPrompter(), layer, name); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Removed %s/%s.", layer, name))
}

func parseLayerArg(arg string) (resource.Layer, error) {
	switch resource.Layer(arg) {
	case resource.LayerTemplates, resource.LayerCustom, resource.LayerImages:
		return resource.Layer(arg), nil
	}
	return "", fmt.Errorf("unknown layer %q (expected %s, %s, or %s)",
		arg, resource.LayerTemplates, resource.LayerCustom, resource.LayerImages)
}

// removeEntry locates the entry, runs the mutation guard, confirms with
// the user, and deletes the directory.
func removeEntry(ctx context.Context, resolver *resource.Resolver, ui launch.UserPrompter, layer resource.Layer, name string) error {
	res := resolver.Find(layer, name)
	if res == nil {
		return fmt.Errorf("no %s entry named %q under %s", layer, name, resource.DeckDir)
	}

	if err := resource.GuardMutation(layer, resource.MutationDelete, name); err != nil {
		return err
	}

	ok, err := ui.Confirm(ctx, fmt.Sprintf("Delete %s/%s permanently?", layer, name))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("removal of %s/%s cancelled", layer, name)
	}

	return os.RemoveAll(res.Path)
}
