// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package launch

import (
	"context"
	"errors"

	"github.com/deckdev/deck/cmd/deck/internal/templates"
)

// ErrCancelled is returned by a UserPrompter when the user backs out of
// a selection instead of choosing.
var ErrCancelled = errors.New("selection cancelled")

// SyncProvider keeps the Templates layer up to date. The default
// implementation is templates.GitSyncer; tests substitute a stub.
type SyncProvider interface {
	Sync(ctx context.Context, force bool) (*templates.SyncResult, error)
}

// EngineInstaller attempts to install a container engine when none is
// detected. Installation is host-specific and frequently needs elevated
// privileges, so the orchestrator only ever delegates it.
type EngineInstaller interface {
	// EnsureInstalled returns true when an engine should now be present
	// and detection is worth retrying.
	EnsureInstalled(ctx context.Context) (bool, error)
}

// UserPrompter is the interactive surface of a launch session. Every
// decision the orchestrator cannot make on its own goes through here.
//
// Implementations must be safe to call sequentially from a single
// goroutine; the orchestrator never prompts concurrently.
type UserPrompter interface {
	// Select presents options and returns the chosen index, or
	// ErrCancelled when the user backs out.
	Select(ctx context.Context, title string, options []string) (int, error)

	// Confirm asks a yes/no question. False with a nil error is a
	// deliberate "no", not a failure.
	Confirm(ctx context.Context, prompt string) (bool, error)
}
