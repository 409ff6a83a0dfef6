// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deckdev/deck/cmd/deck/internal/util"
)

// =============================================================================
// Podman Machine Remediation
// =============================================================================

// DefaultMachineName is podman's default machine on macOS/Windows.
const DefaultMachineName = "podman-machine-default"

// maxMachineRemediationAttempts bounds the detect → remediate → re-check
// loop. Remediation is a small state machine, not open-ended recursion:
// one pass may init a missing machine, one pass may start a stopped one,
// and then the answer stands.
const maxMachineRemediationAttempts = 2

// ErrMachineNotReady is returned when remediation could not bring the
// podman machine to a running state.
var ErrMachineNotReady = errors.New("podman machine not ready")

// ensureMachine brings the backing podman machine to running, with a
// bounded number of remediation attempts.
//
// # Description
//
// Per attempt: inspect the machine; if it does not exist, init it; if it
// exists but is stopped, start it; then re-inspect. Failures carry the
// engine's stderr so the user sees the real reason (no disk space, VM
// image download failure). Installing podman itself is out of scope here;
// that fallback chain belongs to the installer collaborator.
func (d *Detector) ensureMachine(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= maxMachineRemediationAttempts; attempt++ {
		state, err := d.machineState(ctx)
		if err == nil && state == "running" {
			return nil
		}

		switch {
		case err != nil:
			// Machine missing: provision it.
			initCtx, cancel := context.WithTimeout(ctx, util.DefaultMachineTimeout)
			_, initErr := d.runner.Run(initCtx, "podman", "machine", "init", d.machineName)
			cancel()
			if initErr != nil {
				lastErr = fmt.Errorf("init machine %s: %w", d.machineName, initErr)
				continue
			}
			fallthrough
		default:
			// Machine exists but is not running: start it.
			startCtx, cancel := context.WithTimeout(ctx, util.DefaultMachineTimeout)
			_, startErr := d.runner.Run(startCtx, "podman", "machine", "start", d.machineName)
			cancel()
			if startErr != nil {
				lastErr = fmt.Errorf("start machine %s: %w", d.machineName, startErr)
				continue
			}
		}

		if state, err := d.machineState(ctx); err == nil && state == "running" {
			return nil
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("machine %s did not reach running state", d.machineName)
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrMachineNotReady, maxMachineRemediationAttempts, lastErr)
}

// machineState inspects the machine and extracts its state string.
// Returns an error when the machine does not exist.
func (d *Detector) machineState(ctx context.Context) (string, error) {
	inspectCtx, cancel := context.WithTimeout(ctx, util.DefaultDetectTimeout)
	defer cancel()

	result, err := d.runner.Run(inspectCtx, "podman", "machine", "inspect", d.machineName)
	if err != nil {
		return "", fmt.Errorf("machine %s not found: %w", d.machineName, err)
	}

	// The inspect JSON is large and version-dependent; the state field is
	// the only part deck needs, so match it textually the way the podman
	// docs themselves suggest for scripting.
	out := result.Stdout
	for _, candidate := range []string{"running", "stopped", "starting"} {
		if strings.Contains(out, fmt.Sprintf(`"State": "%s"`, candidate)) ||
			strings.Contains(out, fmt.Sprintf(`"State":"%s"`, candidate)) {
			return candidate, nil
		}
	}
	return "unknown", nil
}
