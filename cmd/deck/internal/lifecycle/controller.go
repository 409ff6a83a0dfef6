// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deckdev/deck/cmd/deck/internal/engine"
	"github.com/deckdev/deck/cmd/deck/internal/envfile"
	"github.com/deckdev/deck/cmd/deck/internal/ports"
	"github.com/deckdev/deck/cmd/deck/internal/util"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")

	// ErrPortsConflicted is returned when declared ports are still busy
	// at start time. The start is refused before the engine runs so the
	// failure is explained instead of surfacing as a bind error mid-up.
	ErrPortsConflicted = errors.New("declared ports are still in use")
)

// =============================================================================
// Types
// =============================================================================

// StartOptions configures one start operation.
type StartOptions struct {
	// ContainerName is the reconciliation target.
	ContainerName string

	// ResourceDir is the Images entry directory holding compose.yaml,
	// used when a new container must be created.
	ResourceDir string

	// Build requests `--build` on compose up for ModeNew.
	Build bool

	// PortMappings are the declared host ports, re-validated immediately
	// before any non-attach start.
	PortMappings []envfile.PortMapping

	// Env is injected into the compose process environment for ModeNew.
	Env map[string]string

	// WaitTimeout bounds the post-start wait for the running state.
	// Zero means the default.
	WaitTimeout time.Duration
}

// StartResult reports the outcome of one start operation.
type StartResult struct {
	// Success is true when the container reached running (or already ran).
	Success bool

	// Mode is the reconciled action that was taken.
	Mode StartMode

	// Container is the fresh post-start snapshot, nil on failure.
	Container *engine.ContainerInfo

	// AllocatedPorts are the host ports the container is bound to.
	AllocatedPorts []int

	// StartupTime is the wall time of the start operation.
	StartupTime time.Duration
}

const defaultWaitTimeout = 60 * time.Second

// =============================================================================
// Controller
// =============================================================================

// Controller drives one container to the running state.
//
// # Thread Safety
//
// Controller is stateless; concurrent starts of *different* containers
// are safe. Two concurrent starts of the same container race at the
// engine, which serializes them itself.
type Controller struct {
	eng     engine.Engine
	checker *ports.Checker
}

// NewController creates a lifecycle controller.
func NewController(eng engine.Engine, checker *ports.Checker) (*Controller, error) {
	if eng == nil {
		return nil, fmt.Errorf("%w: Engine", ErrNilDependency)
	}
	if checker == nil {
		return nil, fmt.Errorf("%w: ports.Checker", ErrNilDependency)
	}
	return &Controller{eng: eng, checker: checker}, nil
}

// CurrentState queries the engine for a container's state.
func (c *Controller) CurrentState(ctx context.Context, name string) (State, error) {
	info, err := c.eng.InspectContainer(ctx, name)
	if errors.Is(err, engine.ErrContainerNotFound) {
		return StateNotExists, nil
	}
	if err != nil {
		return StateError, err
	}
	return ParseState(info.Status), nil
}

// Start brings the named container to running.
//
// # Description
//
// The reconciliation sequence:
//
//  1. Inspect the container and determine the start mode.
//  2. For Attach, return immediately with the live snapshot.
//  3. For Resume/New, re-validate every declared port mapping against
//     the Port Conflict Engine; any remaining conflict refuses the start
//     with ErrPortsConflicted (the port pipeline has already run, so a
//     conflict here means the host changed under us; the documented
//     best-effort race, caught at the last responsible moment).
//  4. Resume starts the existing container; New runs compose up
//     (--build when requested) in the resource directory.
//  5. Wait for the running state, then return the fresh snapshot.
//
// # Outputs
//
//   - *StartResult: always non-nil; Success false on refusal or failure
//   - error: the refusal or engine error, nil when Success is true
func (c *Controller) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	begin := time.Now()
	result := &StartResult{}

	state, err := c.CurrentState(ctx, opts.ContainerName)
	if err != nil {
		return result, fmt.Errorf("determine container state: %w", err)
	}
	result.Mode = DetermineStartMode(state)
	slog.Info("reconciling container",
		"container", opts.ContainerName, "state", state, "mode", result.Mode)

	if result.Mode == ModeAttach {
		info, err := c.eng.InspectContainer(ctx, opts.ContainerName)
		if err != nil {
			return result, fmt.Errorf("inspect running container: %w", err)
		}
		result.Success = true
		result.Container = info
		result.AllocatedPorts = hostPorts(opts.PortMappings)
		result.StartupTime = time.Since(begin)
		return result, nil
	}

	if err := c.revalidatePorts(ctx, opts.PortMappings); err != nil {
		return result, err
	}

	switch result.Mode {
	case ModeResume:
		if err := c.eng.StartContainer(ctx, opts.ContainerName); err != nil {
			return result, fmt.Errorf("resume container %s: %w", opts.ContainerName, err)
		}
	case ModeNew:
		if err := c.eng.ComposeUp(ctx, opts.ResourceDir, opts.Env, opts.Build); err != nil {
			return result, fmt.Errorf("compose up in %s: %w", opts.ResourceDir, err)
		}
	}

	info, err := c.waitRunning(ctx, opts)
	if err != nil {
		return result, err
	}

	result.Success = true
	result.Container = info
	result.AllocatedPorts = hostPorts(opts.PortMappings)
	result.StartupTime = time.Since(begin)
	return result, nil
}

// Stop stops the named container if it exists and runs.
func (c *Controller) Stop(ctx context.Context, name string) error {
	state, err := c.CurrentState(ctx, name)
	if err != nil {
		return err
	}
	if state != StateRunning && state != StateRestarting {
		slog.Info("container already stopped", "container", name, "state", state)
		return nil
	}
	return c.eng.StopContainer(ctx, name)
}

// Restart restarts the named container through the engine.
func (c *Controller) Restart(ctx context.Context, name string) error {
	state, err := c.CurrentState(ctx, name)
	if err != nil {
		return err
	}
	if state == StateNotExists {
		return fmt.Errorf("%w: %s", engine.ErrContainerNotFound, name)
	}
	return c.eng.RestartContainer(ctx, name)
}

// revalidatePorts re-runs the conflict scan over the declared mappings.
func (c *Controller) revalidatePorts(ctx context.Context, mappings []envfile.PortMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	results, err := c.checker.ScanMappings(ctx, mappings)
	if err != nil {
		return fmt.Errorf("re-validate ports: %w", err)
	}
	conflicted := ports.Conflicted(results)
	if len(conflicted) == 0 {
		return nil
	}
	descriptions := make([]string, len(conflicted))
	for i, conflict := range conflicted {
		descriptions[i] = conflict.Describe()
	}
	return fmt.Errorf("%w: %s", ErrPortsConflicted, strings.Join(descriptions, "; "))
}

// waitRunning polls the engine until the container reports running.
func (c *Controller) waitRunning(ctx context.Context, opts StartOptions) (*engine.ContainerInfo, error) {
	timeout := opts.WaitTimeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	// A caller-supplied wait below the subprocess floor would expire
	// before a single inspect round trip can complete.
	timeout = util.ClampTimeout(timeout, util.MinProcessTimeout)
	deadline := time.Now().Add(timeout)

	var lastStatus string
	for {
		info, err := c.eng.InspectContainer(ctx, opts.ContainerName)
		if err == nil {
			lastStatus = info.Status
			if ParseState(info.Status) == StateRunning {
				return info, nil
			}
		} else if !errors.Is(err, engine.ErrContainerNotFound) {
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("container %s did not reach running within %s (last status: %q)",
				opts.ContainerName, timeout, lastStatus)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func hostPorts(mappings []envfile.PortMapping) []int {
	out := make([]int, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, m.HostPort)
	}
	return out
}
