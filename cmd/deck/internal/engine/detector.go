// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/cmd/deck/internal/util"
)

// =============================================================================
// Detector
// =============================================================================

// Detector finds a usable container engine on the host.
//
// # Description
//
// Detection order is fixed: Podman first (rootless by default, deck's
// preferred engine), Docker second. An engine is only usable when its
// compose companion also resolves. On macOS and Windows, Podman needs a
// backing virtual machine; when the machine is absent or stopped the
// detector attempts a bounded remediation (init if missing, then start)
// before declaring the engine unavailable; see machine.go.
//
// Detection results are never cached by the caller: every orchestrator
// action re-detects, because engine availability genuinely changes
// between commands.
type Detector struct {
	runner proc.Runner

	// goos is injectable so machine remediation paths are testable.
	goos string

	// machineName is the podman machine checked on macOS/Windows.
	machineName string
}

// NewDetector creates a detector using the default podman machine name.
func NewDetector(runner proc.Runner) *Detector {
	return &Detector{
		runner:      runner,
		goos:        runtime.GOOS,
		machineName: DefaultMachineName,
	}
}

// Detect probes the host for a usable engine.
//
// # Outputs
//
//   - *Info: always non-nil; Type is TypeNone with a diagnostic
//     ErrorMessage when nothing usable was found. Never returns an error:
//     "no engine" is a reportable state, not a fault.
func (d *Detector) Detect(ctx context.Context) *Info {
	var reasons []string

	if info := d.detectPodman(ctx); info.IsAvailable {
		return info
	} else if info.ErrorMessage != "" {
		reasons = append(reasons, "podman: "+info.ErrorMessage)
	}

	if info := d.detectDocker(ctx); info.IsAvailable {
		return info
	} else if info.ErrorMessage != "" {
		reasons = append(reasons, "docker: "+info.ErrorMessage)
	}

	return &Info{
		Type:         TypeNone,
		ErrorMessage: strings.Join(reasons, "; "),
	}
}

func (d *Detector) detectPodman(ctx context.Context) *Info {
	info := &Info{Type: TypePodman}

	path, err := d.runner.LookPath("podman")
	if err != nil {
		info.ErrorMessage = "binary not on PATH"
		return info
	}
	info.InstallPath = path

	if _, err := d.runner.LookPath("podman-compose"); err != nil {
		info.ErrorMessage = "podman found but podman-compose is not on PATH"
		return info
	}
	info.ComposeCommand = []string{"podman-compose"}

	if d.needsMachine() {
		if err := d.ensureMachine(ctx); err != nil {
			info.ErrorMessage = fmt.Sprintf("podman machine not usable: %v", err)
			return info
		}
	}

	info.Version = d.queryVersion(ctx, "podman")
	info.IsAvailable = true
	return info
}

func (d *Detector) detectDocker(ctx context.Context) *Info {
	info := &Info{Type: TypeDocker}

	path, err := d.runner.LookPath("docker")
	if err != nil {
		info.ErrorMessage = "binary not on PATH"
		return info
	}
	info.InstallPath = path

	// Standalone docker-compose first, then the compose plugin.
	if _, err := d.runner.LookPath("docker-compose"); err == nil {
		info.ComposeCommand = []string{"docker-compose"}
	} else if d.dockerComposePluginWorks(ctx) {
		info.ComposeCommand = []string{"docker", "compose"}
	} else {
		info.ErrorMessage = "docker found but neither docker-compose nor the compose plugin is usable"
		return info
	}

	// `docker version` also proves the daemon is reachable; `--version`
	// alone succeeds with a stopped daemon.
	detectCtx, cancel := context.WithTimeout(ctx, util.DefaultDetectTimeout)
	defer cancel()
	if _, err := d.runner.Run(detectCtx, "docker", "version", "--format", "{{.Server.Version}}"); err != nil {
		info.ErrorMessage = "docker daemon is not responding (is Docker Desktop running?)"
		return info
	}

	info.Version = d.queryVersion(ctx, "docker")
	info.IsAvailable = true
	return info
}

func (d *Detector) dockerComposePluginWorks(ctx context.Context) bool {
	detectCtx, cancel := context.WithTimeout(ctx, util.DefaultDetectTimeout)
	defer cancel()
	_, err := d.runner.Run(detectCtx, "docker", "compose", "version")
	return err == nil
}

func (d *Detector) queryVersion(ctx context.Context, bin string) string {
	detectCtx, cancel := context.WithTimeout(ctx, util.DefaultDetectTimeout)
	defer cancel()

	result, err := d.runner.Run(detectCtx, bin, "--version")
	if err != nil || result == nil {
		return ""
	}
	// "podman version 5.3.1" / "Docker version 27.3.1, build ..."
	fields := strings.Fields(result.Stdout)
	for i, f := range fields {
		if strings.EqualFold(f, "version") && i+1 < len(fields) {
			return strings.TrimSuffix(fields[i+1], ",")
		}
	}
	slog.Debug("unrecognized version output", "bin", bin, "output", result.Stdout)
	return strings.TrimSpace(result.Stdout)
}

func (d *Detector) needsMachine() bool {
	return d.goos == "darwin" || d.goos == "windows"
}
