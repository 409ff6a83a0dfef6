// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/deckdev/deck/cmd/deck/internal/engine"
	"github.com/deckdev/deck/cmd/deck/internal/lifecycle"
	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/cmd/deck/internal/resource"
)

// =============================================================================
// Diagnostic Report
// =============================================================================

// DoctorReport contains the results of a full environment diagnostic.
type DoctorReport struct {
	// ReportID identifies this report in logs and bug reports.
	ReportID string

	Timestamp time.Time

	// Engine status
	EngineAvailable bool
	EngineType      engine.Type
	EngineVersion   string
	EnginePath      string
	ComposeCommand  string
	EngineError     string

	// Layer status
	ProjectRoot   string
	LayerReady    map[resource.Layer]bool
	ResourceCount int

	// Disk status (best-effort; -1 means the probe failed and a
	// generous default was assumed)
	DiskFreeKB int64

	// Container status
	RunningContainers int

	// Errors encountered
	Errors []string
}

// String formats the diagnostic report for display.
func (r *DoctorReport) String() string {
	var buf bytes.Buffer

	buf.WriteString("=== Deck Diagnostics ===\n")
	buf.WriteString(fmt.Sprintf("Report:    %s\n", r.ReportID))
	buf.WriteString(fmt.Sprintf("Generated: %s\n\n", r.Timestamp.Format(time.RFC3339)))

	buf.WriteString("[Engine]\n")
	buf.WriteString(fmt.Sprintf("  Available:     %s\n", boolToCheck(r.EngineAvailable)))
	if r.EngineAvailable {
		buf.WriteString(fmt.Sprintf("  Type:          %s\n", r.EngineType))
		buf.WriteString(fmt.Sprintf("  Version:       %s\n", r.EngineVersion))
		buf.WriteString(fmt.Sprintf("  Path:          %s\n", r.EnginePath))
		buf.WriteString(fmt.Sprintf("  Compose:       %s\n", r.ComposeCommand))
	} else if r.EngineError != "" {
		buf.WriteString(fmt.Sprintf("  Reason:        %s\n", r.EngineError))
	}
	buf.WriteString("\n")

	buf.WriteString("[Layers]\n")
	buf.WriteString(fmt.Sprintf("  Project:       %s\n", r.ProjectRoot))
	for _, layer := range []resource.Layer{resource.LayerTemplates, resource.LayerCustom, resource.LayerImages} {
		buf.WriteString(fmt.Sprintf("  %-14s %s\n", string(layer)+":", boolToCheck(r.LayerReady[layer])))
	}
	buf.WriteString(fmt.Sprintf("  Resources:     %d\n\n", r.ResourceCount))

	buf.WriteString("[Disk]\n")
	if r.DiskFreeKB >= 0 {
		buf.WriteString(fmt.Sprintf("  Free:          %d MB\n\n", r.DiskFreeKB/1024))
	} else {
		buf.WriteString("  Free:          unknown (probe failed, assuming enough)\n\n")
	}

	buf.WriteString("[Containers]\n")
	buf.WriteString(fmt.Sprintf("  Running:       %d\n\n", r.RunningContainers))

	if len(r.Errors) > 0 {
		buf.WriteString("[Errors]\n")
		for _, e := range r.Errors {
			buf.WriteString(fmt.Sprintf("  ✗ %s\n", e))
		}
	} else {
		buf.WriteString("[Status]\n")
		buf.WriteString("  ✓ All checks passed\n")
	}

	return buf.String()
}

func boolToCheck(b bool) string {
	if b {
		return "✓ Yes"
	}
	return "✗ No"
}

// =============================================================================
// Command
// =============================================================================

func runDoctor(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report := collectDiagnostics(ctx, proc.NewExecRunner())
	fmt.Println(report.String())

	if len(report.Errors) > 0 {
		os.Exit(1)
	}
}

func collectDiagnostics(ctx context.Context, runner proc.Runner) *DoctorReport {
	report := &DoctorReport{
		ReportID:   uuid.NewString(),
		Timestamp:  time.Now(),
		LayerReady: make(map[resource.Layer]bool),
		DiskFreeKB: -1,
	}

	// Engine
	info := engine.NewDetector(runner).Detect(ctx)
	report.EngineAvailable = info.IsAvailable
	report.EngineType = info.Type
	report.EngineVersion = info.Version
	report.EnginePath = info.InstallPath
	report.ComposeCommand = strings.Join(info.ComposeCommand, " ")
	report.EngineError = info.ErrorMessage
	if !info.IsAvailable {
		report.Errors = append(report.Errors, "no usable container engine: "+info.ErrorMessage)
	}

	// Layers
	cwd, err := os.Getwd()
	if err != nil {
		report.Errors = append(report.Errors, "cannot determine working directory: "+err.Error())
		return report
	}
	report.ProjectRoot = cwd
	resolver := resource.NewResolver(cwd)
	if fixIssues {
		if err := resolver.EnsureLayout(); err != nil {
			report.Errors = append(report.Errors, "cannot create layer skeleton: "+err.Error())
		}
	}
	for _, layer := range []resource.Layer{resource.LayerTemplates, resource.LayerCustom, resource.LayerImages} {
		_, statErr := os.Stat(resolver.LayerRoot(layer))
		report.LayerReady[layer] = statErr == nil
	}
	report.ResourceCount = resolver.Resolve(resource.EnvUnknown).Total()

	// Disk, best-effort: a failed probe assumes a generous default
	// instead of blocking anything.
	report.DiskFreeKB = diskFreeKB(ctx, runner, cwd)

	// Containers
	if info.IsAvailable {
		if eng, err := engine.Handle(info, runner); err == nil {
			if containers, err := eng.ListContainers(ctx); err == nil {
				for _, c := range containers {
					if lifecycle.ParseState(c.Status) == lifecycle.StateRunning {
						report.RunningContainers++
					}
				}
			}
		}
	}

	return report
}

// diskFreeKB reads free space via `df -k`. Returns -1 when the probe
// fails (unsupported platform, odd output); callers treat that as
// "assume enough".
func diskFreeKB(ctx context.Context, runner proc.Runner, dir string) int64 {
	result, err := runner.Run(ctx, "df", "-k", dir)
	if err != nil || result == nil {
		return -1
	}
	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	if len(lines) < 2 {
		return -1
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 4 {
		return -1
	}
	free, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return -1
	}
	return free
}
