// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"strings"
	"testing"

	"github.com/deckdev/deck/cmd/deck/internal/engine"
	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/cmd/deck/internal/resource"
)

func doctorRunner() *proc.MockRunner {
	m := proc.NewMockRunner()
	m.Paths["podman"] = "/usr/bin/podman"
	m.Paths["podman-compose"] = "/usr/bin/podman-compose"
	m.Responses["podman --version"] = proc.MockResponse{Stdout: "podman version 5.3.1\n"}
	m.Responses["podman machine inspect"] = proc.MockResponse{
		Stdout: `[{"State": "running"}]`,
	}
	return m
}

func TestCollectDiagnostics_HealthyEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)
	if err := resource.NewResolver(root).EnsureLayout(); err != nil {
		t.Fatal(err)
	}

	m := doctorRunner()
	m.Responses["podman ps --all --format json"] = proc.MockResponse{
		Stdout: `[{"Names": ["tauri-dev"], "Status": "Up 2 hours"}, {"Names": ["old-run"], "Status": "Exited (0) 3 days ago"}]`,
	}
	m.Responses["df -k"] = proc.MockResponse{
		Stdout: "Filesystem     1K-blocks      Used Available Use% Mounted on\n" +
			"/dev/sda1      102400000  51200000  40960000  56% /\n",
	}

	report := collectDiagnostics(context.Background(), m)

	if report.ReportID == "" {
		t.Error("ReportID not set")
	}
	if !report.EngineAvailable || report.EngineType != engine.TypePodman {
		t.Fatalf("engine = %v/%v, want available podman", report.EngineAvailable, report.EngineType)
	}
	for _, layer := range []resource.Layer{resource.LayerTemplates, resource.LayerCustom, resource.LayerImages} {
		if !report.LayerReady[layer] {
			t.Errorf("layer %s not ready", layer)
		}
	}
	if report.DiskFreeKB != 40960000 {
		t.Errorf("DiskFreeKB = %d, want 40960000", report.DiskFreeKB)
	}
	if report.RunningContainers != 1 {
		t.Errorf("RunningContainers = %d, want 1 (exited containers excluded)", report.RunningContainers)
	}
	if len(report.Errors) != 0 {
		t.Errorf("Errors = %v, want none", report.Errors)
	}
}

func TestCollectDiagnostics_NoEngine(t *testing.T) {
	t.Chdir(t.TempDir())

	report := collectDiagnostics(context.Background(), proc.NewMockRunner())

	if report.EngineAvailable {
		t.Fatal("no engine binaries installed, yet EngineAvailable is true")
	}
	if len(report.Errors) == 0 {
		t.Fatal("missing engine should be recorded as an error")
	}
	if !strings.Contains(report.Errors[0], "no usable container engine") {
		t.Errorf("Errors[0] = %q", report.Errors[0])
	}
	// Layers were never created and --fix was not given.
	if report.LayerReady[resource.LayerTemplates] {
		t.Error("templates layer reported ready in an empty directory")
	}
}

func TestCollectDiagnostics_FixCreatesLayers(t *testing.T) {
	t.Chdir(t.TempDir())
	fixIssues = true
	defer func() { fixIssues = false }()

	report := collectDiagnostics(context.Background(), doctorRunner())

	for _, layer := range []resource.Layer{resource.LayerTemplates, resource.LayerCustom, resource.LayerImages} {
		if !report.LayerReady[layer] {
			t.Errorf("--fix should have created layer %s", layer)
		}
	}
}

func TestDiskFreeKB(t *testing.T) {
	tests := []struct {
		name   string
		resp   proc.MockResponse
		wantKB int64
	}{
		{
			name: "normal df output",
			resp: proc.MockResponse{Stdout: "Filesystem 1K-blocks Used Available Use% Mounted on\n" +
				"/dev/vda2 500000 100000 390000 21% /home\n"},
			wantKB: 390000,
		},
		{
			name: "wrapped device name still parses the last line",
			resp: proc.MockResponse{Stdout: "Filesystem 1K-blocks Used Available Use% Mounted on\n" +
				"/dev/mapper/vg0-root\n" +
				"          500000 100000 390000 21% /\n"},
			wantKB: 390000,
		},
		{
			name:   "command failure",
			resp:   proc.MockResponse{ExitCode: 1, Stderr: "df: unknown option"},
			wantKB: -1,
		},
		{
			name:   "header only",
			resp:   proc.MockResponse{Stdout: "Filesystem 1K-blocks Used Available Use% Mounted on\n"},
			wantKB: -1,
		},
		{
			name:   "garbage field",
			resp:   proc.MockResponse{Stdout: "h\n/dev/sda1 a b not-a-number d /\n"},
			wantKB: -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := proc.NewMockRunner()
			m.Responses["df -k"] = tt.resp
			if got := diskFreeKB(context.Background(), m, "/tmp"); got != tt.wantKB {
				t.Errorf("diskFreeKB() = %d, want %d", got, tt.wantKB)
			}
		})
	}
}

func TestDoctorReport_String(t *testing.T) {
	report := &DoctorReport{
		ReportID:        "r-123",
		EngineAvailable: true,
		EngineType:      engine.TypePodman,
		EngineVersion:   "5.3.1",
		EnginePath:      "/usr/bin/podman",
		ComposeCommand:  "podman-compose",
		ProjectRoot:     "/work/app",
		LayerReady: map[resource.Layer]bool{
			resource.LayerTemplates: true,
			resource.LayerCustom:    true,
			resource.LayerImages:    false,
		},
		ResourceCount:     3,
		DiskFreeKB:        2048,
		RunningContainers: 1,
	}

	out := report.String()
	for _, want := range []string{
		"Report:    r-123",
		"Version:       5.3.1",
		"Compose:       podman-compose",
		"Free:          2 MB",
		"All checks passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}

	report.Errors = []string{"disk almost full"}
	report.DiskFreeKB = -1
	out = report.String()
	if !strings.Contains(out, "disk almost full") {
		t.Error("errors section not rendered")
	}
	if !strings.Contains(out, "unknown (probe failed, assuming enough)") {
		t.Error("failed disk probe not rendered as unknown")
	}
	if strings.Contains(out, "All checks passed") {
		t.Error("success line rendered despite errors")
	}
}
