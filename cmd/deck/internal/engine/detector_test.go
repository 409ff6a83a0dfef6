// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/deckdev/deck/cmd/deck/internal/proc"
)

func linuxDetector(m *proc.MockRunner) *Detector {
	return &Detector{runner: m, goos: "linux", machineName: DefaultMachineName}
}

func TestDetect_PodmanPreferred(t *testing.T) {
	m := proc.NewMockRunner()
	m.Paths["podman"] = "/usr/bin/podman"
	m.Paths["podman-compose"] = "/usr/bin/podman-compose"
	m.Paths["docker"] = "/usr/bin/docker"
	m.Paths["docker-compose"] = "/usr/bin/docker-compose"
	m.Responses["podman --version"] = proc.MockResponse{Stdout: "podman version 5.3.1\n"}

	info := linuxDetector(m).Detect(context.Background())
	if !info.IsAvailable || info.Type != TypePodman {
		t.Fatalf("Detect() = %+v, want available podman", info)
	}
	if info.Version != "5.3.1" {
		t.Errorf("Version = %q", info.Version)
	}
	if len(info.ComposeCommand) != 1 || info.ComposeCommand[0] != "podman-compose" {
		t.Errorf("ComposeCommand = %v", info.ComposeCommand)
	}
	if m.CalledWith("docker") {
		t.Error("docker should not be probed when podman is usable")
	}
}

func TestDetect_DockerFallback(t *testing.T) {
	m := proc.NewMockRunner()
	m.Paths["docker"] = "/usr/bin/docker"
	m.Paths["docker-compose"] = "/usr/local/bin/docker-compose"
	m.Responses["docker version"] = proc.MockResponse{Stdout: "27.3.1\n"}
	m.Responses["docker --version"] = proc.MockResponse{Stdout: "Docker version 27.3.1, build e23ec63\n"}

	info := linuxDetector(m).Detect(context.Background())
	if !info.IsAvailable || info.Type != TypeDocker {
		t.Fatalf("Detect() = %+v, want available docker", info)
	}
	if info.Version != "27.3.1" {
		t.Errorf("Version = %q", info.Version)
	}
}

func TestDetect_DockerComposePlugin(t *testing.T) {
	m := proc.NewMockRunner()
	m.Paths["docker"] = "/usr/bin/docker"
	m.Responses["docker compose version"] = proc.MockResponse{Stdout: "Docker Compose version v2.30.0\n"}
	m.Responses["docker version"] = proc.MockResponse{Stdout: "27.3.1\n"}
	m.Responses["docker --version"] = proc.MockResponse{Stdout: "Docker version 27.3.1, build e23ec63\n"}

	info := linuxDetector(m).Detect(context.Background())
	if !info.IsAvailable {
		t.Fatalf("Detect() = %+v", info)
	}
	if len(info.ComposeCommand) != 2 || info.ComposeCommand[0] != "docker" || info.ComposeCommand[1] != "compose" {
		t.Errorf("ComposeCommand = %v, want the compose plugin form", info.ComposeCommand)
	}
}

func TestDetect_NothingUsable(t *testing.T) {
	info := linuxDetector(proc.NewMockRunner()).Detect(context.Background())
	if info.IsAvailable || info.Type != TypeNone {
		t.Fatalf("Detect() = %+v, want TypeNone", info)
	}
	if !strings.Contains(info.ErrorMessage, "podman") || !strings.Contains(info.ErrorMessage, "docker") {
		t.Errorf("ErrorMessage = %q, want both engines mentioned", info.ErrorMessage)
	}
}

// Podman without its compose companion does not count as usable.
func TestDetect_PodmanWithoutCompose(t *testing.T) {
	m := proc.NewMockRunner()
	m.Paths["podman"] = "/usr/bin/podman"

	info := linuxDetector(m).Detect(context.Background())
	if info.IsAvailable {
		t.Fatalf("Detect() = %+v, want unavailable", info)
	}
	if !strings.Contains(info.ErrorMessage, "podman-compose") {
		t.Errorf("ErrorMessage = %q", info.ErrorMessage)
	}
}

func TestDetect_DockerDaemonDown(t *testing.T) {
	m := proc.NewMockRunner()
	m.Paths["docker"] = "/usr/bin/docker"
	m.Paths["docker-compose"] = "/usr/local/bin/docker-compose"
	m.Responses["docker version"] = proc.MockResponse{
		ExitCode: 1,
		Stderr:   "Cannot connect to the Docker daemon",
	}

	info := linuxDetector(m).Detect(context.Background())
	if info.IsAvailable {
		t.Fatalf("Detect() = %+v, want unavailable with stopped daemon", info)
	}
	if !strings.Contains(info.ErrorMessage, "daemon") {
		t.Errorf("ErrorMessage = %q", info.ErrorMessage)
	}
}

func TestQueryVersion_UnrecognizedOutput(t *testing.T) {
	m := proc.NewMockRunner()
	m.Responses["podman --version"] = proc.MockResponse{Stdout: "weird build\n"}
	d := linuxDetector(m)
	if got := d.queryVersion(context.Background(), "podman"); got != "weird build" {
		t.Errorf("queryVersion() = %q", got)
	}
}
