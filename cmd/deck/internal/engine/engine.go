// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package engine abstracts the host's container engine behind one lifecycle
contract.

Deck drives whichever engine is present (Podman preferred, Docker as the
compatibility fallback) exclusively through the engine's command-line
interface. There is no daemon API or socket use anywhere: every operation
is a subprocess whose exit code, stdout, and stderr are parsed. That keeps
the abstraction identical across engines and means deck needs no
per-engine client libraries.

An engine counts as available only when both the engine binary and its
compose companion (podman-compose / docker-compose, or the docker compose
plugin) resolve. Deck's resources are compose projects; an engine without
compose cannot launch them.

Exactly two variants implement the Engine interface. A third engine is a
third variant, not new branching in callers.
*/
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/cmd/deck/internal/util"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrNoEngine is returned when neither Podman nor Docker is usable.
	ErrNoEngine = errors.New("no usable container engine")

	// ErrContainerNotFound is returned when an inspected container does
	// not exist.
	ErrContainerNotFound = errors.New("container not found")

	// ErrUnsupportedEngine is returned for Handle(TypeNone).
	ErrUnsupportedEngine = errors.New("unsupported engine type")
)

// =============================================================================
// Types
// =============================================================================

// Type identifies a container engine backend.
type Type string

const (
	TypePodman Type = "podman"
	TypeDocker Type = "docker"
	TypeNone   Type = "none"
)

// Info is the recomputed availability snapshot of the host's engine.
//
// Never persisted: availability can change between commands (the VM
// backing Podman on macOS may stop, Docker Desktop may be quit), so every
// orchestrator action re-detects.
type Info struct {
	// Type is the detected backend, TypeNone when unavailable.
	Type Type

	// IsAvailable is true when engine and compose companion both resolve
	// and any required backing machine is running.
	IsAvailable bool

	// Version is the engine's reported version string.
	Version string

	// InstallPath is the resolved engine binary path.
	InstallPath string

	// ComposeCommand is the compose invocation ("podman-compose",
	// "docker-compose", or "docker compose" for the plugin).
	ComposeCommand []string

	// ErrorMessage is the diagnostic reason when IsAvailable is false.
	ErrorMessage string
}

// ContainerInfo is a fresh snapshot of one container, sourced from the
// engine on every query. Never cached across calls; the running engine is
// the sole source of truth for container state.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Status    string
	CreatedAt time.Time
	Ports     []string
	Labels    map[string]string
}

// =============================================================================
// Engine Interface
// =============================================================================

// Engine is the uniform lifecycle contract over one backend.
//
// # Thread Safety
//
// Implementations are stateless wrappers over subprocess calls and safe
// for concurrent use; the engine itself serializes conflicting requests.
type Engine interface {
	// Type identifies the backend.
	Type() Type

	// ComposeUp runs `compose up --detach` (with --build when build is
	// set) in dir, injecting env into the compose process environment.
	ComposeUp(ctx context.Context, dir string, env map[string]string, build bool) error

	// ComposeDown runs `compose down` in dir.
	ComposeDown(ctx context.Context, dir string) error

	// StartContainer starts an existing (created/exited) container.
	StartContainer(ctx context.Context, name string) error

	// StopContainer stops a running container.
	StopContainer(ctx context.Context, name string) error

	// RestartContainer restarts a container.
	RestartContainer(ctx context.Context, name string) error

	// InspectContainer returns a fresh snapshot, or ErrContainerNotFound.
	InspectContainer(ctx context.Context, name string) (*ContainerInfo, error)

	// Logs streams container logs to w; follow keeps the stream open
	// until ctx is cancelled.
	Logs(ctx context.Context, name string, w io.Writer, follow bool) error

	// Exec runs a command inside a running container.
	Exec(ctx context.Context, name string, cmd []string) (*proc.Result, error)

	// ListContainers returns all containers known to the engine.
	ListContainers(ctx context.Context) ([]ContainerInfo, error)
}

// Handle returns the Engine variant for a detected backend.
func Handle(info *Info, runner proc.Runner) (Engine, error) {
	switch info.Type {
	case TypePodman:
		return &podmanEngine{driver: driver{runner: runner, bin: "podman", compose: info.ComposeCommand}}, nil
	case TypeDocker:
		return &dockerEngine{driver: driver{runner: runner, bin: "docker", compose: info.ComposeCommand}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, info.Type)
	}
}

// =============================================================================
// Shared CLI driver
// =============================================================================

// driver holds the subprocess plumbing shared by both variants. The
// Podman and Docker CLIs are argument-compatible for everything deck
// needs; the variants exist so engine-specific quirks have a home.
type driver struct {
	runner  proc.Runner
	bin     string
	compose []string
}

func (d *driver) composeUp(ctx context.Context, dir string, env map[string]string, build bool) error {
	ctx, cancel := context.WithTimeout(ctx, util.DefaultComposeTimeout)
	defer cancel()

	args := append(append([]string{}, d.compose[1:]...), composeFileArgs(dir)...)
	args = append(args, "up", "--detach")
	if build {
		args = append(args, "--build")
	}
	_, err := d.runner.RunInDir(ctx, dir, env, d.compose[0], args...)
	return err
}

func (d *driver) composeDown(ctx context.Context, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, util.DefaultComposeTimeout)
	defer cancel()

	args := append(append([]string{}, d.compose[1:]...), composeFileArgs(dir)...)
	args = append(args, "down")
	_, err := d.runner.RunInDir(ctx, dir, nil, d.compose[0], args...)
	return err
}

func (d *driver) container(ctx context.Context, verb, name string) error {
	ctx, cancel := context.WithTimeout(ctx, util.DefaultProcessTimeout)
	defer cancel()
	_, err := d.runner.Run(ctx, d.bin, verb, name)
	return err
}

// inspectFields is the subset of `inspect --format json` deck reads.
type inspectFields struct {
	ID      string    `json:"Id"`
	Name    string    `json:"Name"`
	Created time.Time `json:"Created"`
	State   struct {
		Status string `json:"Status"`
	} `json:"State"`
	Config struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
	NetworkSettings struct {
		Ports map[string][]struct {
			HostIP   string `json:"HostIp"`
			HostPort string `json:"HostPort"`
		} `json:"Ports"`
	} `json:"NetworkSettings"`
}

func (d *driver) inspect(ctx context.Context, name string) (*ContainerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, util.DefaultDetectTimeout)
	defer cancel()

	result, err := d.runner.Run(ctx, d.bin, "inspect", "--type", "container", name)
	if err != nil {
		if result != nil && isNotFoundStderr(result.Stderr) {
			return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return nil, err
	}

	var parsed []inspectFields
	if err := json.Unmarshal([]byte(result.Stdout), &parsed); err != nil {
		return nil, fmt.Errorf("parse %s inspect output: %w", d.bin, err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
	}

	f := parsed[0]
	info := &ContainerInfo{
		ID:        f.ID,
		Name:      strings.TrimPrefix(f.Name, "/"),
		Image:     f.Config.Image,
		Status:    f.State.Status,
		CreatedAt: f.Created,
		Labels:    f.Config.Labels,
	}
	for containerPort, bindings := range f.NetworkSettings.Ports {
		for _, b := range bindings {
			info.Ports = append(info.Ports, fmt.Sprintf("%s:%s->%s", b.HostIP, b.HostPort, containerPort))
		}
	}
	return info, nil
}

func (d *driver) logs(ctx context.Context, name string, w io.Writer, follow bool) error {
	args := []string{"logs"}
	if follow {
		args = append(args, "-f")
	}
	args = append(args, name)
	if follow {
		return d.runner.RunStreaming(ctx, "", w, d.bin, args...)
	}
	ctx, cancel := context.WithTimeout(ctx, util.DefaultProcessTimeout)
	defer cancel()
	result, err := d.runner.Run(ctx, d.bin, args...)
	if result != nil {
		fmt.Fprint(w, result.Stdout)
	}
	return err
}

func (d *driver) exec(ctx context.Context, name string, cmd []string) (*proc.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, util.DefaultProcessTimeout)
	defer cancel()
	args := append([]string{"exec", name}, cmd...)
	return d.runner.Run(ctx, d.bin, args...)
}

// psLine is one row of `ps --all --format json` output. Podman emits a
// JSON array, Docker emits newline-delimited objects; both are handled.
type psLine struct {
	ID    string `json:"Id"`
	IDAlt string `json:"ID"`
	Names any    `json:"Names"`
	Image string `json:"Image"`
	State string `json:"State"`
}

func (d *driver) list(ctx context.Context) ([]ContainerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, util.DefaultProcessTimeout)
	defer cancel()

	result, err := d.runner.Run(ctx, d.bin, "ps", "--all", "--format", "json")
	if err != nil {
		return nil, err
	}
	return parsePsOutput(result.Stdout)
}

func parsePsOutput(out string) ([]ContainerInfo, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	var rows []psLine
	if strings.HasPrefix(out, "[") {
		if err := json.Unmarshal([]byte(out), &rows); err != nil {
			return nil, fmt.Errorf("parse ps output: %w", err)
		}
	} else {
		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var row psLine
			if err := json.Unmarshal([]byte(line), &row); err != nil {
				return nil, fmt.Errorf("parse ps line: %w", err)
			}
			rows = append(rows, row)
		}
	}

	infos := make([]ContainerInfo, 0, len(rows))
	for _, r := range rows {
		info := ContainerInfo{
			ID:    firstNonEmpty(r.ID, r.IDAlt),
			Image: r.Image,
		}
		switch names := r.Names.(type) {
		case string:
			info.Name = names
		case []any:
			if len(names) > 0 {
				info.Name, _ = names[0].(string)
			}
		}
		info.Status = strings.ToLower(r.State)
		infos = append(infos, info)
	}
	return infos, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isNotFoundStderr(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "no such container") ||
		strings.Contains(s, "no such object") ||
		strings.Contains(s, "no container with name")
}

// composeFileArgs builds the -f arguments for a resource directory,
// including an override file when one exists next to compose.yaml.
func composeFileArgs(dir string) []string {
	args := []string{"-f", filepath.Join(dir, "compose.yaml")}
	override := filepath.Join(dir, "compose.override.yaml")
	if _, err := os.Stat(override); err == nil {
		args = append(args, "-f", override)
	}
	return args
}

// =============================================================================
// Variants
// =============================================================================

type podmanEngine struct {
	driver driver
}

func (e *podmanEngine) Type() Type { return TypePodman }
func (e *podmanEngine) ComposeUp(ctx context.Context, dir string, env map[string]string, build bool) error {
	return e.driver.composeUp(ctx, dir, env, build)
}
func (e *podmanEngine) ComposeDown(ctx context.Context, dir string) error {
	return e.driver.composeDown(ctx, dir)
}
func (e *podmanEngine) StartContainer(ctx context.Context, name string) error {
	return e.driver.container(ctx, "start", name)
}
func (e *podmanEngine) StopContainer(ctx context.Context, name string) error {
	return e.driver.container(ctx, "stop", name)
}
func (e *podmanEngine) RestartContainer(ctx context.Context, name string) error {
	return e.driver.container(ctx, "restart", name)
}
func (e *podmanEngine) InspectContainer(ctx context.Context, name string) (*ContainerInfo, error) {
	return e.driver.inspect(ctx, name)
}
func (e *podmanEngine) Logs(ctx context.Context, name string, w io.Writer, follow bool) error {
	return e.driver.logs(ctx, name, w, follow)
}
func (e *podmanEngine) Exec(ctx context.Context, name string, cmd []string) (*proc.Result, error) {
	return e.driver.exec(ctx, name, cmd)
}
func (e *podmanEngine) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	return e.driver.list(ctx)
}

type dockerEngine struct {
	driver driver
}

func (e *dockerEngine) Type() Type { return TypeDocker }
func (e *dockerEngine) ComposeUp(ctx context.Context, dir string, env map[string]string, build bool) error {
	return e.driver.composeUp(ctx, dir, env, build)
}
func (e *dockerEngine) ComposeDown(ctx context.Context, dir string) error {
	return e.driver.composeDown(ctx, dir)
}
func (e *dockerEngine) StartContainer(ctx context.Context, name string) error {
	return e.driver.container(ctx, "start", name)
}
func (e *dockerEngine) StopContainer(ctx context.Context, name string) error {
	return e.driver.container(ctx, "stop", name)
}
func (e *dockerEngine) RestartContainer(ctx context.Context, name string) error {
	return e.driver.container(ctx, "restart", name)
}
func (e *dockerEngine) InspectContainer(ctx context.Context, name string) (*ContainerInfo, error) {
	return e.driver.inspect(ctx, name)
}
func (e *dockerEngine) Logs(ctx context.Context, name string, w io.Writer, follow bool) error {
	return e.driver.logs(ctx, name, w, follow)
}
func (e *dockerEngine) Exec(ctx context.Context, name string, cmd []string) (*proc.Result, error) {
	return e.driver.exec(ctx, name, cmd)
}
func (e *dockerEngine) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	return e.driver.list(ctx)
}

var _ Engine = (*podmanEngine)(nil)
var _ Engine = (*dockerEngine)(nil)
