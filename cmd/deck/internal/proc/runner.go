// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package proc provides subprocess execution for the deck CLI.

Every interaction deck has with a container engine goes through its
command-line interface, never a daemon API or socket. This package is the
single seam where those subprocesses are spawned, so the rest of the
codebase can be tested against a mock runner with canned outputs.

# Design

Runner is a small interface with one real implementation (ExecRunner,
backed by os/exec) and one test double (MockRunner). All calls take a
context; cancellation terminates the in-flight subprocess via
exec.CommandContext. Output is captured fully for short commands and
streamed for long-lived ones (compose logs -f).
*/
package proc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/deckdev/deck/cmd/deck/internal/util"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Runner executes external commands.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; batched port probes and
// connectivity checks may fan out concurrently.
type Runner interface {
	// Run executes a command in the current directory and captures output.
	Run(ctx context.Context, name string, args ...string) (*Result, error)

	// RunInDir executes a command in dir with extra environment variables
	// appended to the inherited environment.
	RunInDir(ctx context.Context, dir string, env map[string]string, name string, args ...string) (*Result, error)

	// RunStreaming executes a command and streams combined output to w.
	// Used for follow-mode logs; output is not captured.
	RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error

	// LookPath reports the resolved path of an executable, or an error when
	// it is not on PATH.
	LookPath(name string) (string, error)
}

// Result holds the captured outcome of a completed subprocess.
type Result struct {
	// Command is the full command line, for error messages.
	Command string

	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// ExitCode is the process exit code (-1 if the process never ran).
	ExitCode int

	// Duration is how long the command took.
	Duration time.Duration
}

// Success reports whether the process exited zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// =============================================================================
// ExecRunner
// =============================================================================

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner creates the default subprocess runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command in the current directory and captures output.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	return r.RunInDir(ctx, "", nil, name, args...)
}

// RunInDir executes a command in dir and captures output.
//
// # Description
//
// The inherited environment is preserved and env entries are appended,
// matching how compose tools pick up variable overrides. A non-zero exit
// returns both the populated Result and a *util.CommandError so callers
// can inspect stderr without string matching.
//
// # Outputs
//
//   - *Result: always non-nil when the command started
//   - error: nil on exit 0, *util.CommandError otherwise
func (r *ExecRunner) RunInDir(ctx context.Context, dir string, env map[string]string, name string, args ...string) (*Result, error) {
	start := time.Now()
	cmdStr := commandString(name, args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Command:  cmdStr,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCodeOf(cmd, err),
		Duration: time.Since(start),
	}

	slog.Debug("subprocess finished",
		"command", cmdStr,
		"exit_code", result.ExitCode,
		"duration", result.Duration)

	if err != nil {
		return result, util.NewCommandError(cmdStr, result.ExitCode, result.Stderr, err)
	}
	return result, nil
}

// RunStreaming executes a command and streams combined output to w.
func (r *ExecRunner) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	cmdStr := commandString(name, args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Stdout = w
	cmd.Stderr = w

	slog.Debug("subprocess streaming", "command", cmdStr)

	if err := cmd.Run(); err != nil {
		// Cancellation is the normal way to leave a follow-mode stream.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return util.NewCommandError(cmdStr, exitCodeOf(cmd, err), "", err)
	}
	return nil
}

// LookPath reports the resolved path of an executable.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func commandString(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

// =============================================================================
// MockRunner
// =============================================================================

// MockResponse is a canned subprocess outcome for MockRunner.
type MockResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// MockRunner is a test double that matches commands by prefix.
//
// Responses are keyed on the joined command line; the longest matching
// prefix wins so tests can distinguish "podman ps" from "podman ps -a".
// Unmatched commands succeed with empty output and are recorded in Calls.
type MockRunner struct {
	mu        sync.Mutex
	Responses map[string]MockResponse
	Paths     map[string]string
	Calls     []string
}

// NewMockRunner creates an empty mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses: make(map[string]MockResponse),
		Paths:     make(map[string]string),
	}
}

// Run implements Runner.
func (m *MockRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	return m.RunInDir(ctx, "", nil, name, args...)
}

// RunInDir implements Runner.
func (m *MockRunner) RunInDir(ctx context.Context, dir string, env map[string]string, name string, args ...string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmdStr := commandString(name, args)

	m.mu.Lock()
	m.Calls = append(m.Calls, cmdStr)
	resp, ok := m.longestPrefixMatch(cmdStr)
	m.mu.Unlock()

	result := &Result{Command: cmdStr}
	if !ok {
		return result, nil
	}
	result.Stdout = resp.Stdout
	result.Stderr = resp.Stderr
	result.ExitCode = resp.ExitCode
	if resp.Err != nil {
		return result, resp.Err
	}
	if resp.ExitCode != 0 {
		return result, util.NewCommandError(cmdStr, resp.ExitCode, resp.Stderr, nil)
	}
	return result, nil
}

// RunStreaming implements Runner by writing the canned stdout to w.
func (m *MockRunner) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
	result, err := m.RunInDir(ctx, dir, nil, name, args...)
	if result != nil && result.Stdout != "" {
		fmt.Fprint(w, result.Stdout)
	}
	return err
}

// LookPath implements Runner against the Paths map.
func (m *MockRunner) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// CalledWith reports whether any recorded call starts with prefix.
func (m *MockRunner) CalledWith(prefix string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (m *MockRunner) longestPrefixMatch(cmdStr string) (MockResponse, bool) {
	var best string
	var found bool
	var resp MockResponse
	for k, v := range m.Responses {
		if strings.HasPrefix(cmdStr, k) && len(k) >= len(best) {
			best, resp, found = k, v, true
		}
	}
	return resp, found
}

var _ Runner = (*ExecRunner)(nil)
var _ Runner = (*MockRunner)(nil)
