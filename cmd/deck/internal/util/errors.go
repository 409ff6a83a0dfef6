// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import (
	"fmt"
	"strings"
)

// =============================================================================
// Command Error Type
// =============================================================================

// CommandError wraps a subprocess failure with stderr context.
//
// # Description
//
// Every container-engine and diagnostic command deck runs is a subprocess;
// when one fails, the exit code and stderr are the only useful signal.
// CommandError keeps both attached to the error so callers can surface
// them without re-running the command. Supports unwrapping via
// errors.Is/errors.As.
//
// # Example
//
//	err := NewCommandError("podman-compose up", 1, "port is already allocated", raw)
//	fmt.Println(err) // "podman-compose up (exit 1): port is already allocated"
type CommandError struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the process exit code (-1 if the process never ran).
	ExitCode int

	// Stderr contains the trimmed standard error output.
	Stderr string

	// Wrapped is the underlying error (may be nil).
	Wrapped error
}

// maxStderrLines bounds how much stderr an error message carries. A
// failed compose build can dump its whole log; the tail has the error.
const maxStderrLines = 20

// Error returns a formatted error message. Stderr takes priority over the
// wrapped error because engine CLIs put the actionable detail there; long
// stderr is truncated to its tail.
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode,
			TruncateStderr(e.Stderr, maxStderrLines))
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error for errors.Is/errors.As chains.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// NewCommandError creates a CommandError with trimmed stderr.
//
// # Inputs
//
//   - command: the command line that failed
//   - exitCode: process exit code, -1 when unknown
//   - stderr: raw stderr output (whitespace is trimmed)
//   - wrapped: the underlying exec error, may be nil
func NewCommandError(command string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  command,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// TruncateStderr bounds stderr output for display. Engine CLIs can dump
// hundreds of lines of build output on failure; the tail carries the
// actual error, so the tail is what survives truncation.
func TruncateStderr(stderr string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) <= maxLines {
		return strings.TrimSpace(stderr)
	}
	kept := lines[len(lines)-maxLines:]
	return fmt.Sprintf("... (%d lines omitted)\n%s", len(lines)-maxLines, strings.Join(kept, "\n"))
}
