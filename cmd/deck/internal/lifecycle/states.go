// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package lifecycle reconciles a container's current state with the user's
intent to have it running.

"Start" is ambiguous: the container may already run, may exist but be
stopped, or may not exist at all. The controller turns the engine's
reported state into one of three start modes and executes the matching
action, re-validating declared host ports immediately before any actual
start so the engine never fails ambiguously on a bind error deck could
have explained.
*/
package lifecycle

import "strings"

// =============================================================================
// Container States
// =============================================================================

// State is a container lifecycle state as reported by the engine.
type State string

const (
	StateNotExists  State = "not-exists"
	StateCreated    State = "created"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateExited     State = "exited"
	StateDead       State = "dead"
	StateRestarting State = "restarting"
	StateRemoving   State = "removing"
	StateUnknown    State = "unknown"
	StateError      State = "error"
)

// ParseState normalizes an engine status string into a State.
// Unrecognized strings map to StateUnknown rather than an error; the
// start-mode table is total over all states.
func ParseState(engineStatus string) State {
	switch strings.ToLower(strings.TrimSpace(engineStatus)) {
	case "created", "configured", "initialized":
		return StateCreated
	case "running", "up":
		return StateRunning
	case "paused":
		return StatePaused
	case "exited", "stopped":
		return StateExited
	case "dead":
		return StateDead
	case "restarting":
		return StateRestarting
	case "removing", "stopping":
		return StateRemoving
	case "":
		return StateUnknown
	default:
		return StateUnknown
	}
}

// =============================================================================
// Start Modes
// =============================================================================

// StartMode is the reconciled action needed to reach running.
type StartMode string

const (
	// ModeAttach means the container already runs; report and do nothing.
	ModeAttach StartMode = "attach"

	// ModeResume means an existing stopped container is started again.
	ModeResume StartMode = "resume"

	// ModeNew means a container must be created (building if needed).
	ModeNew StartMode = "new"
)

// DetermineStartMode maps a current state to the action that reaches
// running.
//
// # Description
//
// Total over all declared states:
//
//	Running                      → Attach (no-op, report already running)
//	Exited, Created, Dead        → Resume (start the existing container)
//	NotExists                    → New (create, building if needed)
//	Paused, Restarting, Removing,
//	Unknown, Error               → New; if the engine is genuinely busy
//	                               with the name, its error surfaces then
//
// The transitional states deliberately fall through to New rather than
// guessing: a container stuck in Removing cannot be resumed, and a
// create attempt produces a precise engine error if the name is held.
func DetermineStartMode(state State) StartMode {
	switch state {
	case StateRunning:
		return ModeAttach
	case StateExited, StateCreated, StateDead:
		return ModeResume
	case StateNotExists:
		return ModeNew
	default:
		return ModeNew
	}
}
