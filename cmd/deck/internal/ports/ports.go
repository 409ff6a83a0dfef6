// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package ports detects and explains host port conflicts before a container
start.

# Problem Statement

The single most common reason `compose up` fails on a developer machine is
a busy host port, and the engine reports it late and cryptically ("port is
already allocated") after a potentially long image build. Deck probes the
declared ports first, names the occupying process, and offers ranked
resolutions the user can act on.

# Probe Semantics

Availability is checked by binding a listener and immediately releasing
it. This is inherently racy (another process can grab the port between
the probe and the real engine bind); the check is documented best-effort
and the lifecycle controller re-validates immediately before issuing the
start. No stronger guarantee is possible without holding the port, which
would itself conflict with the engine.

# Severity Model

	Critical  occupying process is OS-owned (must not be stopped)
	High      process identified but cannot be stopped
	Medium    ordinary user process
	Low       port busy but the owner could not be identified
*/
package ports

import (
	"fmt"
)

// =============================================================================
// Types
// =============================================================================

// Protocol is the transport protocol of a port check.
type Protocol string

const (
	TCP Protocol = "tcp"
	UDP Protocol = "udp"
)

// Severity ranks how disruptive resolving a conflict would be.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the severity as a display string.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ProcessInfo describes the process occupying a port.
type ProcessInfo struct {
	// ProcessID is the OS process id, 0 when unknown.
	ProcessID int

	// ProcessName is the executable name, empty when unknown.
	ProcessName string

	// IsSystemProcess is true for OS-owned processes that must not be
	// stopped to free a port.
	IsSystemProcess bool

	// CanBeStopped is true when stopping the process is a viable
	// resolution.
	CanBeStopped bool
}

// ConflictInfo is the computed state of one port check. Never persisted;
// recomputed on demand because the connection table changes constantly.
type ConflictInfo struct {
	// Port is the checked host port.
	Port int

	// Protocol is tcp or udp.
	Protocol Protocol

	// HasConflict is true when the port could not be bound.
	HasConflict bool

	// OccupyingProcess identifies the owner when one could be resolved.
	OccupyingProcess *ProcessInfo

	// Severity ranks the conflict (see package doc).
	Severity Severity

	// ServiceTypeGuess names the likely service on well-known ports
	// ("postgres" on 5432), for friendlier messages. Empty when unknown.
	ServiceTypeGuess string
}

// Describe renders a one-line human summary of the conflict.
func (c *ConflictInfo) Describe() string {
	if !c.HasConflict {
		return fmt.Sprintf("port %d/%s is free", c.Port, c.Protocol)
	}
	who := "an unidentified process"
	if p := c.OccupyingProcess; p != nil && p.ProcessName != "" {
		who = fmt.Sprintf("%s (pid %d)", p.ProcessName, p.ProcessID)
	}
	guess := ""
	if c.ServiceTypeGuess != "" {
		guess = fmt.Sprintf(", likely %s", c.ServiceTypeGuess)
	}
	return fmt.Sprintf("port %d/%s is in use by %s%s [severity: %s]",
		c.Port, c.Protocol, who, guess, c.Severity)
}

// wellKnownServices maps common development ports to a service guess.
var wellKnownServices = map[int]string{
	80:    "http server",
	443:   "https server",
	3000:  "node dev server",
	3306:  "mysql",
	5000:  "flask/airplay receiver",
	5173:  "vite dev server",
	5432:  "postgres",
	6379:  "redis",
	8000:  "http dev server",
	8080:  "http proxy/dev server",
	9229:  "node debugger",
	11434: "ollama",
	27017: "mongodb",
}
