// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ports

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deckdev/deck/cmd/deck/internal/envfile"
	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/cmd/deck/internal/util"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrInvalidPort is returned for ports outside [1, 65535].
	ErrInvalidPort = errors.New("port out of range")
)

// maxConcurrentChecks bounds the fan-out of a batch scan. Individual
// checks are independent and side-effect-free, so they run concurrently.
const maxConcurrentChecks = 8

// =============================================================================
// Checker
// =============================================================================

// Checker probes host ports and resolves conflicting processes.
//
// # Thread Safety
//
// Checker is stateless after construction and safe for concurrent use.
type Checker struct {
	runner proc.Runner

	// goos is injectable for testing the platform-specific lookup paths.
	goos string

	// probeTimeout bounds a single bind probe. Applied through
	// util.ClampTimeout so a zero value cannot turn every probe into an
	// instant deadline failure.
	probeTimeout time.Duration
}

// NewChecker creates a port checker that shells out through runner for
// connection-table lookups.
func NewChecker(runner proc.Runner) *Checker {
	return &Checker{
		runner:       runner,
		goos:         osName(),
		probeTimeout: util.DefaultProbeTimeout,
	}
}

// CheckPort reports whether a port can currently be bound.
//
// # Description
//
// Binds a wildcard listener on the port and immediately releases it.
// Success means the port was free at that instant; see the package doc
// for the TOCTOU caveat. The probe is idempotent: releasing the listener
// leaves the port exactly as it was found.
//
// # Outputs
//
//   - bool: true when the port was bindable
//   - error: only for invalid input, never for a busy port
func (c *Checker) CheckPort(ctx context.Context, port int, protocol Protocol) (bool, error) {
	if port < 1 || port > 65535 {
		return false, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	probeCtx, cancel := context.WithTimeout(ctx,
		util.ClampTimeout(c.probeTimeout, util.MinProbeTimeout))
	defer cancel()

	var lc net.ListenConfig
	addr := fmt.Sprintf(":%d", port)
	switch protocol {
	case UDP:
		conn, err := lc.ListenPacket(probeCtx, "udp", addr)
		if err != nil {
			return false, nil
		}
		conn.Close()
	default:
		ln, err := lc.Listen(probeCtx, "tcp", addr)
		if err != nil {
			return false, nil
		}
		ln.Close()
	}
	return true, nil
}

// DetectConflict checks a port and, when busy, identifies the occupant.
//
// # Description
//
// When the bind probe fails, the platform's connection-table tool is
// consulted (lsof on unix-likes, netstat on Windows) to find the owning
// pid, then the process name and whether it is OS-owned. Lookup failures
// degrade to a Low-severity conflict with no process info; the port being
// busy is already established by the probe.
func (c *Checker) DetectConflict(ctx context.Context, port int, protocol Protocol) (*ConflictInfo, error) {
	available, err := c.CheckPort(ctx, port, protocol)
	if err != nil {
		return nil, err
	}

	info := &ConflictInfo{
		Port:             port,
		Protocol:         protocol,
		ServiceTypeGuess: wellKnownServices[port],
	}
	if available {
		return info, nil
	}

	info.HasConflict = true
	info.Severity = SeverityLow

	process := c.lookupProcess(ctx, port, protocol)
	if process != nil {
		info.OccupyingProcess = process
		switch {
		case process.IsSystemProcess:
			info.Severity = SeverityCritical
		case !process.CanBeStopped:
			info.Severity = SeverityHigh
		default:
			info.Severity = SeverityMedium
		}
	}
	return info, nil
}

// FindAlternative scans [port+1, port+100] for the first free port.
//
// # Outputs
//
//   - int: the first free port found, 0 when the whole window is busy
func (c *Checker) FindAlternative(ctx context.Context, port int, protocol Protocol) int {
	return c.FindAlternativeExcluding(ctx, port, protocol, nil)
}

// FindAlternativeExcluding is FindAlternative with a reservation set:
// candidates in reserved are skipped even when the host reports them
// free. A batch rewrite reserves each pick so two conflicts in the same
// plan never land on the same alternative.
func (c *Checker) FindAlternativeExcluding(ctx context.Context, port int, protocol Protocol, reserved map[int]bool) int {
	for candidate := port + 1; candidate <= port+100 && candidate <= 65535; candidate++ {
		if err := ctx.Err(); err != nil {
			return 0
		}
		if reserved[candidate] {
			continue
		}
		free, err := c.CheckPort(ctx, candidate, protocol)
		if err == nil && free {
			return candidate
		}
	}
	return 0
}

// ScanMappings checks every declared port mapping concurrently.
//
// # Description
//
// Fan-out/fan-in over the mappings with a bounded worker count. Results
// come back in input order regardless of completion order. Only conflicted
// entries carry process detail; free ports return a bare ConflictInfo.
func (c *Checker) ScanMappings(ctx context.Context, mappings []envfile.PortMapping) ([]*ConflictInfo, error) {
	results := make([]*ConflictInfo, len(mappings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for i, m := range mappings {
		g.Go(func() error {
			info, err := c.DetectConflict(gctx, m.HostPort, Protocol(m.Protocol))
			if err != nil {
				return err
			}
			results[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Conflicted filters scan results down to the conflicting entries.
func Conflicted(results []*ConflictInfo) []*ConflictInfo {
	var out []*ConflictInfo
	for _, r := range results {
		if r != nil && r.HasConflict {
			out = append(out, r)
		}
	}
	return out
}
