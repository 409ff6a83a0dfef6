// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import "time"

// =============================================================================
// Constants
// =============================================================================

// Timeout constants define minimum and default values for deck operations.
//
// These constants prevent accidental infinite hangs by ensuring every
// subprocess and probe has a reasonable timeout even if misconfigured.
const (
	// MinProbeTimeout is the absolute minimum for a TCP/UDP bind probe.
	MinProbeTimeout = 200 * time.Millisecond

	// MinProcessTimeout is the absolute minimum for subprocess operations.
	MinProcessTimeout = 2 * time.Second

	// DefaultProbeTimeout is the standard timeout for a single port probe.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultDetectTimeout is the standard timeout for engine detection
	// commands (version, machine inspect).
	DefaultDetectTimeout = 15 * time.Second

	// DefaultProcessTimeout is the standard timeout for short engine
	// commands (ps, inspect, start, stop).
	DefaultProcessTimeout = 2 * time.Minute

	// DefaultComposeTimeout is the standard timeout for compose up/down,
	// which may include an image build.
	DefaultComposeTimeout = 15 * time.Minute

	// DefaultMachineTimeout is the standard timeout for podman machine
	// init/start, which may download a VM image.
	DefaultMachineTimeout = 10 * time.Minute
)

// ClampTimeout raises d to min when it is below min or non-positive.
// Zero-valued timeouts from an incomplete config would otherwise turn
// into immediate context deadline errors.
func ClampTimeout(d, min time.Duration) time.Duration {
	if d < min {
		return min
	}
	return d
}
