// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ports

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
)

// =============================================================================
// Occupying-Process Lookup
// =============================================================================

// systemProcessNames are executables that own ports on behalf of the OS.
// Stopping any of these to free a port is never a safe suggestion.
var systemProcessNames = map[string]bool{
	// unix-likes
	"systemd":        true,
	"systemd-resolv": true,
	"launchd":        true,
	"kernel_task":    true,
	"mDNSResponder":  true,
	"rpcbind":        true,
	"sshd":           true,
	"cupsd":          true,
	"ControlCenter":  true,
	// windows
	"System":       true,
	"svchost.exe":  true,
	"wininit.exe":  true,
	"services.exe": true,
	"lsass.exe":    true,
}

func osName() string {
	return runtime.GOOS
}

// lookupProcess resolves the process occupying a port, or nil when the
// owner cannot be determined. Failures here are expected (permissions,
// missing tools) and never abort the conflict check.
func (c *Checker) lookupProcess(ctx context.Context, port int, protocol Protocol) *ProcessInfo {
	var info *ProcessInfo
	if c.goos == "windows" {
		info = c.lookupViaNetstat(ctx, port, protocol)
	} else {
		info = c.lookupViaLsof(ctx, port, protocol)
	}
	if info == nil {
		slog.Debug("could not identify port occupant", "port", port, "protocol", protocol)
		return nil
	}
	info.IsSystemProcess = classifySystemProcess(c.goos, info.ProcessID, info.ProcessName)
	info.CanBeStopped = !info.IsSystemProcess && info.ProcessID > 0
	return info
}

// lookupViaLsof parses `lsof -nP -i <proto>:<port> -F pc` field output:
//
//	p1234
//	cnode
//
// The -F form is stable across lsof versions, unlike the columnar output.
func (c *Checker) lookupViaLsof(ctx context.Context, port int, protocol Protocol) *ProcessInfo {
	args := []string{"-nP", "-F", "pc"}
	if protocol == UDP {
		args = append(args, fmt.Sprintf("-iUDP:%d", port))
	} else {
		args = append(args, fmt.Sprintf("-iTCP:%d", port), "-sTCP:LISTEN")
	}

	result, err := c.runner.Run(ctx, "lsof", args...)
	if err != nil || result == nil {
		return nil
	}

	info := &ProcessInfo{}
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "p") && info.ProcessID == 0:
			if pid, err := strconv.Atoi(line[1:]); err == nil {
				info.ProcessID = pid
			}
		case strings.HasPrefix(line, "c") && info.ProcessName == "":
			info.ProcessName = line[1:]
		}
	}
	if info.ProcessID == 0 {
		return nil
	}
	return info
}

// lookupViaNetstat parses `netstat -ano` on Windows, matching the local
// address column against the port, then resolves the image name with
// `tasklist /FI "PID eq <pid>" /FO CSV /NH`.
func (c *Checker) lookupViaNetstat(ctx context.Context, port int, protocol Protocol) *ProcessInfo {
	result, err := c.runner.Run(ctx, "netstat", "-ano")
	if err != nil || result == nil {
		return nil
	}

	wantProto := "TCP"
	if protocol == UDP {
		wantProto = "UDP"
	}
	suffix := ":" + strconv.Itoa(port)

	pid := 0
	for _, line := range strings.Split(result.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || !strings.EqualFold(fields[0], wantProto) {
			continue
		}
		if !strings.HasSuffix(fields[1], suffix) {
			continue
		}
		// TCP rows: Proto Local Foreign State PID; UDP rows lack State.
		if wantProto == "TCP" {
			if len(fields) >= 5 && strings.EqualFold(fields[3], "LISTENING") {
				pid, _ = strconv.Atoi(fields[4])
			}
		} else {
			pid, _ = strconv.Atoi(fields[3])
		}
		if pid != 0 {
			break
		}
	}
	if pid == 0 {
		return nil
	}

	info := &ProcessInfo{ProcessID: pid}
	if name := c.lookupWindowsProcessName(ctx, pid); name != "" {
		info.ProcessName = name
	}
	return info
}

func (c *Checker) lookupWindowsProcessName(ctx context.Context, pid int) string {
	result, err := c.runner.Run(ctx, "tasklist",
		"/FI", fmt.Sprintf("PID eq %d", pid), "/FO", "CSV", "/NH")
	if err != nil || result == nil {
		return ""
	}
	// CSV row: "name.exe","1234","Console","1","10,000 K"
	line := strings.TrimSpace(strings.Split(result.Stdout, "\n")[0])
	fields := strings.Split(line, ",")
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], `"`)
}

// classifySystemProcess decides whether a process is OS-owned.
func classifySystemProcess(goos string, pid int, name string) bool {
	if goos == "windows" {
		// PIDs 0 and 4 are the Idle and System pseudo-processes.
		if pid == 0 || pid == 4 {
			return true
		}
	} else if pid == 1 {
		return true
	}
	return systemProcessNames[name]
}
