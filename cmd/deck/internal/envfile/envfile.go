// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package envfile reads and rewrites the `.env` file at the heart of every
deck resource.

A resource's `.env` declares its host ports and project name; the port
pipeline rewrites those values after user confirmation. Rewrites must be
surgical: comments, blank lines, ordering, and unrelated keys come back
byte-for-byte, because users hand-edit these files. The parser therefore
keeps the file as an ordered line list rather than a map.
*/
package envfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrKeyNotFound is returned when a requested key is absent.
	ErrKeyNotFound = errors.New("env key not found")

	// ErrInvalidPort is returned when a well-known port key holds a
	// non-integer or out-of-range value.
	ErrInvalidPort = errors.New("invalid port value")
)

// PortKeys are the well-known `.env` keys deck treats as host port
// declarations, in presentation order.
var PortKeys = []string{
	"DEV_PORT",
	"DEBUG_PORT",
	"WEB_PORT",
	"HTTPS_PORT",
	"ANDROID_DEBUG_PORT",
}

// ProjectNameKey is the `.env` key holding the compose project name.
const ProjectNameKey = "PROJECT_NAME"

// =============================================================================
// Types
// =============================================================================

// Protocol distinguishes TCP from UDP port declarations.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// PortMapping is a declarative host port derived from a well-known key.
type PortMapping struct {
	// Key is the `.env` key the mapping came from.
	Key string

	// ContainerPort is the port inside the container. The base `.env`
	// layout maps host and container ports 1:1.
	ContainerPort int

	// HostPort is the port bound on the host.
	HostPort int

	// Protocol is tcp for all well-known keys today.
	Protocol Protocol
}

// line is one physical line of the file. Key is empty for comments and
// blank lines, which are preserved verbatim.
type line struct {
	raw   string
	key   string
	value string
}

// File is a parsed `.env` file that round-trips byte-for-byte.
type File struct {
	path  string
	lines []line
}

// =============================================================================
// Parsing
// =============================================================================

// Load reads and parses the `.env` file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	f := Parse(string(data))
	f.path = path
	return f, nil
}

// Parse parses `.env` content. Unparseable lines are kept verbatim so a
// rewrite never destroys content it does not understand.
func Parse(content string) *File {
	f := &File{}
	// Preserve a trailing newline exactly: split keeps a final "" element
	// when the content ends with \n, and Serialize re-joins with \n.
	for _, raw := range strings.Split(content, "\n") {
		l := line{raw: raw}
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if idx := strings.Index(raw, "="); idx > 0 {
				key := strings.TrimSpace(raw[:idx])
				if isValidKey(key) {
					l.key = key
					l.value = strings.TrimSpace(raw[idx+1:])
				}
			}
		}
		f.lines = append(f.lines, l)
	}
	return f
}

func isValidKey(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Serialize renders the file back to its textual form.
func (f *File) Serialize() string {
	parts := make([]string, len(f.lines))
	for i, l := range f.lines {
		parts[i] = l.raw
	}
	return strings.Join(parts, "\n")
}

// Path returns the file path this File was loaded from, if any.
func (f *File) Path() string {
	return f.path
}

// =============================================================================
// Accessors
// =============================================================================

// Get returns the value for key. The last occurrence wins, matching how
// compose tools resolve duplicate keys.
func (f *File) Get(key string) (string, error) {
	value := ""
	found := false
	for _, l := range f.lines {
		if l.key == key {
			value = l.value
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return value, nil
}

// Set replaces the value of every occurrence of key, or appends a new
// line when the key is absent.
func (f *File) Set(key, value string) {
	found := false
	for i := range f.lines {
		if f.lines[i].key == key {
			f.lines[i].value = value
			f.lines[i].raw = key + "=" + value
			found = true
		}
	}
	if found {
		return
	}
	// Append before a trailing blank line if one exists, so files ending
	// in a newline keep ending in a newline.
	l := line{raw: key + "=" + value, key: key, value: value}
	if n := len(f.lines); n > 0 && f.lines[n-1].raw == "" {
		f.lines = append(f.lines[:n-1], l, f.lines[n-1])
	} else {
		f.lines = append(f.lines, l)
	}
}

// GetInt returns an integer value for key.
func (f *File) GetInt(key string) (int, error) {
	v, err := f.Get(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidPort, key, v)
	}
	return n, nil
}

// PortMappings extracts the declared host ports from the well-known keys.
//
// Missing keys are skipped; a present key with a non-integer or
// out-of-range value is an error because the port pipeline cannot make a
// safe decision about it.
func (f *File) PortMappings() ([]PortMapping, error) {
	var mappings []PortMapping
	for _, key := range PortKeys {
		v, err := f.Get(key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidPort, key, v)
		}
		mappings = append(mappings, PortMapping{
			Key:           key,
			ContainerPort: port,
			HostPort:      port,
			Protocol:      ProtocolTCP,
		})
	}
	return mappings, nil
}

// =============================================================================
// Writing
// =============================================================================

// WriteWithBackup writes the file back to its original path, first copying
// the on-disk content to `<path>.bak`.
//
// # Description
//
// The backup is taken from disk, not from the parsed representation, so
// the user always has the exact prior bytes to recover. Called only after
// the user has confirmed a rewrite; declining a port-pipeline prompt must
// leave the file untouched, which is why no write happens anywhere else.
func (f *File) WriteWithBackup() error {
	if f.path == "" {
		return errors.New("env file has no path; was it parsed from a string?")
	}
	original, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read original for backup: %w", err)
	}
	if err := os.WriteFile(f.path+".bak", original, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(f.Serialize()), 0o644); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}
