// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package launch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxNameCollisions bounds the numeric-suffix search so a pathological
// destination directory cannot loop forever.
const maxNameCollisions = 1000

// CopyLayerEntry copies one resource directory tree into a destination
// layer root under the given name.
//
// # Description
//
// When the target name is already taken, the next unused numeric suffix
// is appended ("tauri" -> "tauri-1" -> "tauri-2"), so repeated copies of
// the same source never collide or overwrite. The copy is recursive and
// sequential; directory entries are visited in lexical order so the copy
// order is deterministic and a partial failure names the exact file that
// broke.
//
// # Outputs
//
//   - string: the destination directory path
//   - string: the final (possibly suffixed) name
//   - error: nil on success; a partial copy is left in place for
//     inspection, never silently removed
func CopyLayerEntry(srcDir, destRoot, name string) (string, string, error) {
	finalName, err := nextFreeName(destRoot, name)
	if err != nil {
		return "", "", err
	}

	destDir := filepath.Join(destRoot, finalName)
	if err := copyTree(srcDir, destDir); err != nil {
		return "", "", fmt.Errorf("copy %s into %s: %w", srcDir, destDir, err)
	}
	return destDir, finalName, nil
}

func nextFreeName(destRoot, name string) (string, error) {
	if !pathExists(filepath.Join(destRoot, name)) {
		return name, nil
	}
	for i := 1; i <= maxNameCollisions; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if !pathExists(filepath.Join(destRoot, candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %q under %s", name, destRoot)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyTree(srcDir, destDir string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, info.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		src := filepath.Join(srcDir, entry.Name())
		dest := filepath.Join(destDir, entry.Name())

		switch {
		case entry.IsDir():
			if err := copyTree(src, dest); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := copyFile(src, dest); err != nil {
				return err
			}
		default:
			// Sockets, devices and symlinks have no business inside a
			// configuration directory; skip rather than fail the copy.
			continue
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// timestampedName derives the Images-layer name for a Custom config
// built at a point in time: "{config}-{yyyyMMdd-HHmm}{envSuffix}". A
// trailing environment suffix on the source name is stripped first so
// the suffix never appears twice.
func timestampedName(configName, stamp, envSuffix string) string {
	base := configName
	for _, s := range []string{"-dev", "-test", "-prod"} {
		base = strings.TrimSuffix(base, s)
	}
	return base + "-" + stamp + envSuffix
}
