// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package templates keeps the Templates layer in sync with its git
repository.

The Templates layer is the curated tier of the hierarchy; its content is
a plain git checkout of the configured template repository. Sync is
deliberately conservative: it never fabricates synthetic templates, never
touches the Custom or Images layers, and refuses to overwrite a templates
directory that is not a git checkout (the user put those files there by
hand).
*/
package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// stampFile records the time of the last successful sync, for TTL
// freshness checks.
const stampFile = ".last-sync"

// SyncResult reports the outcome of one sync attempt.
type SyncResult struct {
	// Success is true when the layer is usable after the attempt
	// (freshly synced, already fresh, or already up to date).
	Success bool

	// SyncedCount is the number of template directories present after
	// the attempt.
	SyncedCount int

	// Logs are human-readable notes about what the sync did.
	Logs []string
}

// GitSyncer syncs the Templates layer from a git repository.
type GitSyncer struct {
	// RepoURL is the template repository.
	RepoURL string

	// Branch is the branch to track.
	Branch string

	// Dest is the Templates layer root (.deck/templates).
	Dest string

	// CacheTTL suppresses non-forced syncs while the last one is fresh.
	CacheTTL time.Duration
}

// Sync brings the Templates layer up to date.
//
// # Description
//
// Clone on first use, pull afterwards; shallow (depth 1) because only
// the tip matters for templates. A non-forced sync inside the TTL window
// is a successful no-op, which keeps launches fast and makes offline
// work possible once templates exist locally. Network failures do not
// destroy anything: the existing checkout stays as it was, and the
// caller decides whether "stale but present" is good enough.
//
// # Outputs
//
//   - *SyncResult: always non-nil; Success false only when no usable
//     templates exist after the attempt
//   - error: the underlying git failure when Success is false
func (s *GitSyncer) Sync(ctx context.Context, force bool) (*SyncResult, error) {
	result := &SyncResult{}

	if !force && s.isFresh() {
		result.Success = true
		result.SyncedCount = s.countTemplates()
		result.Logs = append(result.Logs, "templates are fresh, skipping sync")
		return result, nil
	}

	gitDir := filepath.Join(s.Dest, ".git")
	_, statErr := os.Stat(gitDir)

	switch {
	case statErr == nil:
		if err := s.pull(ctx, result); err != nil {
			return s.degrade(result, err)
		}
	case s.hasLocalContent():
		// Hand-placed templates: usable, but not ours to overwrite.
		result.Success = true
		result.SyncedCount = s.countTemplates()
		result.Logs = append(result.Logs,
			"templates directory has local content but is not a git checkout; leaving it untouched")
		return result, nil
	default:
		if err := s.clone(ctx, result); err != nil {
			return s.degrade(result, err)
		}
	}

	s.writeStamp()
	result.Success = true
	result.SyncedCount = s.countTemplates()
	return result, nil
}

func (s *GitSyncer) clone(ctx context.Context, result *SyncResult) error {
	result.Logs = append(result.Logs,
		fmt.Sprintf("cloning %s (branch %s)", s.RepoURL, s.Branch))

	_, err := git.PlainCloneContext(ctx, s.Dest, false, &git.CloneOptions{
		URL:           s.RepoURL,
		ReferenceName: plumbing.NewBranchReferenceName(s.Branch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		return fmt.Errorf("clone template repository: %w", err)
	}
	return nil
}

func (s *GitSyncer) pull(ctx context.Context, result *SyncResult) error {
	repo, err := git.PlainOpen(s.Dest)
	if err != nil {
		return fmt.Errorf("open template checkout: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open template worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &git.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(s.Branch),
		SingleBranch:  true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		result.Logs = append(result.Logs, "templates already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull template repository: %w", err)
	}
	result.Logs = append(result.Logs, "pulled latest templates")
	return nil
}

// degrade converts a sync failure into "stale but usable" when local
// templates exist, and a hard failure otherwise.
func (s *GitSyncer) degrade(result *SyncResult, err error) (*SyncResult, error) {
	result.Logs = append(result.Logs, "sync failed: "+err.Error())
	if s.hasLocalContent() {
		slog.Warn("template sync failed, using existing local templates", "error", err)
		result.Success = true
		result.SyncedCount = s.countTemplates()
		return result, nil
	}
	return result, err
}

func (s *GitSyncer) isFresh() bool {
	if s.CacheTTL <= 0 {
		return false
	}
	data, err := os.ReadFile(filepath.Join(s.Dest, stampFile))
	if err != nil {
		return false
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	return time.Since(t) < s.CacheTTL
}

func (s *GitSyncer) writeStamp() {
	// Best-effort: a missing stamp only costs an extra sync next run.
	_ = os.WriteFile(filepath.Join(s.Dest, stampFile),
		[]byte(time.Now().Format(time.RFC3339)), 0o644)
}

func (s *GitSyncer) hasLocalContent() bool {
	return s.countTemplates() > 0
}

func (s *GitSyncer) countTemplates() int {
	entries, err := os.ReadDir(s.Dest)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			count++
		}
	}
	return count
}
