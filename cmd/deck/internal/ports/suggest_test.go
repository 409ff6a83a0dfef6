// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ports

import (
	"context"
	"testing"

	"github.com/deckdev/deck/cmd/deck/internal/proc"
)

func suggestionKinds(suggestions []Suggestion) []SuggestionKind {
	kinds := make([]SuggestionKind, len(suggestions))
	for i, s := range suggestions {
		kinds[i] = s.Kind
	}
	return kinds
}

func TestSuggestResolutions_Ordering(t *testing.T) {
	c := NewChecker(proc.NewMockRunner())
	conflict := &ConflictInfo{
		Port:        holdPort(t),
		Protocol:    TCP,
		HasConflict: true,
		Severity:    SeverityMedium,
		OccupyingProcess: &ProcessInfo{
			ProcessID:    812,
			ProcessName:  "node",
			CanBeStopped: true,
		},
	}

	suggestions := c.SuggestResolutions(context.Background(), conflict)
	if len(suggestions) != 3 {
		t.Fatalf("suggestions = %v", suggestionKinds(suggestions))
	}

	// Manual reconfiguration is the last resort, after everything else.
	if last := suggestions[len(suggestions)-1]; last.Kind != SuggestReconfigure {
		t.Errorf("last suggestion = %v, want manual reconfiguration: %v",
			last.Kind, suggestionKinds(suggestions))
	}

	// Ahead of it, risk ascends and priority breaks ties descending.
	actionable := suggestions[:len(suggestions)-1]
	for i := 1; i < len(actionable); i++ {
		prev, cur := actionable[i-1], actionable[i]
		if cur.Risk < prev.Risk {
			t.Errorf("risk order violated at %d: %v then %v", i, prev.Risk, cur.Risk)
		}
		if cur.Risk == prev.Risk && cur.Priority > prev.Priority {
			t.Errorf("priority order violated at %d", i)
		}
	}

	first := suggestions[0]
	if first.Kind != SuggestAlternativePort || !first.AutoExecutable {
		t.Errorf("first suggestion = %+v, want auto-executable alternative port", first)
	}
	if first.AlternativePort <= conflict.Port {
		t.Errorf("AlternativePort = %d, want > %d", first.AlternativePort, conflict.Port)
	}
}

// Stopping an OS-owned process must never be offered as auto-executable,
// and must rank below every other action (only the manual-reconfiguration
// fallback comes after it).
func TestSuggestResolutions_SystemProcess(t *testing.T) {
	c := NewChecker(proc.NewMockRunner())
	conflict := &ConflictInfo{
		Port:        holdPort(t),
		Protocol:    TCP,
		HasConflict: true,
		Severity:    SeverityCritical,
		OccupyingProcess: &ProcessInfo{
			ProcessID:       1,
			ProcessName:     "systemd",
			IsSystemProcess: true,
		},
	}

	suggestions := c.SuggestResolutions(context.Background(), conflict)
	if len(suggestions) < 2 {
		t.Fatalf("suggestions = %v", suggestionKinds(suggestions))
	}
	if last := suggestions[len(suggestions)-1]; last.Kind != SuggestReconfigure {
		t.Fatalf("last suggestion = %v, want manual reconfiguration: %v",
			last.Kind, suggestionKinds(suggestions))
	}
	stop := suggestions[len(suggestions)-2]
	if stop.Kind != SuggestStopProcess {
		t.Fatalf("second-to-last = %v, want stop-process ranked below every other action: %v",
			stop.Kind, suggestionKinds(suggestions))
	}
	if stop.AutoExecutable || stop.Risk != RiskHigh {
		t.Errorf("system-process stop = %+v, want high risk, not auto-executable", stop)
	}
}

func TestSuggestResolutions_UnknownOwnerOffersWait(t *testing.T) {
	c := NewChecker(proc.NewMockRunner())
	conflict := &ConflictInfo{
		Port:        holdPort(t),
		Protocol:    TCP,
		HasConflict: true,
		Severity:    SeverityLow,
	}

	kinds := suggestionKinds(c.SuggestResolutions(context.Background(), conflict))
	var sawWait bool
	for _, k := range kinds {
		if k == SuggestStopProcess {
			t.Errorf("stop-process offered with no known owner: %v", kinds)
		}
		if k == SuggestWait {
			sawWait = true
		}
	}
	if !sawWait {
		t.Errorf("wait-for-release missing: %v", kinds)
	}
	// Even with only low-risk options on offer, reconfiguration stays at
	// the tail; it must never outrank an actionable suggestion.
	if kinds[len(kinds)-1] != SuggestReconfigure {
		t.Errorf("kinds = %v, want manual reconfiguration last", kinds)
	}
}

func TestSuggestResolutions_NoConflict(t *testing.T) {
	c := NewChecker(proc.NewMockRunner())
	if got := c.SuggestResolutions(context.Background(), &ConflictInfo{Port: 80}); got != nil {
		t.Errorf("SuggestResolutions(free port) = %v, want nil", got)
	}
	if got := c.SuggestResolutions(context.Background(), nil); got != nil {
		t.Errorf("SuggestResolutions(nil) = %v, want nil", got)
	}
}
