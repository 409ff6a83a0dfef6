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
	"sort"
)

// =============================================================================
// Resolution Suggestions
// =============================================================================

// SuggestionKind identifies a resolution strategy.
type SuggestionKind string

const (
	// SuggestAlternativePort rewrites the declaration to a nearby free port.
	SuggestAlternativePort SuggestionKind = "use-alternative-port"

	// SuggestStopProcess stops the occupying process.
	SuggestStopProcess SuggestionKind = "stop-process"

	// SuggestWait waits for a transient TIME_WAIT/CLOSE_WAIT connection
	// to leave the table.
	SuggestWait SuggestionKind = "wait-for-release"

	// SuggestReconfigure tells the user to renumber the port manually.
	SuggestReconfigure SuggestionKind = "manual-reconfiguration"
)

// Risk ranks how dangerous executing a suggestion is.
type Risk int

const (
	RiskNone Risk = iota
	RiskLow
	RiskMedium
	RiskHigh
)

// Suggestion is one ranked resolution option for a port conflict.
type Suggestion struct {
	// Kind identifies the strategy.
	Kind SuggestionKind

	// Description is the human-readable explanation shown in the menu.
	Description string

	// Risk is the danger of executing this suggestion.
	Risk Risk

	// Priority orders suggestions with equal risk; higher is better.
	Priority int

	// AutoExecutable is true when deck can apply the suggestion itself
	// after a single confirmation.
	AutoExecutable bool

	// AlternativePort carries the replacement port for
	// SuggestAlternativePort, 0 otherwise.
	AlternativePort int
}

// SuggestResolutions produces ranked resolutions for a conflict.
//
// # Description
//
// The result is sorted by ascending risk, then descending priority,
// with manual reconfiguration pinned to the tail:
//
//  1. Use a free port in [port+1, port+100] when one exists, no risk,
//     auto-executable (the port pipeline rewrites `.env` on confirmation).
//  2. Stop the occupying process: risk scales with whether the process
//     is OS-owned; never auto-executable for system processes.
//  3. Wait for a transient connection state to clear: no action deck can
//     take, offered when the owner is unknown (a vanished process often
//     means TIME_WAIT).
//  4. Reconfigure manually: always present, always last. It is the
//     fallback when nothing above helps, so it sorts after every other
//     option regardless of risk.
//
// The alternative-port probe is live, so the same conflict can yield
// different suggestions across calls as the host's ports churn.
func (c *Checker) SuggestResolutions(ctx context.Context, conflict *ConflictInfo) []Suggestion {
	if conflict == nil || !conflict.HasConflict {
		return nil
	}

	var suggestions []Suggestion

	if alt := c.FindAlternative(ctx, conflict.Port, conflict.Protocol); alt != 0 {
		suggestions = append(suggestions, Suggestion{
			Kind: SuggestAlternativePort,
			Description: fmt.Sprintf("use free port %d instead of %d (deck rewrites .env after a backup)",
				alt, conflict.Port),
			Risk:            RiskNone,
			Priority:        100,
			AutoExecutable:  true,
			AlternativePort: alt,
		})
	}

	if p := conflict.OccupyingProcess; p != nil && p.ProcessID > 0 {
		s := Suggestion{
			Kind:     SuggestStopProcess,
			Priority: 50,
		}
		if p.IsSystemProcess {
			s.Risk = RiskHigh
			s.AutoExecutable = false
			s.Description = fmt.Sprintf("stop %s (pid %d): OS-owned process, stopping it may destabilize the system",
				p.ProcessName, p.ProcessID)
		} else if !p.CanBeStopped {
			s.Risk = RiskMedium
			s.AutoExecutable = false
			s.Description = fmt.Sprintf("stop %s (pid %d): process could not be confirmed stoppable",
				p.ProcessName, p.ProcessID)
		} else {
			s.Risk = RiskLow
			s.AutoExecutable = false
			s.Description = fmt.Sprintf("stop %s (pid %d) yourself, then retry",
				p.ProcessName, p.ProcessID)
		}
		suggestions = append(suggestions, s)
	} else {
		suggestions = append(suggestions, Suggestion{
			Kind: SuggestWait,
			Description: fmt.Sprintf("port %d has no identifiable owner; a closing connection may still hold it, wait a minute and retry",
				conflict.Port),
			Risk:           RiskLow,
			Priority:       40,
			AutoExecutable: false,
		})
	}

	suggestions = append(suggestions, Suggestion{
		Kind: SuggestReconfigure,
		Description: fmt.Sprintf("edit the resource's .env and choose a different port than %d",
			conflict.Port),
		Risk:           RiskNone,
		Priority:       1,
		AutoExecutable: false,
	})

	sort.SliceStable(suggestions, func(i, j int) bool {
		ri, rj := sortRank(suggestions[i]), sortRank(suggestions[j])
		if ri != rj {
			return ri < rj
		}
		return suggestions[i].Priority > suggestions[j].Priority
	})
	return suggestions
}

// sortRank orders suggestions by risk, except manual reconfiguration,
// which is the last resort and ranks after everything else.
func sortRank(s Suggestion) Risk {
	if s.Kind == SuggestReconfigure {
		return RiskHigh + 1
	}
	return s.Risk
}
