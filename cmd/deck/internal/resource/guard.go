// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resource

import (
	"errors"
	"fmt"
)

// =============================================================================
// Directory Identity Guard
// =============================================================================

// ErrDirectoryIntegrity is returned when an operation would rename or
// delete an Images-layer directory.
var ErrDirectoryIntegrity = errors.New("images directory identity violation")

// MutationKind is a destructive directory operation a caller proposes.
type MutationKind string

const (
	MutationRename MutationKind = "rename"
	MutationDelete MutationKind = "delete"
)

// GuardMutation enforces the directory-identity policy.
//
// # Description
//
// An Images entry's directory name is the implicit key linking it to any
// already-built image and container; renaming or deleting it silently
// breaks that mapping. This is a policy check, not a filesystem lock:
// deck refuses to perform the operation itself and explains the
// provenance model, but cannot stop a user editing the tree by hand.
//
// Rename and delete are permitted on the Templates and Custom layers,
// where identity carries no build state.
//
// # Outputs
//
//   - error: ErrDirectoryIntegrity (wrapped, with remediation text) when
//     the mutation targets the Images layer; nil otherwise
func GuardMutation(layer Layer, kind MutationKind, name string) error {
	if layer != LayerImages {
		return nil
	}
	return fmt.Errorf(
		"%w: refusing to %s images/%s.\n"+
			"Images entries are built artifacts in the Templates → Custom → Images\n"+
			"provenance chain; their directory name is the identity the built image\n"+
			"and container are keyed on. Instead of changing this entry, create a\n"+
			"new Custom variant and build it:\n"+
			"  1. copy the source Custom entry (or the template it came from)\n"+
			"  2. edit the copy under .deck/custom/\n"+
			"  3. run `deck start` and select it",
		ErrDirectoryIntegrity, kind, name)
}
