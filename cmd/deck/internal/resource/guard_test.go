// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resource

import (
	"errors"
	"strings"
	"testing"
)

func TestGuardMutation_RefusesImagesLayer(t *testing.T) {
	for _, kind := range []MutationKind{MutationRename, MutationDelete} {
		err := GuardMutation(LayerImages, kind, "tauri-20240101-0900")
		if !errors.Is(err, ErrDirectoryIntegrity) {
			t.Fatalf("GuardMutation(images, %s) = %v, want ErrDirectoryIntegrity", kind, err)
		}
		if !strings.Contains(err.Error(), ".deck/custom") {
			t.Errorf("error should point the user at the Custom layer: %v", err)
		}
	}
}

func TestGuardMutation_AllowsOtherLayers(t *testing.T) {
	for _, layer := range []Layer{LayerTemplates, LayerCustom} {
		for _, kind := range []MutationKind{MutationRename, MutationDelete} {
			if err := GuardMutation(layer, kind, "tauri"); err != nil {
				t.Errorf("GuardMutation(%s, %s) = %v, want nil", layer, kind, err)
			}
		}
	}
}
