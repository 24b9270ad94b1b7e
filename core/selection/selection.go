package selection

import (
	"fmt"
	"sort"
	"sync"

	"validation-viewer/core/models"
)

// ReferenceMode determines how the comparison reference is chosen
type ReferenceMode string

const (
	ReferenceAutomatic ReferenceMode = "automatic"
	ReferenceExplicit  ReferenceMode = "explicit"
)

// ParseReferenceMode validates a reference mode name. Empty means automatic.
func ParseReferenceMode(s string) (ReferenceMode, error) {
	switch m := ReferenceMode(s); m {
	case "", ReferenceAutomatic:
		return ReferenceAutomatic, nil
	case ReferenceExplicit:
		return m, nil
	default:
		return ReferenceAutomatic, &models.UserInputError{Value: s, Err: fmt.Errorf("unknown reference mode")}
	}
}

// State holds the user's current revision selection
type State struct {
	mu       sync.RWMutex
	known    func(string) bool
	selected []string
	mode     ReferenceMode
	explicit string
}

// NewState creates an empty selection. known validates identifiers against the catalog.
func NewState(known func(string) bool) *State {
	return &State{
		known: known,
		mode:  ReferenceAutomatic,
	}
}

// SetSelected replaces the selection. Duplicates are collapsed and unknown identifiers rejected.
func (s *State) SetSelected(ids []string) error {
	seen := make(map[string]bool, len(ids))
	selected := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.known != nil && !s.known(id) {
			return &models.UserInputError{Value: id, Err: models.ErrUnknownRevision}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		selected = append(selected, id)
	}
	sort.Strings(selected)

	s.mu.Lock()
	s.selected = selected
	s.mu.Unlock()
	return nil
}

// Selected returns the selection in ascending lexical order
func (s *State) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selected...)
}

// SetReference switches to explicit mode with the given reference
func (s *State) SetReference(id string) {
	s.mu.Lock()
	s.mode = ReferenceExplicit
	s.explicit = id
	s.mu.Unlock()
}

// SetAutomatic switches back to automatic reference resolution
func (s *State) SetAutomatic() {
	s.mu.Lock()
	s.mode = ReferenceAutomatic
	s.explicit = ""
	s.mu.Unlock()
}

// Mode returns the reference mode and the explicit reference, if any
func (s *State) Mode() (ReferenceMode, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode, s.explicit
}

// Reference resolves the comparison reference for the current selection
func (s *State) Reference() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ResolveReference(s.selected, s.mode, s.explicit)
}

// ResolveReference picks the comparison reference.
//
// Explicit mode returns the chosen identifier without checking it. Automatic
// mode returns the reference sentinel if selected, nothing if fewer than two
// revisions are selected, and otherwise the second-largest identifier in
// lexical order.
func ResolveReference(selected []string, mode ReferenceMode, explicit string) (string, bool) {
	if mode == ReferenceExplicit {
		return explicit, explicit != ""
	}

	for _, id := range selected {
		if id == models.ReferenceLabel {
			return id, true
		}
	}
	if len(selected) < 2 {
		return "", false
	}

	sorted := append([]string(nil), selected...)
	sort.Strings(sorted)
	return sorted[len(sorted)-2], true
}
