package selection

import (
	"fmt"
	"strings"

	"validation-viewer/core/models"
)

// KeySeparator joins revision identifiers in a comparison key
const KeySeparator = "_"

// Order returns the comparison order of a selection: reference first, the
// remaining identifiers in their given order.
func Order(selected []string, reference string) []string {
	if len(selected) == 0 {
		return nil
	}
	ordered := make([]string, 0, len(selected)+1)
	if reference != "" {
		ordered = append(ordered, reference)
	}
	for _, id := range selected {
		if id == reference {
			continue
		}
		ordered = append(ordered, id)
	}
	return ordered
}

// FromSelection derives the comparison key of a selection.
// An empty selection yields the empty key, which callers must not look up.
func FromSelection(selected []string, reference string) string {
	return strings.Join(Order(selected, reference), KeySeparator)
}

// ParseKey splits a comparison key into revision identifiers.
//
// Identifiers may themselves contain the separator, so tokens are matched
// against known; the split that only produces known identifiers wins, with
// longer identifiers tried first.
func ParseKey(key string, known func(string) bool) ([]string, error) {
	if key == "" {
		return nil, &models.UserInputError{Err: models.ErrNoComparison}
	}
	tokens := strings.Split(key, KeySeparator)
	ids, ok := matchTokens(tokens, known)
	if !ok {
		return nil, &models.UserInputError{Value: key, Err: fmt.Errorf("%w in comparison key", models.ErrUnknownRevision)}
	}
	return ids, nil
}

// matchTokens splits tokens into known identifiers, preferring longer ones.
// Positions that cannot start a valid split are remembered so each is tried once.
func matchTokens(tokens []string, known func(string) bool) ([]string, bool) {
	dead := make([]bool, len(tokens))
	var match func(start int) ([]string, bool)
	match = func(start int) ([]string, bool) {
		if start == len(tokens) {
			return []string{}, true
		}
		if dead[start] {
			return nil, false
		}
		for end := len(tokens); end > start; end-- {
			candidate := strings.Join(tokens[start:end], KeySeparator)
			if !known(candidate) {
				continue
			}
			if rest, ok := match(end); ok {
				return append([]string{candidate}, rest...), true
			}
		}
		dead[start] = true
		return nil, false
	}
	return match(0)
}

// Comparison validates the selection for a lookup and returns the resolved
// reference with the revisions in comparison order. The reference must be
// part of the selection.
func (s *State) Comparison() (string, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.selected) == 0 {
		return "", nil, &models.UserInputError{Err: models.ErrNoComparison}
	}
	reference, ok := ResolveReference(s.selected, s.mode, s.explicit)
	if !ok {
		return "", nil, &models.UserInputError{Err: models.ErrReferenceUnresolved}
	}
	for _, id := range s.selected {
		if id == reference {
			return reference, Order(s.selected, reference), nil
		}
	}
	return "", nil, &models.UserInputError{Value: reference, Err: fmt.Errorf("%w: reference is not selected", models.ErrReferenceUnresolved)}
}
