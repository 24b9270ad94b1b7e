package catalog

import (
	"fmt"

	"validation-viewer/core/models"
)

// Mode names a default selection strategy
type Mode string

const (
	ModeAll             Mode = "all"
	ModeRelease         Mode = "r"
	ModeBuild           Mode = "b"
	ModeNightly         Mode = "n"
	ModeAllNightlies    Mode = "nnn"
	ModeReleaseBuildNew Mode = "rbn"

	// DefaultMode is used when no mode is configured
	DefaultMode = ModeReleaseBuildNew
)

// ParseMode validates a mode name. The empty string selects DefaultMode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return DefaultMode, nil
	case ModeAll, ModeRelease, ModeBuild, ModeNightly, ModeAllNightlies, ModeReleaseBuildNew:
		return m, nil
	default:
		return DefaultMode, fmt.Errorf("%w: %q", models.ErrUnknownMode, s)
	}
}

// DefaultSelection computes the initial selection for a mode.
//
// An unknown mode yields the rbn selection together with an error wrapping
// models.ErrUnknownMode, so callers can report the problem and still proceed.
func (c *Catalog) DefaultSelection(mode Mode) ([]string, error) {
	parsed, err := ParseMode(string(mode))

	switch parsed {
	case ModeAll:
		labels := c.Labels()
		reverseSort(labels)
		return labels, nil
	case ModeRelease:
		if sel, ok := c.withNewest(c.classes.Release); ok {
			return sel, nil
		}
	case ModeBuild:
		if sel, ok := c.withNewest(c.classes.Build); ok {
			return sel, nil
		}
	case ModeNightly:
		if sel, ok := c.withNewest(c.classes.Nightly); ok {
			return sel, nil
		}
	case ModeAllNightlies:
		return append(c.referenceOnly(), c.classes.Nightly...), nil
	}

	sel := c.referenceOnly()
	for _, group := range [][]string{c.classes.Release, c.classes.Build, c.classes.Nightly} {
		if len(group) > 0 {
			sel = append(sel, group[0])
		}
	}
	return sel, err
}

// withNewest returns reference plus the newest label of group, false if group is empty
func (c *Catalog) withNewest(group []string) ([]string, bool) {
	if len(group) == 0 {
		return nil, false
	}
	return append(c.referenceOnly(), group[0]), true
}

// referenceOnly returns the reference sentinel if the catalog has one
func (c *Catalog) referenceOnly() []string {
	if c.classes.Reference == "" {
		return []string{}
	}
	return []string{c.classes.Reference}
}
