package catalog

import (
	"fmt"
	"sort"
	"strings"

	"validation-viewer/core/models"
)

// Category is the classification of a revision derived from its label
type Category int

const (
	Unclassified Category = iota
	Release
	Build
	Nightly
	Reference
)

// String returns the category name
func (c Category) String() string {
	switch c {
	case Release:
		return "release"
	case Build:
		return "build"
	case Nightly:
		return "nightly"
	case Reference:
		return "reference"
	default:
		return "unclassified"
	}
}

// categoryPrefixes are matched in order, first match wins
var categoryPrefixes = []struct {
	prefix   string
	category Category
}{
	{"release", Release},
	{"prerelease", Release},
	{"build", Build},
	{"nightly", Nightly},
}

// Classify derives the category of a revision label. Matching is case-sensitive.
func Classify(label string) Category {
	if label == models.ReferenceLabel {
		return Reference
	}
	for _, p := range categoryPrefixes {
		if strings.HasPrefix(label, p.prefix) {
			return p.category
		}
	}
	return Unclassified
}

// Classification partitions a catalog by category.
// Each list is reverse-sorted so index 0 is the most recent by label.
type Classification struct {
	Release   []string `json:"release"`
	Build     []string `json:"build"`
	Nightly   []string `json:"nightly"`
	Reference string   `json:"reference,omitempty"`
}

// Catalog holds the revisions available for one viewing session
type Catalog struct {
	revisions []models.Revision
	byLabel   map[string]int
	classes   Classification
}

// New creates a catalog from revision metadata
func New(revisions []models.Revision) (*Catalog, error) {
	c := &Catalog{
		revisions: make([]models.Revision, len(revisions)),
		byLabel:   make(map[string]int, len(revisions)),
	}
	copy(c.revisions, revisions)

	for i, rev := range c.revisions {
		if rev.Label == "" {
			return nil, &models.DataShapeError{Source: "revisions", Err: fmt.Errorf("revision %d has no label", i)}
		}
		if _, dup := c.byLabel[rev.Label]; dup {
			return nil, &models.DataShapeError{Source: "revisions", Err: fmt.Errorf("duplicate revision label %q", rev.Label)}
		}
		c.byLabel[rev.Label] = i

		switch Classify(rev.Label) {
		case Release:
			c.classes.Release = append(c.classes.Release, rev.Label)
		case Build:
			c.classes.Build = append(c.classes.Build, rev.Label)
		case Nightly:
			c.classes.Nightly = append(c.classes.Nightly, rev.Label)
		case Reference:
			c.classes.Reference = rev.Label
		}
	}

	reverseSort(c.classes.Release)
	reverseSort(c.classes.Build)
	reverseSort(c.classes.Nightly)

	return c, nil
}

// Classified returns the category partition
func (c *Catalog) Classified() Classification {
	return Classification{
		Release:   append([]string(nil), c.classes.Release...),
		Build:     append([]string(nil), c.classes.Build...),
		Nightly:   append([]string(nil), c.classes.Nightly...),
		Reference: c.classes.Reference,
	}
}

// Len returns the number of revisions
func (c *Catalog) Len() int {
	return len(c.revisions)
}

// Contains reports whether label is a known revision
func (c *Catalog) Contains(label string) bool {
	_, ok := c.byLabel[label]
	return ok
}

// Revision returns the revision with the given label
func (c *Catalog) Revision(label string) (*models.Revision, bool) {
	i, ok := c.byLabel[label]
	if !ok {
		return nil, false
	}
	return &c.revisions[i], true
}

// Labels returns all revision labels in ascending order
func (c *Catalog) Labels() []string {
	labels := make([]string, 0, len(c.revisions))
	for _, rev := range c.revisions {
		labels = append(labels, rev.Label)
	}
	sort.Strings(labels)
	return labels
}

// Newest returns the most recently created non-reference revision among labels.
// Ties on creation date go to the larger label. Returns nil if there is none.
func (c *Catalog) Newest(labels []string) *models.Revision {
	var newest *models.Revision
	for _, label := range labels {
		rev, ok := c.Revision(label)
		if !ok || rev.IsReference() {
			continue
		}
		if newest == nil {
			newest = rev
			continue
		}
		switch {
		case rev.CreationDate.After(newest.CreationDate.Time):
			newest = rev
		case rev.CreationDate.Equal(newest.CreationDate.Time) && rev.Label > newest.Label:
			newest = rev
		}
	}
	return newest
}

func reverseSort(labels []string) {
	sort.Sort(sort.Reverse(sort.StringSlice(labels)))
}
