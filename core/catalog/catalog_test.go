package catalog

import (
	"errors"
	"testing"

	"validation-viewer/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revisions(labels ...string) []models.Revision {
	revs := make([]models.Revision, len(labels))
	for i, l := range labels {
		revs[i] = models.Revision{Label: l}
	}
	return revs
}

func mustCatalog(t *testing.T, labels ...string) *Catalog {
	t.Helper()
	c, err := New(revisions(labels...))
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	tests := []struct {
		label string
		want  Category
	}{
		{"reference", Reference},
		{"release-03-00-00", Release},
		{"prerelease-04-00-00", Release},
		{"build-2024-01-01", Build},
		{"nightly-20", Nightly},
		{"Release-1", Unclassified},
		{"references", Unclassified},
		{"current", Unclassified},
		{"", Unclassified},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.label))
		})
	}
}

func TestNew_RejectsDuplicateAndEmptyLabels(t *testing.T) {
	_, err := New(revisions("build-1", "build-1"))
	require.Error(t, err)
	assert.True(t, models.IsDataShape(err))

	_, err = New(revisions("build-1", ""))
	require.Error(t, err)
	assert.True(t, models.IsDataShape(err))
}

func TestClassified_ReverseSortedPerCategory(t *testing.T) {
	c := mustCatalog(t, "nightly-20", "reference", "build-3", "nightly-21", "build-7", "release-3", "custom")

	got := c.Classified()
	assert.Equal(t, []string{"release-3"}, got.Release)
	assert.Equal(t, []string{"build-7", "build-3"}, got.Build)
	assert.Equal(t, []string{"nightly-21", "nightly-20"}, got.Nightly)
	assert.Equal(t, "reference", got.Reference)

	// unclassified revisions stay selectable
	assert.True(t, c.Contains("custom"))
}

func TestDefaultSelection_RBNScenario(t *testing.T) {
	c := mustCatalog(t, "reference", "release-3", "build-7", "nightly-20", "nightly-21")

	sel, err := c.DefaultSelection(ModeReleaseBuildNew)
	require.NoError(t, err)
	assert.Equal(t, []string{"reference", "release-3", "build-7", "nightly-21"}, sel)
}

func TestDefaultSelection_RBNOmitsOnlyEmptyCategories(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{"only reference", []string{"reference"}, []string{"reference"}},
		{"no builds", []string{"reference", "release-1", "release-2", "nightly-5"}, []string{"reference", "release-2", "nightly-5"}},
		{"no releases", []string{"reference", "build-1", "nightly-1", "nightly-2"}, []string{"reference", "build-1", "nightly-2"}},
		{"unclassified ignored", []string{"reference", "other", "build-9"}, []string{"reference", "build-9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustCatalog(t, tt.labels...)
			sel, err := c.DefaultSelection("rbn")
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel)
		})
	}
}

func TestDefaultSelection_Modes(t *testing.T) {
	c := mustCatalog(t, "reference", "release-3", "release-4", "build-7", "nightly-20", "nightly-21")

	tests := []struct {
		mode Mode
		want []string
	}{
		{ModeAll, []string{"release-4", "release-3", "reference", "nightly-21", "nightly-20", "build-7"}},
		{ModeRelease, []string{"reference", "release-4"}},
		{ModeBuild, []string{"reference", "build-7"}},
		{ModeNightly, []string{"reference", "nightly-21"}},
		{ModeAllNightlies, []string{"reference", "nightly-21", "nightly-20"}},
		{"", []string{"reference", "release-4", "build-7", "nightly-21"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			sel, err := c.DefaultSelection(tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel)
		})
	}
}

func TestDefaultSelection_EmptyCategoryFallsBackToRBN(t *testing.T) {
	c := mustCatalog(t, "reference", "release-3", "nightly-20")

	sel, err := c.DefaultSelection(ModeBuild)
	require.NoError(t, err)
	assert.Equal(t, []string{"reference", "release-3", "nightly-20"}, sel)
}

func TestDefaultSelection_UnknownModeReportsAndFallsBack(t *testing.T) {
	c := mustCatalog(t, "reference", "release-3", "build-7")

	sel, err := c.DefaultSelection("xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnknownMode))
	assert.Equal(t, []string{"reference", "release-3", "build-7"}, sel)
}

func TestDefaultSelection_WithoutReference(t *testing.T) {
	c := mustCatalog(t, "release-3", "build-7")

	sel, err := c.DefaultSelection(ModeReleaseBuildNew)
	require.NoError(t, err)
	assert.Equal(t, []string{"release-3", "build-7"}, sel)
}

func TestNewest_UsesCreationDateAndSkipsReference(t *testing.T) {
	ts := func(s string) models.Timestamp {
		v, err := models.ParseTimestamp(s)
		require.NoError(t, err)
		return v
	}
	c, err := New([]models.Revision{
		{Label: "reference", CreationDate: ts("2030-01-01 00:00:00")},
		{Label: "build-9", CreationDate: ts("2024-01-01 10:00:00")},
		{Label: "build-10", CreationDate: ts("2024-03-01 10:00:00")},
		{Label: "nightly-1", CreationDate: ts("2024-02-01 10:00:00")},
	})
	require.NoError(t, err)

	newest := c.Newest([]string{"reference", "build-9", "build-10", "nightly-1"})
	require.NotNil(t, newest)
	assert.Equal(t, "build-10", newest.Label)

	newest = c.Newest([]string{"reference", "build-9", "nightly-1"})
	require.NotNil(t, newest)
	assert.Equal(t, "nightly-1", newest.Label)

	assert.Nil(t, c.Newest([]string{"reference"}))
	assert.Nil(t, c.Newest(nil))
}

func TestNewest_TieGoesToLargerLabel(t *testing.T) {
	c := mustCatalog(t, "build-1", "build-2")
	newest := c.Newest([]string{"build-2", "build-1"})
	require.NotNil(t, newest)
	assert.Equal(t, "build-2", newest.Label)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("nnn")
	require.NoError(t, err)
	assert.Equal(t, ModeAllNightlies, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMode, m)

	m, err = ParseMode("RBN")
	assert.ErrorIs(t, err, models.ErrUnknownMode)
	assert.Equal(t, DefaultMode, m)
}
