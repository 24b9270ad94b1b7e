package reconciler

import (
	"fmt"

	"validation-viewer/core/models"
)

// GreyColor marks revisions that are shown but not part of the selection
const GreyColor = "grey"

// Reconcile merges a freshly fetched comparison artifact with the execution
// data of the newest revision in the selection.
//
// Packages present in the artifact receive the revision's fail count, script
// files and label. Packages only known to the revision are appended as
// visible entries when they have failing scripts, and dropped otherwise.
// The artifact is never modified; pre-existing package order is preserved.
func Reconcile(artifact *models.ComparisonArtifact, newest *models.Revision) *models.EnrichedComparison {
	enriched := &models.EnrichedComparison{
		Packages:  make([]models.EnrichedPackage, 0, len(artifact.Packages)),
		Revisions: append([]models.RevisionStyle(nil), artifact.Revisions...),
	}

	index := make(map[string]int, len(artifact.Packages))
	for i, pkg := range artifact.Packages {
		index[pkg.Name] = i
		enriched.Packages = append(enriched.Packages, models.EnrichedPackage{
			Name:            pkg.Name,
			Visible:         pkg.Visible,
			ComparisonError: pkg.ComparisonError,
			PlotFiles:       copyPlotFiles(pkg.PlotFiles),
		})
	}

	if newest == nil {
		return enriched
	}
	enriched.NewestRevision = copyRevision(newest)

	for _, summary := range newest.Packages {
		scripts := append([]models.ScriptFile(nil), summary.ScriptFiles...)

		if i, ok := index[summary.Name]; ok {
			pkg := &enriched.Packages[i]
			pkg.FailCount = summary.FailCount
			pkg.ScriptFiles = scripts
			pkg.NewestRevision = newest.Label
			continue
		}

		// without plots and without failures there is nothing to act on
		if summary.FailCount <= 0 {
			continue
		}
		enriched.Packages = append(enriched.Packages, models.EnrichedPackage{
			Name:            summary.Name,
			Visible:         true,
			ComparisonError: 0,
			FailCount:       summary.FailCount,
			ScriptFiles:     scripts,
			NewestRevision:  newest.Label,
		})
	}

	return enriched
}

// DefaultPackageName returns the package opened first: the first in the list
func DefaultPackageName(enriched *models.EnrichedComparison) (string, bool) {
	if enriched == nil || len(enriched.Packages) == 0 || enriched.Packages[0].Name == "" {
		return "", false
	}
	return enriched.Packages[0].Name, true
}

// PackageView returns a copy of the named package with a unique id on every plot.
// Ids start at 1 and run across all plot files of the package.
func PackageView(enriched *models.EnrichedComparison, name string) (*models.EnrichedPackage, error) {
	if enriched == nil {
		return nil, fmt.Errorf("no comparison loaded")
	}
	for _, pkg := range enriched.Packages {
		if pkg.Name != name {
			continue
		}
		view := pkg
		view.PlotFiles = copyPlotFiles(pkg.PlotFiles)
		view.ScriptFiles = append([]models.ScriptFile(nil), pkg.ScriptFiles...)

		id := 1
		for i := range view.PlotFiles {
			for j := range view.PlotFiles[i].Plots {
				view.PlotFiles[i].Plots[j].UniqueID = id
				id++
			}
		}
		return &view, nil
	}
	return nil, fmt.Errorf("package %q not in comparison", name)
}

// RevisionColors maps each labelled revision to its display color.
// Labels outside the selection are greyed out.
func RevisionColors(enriched *models.EnrichedComparison, labels, selected []string) map[string]string {
	colors := make(map[string]string, len(labels))
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	styles := make(map[string]string)
	if enriched != nil {
		for _, r := range enriched.Revisions {
			styles[r.Label] = r.Color
		}
	}
	for _, label := range labels {
		switch {
		case !chosen[label]:
			colors[label] = GreyColor
		default:
			colors[label] = styles[label]
		}
	}
	return colors
}

func copyPlotFiles(files []models.PlotFile) []models.PlotFile {
	if files == nil {
		return nil
	}
	out := make([]models.PlotFile, len(files))
	for i, f := range files {
		out[i] = f
		out[i].Plots = append([]models.Plot(nil), f.Plots...)
		out[i].NTuples = append([]models.NTuple(nil), f.NTuples...)
	}
	return out
}

func copyRevision(rev *models.Revision) *models.Revision {
	out := *rev
	out.Packages = make([]models.PackageExecutionSummary, len(rev.Packages))
	for i, p := range rev.Packages {
		out.Packages[i] = p
		out.Packages[i].ScriptFiles = append([]models.ScriptFile(nil), p.ScriptFiles...)
	}
	return &out
}
