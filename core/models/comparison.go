package models

// ComparisonArtifact is the generated comparison for one ComparisonKey
type ComparisonArtifact struct {
	Packages  []PackageComparison `json:"packages" validate:"required,dive"`
	Revisions []RevisionStyle     `json:"revisions" validate:"dive"`
}

// PackageComparison holds the plots of one package in a comparison
type PackageComparison struct {
	Name            string     `json:"name" validate:"required"`
	Visible         bool       `json:"visible"`
	ComparisonError int        `json:"comparison_error"`
	PlotFiles       []PlotFile `json:"plotfiles"`
}

// RevisionStyle is the display color the backend assigned to a revision
type RevisionStyle struct {
	Label string `json:"label" validate:"required"`
	Color string `json:"color"`
}

// PlotFile groups the plots produced from one ROOT file
type PlotFile struct {
	Package     string   `json:"package,omitempty"`
	Title       string   `json:"title,omitempty"`
	RootFile    string   `json:"rootfile,omitempty"`
	Description string   `json:"description,omitempty"`
	Plots       []Plot   `json:"plots"`
	NTuples     []NTuple `json:"ntuple,omitempty"`
}

// Plot is one compared histogram or image
type Plot struct {
	Key              string   `json:"key,omitempty"`
	Title            string   `json:"title,omitempty"`
	Description      string   `json:"description,omitempty"`
	Check            string   `json:"check,omitempty"`
	Contact          string   `json:"contact,omitempty"`
	PNGFilename      string   `json:"png_filename,omitempty"`
	PDFFilename      string   `json:"pdf_filename,omitempty"`
	ComparisonResult string   `json:"comparison_result,omitempty"`
	ComparisonText   string   `json:"comparison_text,omitempty"`
	IsExpert         bool     `json:"is_expert,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	Width            int      `json:"width,omitempty"`
	Height           int      `json:"height,omitempty"`
	UniqueID         int      `json:"unique_id,omitempty"`
}

// NTuple is a table of figures of merit
type NTuple struct {
	Key         string `json:"key,omitempty"`
	Description string `json:"description,omitempty"`
	JSONFile    string `json:"json_file_path,omitempty"`
}

// EnrichedComparison is the artifact merged with the newest revision's execution data
type EnrichedComparison struct {
	Packages       []EnrichedPackage `json:"packages"`
	Revisions      []RevisionStyle   `json:"revisions"`
	NewestRevision *Revision         `json:"newest_revision"`
}

// EnrichedPackage is a PackageComparison plus script outcomes
type EnrichedPackage struct {
	Name            string       `json:"name"`
	Visible         bool         `json:"visible"`
	ComparisonError int          `json:"comparison_error"`
	PlotFiles       []PlotFile   `json:"plotfiles"`
	FailCount       int          `json:"fail_count"`
	ScriptFiles     []ScriptFile `json:"scriptfiles"`
	NewestRevision  string       `json:"newest_revision,omitempty"`
}
