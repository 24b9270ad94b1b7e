package models

import "time"

// GenerationJob tracks one lookup of a comparison, including generation when the artifact is missing
type GenerationJob struct {
	ID        string // unique per run; lookups of the same key share Key only
	Key       string
	Revisions []string
	Token     string // progress token issued by the backend
	Phase     Phase
	Progress  Progress
	Polls     int
	Failures  int // consecutive transient poll failures
	StartedAt time.Time
	Err       error
}

// Progress is the last package progress reported by the backend
type Progress struct {
	CurrentPackage int    `json:"current_package"`
	TotalPackages  int    `json:"total_package"`
	PackageName    string `json:"package_name"`
}

// Phase represents the state of a comparison lookup
type Phase string

const (
	PhaseFetching   Phase = "fetching"
	PhaseFound      Phase = "found"
	PhaseMissing    Phase = "missing"
	PhaseRequesting Phase = "requesting"
	PhaseRequested  Phase = "requested"
	PhasePolling    Phase = "polling"
	PhaseComplete   Phase = "complete"
	PhaseError      Phase = "error"
	PhaseCanceled   Phase = "canceled"
)

// IsTerminal reports whether no further transition can follow
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseFound, PhaseError, PhaseCanceled:
		return true
	default:
		return false
	}
}

// ProgressStatus is a decoded progress poll response
type ProgressStatus struct {
	Status         string `json:"status" validate:"required"`
	CurrentPackage int    `json:"current_package" validate:"gte=0"`
	TotalPackages  int    `json:"total_package" validate:"gte=0"`
	PackageName    string `json:"package_name"`
}

// StatusComplete is the poll status signalling a finished generation
const StatusComplete = "complete"

// Complete reports whether generation has finished
func (s *ProgressStatus) Complete() bool {
	return s.Status == StatusComplete
}

// Progress returns the package progress carried by the status
func (s *ProgressStatus) Progress() Progress {
	return Progress{
		CurrentPackage: s.CurrentPackage,
		TotalPackages:  s.TotalPackages,
		PackageName:    s.PackageName,
	}
}

// GenerationRequest is the body of a generation request
type GenerationRequest struct {
	RevisionList []string `json:"revision_list"`
}

// GenerationResponse carries the progress token of a started generation
type GenerationResponse struct {
	ProgressKey string `json:"progress_key" validate:"required"`
}

// ProgressRequest is the body of a progress poll
type ProgressRequest struct {
	Input string `json:"input"`
}
