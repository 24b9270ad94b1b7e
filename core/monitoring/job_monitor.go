package monitoring

import (
	"log/slog"

	"validation-viewer/core/models"
)

// JobMonitor logs the lifecycle of comparison lookups
type JobMonitor struct {
	logger *slog.Logger
}

// NewJobMonitor creates a new job monitor
func NewJobMonitor(logger *slog.Logger) *JobMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobMonitor{logger: logger}
}

// PhaseChanged logs a phase transition
func (jm *JobMonitor) PhaseChanged(job models.GenerationJob) {
	attrs := []any{
		"key", job.Key,
		"phase", job.Phase,
	}
	if job.Token != "" {
		attrs = append(attrs, "token_present", true)
	}

	switch job.Phase {
	case models.PhaseError:
		jm.logger.Error("comparison lookup failed", append(attrs, "error", job.Err)...)
	case models.PhaseCanceled:
		jm.logger.Info("comparison lookup superseded", attrs...)
	default:
		jm.logger.Debug("comparison lookup phase", attrs...)
	}
}

// ProgressUpdated logs generation progress
func (jm *JobMonitor) ProgressUpdated(job models.GenerationJob) {
	jm.logger.Info("comparison generation progress",
		"key", job.Key,
		"phase", job.Phase,
		"package", job.Progress.PackageName,
		"current", job.Progress.CurrentPackage,
		"total", job.Progress.TotalPackages,
		"polls", job.Polls,
	)
}
