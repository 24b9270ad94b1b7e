package orchestrator

import (
	"fmt"

	"validation-viewer/core/models"
)

// allowedTransitions lists the phases reachable from each phase
var allowedTransitions = map[models.Phase][]models.Phase{
	models.PhaseFetching:   {models.PhaseFound, models.PhaseMissing, models.PhaseError, models.PhaseCanceled},
	models.PhaseMissing:    {models.PhaseRequesting, models.PhaseCanceled},
	models.PhaseRequesting: {models.PhaseRequested, models.PhaseError, models.PhaseCanceled},
	models.PhaseRequested:  {models.PhasePolling, models.PhaseCanceled},
	models.PhasePolling:    {models.PhaseComplete, models.PhaseError, models.PhaseCanceled},
	models.PhaseComplete:   {models.PhaseFetching, models.PhaseCanceled},
}

// CanTransition reports whether a lookup may move from one phase to another
func CanTransition(from, to models.Phase) bool {
	for _, p := range allowedTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// transition validates and applies a phase change on job
func transition(job *models.GenerationJob, to models.Phase) error {
	if !CanTransition(job.Phase, to) {
		return fmt.Errorf("disallowed phase transition for %q: %s -> %s", job.Key, job.Phase, to)
	}
	job.Phase = to
	return nil
}
