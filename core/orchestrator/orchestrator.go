package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"validation-viewer/core/models"
	"validation-viewer/core/monitoring"

	"github.com/google/uuid"
)

// Backend is the contract of the comparison generation backend
type Backend interface {
	// FetchComparison returns models.ErrArtifactNotFound when no artifact exists for key
	FetchComparison(ctx context.Context, key string) (*models.ComparisonArtifact, error)
	RequestComparison(ctx context.Context, revisions []string) (string, error)
	// PollProgress returns a nil status while the backend has no bookkeeping yet
	PollProgress(ctx context.Context, token string) (*models.ProgressStatus, error)
}

// Observer is notified as a lookup advances
type Observer interface {
	PhaseChanged(job models.GenerationJob)
	ProgressUpdated(job models.GenerationJob)
}

// Observers fans notifications out to several observers
type Observers []Observer

// PhaseChanged notifies every observer
func (o Observers) PhaseChanged(job models.GenerationJob) {
	for _, obs := range o {
		obs.PhaseChanged(job)
	}
}

// ProgressUpdated notifies every observer
func (o Observers) ProgressUpdated(job models.GenerationJob) {
	for _, obs := range o {
		obs.ProgressUpdated(job)
	}
}

// Options configures polling behaviour
type Options struct {
	PollInterval    time.Duration
	PollTimeout     time.Duration
	MaxPollFailures int
	Logger          *slog.Logger
}

// DefaultOptions returns a one second poll interval with bounded transient retries
func DefaultOptions() Options {
	return Options{
		PollInterval:    time.Second,
		PollTimeout:     800 * time.Millisecond,
		MaxPollFailures: 30,
	}
}

// Orchestrator looks up comparison artifacts and drives their generation when missing
type Orchestrator struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
}

// New creates a new orchestrator
func New(backend Backend, opts Options) (*Orchestrator, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", models.ErrInvalidConfig)
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", models.ErrInvalidConfig)
	}
	if opts.PollTimeout <= 0 || opts.PollTimeout >= opts.PollInterval {
		return nil, fmt.Errorf("%w: poll timeout %s must be positive and shorter than the poll interval %s",
			models.ErrInvalidConfig, opts.PollTimeout, opts.PollInterval)
	}
	if opts.MaxPollFailures <= 0 {
		opts.MaxPollFailures = DefaultOptions().MaxPollFailures
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{backend: backend, opts: opts, logger: logger}, nil
}

// Run resolves the artifact for key, generating it first if the backend has none.
//
// Network calls for one run are strictly sequential. Canceling ctx stops the
// run before its next network call or timer tick; the run then reports
// models.PhaseCanceled and returns the context error.
func (o *Orchestrator) Run(ctx context.Context, key string, revisions []string, obs Observer) (*models.ComparisonArtifact, error) {
	if key == "" {
		return nil, &models.UserInputError{Err: models.ErrNoComparison}
	}
	if obs == nil {
		obs = Observers(nil)
	}

	r := &run{
		o:   o,
		obs: obs,
		job: models.GenerationJob{
			ID:        uuid.NewString(),
			Key:       key,
			Revisions: append([]string(nil), revisions...),
			Phase:     models.PhaseFetching,
			StartedAt: time.Now(),
		},
	}

	monitoring.LookupStarted()
	r.obs.PhaseChanged(r.job)
	artifact, err := r.execute(ctx)
	monitoring.LookupFinished(string(r.job.Phase))
	return artifact, err
}

// run is the state of one lookup
type run struct {
	o           *Orchestrator
	obs         Observer
	job         models.GenerationJob
	requestedAt time.Time
}

func (r *run) execute(ctx context.Context) (*models.ComparisonArtifact, error) {
	artifact, err := r.fetch(ctx)
	switch {
	case err == nil:
		return artifact, r.advance(models.PhaseFound)
	case errors.Is(err, models.ErrArtifactNotFound) && ctx.Err() == nil:
		if err := r.advance(models.PhaseMissing); err != nil {
			return nil, err
		}
	default:
		return nil, r.fail(ctx, fmt.Errorf("%w: %w", models.ErrArtifactFetchFailed, err))
	}

	if err := r.request(ctx); err != nil {
		return nil, err
	}
	if err := r.poll(ctx); err != nil {
		return nil, err
	}

	// generation finished: fetch exactly once more
	if err := r.advance(models.PhaseFetching); err != nil {
		return nil, err
	}
	artifact, err = r.fetch(ctx)
	if err != nil {
		return nil, r.fail(ctx, fmt.Errorf("%w: %w", models.ErrArtifactFetchFailed, err))
	}
	return artifact, r.advance(models.PhaseFound)
}

func (r *run) fetch(ctx context.Context) (*models.ComparisonArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	artifact, err := r.o.backend.FetchComparison(ctx, r.job.Key)
	switch {
	case err == nil:
		monitoring.RecordFetch("found")
	case errors.Is(err, models.ErrArtifactNotFound):
		monitoring.RecordFetch("missing")
	default:
		monitoring.RecordFetch("error")
	}
	return artifact, err
}

func (r *run) request(ctx context.Context) error {
	if err := r.advance(models.PhaseRequesting); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return r.fail(ctx, err)
	}

	r.o.logger.Info("requesting comparison generation", "key", r.job.Key, "revisions", r.job.Revisions)
	token, err := r.o.backend.RequestComparison(ctx, r.job.Revisions)
	if err != nil {
		monitoring.RecordGenerationRequest("error")
		return r.fail(ctx, fmt.Errorf("%w: %w", models.ErrGenerationFailed, err))
	}
	monitoring.RecordGenerationRequest("accepted")

	r.job.Token = token
	r.requestedAt = time.Now()
	return r.advance(models.PhaseRequested)
}

// poll polls the progress token until the backend reports completion.
// The first poll fires immediately, later ones after the poll interval.
func (r *run) poll(ctx context.Context) error {
	if err := r.advance(models.PhasePolling); err != nil {
		return err
	}

	var delay time.Duration
	for {
		if err := wait(ctx, delay); err != nil {
			return r.fail(ctx, err)
		}
		delay = r.o.opts.PollInterval

		status, err := r.pollOnce(ctx)
		r.job.Polls++
		if err != nil {
			if ctx.Err() != nil || models.IsDataShape(err) {
				return r.fail(ctx, fmt.Errorf("%w: %w", models.ErrGenerationFailed, err))
			}
			monitoring.RecordPoll("transport_error")
			r.job.Failures++
			r.o.logger.Warn("progress poll failed, retrying",
				"key", r.job.Key,
				"attempt", r.job.Failures,
				"max_attempts", r.o.opts.MaxPollFailures,
				"error", err,
			)
			if r.job.Failures >= r.o.opts.MaxPollFailures {
				return r.fail(ctx, fmt.Errorf("%w: %d consecutive poll failures: %w",
					models.ErrGenerationFailed, r.job.Failures, err))
			}
			continue
		}
		r.job.Failures = 0

		switch {
		case status == nil:
			monitoring.RecordPoll("no_status")
		case status.Complete():
			monitoring.RecordPoll("complete")
			monitoring.RecordGenerationDuration(time.Since(r.requestedAt))
			if err := r.advance(models.PhaseComplete); err != nil {
				return err
			}
			r.obs.ProgressUpdated(r.job)
			return nil
		default:
			monitoring.RecordPoll("in_progress")
			r.job.Progress = status.Progress()
			r.obs.ProgressUpdated(r.job)
		}
	}
}

func (r *run) pollOnce(ctx context.Context) (*models.ProgressStatus, error) {
	pctx, cancel := context.WithTimeout(ctx, r.o.opts.PollTimeout)
	defer cancel()
	return r.o.backend.PollProgress(pctx, r.job.Token)
}

// advance moves the job to the next phase and notifies observers
func (r *run) advance(to models.Phase) error {
	if err := transition(&r.job, to); err != nil {
		return err
	}
	r.obs.PhaseChanged(r.job)
	return nil
}

// fail ends the run in ERROR, or in CANCELED if ctx is done
func (r *run) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.job.Err = ctxErr
		if tErr := r.advance(models.PhaseCanceled); tErr != nil {
			return tErr
		}
		return ctxErr
	}
	r.job.Err = err
	if tErr := r.advance(models.PhaseError); tErr != nil {
		return tErr
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
