package monitoring

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"validation-viewer/core/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	events []models.LookupEvent
}

func (s *memorySink) CreateLookupEvent(ctx context.Context, event *models.LookupEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *memorySink) snapshot() []models.LookupEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LookupEvent(nil), s.events...)
}

func TestEventTracker_RecordsTransitions(t *testing.T) {
	sink := &memorySink{}
	et := NewEventTracker(sink, 16, nil)

	job := models.GenerationJob{Key: "reference_build-7", Revisions: []string{"reference", "build-7"}}
	for _, phase := range []models.Phase{models.PhaseFetching, models.PhaseMissing, models.PhaseRequesting} {
		job.Phase = phase
		et.PhaseChanged(job)
	}
	job.Phase = models.PhaseError
	job.Err = errors.New("backend down")
	et.PhaseChanged(job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		et.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	events := sink.snapshot()
	assert.Nil(t, events[0].FromPhase)
	require.NotNil(t, events[1].FromPhase)
	assert.Equal(t, models.PhaseFetching, *events[1].FromPhase)
	assert.Equal(t, models.PhaseMissing, events[1].ToPhase)
	assert.Equal(t, "backend down", events[3].Reason)

	// a terminal phase resets the history of the key
	job.Phase = models.PhaseFetching
	job.Err = nil
	et.PhaseChanged(job)
	et.flush()
	events = sink.snapshot()
	assert.Nil(t, events[len(events)-1].FromPhase)
}

func TestEventTracker_DropsWhenQueueFull(t *testing.T) {
	et := NewEventTracker(&memorySink{}, 1, nil)
	job := models.GenerationJob{Key: "a_b", Phase: models.PhaseFetching}
	et.PhaseChanged(job)
	et.PhaseChanged(job)
	assert.Equal(t, 1, et.Dropped())
}

func TestJobMonitor_LogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	jm := NewJobMonitor(logger)

	jm.ProgressUpdated(models.GenerationJob{
		Key:      "a_b",
		Phase:    models.PhasePolling,
		Progress: models.Progress{CurrentPackage: 2, TotalPackages: 5, PackageName: "ecl"},
	})
	jm.PhaseChanged(models.GenerationJob{Key: "a_b", Phase: models.PhaseError, Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "package=ecl")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "error=boom")
}

func TestEventTracker_ConcurrentRunsOfOneKey(t *testing.T) {
	sink := &memorySink{}
	et := NewEventTracker(sink, 16, nil)

	a := models.GenerationJob{ID: "run-a", Key: "reference_build-7"}
	b := models.GenerationJob{ID: "run-b", Key: "reference_build-7"}
	for _, step := range []struct {
		job   *models.GenerationJob
		phase models.Phase
	}{
		{&a, models.PhaseFetching},
		{&b, models.PhaseFetching},
		{&a, models.PhaseMissing},
		{&b, models.PhaseFound},
		{&a, models.PhaseRequesting},
	} {
		step.job.Phase = step.phase
		et.PhaseChanged(*step.job)
	}
	et.flush()

	events := sink.snapshot()
	require.Len(t, events, 5)
	from := func(i int) models.Phase {
		require.NotNil(t, events[i].FromPhase, "event %d", i)
		return *events[i].FromPhase
	}
	assert.Nil(t, events[0].FromPhase)
	assert.Nil(t, events[1].FromPhase)
	assert.Equal(t, models.PhaseFetching, from(2))
	assert.Equal(t, models.PhaseFetching, from(3))
	assert.Equal(t, models.PhaseMissing, from(4))
	assert.Equal(t, "run-a", events[4].MetaJSON["run_id"])
}
