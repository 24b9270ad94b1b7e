package monitoring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"validation-viewer/core/models"
)

// EventSink persists lookup events
type EventSink interface {
	CreateLookupEvent(ctx context.Context, event *models.LookupEvent) error
}

// EventTracker records every phase transition of every lookup to an EventSink.
// Observer calls never block on the sink; events are written by Start.
type EventTracker struct {
	sink   EventSink
	logger *slog.Logger
	queue  chan models.LookupEvent

	mu        sync.Mutex
	lastPhase map[string]models.Phase // by run
	dropped   int
}

// NewEventTracker creates a new event tracker with a bounded queue
func NewEventTracker(sink EventSink, queueSize int, logger *slog.Logger) *EventTracker {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventTracker{
		sink:      sink,
		logger:    logger,
		queue:     make(chan models.LookupEvent, queueSize),
		lastPhase: make(map[string]models.Phase),
	}
}

// Start writes queued events until ctx is done, then flushes what is left
func (et *EventTracker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			et.flush()
			return
		case event := <-et.queue:
			et.write(ctx, event)
		}
	}
}

func (et *EventTracker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-et.queue:
			et.write(ctx, event)
		default:
			return
		}
	}
}

func (et *EventTracker) write(ctx context.Context, event models.LookupEvent) {
	if err := et.sink.CreateLookupEvent(ctx, &event); err != nil {
		et.logger.Warn("failed to record lookup event", "key", event.Key, "phase", event.ToPhase, "error", err)
	}
}

// PhaseChanged queues a transition event
func (et *EventTracker) PhaseChanged(job models.GenerationJob) {
	et.mu.Lock()
	event := models.LookupEvent{
		Key:     job.Key,
		At:      time.Now(),
		ToPhase: job.Phase,
		MetaJSON: map[string]interface{}{
			"run_id":    job.ID,
			"polls":     job.Polls,
			"revisions": job.Revisions,
		},
	}
	run := runKey(job)
	if from, ok := et.lastPhase[run]; ok {
		event.FromPhase = &from
	}
	if job.Phase.IsTerminal() {
		delete(et.lastPhase, run)
	} else {
		et.lastPhase[run] = job.Phase
	}
	if job.Err != nil {
		event.Reason = job.Err.Error()
	}
	et.mu.Unlock()

	select {
	case et.queue <- event:
	default:
		et.mu.Lock()
		et.dropped++
		et.mu.Unlock()
		et.logger.Warn("lookup event queue full, dropping event", "key", job.Key, "phase", job.Phase)
	}
}

// runKey identifies the run a job belongs to; jobs without an id fall back to key and start time
func runKey(job models.GenerationJob) string {
	if job.ID != "" {
		return job.ID
	}
	return job.Key + "@" + job.StartedAt.Format(time.RFC3339Nano)
}

// ProgressUpdated is a no-op; progress is not persisted
func (et *EventTracker) ProgressUpdated(job models.GenerationJob) {}

// Dropped returns the number of events discarded because the queue was full
func (et *EventTracker) Dropped() int {
	et.mu.Lock()
	defer et.mu.Unlock()
	return et.dropped
}
