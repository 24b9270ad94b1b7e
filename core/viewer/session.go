package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"validation-viewer/core/catalog"
	"validation-viewer/core/models"
	"validation-viewer/core/orchestrator"
	"validation-viewer/core/preferences"
	"validation-viewer/core/reconciler"
	"validation-viewer/core/selection"
)

// Lookup resolves the comparison artifact of a key, generating it when missing
type Lookup interface {
	Run(ctx context.Context, key string, revisions []string, obs orchestrator.Observer) (*models.ComparisonArtifact, error)
}

// Snapshot is one consistent view of a loaded comparison. It is never mutated after publication.
type Snapshot struct {
	Key        string                     `json:"key"`
	Selection  []string                   `json:"selection"`
	Reference  string                     `json:"reference"`
	Comparison *models.EnrichedComparison `json:"comparison"`
	LoadedAt   time.Time                  `json:"loaded_at"`
}

// Status describes the lookup the session is currently running or last ran
type Status struct {
	Key      string          `json:"key"`
	Phase    models.Phase    `json:"phase"`
	Progress models.Progress `json:"progress"`
	Polls    int             `json:"polls"`
	Running  bool            `json:"running"`
	Err      error           `json:"-"`
}

// Session is one viewer: a catalog, a selection and the latest loaded comparison
type Session struct {
	id        string
	clientID  string
	createdAt time.Time
	lastUsed  atomic.Int64

	catalog   *catalog.Catalog
	state     *selection.State
	prefs     *preferences.Store
	lookup    Lookup
	observers orchestrator.Observers
	logger    *slog.Logger

	base       context.Context
	cancelBase context.CancelFunc

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	status Status

	current atomic.Pointer[Snapshot]

	warning error
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// ClientID returns the id of the client owning the session
func (s *Session) ClientID() string { return s.clientID }

// Catalog returns the revision catalog loaded when the session was created
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// Warning reports a recoverable problem met while creating the session,
// such as an unknown default selection mode replaced by rbn
func (s *Session) Warning() error { return s.warning }

// Preferences returns the session's preference store
func (s *Session) Preferences() *preferences.Store { return s.prefs }

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Selected returns the selected revisions in ascending order
func (s *Session) Selected() []string {
	return s.state.Selected()
}

// ReferenceMode returns the reference mode and explicit reference
func (s *Session) ReferenceMode() (selection.ReferenceMode, string) {
	return s.state.Mode()
}

// Reference resolves the current comparison reference
func (s *Session) Reference() (string, bool) {
	return s.state.Reference()
}

// Select replaces the selection and remembers it
func (s *Session) Select(ctx context.Context, ids []string) error {
	s.touch()
	if err := s.state.SetSelected(ids); err != nil {
		return err
	}
	s.remember(ctx, preferences.NameRevisions, preferences.String(strings.Join(s.state.Selected(), selection.KeySeparator)))
	return nil
}

// SetReference switches the reference mode. Explicit mode needs a known revision.
func (s *Session) SetReference(ctx context.Context, mode selection.ReferenceMode, id string) error {
	s.touch()
	switch mode {
	case selection.ReferenceExplicit:
		if !s.catalog.Contains(id) {
			return &models.UserInputError{Value: id, Err: models.ErrUnknownRevision}
		}
		s.state.SetReference(id)
		s.remember(ctx, preferences.NameReference, preferences.String(id))
	default:
		s.state.SetAutomatic()
		s.remember(ctx, preferences.NameReference, preferences.Null())
	}
	s.remember(ctx, preferences.NameReferenceMode, preferences.String(string(mode)))
	return nil
}

// remember writes a durable preference; failures never block the viewer
func (s *Session) remember(ctx context.Context, name string, value preferences.Value) {
	if err := s.prefs.Preserve(ctx, preferences.ScopeDurable, name, value); err != nil {
		s.logger.Warn("failed to remember preference", "session", s.id, "name", name, "error", err)
	}
}

// request is a validated comparison request
type request struct {
	key       string
	revisions []string
	selected  []string
	reference string
}

func (s *Session) prepare() (request, error) {
	reference, revisions, err := s.state.Comparison()
	if err != nil {
		return request{}, err
	}
	selected := append([]string(nil), revisions...)
	sort.Strings(selected)
	return request{
		key:       strings.Join(revisions, selection.KeySeparator),
		revisions: revisions,
		selected:  selected,
		reference: reference,
	}, nil
}

// Key returns the comparison key of the current selection
func (s *Session) Key() (string, error) {
	req, err := s.prepare()
	if err != nil {
		return "", err
	}
	return req.key, nil
}

// result is the outcome of one run
type result struct {
	snapshot *Snapshot
	err      error
}

// launch supersedes any running lookup and starts a new one. A selection
// that cannot be compared still supersedes the previous lookup and is
// recorded as the session status.
func (s *Session) launch(parent context.Context) (string, <-chan result, error) {
	req, err := s.prepare()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	seq := s.seq
	if err != nil {
		s.status = Status{Phase: models.PhaseError, Err: err}
		s.mu.Unlock()
		return "", nil, err
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.status = Status{Key: req.key, Phase: models.PhaseFetching, Running: true}
	s.mu.Unlock()

	done := make(chan result, 1)
	go func() {
		defer cancel()
		done <- s.run(ctx, seq, req)
	}()
	return req.key, done, nil
}

func (s *Session) run(ctx context.Context, seq uint64, req request) result {
	obs := append(orchestrator.Observers{&statusObserver{session: s, seq: seq}}, s.observers...)
	artifact, err := s.lookup.Run(ctx, req.key, req.revisions, obs)
	if !s.isCurrent(seq) {
		return s.superseded(req, err)
	}

	var snap *Snapshot
	if err == nil {
		newest := s.catalog.Newest(req.selected)
		snap = &Snapshot{
			Key:        req.key,
			Selection:  req.selected,
			Reference:  req.reference,
			Comparison: reconciler.Reconcile(artifact, newest),
			LoadedAt:   time.Now(),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return s.superseded(req, err)
	}
	s.status.Running = false
	s.status.Err = err
	if snap != nil {
		s.current.Store(snap)
	}
	return result{snapshot: snap, err: err}
}

func (s *Session) isCurrent(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq == seq
}

// superseded reports the result of a run a newer lookup replaced; it never publishes
func (s *Session) superseded(req request, err error) result {
	s.logger.Debug("discarding superseded comparison", "session", s.id, "key", req.key)
	if err == nil {
		err = fmt.Errorf("%w: superseded by a newer lookup", context.Canceled)
	}
	return result{err: err}
}

// Start begins loading the comparison of the current selection in the background
// and returns its key. A lookup still running for an earlier selection is canceled.
func (s *Session) Start() (string, error) {
	s.touch()
	key, _, err := s.launch(s.base)
	return key, err
}

// Load loads the comparison of the current selection and waits for it.
// Canceling ctx cancels the lookup.
func (s *Session) Load(ctx context.Context) (*Snapshot, error) {
	s.touch()
	runCtx, stop := mergeCancel(ctx, s.base)
	defer stop()

	_, done, err := s.launch(runCtx)
	if err != nil {
		return nil, err
	}
	res := <-done
	return res.snapshot, res.err
}

// Current returns the last published snapshot, or nil
func (s *Session) Current() *Snapshot {
	return s.current.Load()
}

// Status returns the state of the latest lookup
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PackageView returns a package of the current comparison with unique plot ids.
// An empty name reopens the last viewed package, falling back to the first one.
func (s *Session) PackageView(ctx context.Context, name string) (*models.EnrichedPackage, error) {
	s.touch()
	snap := s.Current()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	if name == "" {
		if v, ok, _ := s.prefs.Recover(ctx, preferences.ScopeSession, preferences.NamePackage); ok {
			name, _ = v.AsString()
		}
	}
	if name == "" {
		name, _ = reconciler.DefaultPackageName(snap.Comparison)
	}

	view, err := reconciler.PackageView(snap.Comparison, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPackageNotFound, err)
	}
	if err := s.prefs.Preserve(ctx, preferences.ScopeSession, preferences.NamePackage, preferences.String(name)); err != nil {
		s.logger.Warn("failed to remember package", "session", s.id, "error", err)
	}
	return view, nil
}

// Close cancels any running lookup and drops the session-scoped preferences.
// The session must not be used afterwards.
func (s *Session) Close() {
	s.cancelBase()
	s.prefs.DropSession()
}

// Errors reported by sessions
var (
	ErrNoSnapshot      = errors.New("no comparison loaded")
	ErrPackageNotFound = errors.New("package not found")
	ErrSessionNotFound = errors.New("session not found")
)

// statusObserver mirrors lookup progress into the session status while its run is current
type statusObserver struct {
	session *Session
	seq     uint64
}

func (o *statusObserver) PhaseChanged(job models.GenerationJob) {
	o.update(job)
}

func (o *statusObserver) ProgressUpdated(job models.GenerationJob) {
	o.update(job)
}

func (o *statusObserver) update(job models.GenerationJob) {
	s := o.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != o.seq {
		return
	}
	s.status.Phase = job.Phase
	s.status.Progress = job.Progress
	s.status.Polls = job.Polls
}

// mergeCancel returns a context canceled when either a or b is done
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
