package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"validation-viewer/core/catalog"
	"validation-viewer/core/models"
	"validation-viewer/core/orchestrator"
	"validation-viewer/core/preferences"
	"validation-viewer/core/selection"

	"github.com/google/uuid"
)

// RevisionSource lists the revisions known to the backend
type RevisionSource interface {
	FetchRevisions(ctx context.Context) ([]models.Revision, error)
}

// ManagerConfig wires a session manager
type ManagerConfig struct {
	Revisions   RevisionSource
	Lookup      Lookup
	Durable     preferences.Backend
	Prefix      string
	DefaultMode catalog.Mode
	IdleTimeout time.Duration
	Observers   []orchestrator.Observer
	Logger      *slog.Logger
}

// Manager owns the live viewer sessions
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a new session manager
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Revisions == nil || cfg.Lookup == nil {
		return nil, fmt.Errorf("%w: revision source and lookup are required", models.ErrInvalidConfig)
	}
	if cfg.Durable == nil {
		cfg.Durable = preferences.NewMemoryBackend()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	mode, err := catalog.ParseMode(string(cfg.DefaultMode))
	if err != nil {
		cfg.Logger.Warn("unknown default selection mode, using rbn", "mode", cfg.DefaultMode)
	}
	cfg.DefaultMode = mode
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}, nil
}

// LoadCatalog fetches and classifies the backend's revisions
func (m *Manager) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	revisions, err := m.cfg.Revisions.FetchRevisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load revisions: %w", err)
	}
	return catalog.New(revisions)
}

// Create opens a session for clientID.
//
// With an empty mode the session restores the client's remembered selection
// and reference choice when they still match the catalog, and otherwise
// applies the remembered or configured default mode. A non-empty mode always
// applies that mode's default selection.
func (m *Manager) Create(ctx context.Context, clientID string, mode string) (*Session, error) {
	if clientID == "" {
		clientID = uuid.NewString()
	}
	explicitMode := mode != ""
	var modeErr error
	if explicitMode {
		if _, modeErr = catalog.ParseMode(mode); modeErr != nil {
			m.logger.Warn("unknown default selection mode, using rbn", "mode", mode, "client", clientID)
		}
	}

	cat, err := m.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	prefs, err := preferences.NewStore(preferences.StoreConfig{
		Durable:   m.cfg.Durable,
		Session:   preferences.NewMemoryBackend(),
		ClientID:  clientID,
		SessionID: id,
		Prefix:    m.cfg.Prefix,
		Logger:    m.logger,
	})
	if err != nil {
		return nil, err
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		clientID:   clientID,
		createdAt:  time.Now(),
		catalog:    cat,
		state:      selection.NewState(cat.Contains),
		prefs:      prefs,
		lookup:     m.cfg.Lookup,
		observers:  orchestrator.Observers(m.cfg.Observers),
		logger:     m.logger.With("session", id),
		base:       base,
		cancelBase: cancel,
		warning:    modeErr,
	}
	s.touch()

	restored := !explicitMode && m.restoreSelection(ctx, s)
	if !restored {
		if !explicitMode {
			mode = m.rememberedMode(ctx, s)
		}
		// unknown modes were reported above and fall back to rbn
		sel, _ := cat.DefaultSelection(catalog.Mode(mode))
		if err := s.state.SetSelected(sel); err != nil {
			cancel()
			return nil, err
		}
	}
	m.restoreReference(ctx, s)
	if explicitMode && modeErr == nil {
		s.remember(ctx, preferences.NameMode, preferences.String(mode))
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("viewer session created",
		"session", id,
		"client", clientID,
		"revisions", cat.Len(),
		"selection", s.state.Selected(),
		"restored", restored,
	)
	return s, nil
}

// restoreSelection applies the remembered selection if every revision is still known
func (m *Manager) restoreSelection(ctx context.Context, s *Session) bool {
	v := s.prefs.RecoverOr(ctx, preferences.ScopeDurable, preferences.NameRevisions, preferences.Null())
	raw, ok := v.AsString()
	if !ok || raw == "" {
		return false
	}
	ids, err := selection.ParseKey(raw, s.catalog.Contains)
	if err != nil {
		s.logger.Info("remembered selection no longer matches the catalog", "selection", raw)
		return false
	}
	return s.state.SetSelected(ids) == nil
}

func (m *Manager) rememberedMode(ctx context.Context, s *Session) string {
	v := s.prefs.RecoverOr(ctx, preferences.ScopeDurable, preferences.NameMode, preferences.Null())
	if mode, ok := v.AsString(); ok {
		if _, err := catalog.ParseMode(mode); err == nil {
			return mode
		}
	}
	return string(m.cfg.DefaultMode)
}

// restoreReference applies the remembered reference choice when its revision still exists
func (m *Manager) restoreReference(ctx context.Context, s *Session) {
	v := s.prefs.RecoverOr(ctx, preferences.ScopeDurable, preferences.NameReferenceMode, preferences.Null())
	raw, _ := v.AsString()
	mode, err := selection.ParseReferenceMode(raw)
	if err != nil || mode != selection.ReferenceExplicit {
		return
	}
	ref, _ := s.prefs.RecoverOr(ctx, preferences.ScopeDurable, preferences.NameReference, preferences.Null()).AsString()
	if s.catalog.Contains(ref) {
		s.state.SetReference(ref)
	}
}

// Get returns a live session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch()
	return s, nil
}

// Close ends a session and cancels its lookup
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Close()
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll ends every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// StartReaper closes idle sessions until ctx is done
func (m *Manager) StartReaper(ctx context.Context) {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	interval := m.cfg.IdleTimeout / 4
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.reapIdle(now); n > 0 {
				m.logger.Info("closed idle viewer sessions", "count", n)
			}
		}
	}
}

func (m *Manager) reapIdle(now time.Time) int {
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.cfg.IdleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// IsNotFound reports whether err means a session or package does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrPackageNotFound) || errors.Is(err, ErrNoSnapshot)
}
