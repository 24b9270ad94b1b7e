package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotFound is returned by backends when no value is stored for a key
var ErrNotFound = errors.New("preference not found")

// DefaultPrefix namespaces every stored preference key
const DefaultPrefix = "validation_config_"

// Durable preference names
const (
	NameRevisions     = "revisions"
	NameReference     = "reference"
	NameReferenceMode = "reference_mode"
	NameMode          = "mode"
)

// Session preference names
const (
	NameShowOverview    = "show_overview"
	NameShowExpertPlots = "show_expert_plots"
	NamePackage         = "package"
)

// Scope selects where a preference lives
type Scope string

const (
	// ScopeDurable survives restarts and is shared by all sessions of a client
	ScopeDurable Scope = "durable"
	// ScopeSession lives as long as one viewer session
	ScopeSession Scope = "session"
)

// ParseScope validates a scope name
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeDurable, ScopeSession:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown preference scope %q", s)
	}
}

// Backend persists encoded preference values per owner
type Backend interface {
	// Get returns ErrNotFound when nothing is stored for key
	Get(ctx context.Context, owner, key string) (string, error)
	Set(ctx context.Context, owner, key, value string) error
	Delete(ctx context.Context, owner, key string) error
}

// Lister is implemented by backends that can enumerate an owner's values
type Lister interface {
	ListOwner(ctx context.Context, owner string) (map[string]string, error)
}

// Dropper is implemented by backends that can discard an owner at once
type Dropper interface {
	DropOwner(owner string)
}

// ErrListUnsupported is returned by List when the backend cannot enumerate values
var ErrListUnsupported = errors.New("preference backend cannot list values")

// Store reads and writes preferences for one client and one session
type Store struct {
	durable   Backend
	session   Backend
	clientID  string
	sessionID string
	prefix    string
	logger    *slog.Logger
}

// StoreConfig binds a Store to its backends and owners
type StoreConfig struct {
	Durable   Backend
	Session   Backend
	ClientID  string
	SessionID string
	Prefix    string
	Logger    *slog.Logger
}

// NewStore creates a new preference store
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Durable == nil || cfg.Session == nil {
		return nil, errors.New("preference store needs a durable and a session backend")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("preference store needs a client id")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		durable:   cfg.Durable,
		session:   cfg.Session,
		clientID:  cfg.ClientID,
		sessionID: cfg.SessionID,
		prefix:    cfg.Prefix,
		logger:    cfg.Logger,
	}, nil
}

// Key returns the namespaced storage key for name
func (s *Store) Key(name string) string {
	return s.prefix + name
}

func (s *Store) sessionOwner() string {
	return s.clientID + "/" + s.sessionID
}

func (s *Store) backend(scope Scope) (Backend, string, error) {
	switch scope {
	case ScopeDurable:
		return s.durable, s.clientID, nil
	case ScopeSession:
		return s.session, s.sessionOwner(), nil
	default:
		return nil, "", fmt.Errorf("unknown preference scope %q", scope)
	}
}

// Preserve stores value under name in scope
func (s *Store) Preserve(ctx context.Context, scope Scope, name string, value Value) error {
	b, owner, err := s.backend(scope)
	if err != nil {
		return err
	}
	if err := b.Set(ctx, owner, s.Key(name), value.Encode()); err != nil {
		return fmt.Errorf("failed to preserve %s preference %q: %w", scope, name, err)
	}
	return nil
}

// Recover loads the value stored under name in scope.
// The boolean is false when nothing was stored.
func (s *Store) Recover(ctx context.Context, scope Scope, name string) (Value, bool, error) {
	b, owner, err := s.backend(scope)
	if err != nil {
		return Value{}, false, err
	}
	raw, err := b.Get(ctx, owner, s.Key(name))
	if errors.Is(err, ErrNotFound) {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, fmt.Errorf("failed to recover %s preference %q: %w", scope, name, err)
	}
	return Decode(raw), true, nil
}

// RecoverOr loads a preference, falling back to def when missing or unreadable
func (s *Store) RecoverOr(ctx context.Context, scope Scope, name string, def Value) Value {
	v, ok, err := s.Recover(ctx, scope, name)
	if err != nil {
		s.logger.Warn("preference unavailable, using default", "scope", scope, "name", name, "error", err)
		return def
	}
	if !ok {
		return def
	}
	return v
}

// Forget removes name from scope
func (s *Store) Forget(ctx context.Context, scope Scope, name string) error {
	b, owner, err := s.backend(scope)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, owner, s.Key(name)); err != nil {
		return fmt.Errorf("failed to forget %s preference %q: %w", scope, name, err)
	}
	return nil
}

// List returns the preferences stored in scope by name. Keys outside the
// store's prefix belong to other applications and are skipped.
func (s *Store) List(ctx context.Context, scope Scope) (map[string]Value, error) {
	b, owner, err := s.backend(scope)
	if err != nil {
		return nil, err
	}
	lister, ok := b.(Lister)
	if !ok {
		return nil, fmt.Errorf("%w: %s scope", ErrListUnsupported, scope)
	}
	raw, err := lister.ListOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s preferences: %w", scope, err)
	}
	values := make(map[string]Value, len(raw))
	for key, v := range raw {
		if name, ok := strings.CutPrefix(key, s.prefix); ok {
			values[name] = Decode(v)
		}
	}
	return values, nil
}

// DropSession discards every session-scoped preference when the session
// backend supports it
func (s *Store) DropSession() {
	if d, ok := s.session.(Dropper); ok {
		d.DropOwner(s.sessionOwner())
	}
}
