package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/feiralabs/feira/internal/bus"
	"github.com/feiralabs/feira/internal/store"
)

// ErrNoSession is returned when no session is persisted. Every
// authenticated operation treats it as a terminal precondition
// failure: fail fast, no network call, redirect to login.
var ErrNoSession = errors.New("no active session")

const kvKey = "session"

// Store owns the persisted session record: a single key in the local
// store holding the JSON-serialized session. The decoded value is
// cached in memory after the first load.
type Store struct {
	mu     sync.Mutex
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger

	cached *Session
	loaded bool
}

// NewStore creates a session store backed by the local db.
func NewStore(db *store.DB, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, bus: b, logger: logger}
}

// Load returns the current session, reading the persisted record on
// first use. Returns ErrNoSession when none exists. A record that no
// longer parses is cleared so the client is forced back to login
// instead of limping along with corrupt state.
func (s *Store) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	if s.cached == nil {
		return nil, ErrNoSession
	}
	out := *s.cached
	return &out, nil
}

// Save persists the session, overwriting any existing record.
func (s *Store) Save(sess *Session) error {
	if sess == nil || sess.Token == "" {
		return errors.New("session must carry a token")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	if err := s.db.SetValue(kvKey, string(data)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	cp := *sess
	s.cached = &cp
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("session saved", zap.String("user_id", sess.ID), zap.String("username", sess.Username))
	if s.bus != nil {
		s.bus.Emit("session.saved", sess.ID)
	}
	return nil
}

// Update merges the partial into the existing session and re-persists.
// Returns ErrNoSession when there is nothing to update.
func (s *Store) Update(p Partial) (*Session, error) {
	s.mu.Lock()
	if err := s.ensureLoaded(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.cached == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}

	merged := *s.cached
	if p.Username != nil {
		merged.Username = *p.Username
	}
	if p.Token != nil {
		merged.Token = *p.Token
	}
	if p.DisplayName != nil {
		merged.DisplayName = *p.DisplayName
	}
	if p.AvatarURL != nil {
		merged.AvatarURL = *p.AvatarURL
	}
	if p.Email != nil {
		merged.Email = *p.Email
	}
	if p.Followers != nil {
		merged.Followers = *p.Followers
	}
	if p.Following != nil {
		merged.Following = *p.Following
	}

	data, err := json.Marshal(&merged)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := s.db.SetValue(kvKey, string(data)); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s.cached = &merged
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Emit("session.updated", merged.ID)
	}
	out := merged
	return &out, nil
}

// Clear removes the session. Idempotent.
func (s *Store) Clear() error {
	s.mu.Lock()
	if err := s.db.DeleteValue(kvKey); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clear session: %w", err)
	}
	had := s.cached != nil
	s.cached = nil
	s.loaded = true
	s.mu.Unlock()

	if had {
		s.logger.Info("session cleared")
		if s.bus != nil {
			s.bus.Emit("session.cleared", nil)
		}
	}
	return nil
}

// ensureLoaded reads the persisted record once. Caller holds s.mu.
func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	value, ok, err := s.db.GetValue(kvKey)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if !ok {
		s.cached = nil
		s.loaded = true
		return nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(value), &sess); err != nil {
		// Corrupt record: drop it and force re-authentication.
		s.logger.Warn("clearing corrupt session record", zap.Error(err))
		_ = s.db.DeleteValue(kvKey)
		s.cached = nil
		s.loaded = true
		return fmt.Errorf("corrupt session record: %w", err)
	}

	s.cached = &sess
	s.loaded = true
	return nil
}
