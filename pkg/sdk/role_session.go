package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ReadSession resolves the identity a page expecting role should use.
//
// Order: the role's own slot, then the current slot when its role matches.
// A current slot for another role yields *RoleMismatchError; nothing at all
// yields ErrNoSession.
func ReadSession(ctx context.Context, store SessionStore, role Role) (Identity, error) {
	rec, err := store.Load(ctx, role.Namespace())
	switch {
	case err == nil:
		return rec.Identity, nil
	case !errors.Is(err, ErrNoSession):
		return Identity{}, fmt.Errorf("load %s session: %w", role, err)
	}

	rec, err = store.Load(ctx, SlotCurrent)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return Identity{}, ErrNoSession
		}
		return Identity{}, fmt.Errorf("load current session: %w", err)
	}
	if rec.Identity.Role != role {
		return Identity{}, &RoleMismatchError{Expected: role, Actual: rec.Identity.Role}
	}
	return rec.Identity, nil
}

// SessionUpdate is pushed when a role's session changes elsewhere.
// A nil Identity means the session was cleared.
type SessionUpdate struct {
	Role     Role
	Identity *Identity
}

// SessionBus fans session updates out to subscribers.
type SessionBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(SessionUpdate)
}

// NewSessionBus creates an empty bus.
func NewSessionBus() *SessionBus {
	return &SessionBus{subs: make(map[int]func(SessionUpdate))}
}

// Subscribe registers fn and returns a function removing it.
func (b *SessionBus) Subscribe(fn func(SessionUpdate)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers u to every subscriber synchronously.
func (b *SessionBus) Publish(u SessionUpdate) {
	b.mu.RLock()
	fns := make([]func(SessionUpdate), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
}

// RoleSessionState is the view a role-scoped page renders from.
type RoleSessionState struct {
	Identity *Identity
	Loading  bool
	Err      error
}

// RoleSession tracks the session for one expected role.
type RoleSession struct {
	store SessionStore
	role  Role

	mu    sync.RWMutex
	state RoleSessionState
}

// NewRoleSession creates a reader for role. Call Load to populate it.
func NewRoleSession(store SessionStore, role Role) *RoleSession {
	return &RoleSession{
		store: store,
		role:  role,
		state: RoleSessionState{Loading: true},
	}
}

// Role returns the expected role.
func (s *RoleSession) Role() Role { return s.role }

// Load reads the store and records the outcome.
func (s *RoleSession) Load(ctx context.Context) RoleSessionState {
	identity, err := ReadSession(ctx, s.store, s.role)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = RoleSessionState{Err: err}
	} else {
		s.state = RoleSessionState{Identity: &identity}
	}
	return s.state
}

// State returns the current view.
func (s *RoleSession) State() RoleSessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// HandleUpdate applies u when it targets this session's role and reports
// whether it did.
func (s *RoleSession) HandleUpdate(u SessionUpdate) bool {
	if u.Role != s.role {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Identity == nil {
		s.state = RoleSessionState{Err: ErrNoSession}
		return true
	}
	identity := u.Identity.Clone()
	s.state = RoleSessionState{Identity: &identity}
	return true
}

// Follow subscribes the session to bus updates.
func (s *RoleSession) Follow(bus *SessionBus) func() {
	return bus.Subscribe(func(u SessionUpdate) { s.HandleUpdate(u) })
}
