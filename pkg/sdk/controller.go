package sdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Status is the lifecycle state of the controller.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusHydrating     Status = "hydrating"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
)

// IdentityState is the identity view handed to the rest of the application.
type IdentityState struct {
	Status   Status
	Identity *Identity
	Loading  bool
	Err      error
	Warnings []Warning
}

// ControllerDependencies are the collaborators a Controller orchestrates.
// Store is required; the rest are optional.
type ControllerDependencies struct {
	Backend  Backend
	Store    SessionStore
	Detector *Detector
	Bus      *SessionBus
}

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

// WithControllerCatalog replaces the compiled-in demo catalog.
func WithControllerCatalog(c *DemoCatalog) ControllerOption {
	return func(ctl *Controller) { ctl.catalog = c }
}

// WithControllerClock sets the clock used for session timestamps.
func WithControllerClock(c clock.Clock) ControllerOption {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(l zerolog.Logger) ControllerOption {
	return func(ctl *Controller) { ctl.log = l }
}

// WithResolver overrides the resolver built from the dependencies.
func WithResolver(r *Resolver) ControllerOption {
	return func(ctl *Controller) { ctl.resolver = r }
}

// Controller owns the session lifecycle: hydration at startup, sign-in and
// sign-out. It is the only writer of the current slot besides the resolver
// it drives.
type Controller struct {
	backend  Backend
	store    SessionStore
	detector *Detector
	bus      *SessionBus
	resolver *Resolver
	catalog  *DemoCatalog
	clock    clock.Clock
	log      zerolog.Logger

	mu      sync.Mutex
	state   IdentityState
	nextSub int
	subs    map[int]func(IdentityState)
}

// NewController wires a controller. The resolver shares the controller's
// backend, store, catalog, clock and logger unless WithResolver is given.
func NewController(deps ControllerDependencies, opts ...ControllerOption) (*Controller, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	c := &Controller{
		backend:  deps.Backend,
		store:    deps.Store,
		detector: deps.Detector,
		bus:      deps.Bus,
		catalog:  DefaultDemoCatalog(),
		clock:    clock.New(),
		log:      zerolog.Nop(),
		state:    IdentityState{Status: StatusUninitialized},
		subs:     make(map[int]func(IdentityState)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = NewResolver(c.backend, c.store,
			WithResolverCatalog(c.catalog),
			WithResolverClock(c.clock),
			WithResolverLogger(c.log),
		)
	}
	return c, nil
}

// State returns a snapshot of the current identity view.
func (c *Controller) State() IdentityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to be called after every state transition.
func (c *Controller) Subscribe(fn func(IdentityState)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Hydrate restores the session persisted by a previous run.
func (c *Controller) Hydrate(ctx context.Context) IdentityState {
	c.update(func(s *IdentityState) {
		s.Status = StatusHydrating
		s.Loading = true
	})

	rec, err := c.store.Load(ctx, SlotCurrent)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			c.log.Warn().Err(err).Msg("failed to read current session, starting anonymous")
		}
		return c.update(func(s *IdentityState) {
			*s = IdentityState{Status: StatusAnonymous}
		})
	}

	// Step 1: Demo accounts are adopted without touching the backend
	identity := rec.Identity
	if c.catalog.Contains(identity) {
		return c.setAuthenticated(identity, nil)
	}

	// Step 2: Silent validation; a failure keeps the cached record
	if merged, ok := c.validate(ctx, identity); ok {
		identity = merged
		rec.Identity = merged
		if err := c.saveBoth(ctx, rec); err != nil {
			c.log.Warn().Err(err).Msg("failed to persist validated session")
		}
	}
	return c.setAuthenticated(identity, nil)
}

func (c *Controller) validate(ctx context.Context, cached Identity) (Identity, bool) {
	if c.backend == nil {
		return cached, false
	}
	ctx, cancel := withRemoteTimeout(ctx)
	defer cancel()

	principal, err := c.backend.GetCurrentPrincipal(ctx)
	if err != nil {
		c.log.Info().Err(err).Str("identity", cached.ID).Msg("backend session validation failed, keeping cached session")
		return cached, false
	}
	if principal == nil {
		c.log.Info().Str("identity", cached.ID).Msg("no backend session, keeping cached session")
		return cached, false
	}
	if !samePerson(cached, *principal) {
		c.log.Warn().Str("identity", cached.ID).Str("principal", principal.ID).Msg("backend session belongs to another account, keeping cached session")
		return cached, false
	}
	return mergePrincipal(cached, *principal), true
}

func samePerson(cached Identity, p Principal) bool {
	if p.ID != "" && p.ID == cached.ID {
		return true
	}
	return cached.Email != "" && strings.EqualFold(cached.Email, p.Email)
}

// mergePrincipal refreshes mutable display fields. ID and role stay as cached.
func mergePrincipal(cached Identity, p Principal) Identity {
	out := cached.Clone()
	if p.Name != "" {
		out.Name = p.Name
	}
	if p.Phone != "" {
		out.Phone = p.Phone
	}
	if p.Email != "" {
		out.Email = normalizeIdentifier(p.Email)
	}
	if p.SchoolID != "" && p.SchoolID != out.SchoolID {
		out.SchoolID = p.SchoolID
		out.SchoolName = ""
	}
	return out
}

// SignIn resolves the credentials and, on success, authenticates the
// controller. On failure the previous identity and status are kept and the
// error is recorded on the state.
func (c *Controller) SignIn(ctx context.Context, identifier, secret string) (*Result, error) {
	c.update(func(s *IdentityState) {
		s.Loading = true
		s.Err = nil
	})

	res, err := c.resolver.Resolve(ctx, identifier, secret)
	if err != nil {
		c.update(func(s *IdentityState) {
			s.Loading = false
			s.Err = err
		})
		return nil, err
	}

	identity := res.Identity
	if err := c.saveRoleSlot(ctx, identity); err != nil {
		res.warn(StepPersistSession, err)
	}
	if c.detector != nil {
		c.detector.ClearCache()
	}

	c.setAuthenticated(identity, res.Warnings)
	if c.bus != nil {
		published := identity.Clone()
		c.bus.Publish(SessionUpdate{Role: identity.Role, Identity: &published})
	}
	return res, nil
}

// SignOut clears every session slot and the mode cache, tells the backend on
// a best-effort basis and always ends anonymous. Only a local storage
// failure is returned.
func (c *Controller) SignOut(ctx context.Context) error {
	storeErr := c.store.Clear(ctx)
	if storeErr != nil {
		c.log.Error().Err(storeErr).Msg("failed to clear session store")
		storeErr = fmt.Errorf("clear session store: %w", storeErr)
	}
	if c.detector != nil {
		c.detector.ClearCache()
	}
	if c.backend != nil {
		bctx, cancel := withRemoteTimeout(ctx)
		if err := c.backend.SignOut(bctx); err != nil {
			c.log.Warn().Err(err).Msg("backend sign-out failed")
		}
		cancel()
	}

	c.update(func(s *IdentityState) {
		*s = IdentityState{Status: StatusAnonymous}
	})
	if c.bus != nil {
		for _, r := range Roles {
			c.bus.Publish(SessionUpdate{Role: r})
		}
	}
	return storeErr
}

// saveRoleSlot mirrors the current record into the role's own slot so
// several roles can stay signed in side by side.
func (c *Controller) saveRoleSlot(ctx context.Context, identity Identity) error {
	rec, err := c.store.Load(ctx, SlotCurrent)
	if err != nil || rec.Identity.ID != identity.ID {
		rec, err = NewSessionRecord(identity, c.clock.Now())
		if err != nil {
			return err
		}
	}
	return c.store.Save(ctx, identity.Role.Namespace(), rec)
}

func (c *Controller) saveBoth(ctx context.Context, rec *SessionRecord) error {
	if err := c.store.Save(ctx, SlotCurrent, rec); err != nil {
		return err
	}
	return c.store.Save(ctx, rec.Identity.Role.Namespace(), rec)
}

func (c *Controller) setAuthenticated(identity Identity, warnings []Warning) IdentityState {
	return c.update(func(s *IdentityState) {
		id := identity.Clone()
		*s = IdentityState{
			Status:   StatusAuthenticated,
			Identity: &id,
			Warnings: warnings,
		}
	})
}

// update applies fn under the lock and notifies subscribers outside it.
func (c *Controller) update(fn func(*IdentityState)) IdentityState {
	c.mu.Lock()
	fn(&c.state)
	snapshot := c.state
	subs := make([]func(IdentityState), 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
	return snapshot
}
