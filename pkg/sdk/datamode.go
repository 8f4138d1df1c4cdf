package sdk

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-bexpr"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Mode says whether the client shows fabricated or real school data.
type Mode string

const (
	ModeDemo Mode = "demonstration"
	ModeLive Mode = "live"
)

// ModeTTL is how long a detection result stays valid.
const ModeTTL = 60 * time.Second

// ModeEntry is one detection result.
type ModeEntry struct {
	Mode       Mode
	Identity   *Identity
	ComputedAt time.Time
	// Degraded is set when the backend could not be reached; Err then wraps
	// ErrDetectionDegraded.
	Degraded bool
	Err      error
}

// clone copies the entry and its identity so callers cannot reach the
// cached snapshot.
func (e ModeEntry) clone() ModeEntry {
	if e.Identity != nil {
		id := e.Identity.Clone()
		e.Identity = &id
	}
	return e
}

// ModeCache holds the single process-wide detection result.
//
// Reads are lock-free. Entries are immutable once stored and are replaced
// wholesale, so readers always see a consistent snapshot.
type ModeCache struct {
	clock clock.Clock
	ttl   time.Duration

	mu         sync.Mutex // serializes writers
	entry      atomic.Pointer[ModeEntry]
	generation atomic.Uint64
}

// NewModeCache creates an empty cache. A zero ttl means ModeTTL.
func NewModeCache(c clock.Clock, ttl time.Duration) *ModeCache {
	if c == nil {
		c = clock.New()
	}
	if ttl <= 0 {
		ttl = ModeTTL
	}
	return &ModeCache{clock: c, ttl: ttl}
}

var sharedModeCache = NewModeCache(clock.New(), ModeTTL)

// SharedModeCache returns the process-wide cache used when a Detector is not
// given its own.
func SharedModeCache() *ModeCache {
	return sharedModeCache
}

// Get returns the entry while it is younger than the TTL.
func (c *ModeCache) Get() (*ModeEntry, bool) {
	e := c.entry.Load()
	if e == nil {
		return nil, false
	}
	out := e.clone()
	if c.clock.Since(e.ComputedAt) >= c.ttl {
		return &out, false
	}
	return &out, true
}

// Peek returns a copy of the last entry regardless of age.
func (c *ModeCache) Peek() *ModeEntry {
	e := c.entry.Load()
	if e == nil {
		return nil
	}
	out := e.clone()
	return &out
}

// Generation increments on every Clear.
func (c *ModeCache) Generation() uint64 {
	return c.generation.Load()
}

// Clear drops the entry and starts a new generation.
func (c *ModeCache) Clear() {
	c.mu.Lock()
	c.entry.Store(nil)
	c.generation.Add(1)
	c.mu.Unlock()
}

// store saves e unless the cache was cleared after gen was observed.
func (c *ModeCache) store(gen uint64, e ModeEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() != gen {
		return false
	}
	e = e.clone()
	c.entry.Store(&e)
	return true
}

// DemoPredicate classifies an authenticated principal as a demonstration account.
type DemoPredicate func(Principal) bool

// DefaultDemoPredicate matches demo@ and test@ addresses and the explicit demo flag.
func DefaultDemoPredicate(p Principal) bool {
	if p.Demo {
		return true
	}
	email := strings.ToLower(p.Email)
	return strings.Contains(email, "demo@") || strings.Contains(email, "test@")
}

// ExprDemoPredicate builds a predicate from a boolean expression over the
// fields id, email, phone, role and demo, e.g. `email matches "@demo\\."`.
func ExprDemoPredicate(expr string) (DemoPredicate, error) {
	eval, err := bexpr.CreateEvaluator(expr)
	if err != nil {
		return nil, fmt.Errorf("parse demo rule: %w", err)
	}
	return func(p Principal) bool {
		ok, err := eval.Evaluate(map[string]any{
			"id":    p.ID,
			"email": strings.ToLower(p.Email),
			"phone": p.Phone,
			"role":  string(p.Role),
			"demo":  p.Demo,
		})
		return err == nil && ok
	}, nil
}

// ModeState is the data-mode view handed to UI collaborators.
type ModeState struct {
	Mode      Mode
	Identity  *Identity
	IsLoading bool
	Degraded  bool
}

// Detector classifies the current session as demonstration or live.
type Detector struct {
	backend Backend
	cache   *ModeCache
	isDemo  DemoPredicate
	log     zerolog.Logger

	group   singleflight.Group
	loading atomic.Int32

	watchMu sync.Mutex
	unwatch func()
}

// DetectorOption customises a Detector.
type DetectorOption func(*Detector)

// WithModeCache uses c instead of the shared cache.
func WithModeCache(c *ModeCache) DetectorOption {
	return func(d *Detector) { d.cache = c }
}

// WithDemoPredicate replaces DefaultDemoPredicate.
func WithDemoPredicate(p DemoPredicate) DetectorOption {
	return func(d *Detector) {
		if p != nil {
			d.isDemo = p
		}
	}
}

// WithDetectorLogger sets the logger for degraded detections.
func WithDetectorLogger(l zerolog.Logger) DetectorOption {
	return func(d *Detector) { d.log = l }
}

// NewDetector creates a detector. backend may be nil, in which case every
// detection yields demonstration mode.
func NewDetector(backend Backend, opts ...DetectorOption) *Detector {
	d := &Detector{
		backend: backend,
		cache:   SharedModeCache(),
		isDemo:  DefaultDemoPredicate,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Cache returns the cache the detector writes to.
func (d *Detector) Cache() *ModeCache {
	return d.cache
}

// Detect returns the cached entry while fresh, otherwise runs one detection.
// Concurrent callers within one cache generation share a single round trip.
func (d *Detector) Detect(ctx context.Context) ModeEntry {
	if e, ok := d.cache.Get(); ok {
		return *e
	}

	gen := d.cache.Generation()
	v, _, _ := d.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		if e, ok := d.cache.Get(); ok {
			return *e, nil
		}
		d.loading.Add(1)
		defer d.loading.Add(-1)

		entry := d.compute(ctx)
		d.cache.store(gen, entry)
		return entry, nil
	})
	return v.(ModeEntry).clone()
}

// Refresh drops the cached entry and detects again.
func (d *Detector) Refresh(ctx context.Context) ModeEntry {
	d.cache.Clear()
	return d.Detect(ctx)
}

// ClearCache drops the cached entry without detecting.
func (d *Detector) ClearCache() {
	d.cache.Clear()
}

// State reports the last known mode and whether a detection is running.
func (d *Detector) State() ModeState {
	st := ModeState{Mode: ModeDemo, IsLoading: d.loading.Load() > 0}
	if e := d.cache.Peek(); e != nil {
		st.Mode = e.Mode
		st.Identity = e.Identity
		st.Degraded = e.Degraded
	}
	return st
}

// Watch re-runs detection on every backend auth-state change, ignoring the
// cache. Calling Watch again replaces the previous subscription. The
// returned function stops watching.
func (d *Detector) Watch(ctx context.Context) func() {
	if d.backend == nil {
		return func() {}
	}
	d.watchMu.Lock()
	defer d.watchMu.Unlock()
	if d.unwatch != nil {
		d.unwatch()
	}
	cancel := d.backend.OnAuthStateChange(func(ev AuthEvent) {
		d.log.Debug().Str("event", string(ev.Type)).Msg("auth state changed, re-detecting data mode")
		d.cache.Clear()
		go d.Detect(context.WithoutCancel(ctx))
	})
	d.unwatch = cancel
	return func() {
		d.watchMu.Lock()
		defer d.watchMu.Unlock()
		if d.unwatch != nil {
			d.unwatch()
			d.unwatch = nil
		}
	}
}

func (d *Detector) compute(ctx context.Context) ModeEntry {
	now := d.cache.clock.Now()
	entry := ModeEntry{Mode: ModeDemo, ComputedAt: now}
	if d.backend == nil {
		return entry
	}

	// Detection outlives a cancelled first caller; other callers share it.
	ctx, cancel := withRemoteTimeout(context.WithoutCancel(ctx))
	defer cancel()

	principal, err := d.backend.GetCurrentPrincipal(ctx)
	if err != nil {
		return d.degraded(entry, fmt.Errorf("get current principal: %w", err))
	}
	if principal == nil {
		return entry
	}

	identity := principal.Identity()
	entry.Identity = &identity
	if d.isDemo(*principal) {
		return entry
	}

	row, err := d.backend.GetUserWithSchool(ctx, principal.ID)
	if err != nil {
		return d.degraded(entry, fmt.Errorf("get user with school: %w", err))
	}
	school, ok := row.BoundSchool()
	if !ok {
		// Registered but not bound to a school, or not registered at all.
		return entry
	}

	enriched := identity.WithSchool(school.ID, school.Name)
	if enriched.Role == "" && row.Role.Valid() {
		enriched.Role = row.Role
	}
	entry.Mode = ModeLive
	entry.Identity = &enriched
	return entry
}

// degraded keeps the previous mode when one is known, demonstration otherwise.
func (d *Detector) degraded(entry ModeEntry, cause error) ModeEntry {
	d.log.Warn().Err(cause).Msg("data mode detection degraded, defaulting")
	entry.Degraded = true
	entry.Err = fmt.Errorf("%w: %w", ErrDetectionDegraded, cause)
	if prev := d.cache.Peek(); prev != nil {
		entry.Mode = prev.Mode
		entry.Identity = prev.Identity
		return entry
	}
	entry.Mode = ModeDemo
	return entry
}
