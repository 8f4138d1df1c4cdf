package sdk

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Resolver maps a login attempt to a canonical identity.
type Resolver struct {
	backend Backend
	store   SessionStore
	catalog *DemoCatalog
	clock   clock.Clock
	log     zerolog.Logger
	newID   func() (string, error)
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithResolverCatalog replaces the compiled-in demo catalog.
func WithResolverCatalog(c *DemoCatalog) ResolverOption {
	return func(r *Resolver) { r.catalog = c }
}

// WithResolverClock sets the clock used for login timestamps.
func WithResolverClock(c clock.Clock) ResolverOption {
	return func(r *Resolver) { r.clock = c }
}

// WithResolverLogger sets the logger for non-fatal repair failures.
func WithResolverLogger(l zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.log = l }
}

// WithIDGenerator overrides canonical id generation.
func WithIDGenerator(fn func() (string, error)) ResolverOption {
	return func(r *Resolver) { r.newID = fn }
}

// NewResolver creates a resolver. backend may be nil for demo-only clients.
func NewResolver(backend Backend, store SessionStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		backend: backend,
		store:   store,
		catalog: DefaultDemoCatalog(),
		clock:   clock.New(),
		log:     zerolog.Nop(),
		newID:   newCanonicalID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve verifies identifier and secret and returns the canonical identity.
// Only ErrInvalidCredentials is fatal; repair problems are reported as
// warnings on the result.
func (r *Resolver) Resolve(ctx context.Context, identifier, secret string) (*Result, error) {
	// Step 1: Demo catalog match, no network
	if identity, ok := r.catalog.Match(identifier, secret); ok {
		res := &Result{Identity: identity}
		r.persist(ctx, res)
		return res, nil
	}

	// Step 2: Backend verification
	if r.backend == nil {
		return nil, ErrInvalidCredentials
	}
	verified, err := r.verify(ctx, identifier, secret)
	if err != nil {
		return nil, err
	}
	role, err := ParseRole(verified.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	email := normalizeIdentifier(verified.Email)
	if email == "" && strings.Contains(identifier, "@") {
		email = normalizeIdentifier(identifier)
	}

	res := &Result{Identity: Identity{
		ID:     verified.ID,
		Email:  email,
		Name:   verified.FullName,
		Role:   role,
		Phone:  verified.Phone,
		Active: true,
	}}

	// Step 3: Canonical id reconciliation
	res.Identity.ID = r.reconcile(ctx, res.Identity, res)

	// Step 4: Role-specific post-processing
	if role == RolePrincipal {
		res.Identity = r.repairPrincipal(ctx, res.Identity, res)
	}

	// Step 5: Persist as the current session
	r.persist(ctx, res)

	for _, w := range res.Warnings {
		r.log.Warn().Err(w.Err).Str("step", string(w.Step)).Str("identity", res.Identity.ID).Msg("identity reconciliation degraded")
	}
	return res, nil
}

func (r *Resolver) verify(ctx context.Context, identifier, secret string) (*VerifiedUser, error) {
	ctx, cancel := withRemoteTimeout(ctx)
	defer cancel()

	verified, err := r.backend.VerifyCredentials(ctx, identifier, secret)
	if err != nil {
		r.log.Debug().Err(err).Msg("credential verification failed")
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if verified == nil || verified.ID == "" {
		return nil, ErrInvalidCredentials
	}
	return verified, nil
}

// reconcile returns the canonical id for identity. It never fails: when the
// backend cannot be repaired the verified id is kept.
func (r *Resolver) reconcile(ctx context.Context, identity Identity, res *Result) string {
	if identity.Email != "" {
		lookupCtx, cancel := withRemoteTimeout(ctx)
		ref, err := r.backend.FindUserByEmail(lookupCtx, identity.Email)
		cancel()
		switch {
		case err != nil:
			res.warn(StepLookupByEmail, err)
		case ref != nil && ref.ID != "":
			return ref.ID
		}
	}

	id := identity.ID
	if !IsCanonicalID(id) {
		generated, err := r.newID()
		if err != nil || generated == "" {
			r.log.Warn().Err(err).Msg("uuid generation unavailable, using composite id")
			generated = fallbackID(r.clock.Now().UnixNano())
		}
		id = generated
	}

	upsertCtx, cancel := withRemoteTimeout(ctx)
	defer cancel()
	ref, err := r.backend.UpsertUser(upsertCtx, UserRecord{
		ID:       id,
		Email:    identity.Email,
		FullName: identity.Name,
		Role:     identity.Role,
		Phone:    identity.Phone,
		Active:   true,
	})
	if err != nil {
		res.warn(StepUpsertUser, err)
		return identity.ID
	}
	if ref != nil && ref.ID != "" {
		return ref.ID
	}
	return id
}

func (r *Resolver) repairPrincipal(ctx context.Context, identity Identity, res *Result) Identity {
	ctx, cancel := withRemoteTimeout(ctx)
	defer cancel()

	row, err := r.backend.GetUserWithSchool(ctx, identity.ID)
	if err != nil {
		res.warn(StepPrincipalRepair, fmt.Errorf("load principal school: %w", err))
		return identity
	}
	school, ok := row.BoundSchool()
	if !ok {
		res.warn(StepPrincipalRepair, fmt.Errorf("principal %s is not bound to a school", identity.ID))
		return identity
	}

	identity = identity.WithSchool(school.ID, school.Name)
	if strings.TrimSpace(school.PrincipalName) != "" {
		return identity
	}

	name := principalDisplayName(identity, row)
	if err := r.backend.UpdateSchoolPrincipal(ctx, school.ID, name); err != nil {
		res.warn(StepPrincipalRepair, fmt.Errorf("update school %s principal: %w", school.ID, err))
	}
	return identity
}

// principalDisplayName prefers the backend profile name, then the identity
// name, then the email local part.
func principalDisplayName(identity Identity, row *UserWithSchool) string {
	if row != nil && strings.TrimSpace(row.FullName) != "" {
		return strings.TrimSpace(row.FullName)
	}
	if strings.TrimSpace(identity.Name) != "" {
		return strings.TrimSpace(identity.Name)
	}
	if local, _, ok := strings.Cut(identity.Email, "@"); ok && local != "" {
		return local
	}
	return string(identity.Role)
}

func (r *Resolver) persist(ctx context.Context, res *Result) {
	if r.store == nil {
		return
	}
	rec, err := NewSessionRecord(res.Identity, r.clock.Now())
	if err == nil {
		err = r.store.Save(ctx, SlotCurrent, rec)
	}
	if err != nil {
		res.warn(StepPersistSession, err)
	}
}

// IsCanonicalID reports whether id is a UUID in canonical textual form.
func IsCanonicalID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func newCanonicalID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func fallbackID(nanos int64) string {
	var b [8]byte
	for i := range b {
		b[i] = byte(rand.IntN(256))
	}
	return fmt.Sprintf("%d-%s", nanos, hex.EncodeToString(b[:]))
}
