package sdk

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controllerFixture struct {
	ctl      *Controller
	backend  *fakeBackend
	store    *MemoryStore
	detector *Detector
	bus      *SessionBus
}

func setupController(t *testing.T) controllerFixture {
	t.Helper()
	backend := newFakeBackend()
	store := NewMemoryStore()
	mock := clock.NewMock()
	detector := NewDetector(backend, WithModeCache(NewModeCache(mock, ModeTTL)))
	bus := NewSessionBus()

	ctl, err := NewController(ControllerDependencies{
		Backend:  backend,
		Store:    store,
		Detector: detector,
		Bus:      bus,
	}, WithControllerClock(mock))
	require.NoError(t, err)
	return controllerFixture{ctl: ctl, backend: backend, store: store, detector: detector, bus: bus}
}

func TestNewController_RequiresStore(t *testing.T) {
	_, err := NewController(ControllerDependencies{})
	assert.Error(t, err)
}

func TestController_StartsUninitialized(t *testing.T) {
	f := setupController(t)
	assert.Equal(t, StatusUninitialized, f.ctl.State().Status)
}

func TestController_HydrateWithoutRecordIsAnonymous(t *testing.T) {
	f := setupController(t)

	var seen []Status
	var mu sync.Mutex
	f.ctl.Subscribe(func(s IdentityState) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})

	st := f.ctl.Hydrate(context.Background())
	assert.Equal(t, StatusAnonymous, st.Status)
	assert.Nil(t, st.Identity)
	assert.Equal(t, []Status{StatusHydrating, StatusAnonymous}, seen)
}

func TestController_HydrateDemoSkipsBackend(t *testing.T) {
	f := setupController(t)
	saveIdentity(t, f.store, SlotCurrent, demoIdentity(t, "secretary@demo.com"))

	st := f.ctl.Hydrate(context.Background())
	assert.Equal(t, StatusAuthenticated, st.Status)
	require.NotNil(t, st.Identity)
	assert.Equal(t, RoleSecretary, st.Identity.Role)
	assert.Equal(t, 0, f.backend.totalCalls())
}

func TestController_HydrateKeepsCachedSessionWhenBackendFails(t *testing.T) {
	f := setupController(t)
	cached := Identity{ID: "0199a1b2-0000-7000-8000-0000000000c1", Email: "mama@school.cm", Name: "Mama", Role: RoleParent, Active: true}
	saveIdentity(t, f.store, SlotCurrent, cached)
	f.backend.principalErr = errors.New("offline")

	st := f.ctl.Hydrate(context.Background())
	assert.Equal(t, StatusAuthenticated, st.Status)
	require.NotNil(t, st.Identity)
	assert.Equal(t, cached, *st.Identity)
	assert.Equal(t, 1, f.backend.count("GetCurrentPrincipal"))
}

func TestController_HydrateMergesBackendProfile(t *testing.T) {
	f := setupController(t)
	cached := Identity{ID: "0199a1b2-0000-7000-8000-0000000000c2", Email: "prof@school.cm", Name: "Old Name", Role: RoleTeacher, Active: true}
	saveIdentity(t, f.store, SlotCurrent, cached)
	f.backend.setPrincipal(&Principal{ID: cached.ID, Email: "PROF@school.cm", Name: "New Name", Phone: "+237677000000", Role: RoleStudent})

	st := f.ctl.Hydrate(context.Background())
	require.NotNil(t, st.Identity)
	assert.Equal(t, "New Name", st.Identity.Name)
	assert.Equal(t, "+237677000000", st.Identity.Phone)
	assert.Equal(t, "prof@school.cm", st.Identity.Email)
	assert.Equal(t, RoleTeacher, st.Identity.Role, "role never changes through hydration")

	rec, err := f.store.Load(context.Background(), RoleTeacher.Namespace())
	require.NoError(t, err)
	assert.Equal(t, "New Name", rec.Identity.Name)
}

func TestController_HydrateIgnoresOtherAccount(t *testing.T) {
	f := setupController(t)
	cached := Identity{ID: "0199a1b2-0000-7000-8000-0000000000c3", Email: "a@school.cm", Name: "A", Role: RoleParent}
	saveIdentity(t, f.store, SlotCurrent, cached)
	f.backend.setPrincipal(&Principal{ID: "someone-else", Email: "b@school.cm", Name: "B", Role: RoleParent})

	st := f.ctl.Hydrate(context.Background())
	require.NotNil(t, st.Identity)
	assert.Equal(t, "A", st.Identity.Name)
}

func TestController_SignIn(t *testing.T) {
	f := setupController(t)
	ctx := context.Background()

	var updates []SessionUpdate
	f.bus.Subscribe(func(u SessionUpdate) { updates = append(updates, u) })

	res, err := f.ctl.SignIn(ctx, "teacher@demo.com", DemoSecret)
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, res.Identity.Role)

	st := f.ctl.State()
	assert.Equal(t, StatusAuthenticated, st.Status)
	assert.False(t, st.Loading)
	require.NotNil(t, st.Identity)

	current, err := f.store.Load(ctx, SlotCurrent)
	require.NoError(t, err)
	scoped, err := f.store.Load(ctx, RoleTeacher.Namespace())
	require.NoError(t, err)
	assert.Equal(t, current.SessionToken, scoped.SessionToken, "role slot mirrors the current record")

	require.Len(t, updates, 1)
	assert.Equal(t, RoleTeacher, updates[0].Role)
}

func TestController_MultipleRolesSideBySide(t *testing.T) {
	f := setupController(t)
	ctx := context.Background()

	_, err := f.ctl.SignIn(ctx, "teacher@demo.com", DemoSecret)
	require.NoError(t, err)
	_, err = f.ctl.SignIn(ctx, "parent@demo.com", DemoSecret)
	require.NoError(t, err)

	teacher, err := ReadSession(ctx, f.store, RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, teacher.Role)

	parent, err := ReadSession(ctx, f.store, RoleParent)
	require.NoError(t, err)
	assert.Equal(t, RoleParent, parent.Role)

	_, err = ReadSession(ctx, f.store, RoleStudent)
	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestController_FailedSignInKeepsPreviousIdentity(t *testing.T) {
	f := setupController(t)
	ctx := context.Background()

	_, err := f.ctl.SignIn(ctx, "student@demo.com", DemoSecret)
	require.NoError(t, err)

	_, err = f.ctl.SignIn(ctx, "student@demo.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	st := f.ctl.State()
	assert.Equal(t, StatusAuthenticated, st.Status)
	require.NotNil(t, st.Identity)
	assert.Equal(t, RoleStudent, st.Identity.Role)
	assert.ErrorIs(t, st.Err, ErrInvalidCredentials)
	assert.False(t, st.Loading)
}

func TestController_SignInClearsModeCache(t *testing.T) {
	f := setupController(t)
	ctx := context.Background()

	f.detector.Detect(ctx)
	_, ok := f.detector.Cache().Get()
	require.True(t, ok)

	_, err := f.ctl.SignIn(ctx, "admin@demo.com", DemoSecret)
	require.NoError(t, err)
	_, ok = f.detector.Cache().Get()
	assert.False(t, ok)
}

func TestController_SignOutClearsEverything(t *testing.T) {
	f := setupController(t)
	ctx := context.Background()

	_, err := f.ctl.SignIn(ctx, "teacher@demo.com", DemoSecret)
	require.NoError(t, err)
	_, err = f.ctl.SignIn(ctx, "principal@demo.com", DemoSecret)
	require.NoError(t, err)
	f.detector.Detect(ctx)

	views := make(map[Role]*RoleSession)
	for _, r := range Roles {
		views[r] = NewRoleSession(f.store, r)
		views[r].Load(ctx)
		views[r].Follow(f.bus)
	}
	f.backend.signOutErr = errors.New("backend unreachable")

	require.NoError(t, f.ctl.SignOut(ctx), "backend failure is not surfaced")

	assert.Equal(t, StatusAnonymous, f.ctl.State().Status)
	assert.Nil(t, f.ctl.State().Identity)
	assert.Equal(t, 0, f.store.Len())
	assert.Nil(t, f.detector.Cache().Peek())
	assert.Equal(t, 1, f.backend.count("SignOut"))

	for _, r := range Roles {
		_, err := ReadSession(ctx, f.store, r)
		assert.ErrorIs(t, err, ErrNoSession, "role %s", r)
		assert.ErrorIs(t, views[r].State().Err, ErrNoSession, "view %s", r)
	}
}

type clearFailingStore struct {
	*MemoryStore
}

func (clearFailingStore) Clear(context.Context) error { return errors.New("read-only filesystem") }

func TestController_SignOutReportsStoreFailure(t *testing.T) {
	ctl, err := NewController(ControllerDependencies{Store: clearFailingStore{NewMemoryStore()}})
	require.NoError(t, err)

	err = ctl.SignOut(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only filesystem")
	assert.Equal(t, StatusAnonymous, ctl.State().Status)
}
