package sdk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDetector(t *testing.T, opts ...DetectorOption) (*Detector, *fakeBackend, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	backend := newFakeBackend()
	opts = append([]DetectorOption{WithModeCache(NewModeCache(mock, ModeTTL))}, opts...)
	return NewDetector(backend, opts...), backend, mock
}

func liveTeacher(backend *fakeBackend) {
	id := "0199a1b2-0000-7000-8000-00000000aaaa"
	schoolID := "0199a1b2-5c00-7000-8000-000000000002"
	backend.setPrincipal(&Principal{ID: id, Email: "prof@lycee.cm", Name: "Prof", Role: RoleTeacher})
	backend.schools[id] = &UserWithSchool{
		ID: id, Role: RoleTeacher, CurrentSchoolID: schoolID,
		School: &School{ID: schoolID, Name: "Lycée Bilingue"},
	}
}

func TestDetector_NoSessionIsDemo(t *testing.T) {
	detector, _, _ := setupDetector(t)

	entry := detector.Detect(context.Background())
	assert.Equal(t, ModeDemo, entry.Mode)
	assert.Nil(t, entry.Identity)
	assert.False(t, entry.Degraded)
}

func TestDetector_LiveWhenBoundToSchool(t *testing.T) {
	detector, backend, _ := setupDetector(t)
	liveTeacher(backend)

	entry := detector.Detect(context.Background())
	assert.Equal(t, ModeLive, entry.Mode)
	require.NotNil(t, entry.Identity)
	assert.Equal(t, "Lycée Bilingue", entry.Identity.SchoolName)
	assert.Equal(t, RoleTeacher, entry.Identity.Role)
}

func TestDetector_EntriesDoNotShareIdentity(t *testing.T) {
	detector, backend, _ := setupDetector(t)
	liveTeacher(backend)
	ctx := context.Background()

	first := detector.Detect(ctx)
	require.NotNil(t, first.Identity)
	first.Identity.Name = "Mutated"
	first.Identity.SchoolName = "Elsewhere"

	cached := detector.Detect(ctx)
	require.NotNil(t, cached.Identity)
	assert.Equal(t, "Prof", cached.Identity.Name)
	assert.Equal(t, "Lycée Bilingue", cached.Identity.SchoolName)
	assert.NotSame(t, first.Identity, cached.Identity)

	cached.Identity.Name = "Again"
	st := detector.State()
	require.NotNil(t, st.Identity)
	assert.Equal(t, "Prof", st.Identity.Name)

	peeked := detector.Cache().Peek()
	require.NotNil(t, peeked)
	peeked.Identity.Name = "Peeked"
	assert.Equal(t, "Prof", detector.Detect(ctx).Identity.Name)
	assert.Equal(t, 1, backend.count("GetCurrentPrincipal"))
}

func TestDetector_DemoPrincipals(t *testing.T) {
	tests := []struct {
		name      string
		principal Principal
	}{
		{name: "demo address", principal: Principal{ID: "p1", Email: "parent.demo@school.cm", Role: RoleParent}},
		{name: "test address", principal: Principal{ID: "p2", Email: "qa.test@school.cm", Role: RoleTeacher}},
		{name: "explicit flag", principal: Principal{ID: "p3", Email: "real@school.cm", Role: RoleStudent, Demo: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector, backend, _ := setupDetector(t)
			backend.setPrincipal(&tt.principal)

			entry := detector.Detect(context.Background())
			assert.Equal(t, ModeDemo, entry.Mode)
			require.NotNil(t, entry.Identity)
			assert.Equal(t, tt.principal.ID, entry.Identity.ID)
			assert.Equal(t, 0, backend.count("GetUserWithSchool"), "demo principals skip the school lookup")
		})
	}
}

func TestDetector_UnboundPrincipalIsDemo(t *testing.T) {
	detector, backend, _ := setupDetector(t)
	backend.setPrincipal(&Principal{ID: "u1", Email: "new@school.cm", Role: RoleTeacher})

	entry := detector.Detect(context.Background())
	assert.Equal(t, ModeDemo, entry.Mode)
	assert.False(t, entry.Degraded)
}

func TestDetector_AdminWithoutSchoolStaysDemo(t *testing.T) {
	detector, backend, _ := setupDetector(t)
	id := "0199a1b2-0000-7000-8000-00000000ad01"
	backend.setPrincipal(&Principal{ID: id, Email: "root@edutrack.cm", Role: RoleAdmin})
	backend.schools[id] = &UserWithSchool{ID: id, Role: RoleAdmin}

	entry := detector.Detect(context.Background())
	assert.Equal(t, ModeDemo, entry.Mode)
}

func TestDetector_CachesForTTL(t *testing.T) {
	detector, backend, mock := setupDetector(t)
	liveTeacher(backend)
	ctx := context.Background()

	// Test 1: repeated detections within the window share one round trip
	for i := 0; i < 5; i++ {
		detector.Detect(ctx)
		mock.Add(10 * time.Second)
	}
	// 50s elapsed
	assert.Equal(t, 1, backend.count("GetCurrentPrincipal"))

	// Test 2: the entry expires at exactly the TTL
	mock.Add(10 * time.Second)
	detector.Detect(ctx)
	assert.Equal(t, 2, backend.count("GetCurrentPrincipal"))

	// Test 3: ClearCache forces the next call to the backend
	detector.ClearCache()
	detector.Detect(ctx)
	assert.Equal(t, 3, backend.count("GetCurrentPrincipal"))

	// Test 4: Refresh always re-detects
	detector.Refresh(ctx)
	assert.Equal(t, 4, backend.count("GetCurrentPrincipal"))
}

func TestDetector_ConcurrentCallersShareOneDetection(t *testing.T) {
	detector, backend, _ := setupDetector(t)
	liveTeacher(backend)
	backend.block = make(chan struct{})

	const callers = 10
	var wg sync.WaitGroup
	results := make([]ModeEntry, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = detector.Detect(context.Background())
		}(i)
	}

	assert.Eventually(t, func() bool {
		return detector.State().IsLoading
	}, time.Second, 5*time.Millisecond)
	// Give the remaining goroutines time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(backend.block)
	wg.Wait()

	assert.Equal(t, 1, backend.count("GetCurrentPrincipal"))
	for _, r := range results {
		assert.Equal(t, ModeLive, r.Mode)
	}
	assert.False(t, detector.State().IsLoading)
}

func TestDetector_DegradedFallsBack(t *testing.T) {
	detector, backend, mock := setupDetector(t)

	// Test 1: first detection failing defaults to demo
	backend.principalErr = errors.New("dial tcp: connection refused")
	entry := detector.Detect(context.Background())
	assert.Equal(t, ModeDemo, entry.Mode)
	assert.True(t, entry.Degraded)
	assert.ErrorIs(t, entry.Err, ErrDetectionDegraded)
	assert.True(t, detector.State().Degraded)

	// Test 2: a failure after a live result keeps live
	backend.principalErr = nil
	liveTeacher(backend)
	mock.Add(ModeTTL)
	require.Equal(t, ModeLive, detector.Detect(context.Background()).Mode)

	backend.mu.Lock()
	backend.principalErr = errors.New("503")
	backend.mu.Unlock()
	mock.Add(ModeTTL)
	entry = detector.Detect(context.Background())
	assert.True(t, entry.Degraded)
	assert.Equal(t, ModeLive, entry.Mode)
}

func TestDetector_SchoolLookupFailureIsDegraded(t *testing.T) {
	detector, backend, _ := setupDetector(t)
	backend.setPrincipal(&Principal{ID: "u2", Email: "x@school.cm", Role: RoleParent})
	backend.schoolErr = errors.New("timeout")

	entry := detector.Detect(context.Background())
	assert.True(t, entry.Degraded)
	assert.Equal(t, ModeDemo, entry.Mode)
}

func TestDetector_NilBackendIsDemo(t *testing.T) {
	detector := NewDetector(nil, WithModeCache(NewModeCache(clock.NewMock(), 0)))

	assert.Equal(t, ModeDemo, detector.Detect(context.Background()).Mode)
	stop := detector.Watch(context.Background())
	stop()
}

func TestDetector_WatchRedetectsOnAuthChange(t *testing.T) {
	detector, backend, _ := setupDetector(t)
	ctx := context.Background()

	stop := detector.Watch(ctx)
	defer stop()

	require.Equal(t, ModeDemo, detector.Detect(ctx).Mode)
	require.Equal(t, 1, backend.count("GetCurrentPrincipal"))

	liveTeacher(backend)
	backend.emit(AuthEvent{Type: AuthSignedIn})

	assert.Eventually(t, func() bool {
		return detector.State().Mode == ModeLive
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, backend.count("GetCurrentPrincipal"))

	stop()
	backend.emit(AuthEvent{Type: AuthSignedOut})
	assert.Equal(t, ModeLive, detector.State().Mode, "no re-detection after stop")
}

func TestDetector_CustomPredicate(t *testing.T) {
	pred, err := ExprDemoPredicate(`role == "teacher"`)
	require.NoError(t, err)

	detector, backend, _ := setupDetector(t, WithDemoPredicate(pred))
	liveTeacher(backend)

	entry := detector.Detect(context.Background())
	assert.Equal(t, ModeDemo, entry.Mode, "teacher classified demo by rule")
}

func TestExprDemoPredicate(t *testing.T) {
	tests := []struct {
		expr      string
		principal Principal
		want      bool
	}{
		{expr: `email matches "@demo\\."`, principal: Principal{Email: "a@demo.cm"}, want: true},
		{expr: `email matches "@demo\\."`, principal: Principal{Email: "a@school.cm"}, want: false},
		{expr: `demo == true`, principal: Principal{Demo: true}, want: true},
		{expr: `phone == "+237600000000" or role == "admin"`, principal: Principal{Role: RoleAdmin}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			pred, err := ExprDemoPredicate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred(tt.principal))
		})
	}

	_, err := ExprDemoPredicate(`email ==`)
	assert.Error(t, err)
}

func TestModeCache_ClearDiscardsInFlightResult(t *testing.T) {
	cache := NewModeCache(clock.NewMock(), ModeTTL)
	gen := cache.Generation()
	cache.Clear()

	assert.False(t, cache.store(gen, ModeEntry{Mode: ModeLive}))
	_, ok := cache.Get()
	assert.False(t, ok)

	assert.True(t, cache.store(cache.Generation(), ModeEntry{Mode: ModeLive, ComputedAt: time.Unix(0, 0)}))
}
