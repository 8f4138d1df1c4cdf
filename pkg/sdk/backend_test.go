package sdk

import (
	"context"
	"strings"
	"sync"
)

// fakeBackend is an in-memory Backend that records calls.
type fakeBackend struct {
	mu sync.Mutex

	accounts     map[string]fakeAccount // identifier -> account
	usersByEmail map[string]string      // email -> canonical id
	schools      map[string]*UserWithSchool
	principal    *Principal

	verifyErr    error
	findErr      error
	upsertErr    error
	schoolErr    error
	principalErr error
	updateErr    error
	signOutErr   error

	// block, when set, makes GetCurrentPrincipal wait until it is closed.
	block chan struct{}
	// blockVerify makes VerifyCredentials wait for context cancellation.
	blockVerify bool

	upserted         []UserRecord
	principalUpdates map[string]string
	calls            map[string]int
	listeners        map[int]func(AuthEvent)
	nextListener     int
}

type fakeAccount struct {
	secret string
	user   VerifiedUser
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts:         make(map[string]fakeAccount),
		usersByEmail:     make(map[string]string),
		schools:          make(map[string]*UserWithSchool),
		principalUpdates: make(map[string]string),
		calls:            make(map[string]int),
		listeners:        make(map[int]func(AuthEvent)),
	}
}

func (f *fakeBackend) addAccount(identifier, secret string, user VerifiedUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[strings.ToLower(identifier)] = fakeAccount{secret: secret, user: user}
}

func (f *fakeBackend) setPrincipal(p *Principal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principal = p
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) VerifyCredentials(ctx context.Context, identifier, secret string) (*VerifiedUser, error) {
	f.record("VerifyCredentials")
	if f.blockVerify {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	acct, ok := f.accounts[strings.ToLower(identifier)]
	if !ok || acct.secret != secret {
		return nil, nil
	}
	user := acct.user
	return &user, nil
}

func (f *fakeBackend) FindUserByEmail(_ context.Context, email string) (*UserRef, error) {
	f.record("FindUserByEmail")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	id, ok := f.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	return &UserRef{ID: id}, nil
}

func (f *fakeBackend) UpsertUser(_ context.Context, record UserRecord) (*UserRef, error) {
	f.record("UpsertUser")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserted = append(f.upserted, record)
	if record.Email != "" {
		f.usersByEmail[record.Email] = record.ID
	}
	return &UserRef{ID: record.ID}, nil
}

func (f *fakeBackend) GetUserWithSchool(_ context.Context, id string) (*UserWithSchool, error) {
	f.record("GetUserWithSchool")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.schoolErr != nil {
		return nil, f.schoolErr
	}
	row, ok := f.schools[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeBackend) UpdateSchoolPrincipal(_ context.Context, schoolID, name string) error {
	f.record("UpdateSchoolPrincipal")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.principalUpdates[schoolID] = name
	return nil
}

func (f *fakeBackend) GetCurrentPrincipal(ctx context.Context) (*Principal, error) {
	f.record("GetCurrentPrincipal")
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.principalErr != nil {
		return nil, f.principalErr
	}
	if f.principal == nil {
		return nil, nil
	}
	cp := *f.principal
	return &cp, nil
}

func (f *fakeBackend) OnAuthStateChange(fn func(AuthEvent)) func() {
	f.mu.Lock()
	id := f.nextListener
	f.nextListener++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeBackend) emit(ev AuthEvent) {
	f.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (f *fakeBackend) SignOut(_ context.Context) error {
	f.record("SignOut")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principal = nil
	return f.signOutErr
}
