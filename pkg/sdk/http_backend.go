package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// APIError is a non-success response from campusapi.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("campusapi returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("campusapi returned %d: %s", e.StatusCode, e.Message)
}

// LoginResponse is the body of a successful POST /auth/login.
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      VerifiedUser `json:"user"`
	Principal Principal    `json:"principal"`
}

// HTTPBackend implements Backend against the campusapi REST surface.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	creds   CredentialStore
	log     zerolog.Logger

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(AuthEvent)
}

var _ Backend = (*HTTPBackend)(nil)

// HTTPBackendOption customises an HTTPBackend.
type HTTPBackendOption func(*HTTPBackend)

// WithHTTPClient overrides the base HTTP client. Its transport is wrapped
// with bearer authentication for session-bound calls.
func WithHTTPClient(c *http.Client) HTTPBackendOption {
	return func(b *HTTPBackend) { b.client = c }
}

// WithCredentialStore persists the backend token in s.
func WithCredentialStore(s CredentialStore) HTTPBackendOption {
	return func(b *HTTPBackend) { b.creds = s }
}

// WithBackendLogger sets the logger.
func WithBackendLogger(l zerolog.Logger) HTTPBackendOption {
	return func(b *HTTPBackend) { b.log = l }
}

// NewHTTPBackend creates a backend client for the server at baseURL.
func NewHTTPBackend(baseURL string, opts ...HTTPBackendOption) *HTTPBackend {
	b := &HTTPBackend{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: RemoteTimeout},
		creds:     NewMemoryCredentialStore(),
		log:       zerolog.Nop(),
		listeners: make(map[int]func(AuthEvent)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// credentialTokenSource reads the current token from the credential store on
// every request so a sign-in elsewhere in the process is picked up.
type credentialTokenSource struct {
	store CredentialStore
}

func (s credentialTokenSource) Token() (*oauth2.Token, error) {
	creds, err := s.store.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if creds.IsExpired() {
		return nil, ErrNoCredentials
	}
	tokenType := creds.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken: creds.AccessToken,
		TokenType:   tokenType,
		Expiry:      creds.ExpiresAt,
	}, nil
}

func (b *HTTPBackend) authedClient() *http.Client {
	base := b.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout:   b.client.Timeout,
		Transport: &oauth2.Transport{Source: credentialTokenSource{store: b.creds}, Base: base},
	}
}

func (b *HTTPBackend) hasSession() bool {
	_, err := credentialTokenSource{store: b.creds}.Token()
	return err == nil
}

// VerifyCredentials signs in against /auth/login. The issued token is saved
// and an AuthSignedIn event is emitted.
func (b *HTTPBackend) VerifyCredentials(ctx context.Context, identifier, secret string) (*VerifiedUser, error) {
	var resp LoginResponse
	status, err := b.do(ctx, b.client, http.MethodPost, "/auth/login", map[string]string{
		"identifier": identifier,
		"secret":     secret,
	}, &resp)
	if status == http.StatusUnauthorized || status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := b.creds.SaveCredentials(&Credentials{
		AccessToken: resp.Token,
		TokenType:   resp.TokenType,
		ExpiresAt:   resp.ExpiresAt,
		PrincipalID: resp.Principal.ID,
	}); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}

	principal := resp.Principal
	b.emit(AuthEvent{Type: AuthSignedIn, Principal: &principal})
	user := resp.User
	return &user, nil
}

func (b *HTTPBackend) FindUserByEmail(ctx context.Context, email string) (*UserRef, error) {
	var ref UserRef
	status, err := b.do(ctx, b.authedClient(), http.MethodGet, "/api/v1/users?email="+url.QueryEscape(email), nil, &ref)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (b *HTTPBackend) UpsertUser(ctx context.Context, record UserRecord) (*UserRef, error) {
	if record.ID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	var ref UserRef
	if _, err := b.do(ctx, b.authedClient(), http.MethodPut, "/api/v1/users/"+url.PathEscape(record.ID), record, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (b *HTTPBackend) GetUserWithSchool(ctx context.Context, id string) (*UserWithSchool, error) {
	var row UserWithSchool
	status, err := b.do(ctx, b.authedClient(), http.MethodGet, "/api/v1/users/"+url.PathEscape(id)+"/school", nil, &row)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (b *HTTPBackend) UpdateSchoolPrincipal(ctx context.Context, schoolID, name string) error {
	_, err := b.do(ctx, b.authedClient(), http.MethodPut, "/api/v1/schools/"+url.PathEscape(schoolID)+"/principal",
		map[string]string{"name": name}, nil)
	return err
}

// GetCurrentPrincipal returns nil without a network call when no token is held.
func (b *HTTPBackend) GetCurrentPrincipal(ctx context.Context) (*Principal, error) {
	if !b.hasSession() {
		return nil, nil
	}
	var p Principal
	status, err := b.do(ctx, b.authedClient(), http.MethodGet, "/auth/whoami", nil, &p)
	if status == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SignOut revokes the server session and always drops the local token.
func (b *HTTPBackend) SignOut(ctx context.Context) error {
	var remoteErr error
	if b.hasSession() {
		status, err := b.do(ctx, b.authedClient(), http.MethodPost, "/auth/logout", nil, nil)
		if err != nil && status != http.StatusUnauthorized {
			remoteErr = err
		}
	}
	if err := b.creds.DeleteCredentials(); err != nil {
		b.log.Warn().Err(err).Msg("failed to delete stored credentials")
	}
	b.emit(AuthEvent{Type: AuthSignedOut})
	return remoteErr
}

func (b *HTTPBackend) OnAuthStateChange(fn func(AuthEvent)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *HTTPBackend) emit(ev AuthEvent) {
	b.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// do sends a JSON request and decodes a JSON response into out. The status
// code is returned whenever a response was received.
func (b *HTTPBackend) do(ctx context.Context, client *http.Client, method, path string, body, out any) (int, error) {
	ctx, cancel := withRemoteTimeout(ctx)
	defer cancel()

	endpoint := strings.TrimRight(b.baseURL, "/") + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
