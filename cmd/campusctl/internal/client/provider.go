package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pensezy/edutrack/cmd/campusctl/internal/auth"
	"github.com/pensezy/edutrack/pkg/sdk"
	"github.com/pensezy/edutrack/pkg/sdk/redisstore"
)

// Session store backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Options selects the server and the session store the provider wires.
type Options struct {
	ServerURL string
	// Home is the directory of the file store. Credentials always live
	// there, even when sessions are kept in Redis.
	Home           string
	SessionBackend string
	RedisURL       string
	// DemoRule, when set, replaces the default demo classification with a
	// go-bexpr expression.
	DemoRule string
	Logger   zerolog.Logger
}

// Provider lazily builds the SDK collaborators shared by every command.
type Provider struct {
	opts Options

	filesOnce sync.Once
	files     *auth.FileStore
	filesErr  error

	storeOnce sync.Once
	store     sdk.SessionStore
	redis     *redisstore.Store
	storeErr  error

	backendOnce sync.Once
	backend     *sdk.HTTPBackend
	backendErr  error

	detectorOnce sync.Once
	detector     *sdk.Detector
	detectorErr  error

	controllerOnce sync.Once
	controller     *sdk.Controller
	controllerErr  error
}

// NewProvider constructs a Provider. Nothing is opened until first use.
func NewProvider(opts Options) *Provider {
	if opts.SessionBackend == "" {
		opts.SessionBackend = BackendFile
	}
	return &Provider{opts: opts}
}

// Files returns the file store under Home.
func (p *Provider) Files() (*auth.FileStore, error) {
	p.filesOnce.Do(func() {
		dir := p.opts.Home
		if dir == "" {
			dir, p.filesErr = auth.DefaultDir()
			if p.filesErr != nil {
				return
			}
		}
		p.files, p.filesErr = auth.NewFileStore(dir)
	})
	return p.files, p.filesErr
}

// SessionStore returns the configured durable session store.
func (p *Provider) SessionStore(ctx context.Context) (sdk.SessionStore, error) {
	p.storeOnce.Do(func() {
		switch p.opts.SessionBackend {
		case BackendFile:
			p.store, p.storeErr = p.Files()
		case BackendRedis:
			if p.opts.RedisURL == "" {
				p.storeErr = fmt.Errorf("redis_url is required when session_backend is %q", BackendRedis)
				return
			}
			p.redis, p.storeErr = redisstore.Dial(ctx, p.opts.RedisURL)
			if p.storeErr == nil {
				p.store = p.redis
			}
		default:
			p.storeErr = fmt.Errorf("unknown session backend %q (want %s or %s)", p.opts.SessionBackend, BackendFile, BackendRedis)
		}
	})
	return p.store, p.storeErr
}

// Backend returns the campusapi client. Its token is kept in the file store.
func (p *Provider) Backend() (*sdk.HTTPBackend, error) {
	p.backendOnce.Do(func() {
		if p.opts.ServerURL == "" {
			p.backendErr = fmt.Errorf("server URL is required")
			return
		}
		files, err := p.Files()
		if err != nil {
			p.backendErr = err
			return
		}
		p.backend = sdk.NewHTTPBackend(p.opts.ServerURL,
			sdk.WithCredentialStore(files),
			sdk.WithBackendLogger(p.opts.Logger),
		)
	})
	return p.backend, p.backendErr
}

// Detector returns the data-mode detector.
func (p *Provider) Detector() (*sdk.Detector, error) {
	p.detectorOnce.Do(func() {
		backend, err := p.Backend()
		if err != nil {
			p.detectorErr = err
			return
		}
		opts := []sdk.DetectorOption{sdk.WithDetectorLogger(p.opts.Logger)}
		if p.opts.DemoRule != "" {
			pred, err := sdk.ExprDemoPredicate(p.opts.DemoRule)
			if err != nil {
				p.detectorErr = err
				return
			}
			opts = append(opts, sdk.WithDemoPredicate(pred))
		}
		p.detector = sdk.NewDetector(backend, opts...)
	})
	return p.detector, p.detectorErr
}

// Controller returns the session lifecycle controller.
func (p *Provider) Controller(ctx context.Context) (*sdk.Controller, error) {
	p.controllerOnce.Do(func() {
		store, err := p.SessionStore(ctx)
		if err != nil {
			p.controllerErr = err
			return
		}
		backend, err := p.Backend()
		if err != nil {
			p.controllerErr = err
			return
		}
		detector, err := p.Detector()
		if err != nil {
			p.controllerErr = err
			return
		}
		p.controller, p.controllerErr = sdk.NewController(sdk.ControllerDependencies{
			Backend:  backend,
			Store:    store,
			Detector: detector,
			Bus:      sdk.NewSessionBus(),
		}, sdk.WithControllerLogger(p.opts.Logger))
	})
	return p.controller, p.controllerErr
}

// Close releases the Redis connection when one was opened.
func (p *Provider) Close() error {
	if p.redis != nil {
		return p.redis.Close()
	}
	return nil
}
