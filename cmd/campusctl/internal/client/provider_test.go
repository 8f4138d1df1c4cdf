package client

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pensezy/edutrack/pkg/sdk"
	"github.com/pensezy/edutrack/pkg/sdk/redisstore"
)

func TestProvider_FileBackend(t *testing.T) {
	home := t.TempDir()
	p := NewProvider(Options{ServerURL: "http://127.0.0.1:1", Home: home})
	ctx := context.Background()

	store, err := p.SessionStore(ctx)
	require.NoError(t, err)
	files, err := p.Files()
	require.NoError(t, err)
	assert.Same(t, files, store)
	assert.Equal(t, home, files.Dir())

	ctl, err := p.Controller(ctx)
	require.NoError(t, err)
	again, err := p.Controller(ctx)
	require.NoError(t, err)
	assert.Same(t, ctl, again)

	res, err := ctl.SignIn(ctx, "parent@demo.com", sdk.DemoSecret)
	require.NoError(t, err)
	assert.Equal(t, sdk.RoleParent, res.Identity.Role)

	got, err := sdk.ReadSession(ctx, store, sdk.RoleParent)
	require.NoError(t, err)
	assert.Equal(t, res.Identity.ID, got.ID)
	assert.NoError(t, p.Close())
}

func TestProvider_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	p := NewProvider(Options{
		ServerURL:      "http://127.0.0.1:1",
		Home:           t.TempDir(),
		SessionBackend: BackendRedis,
		RedisURL:       "redis://" + mr.Addr(),
	})
	t.Cleanup(func() { _ = p.Close() })
	ctx := context.Background()

	store, err := p.SessionStore(ctx)
	require.NoError(t, err)
	_, ok := store.(*redisstore.Store)
	require.True(t, ok)

	ctl, err := p.Controller(ctx)
	require.NoError(t, err)
	_, err = ctl.SignIn(ctx, "teacher@demo.com", sdk.DemoSecret)
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisstore.DefaultPrefix+"teacher"))
	assert.True(t, mr.Exists(redisstore.DefaultPrefix+"current"))
}

func TestProvider_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "unknown backend", opts: Options{ServerURL: "http://x", SessionBackend: "etcd"}},
		{name: "redis without url", opts: Options{ServerURL: "http://x", SessionBackend: BackendRedis}},
		{name: "bad demo rule", opts: Options{ServerURL: "http://x", DemoRule: "email =="}},
		{name: "no server", opts: Options{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Home = t.TempDir()
			_, err := NewProvider(tt.opts).Controller(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestProvider_DemoRule(t *testing.T) {
	p := NewProvider(Options{ServerURL: "http://127.0.0.1:1", Home: t.TempDir(), DemoRule: `role == "admin"`})
	detector, err := p.Detector()
	require.NoError(t, err)
	require.NotNil(t, detector)
}
