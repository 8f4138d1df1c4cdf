package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pensezy/edutrack/cmd/campusctl/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusctl/internal/client"
)

type contextKey string

const configKey contextKey = "campusctl-config"

// Settings are the user-tunable values, resolved from flags, EDUTRACK_*
// environment variables and <home>/config.yaml in that order.
type Settings struct {
	ServerURL      string `mapstructure:"server_url"`
	Home           string `mapstructure:"home"`
	SessionBackend string `mapstructure:"session_backend"`
	RedisURL       string `mapstructure:"redis_url"`
	DemoRule       string `mapstructure:"demo_rule"`
	Debug          bool   `mapstructure:"debug"`
}

// GlobalConfig holds shared configuration for all campusctl commands.
// This is injected into the cobra command context by the root command's
// PersistentPreRunE hook and consumed by all subcommands.
type GlobalConfig struct {
	Settings
	ClientProvider *client.Provider
}

// Load resolves Settings from v. Flags must already be bound to v.
func Load(v *viper.Viper) (Settings, error) {
	v.SetEnvPrefix("EDUTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("session_backend", client.BackendFile)
	v.SetDefault("redis_url", "")
	v.SetDefault("demo_rule", "")
	v.SetDefault("debug", false)

	home := v.GetString("home")
	if home == "" {
		dir, err := auth.DefaultDir()
		if err != nil {
			return Settings{}, err
		}
		home = dir
		v.Set("home", home)
	}

	v.SetConfigFile(filepath.Join(home, "config.yaml"))
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return Settings{}, fmt.Errorf("read config file: %w", err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	s.SessionBackend = strings.ToLower(strings.TrimSpace(s.SessionBackend))
	switch s.SessionBackend {
	case client.BackendFile, client.BackendRedis:
	default:
		return Settings{}, fmt.Errorf("session_backend must be %q or %q, got %q", client.BackendFile, client.BackendRedis, s.SessionBackend)
	}
	if s.SessionBackend == client.BackendRedis && s.RedisURL == "" {
		return Settings{}, errors.New("redis_url is required when session_backend is redis")
	}
	return s, nil
}

// viper reports a missing explicit config file as an fs error rather than
// ConfigFileNotFoundError.
func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// InjectConfig adds config to the cobra command context.
func InjectConfig(ctx context.Context, cfg *GlobalConfig) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from the cobra command context.
// Returns (nil, false) if config is not present.
func FromContext(ctx context.Context) (*GlobalConfig, bool) {
	cfg, ok := ctx.Value(configKey).(*GlobalConfig)
	return cfg, ok
}

// MustFromContext retrieves config from context or panics.
// This should only be used in command RunE functions where we know
// the config has been injected by the root command.
func MustFromContext(ctx context.Context) *GlobalConfig {
	cfg, ok := FromContext(ctx)
	if !ok {
		panic("campusctl: config not found in context - this is a bug in campusctl")
	}
	return cfg
}
