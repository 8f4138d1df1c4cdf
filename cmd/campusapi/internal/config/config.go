package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinJWTSecretLength is the shortest HS256 signing secret accepted.
const MinJWTSecretLength = 32

// Config holds the campusapi configuration
type Config struct {
	// Database connection string (DSN). postgres:// URLs use PostgreSQL,
	// anything else is treated as a SQLite path.
	DatabaseURL string `mapstructure:"database_url"`

	// Server bind address (host:port)
	ServerAddr string `mapstructure:"server_addr"`

	// Public base URL, used as the token issuer
	ServerURL string `mapstructure:"server_url"`

	MaxDBConnections int  `mapstructure:"max_db_connections"`
	Debug            bool `mapstructure:"debug"`

	// TrustedProxies lists CIDR prefixes or addresses of reverse proxies
	// whose X-Forwarded-For and X-Real-IP headers are honoured. Empty means
	// the connection peer is always the client address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	Auth AuthConfig `mapstructure:"auth"`
}

// AuthConfig controls session tokens and login throttling.
type AuthConfig struct {
	// JWTSecret signs session access tokens (HS256)
	JWTSecret string `mapstructure:"jwt_secret"`

	// SessionTTL is the lifetime of an issued session
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// LoginRatePerMinute and LoginBurst bound login attempts per client IP
	LoginRatePerMinute int `mapstructure:"login_rate_per_minute"`
	LoginBurst         int `mapstructure:"login_burst"`

	// SchoolCacheSize bounds the in-memory school lookup cache
	SchoolCacheSize int `mapstructure:"school_cache_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "campusapi.db")
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("debug", false)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", 12*time.Hour)
	v.SetDefault("auth.login_rate_per_minute", 10)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("auth.school_cache_size", 256)
}

// Load reads configuration from CAMPUS_ environment variables, an optional
// campusapi.yaml in the working directory or /etc/campusapi, and defaults.
// Flags bound to the global viper instance take precedence.
func Load() (*Config, error) {
	v := viper.GetViper()
	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("campusapi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/campusapi")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !asConfigNotFound(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func asConfigNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("CAMPUS_DATABASE_URL is required")
	}
	if c.ServerURL == "" {
		return fmt.Errorf("CAMPUS_SERVER_URL is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.LoginRatePerMinute <= 0 || c.Auth.LoginBurst <= 0 {
		return fmt.Errorf("auth.login_rate_per_minute and auth.login_burst must be positive")
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			return fmt.Errorf("trusted_proxies: %q is not an address or CIDR prefix", p)
		}
	}
	return nil
}

func validProxy(v string) bool {
	v = strings.TrimSpace(v)
	if strings.Contains(v, "/") {
		_, err := netip.ParsePrefix(v)
		return err == nil
	}
	_, err := netip.ParseAddr(v)
	return err == nil
}

// RequireSigningSecret reports an error when the JWT secret is too short to
// serve logins.
func (c *Config) RequireSigningSecret() error {
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("CAMPUS_AUTH_JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	return nil
}
