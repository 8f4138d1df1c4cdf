package server

import (
	"net/http"
	"net/netip"

	"github.com/casbin/casbin/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/middleware"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/telemetry"
)

// RouterOptions controls the construction of the campusapi HTTP router.
type RouterOptions struct {
	Identity       IdentityService
	Enforcer       casbin.IEnforcer
	Metrics        *telemetry.ServerMetrics
	LoginLimiter   *middleware.RateLimiter
	CORSOptions    *cors.Options
	Logger         zerolog.Logger
	Middleware     []func(http.Handler) http.Handler
	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Requests from
	// other peers keep their connection address.
	TrustedProxies []netip.Prefix
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

type healthResponse struct {
	Status       string `json:"status"`
	DemoAccounts int    `json:"demo_accounts"`
}

// HandleHealth reports liveness and the number of demo accounts served.
func HandleHealth(svc IdentityService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.CountDemoAccounts(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", DemoAccounts: n})
	}
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the campusapi handlers mounted.
func NewRouter(opts RouterOptions) chi.Router {
	log := opts.Logger
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.TrustedRealIP(opts.TrustedProxies))
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	if opts.Metrics != nil {
		r.Use(middleware.RecordMetrics(opts.Metrics))
	}

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	if opts.Identity == nil {
		log.Warn().Msg("identity service not configured, only /metrics is served")
		return r
	}
	svc := opts.Identity

	r.Get("/health", HandleHealth(svc, log))

	login := HandleLogin(svc, opts.Metrics, log)
	if opts.LoginLimiter != nil {
		limited := opts.LoginLimiter.Middleware(func(*http.Request) {
			opts.Metrics.RecordLogin(telemetry.LoginRateLimited)
		})
		r.With(limited).Post("/auth/login", login)
	} else {
		r.Post("/auth/login", login)
	}

	requireAuth := middleware.RequireAuthentication(svc, log)
	r.With(requireAuth).Get("/auth/whoami", HandleWhoAmI(svc, log))
	r.With(requireAuth).Post("/auth/logout", HandleLogout(svc, log))

	if opts.Enforcer == nil {
		log.Warn().Msg("casbin enforcer not configured, skipping /api/v1")
		return r
	}
	can := func(obj, act string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(opts.Enforcer, obj, act, log)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(requireAuth)
		api.With(can(auth.ObjectUser, auth.UserRead)).Get("/users", HandleFindUser(svc, log))
		api.With(can(auth.ObjectUser, auth.UserWrite)).Put("/users/{id}", HandleUpsertUser(svc, opts.Metrics, log))
		api.With(can(auth.ObjectSchool, auth.SchoolRead)).Get("/users/{id}/school", HandleGetUserSchool(svc, log))
		api.With(can(auth.ObjectSchool, auth.SchoolUpdatePrincipal)).Put("/schools/{id}/principal", HandleUpdateSchoolPrincipal(svc, log))
	})

	return r
}
