package middleware

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/rs/zerolog"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
)

// RequirePermission enforces a Casbin (role, object, action) check for the
// authenticated principal. It must run after RequireAuthentication.
func RequirePermission(enforcer casbin.IEnforcer, obj, act string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				unauthenticated(w)
				return
			}
			allowed, err := enforcer.Enforce(auth.RoleSubject(string(principal.Role)), obj, act)
			if err != nil {
				log.Error().Err(err).Str("action", act).Msg("authorization check failed")
				WriteError(w, http.StatusInternalServerError, "authorization check failed")
				return
			}
			if !allowed {
				log.Info().Str("role", string(principal.Role)).Str("action", act).Msg("permission denied")
				WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
