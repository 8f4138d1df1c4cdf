package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/middleware"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/services/identity"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/telemetry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleLogin verifies credentials and returns a session token with the
// verified user and principal.
func HandleLogin(svc IdentityService, metrics *telemetry.ServerMetrics, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := svc.Login(r.Context(), identity.LoginRequest{
			Identifier: req.Identifier,
			Secret:     req.Secret,
			UserAgent:  r.UserAgent(),
			IPAddress:  r.RemoteAddr,
		})
		if errors.Is(err, identity.ErrInvalidCredentials) {
			metrics.RecordLogin(telemetry.LoginInvalid)
			log.Info().Str("identifier", req.Identifier).Msg("login rejected")
			middleware.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			metrics.RecordLogin(telemetry.LoginError)
			writeServiceError(w, log, err, "")
			return
		}

		metrics.RecordLogin(telemetry.LoginSuccess)
		log.Info().Str("principal_id", resp.Principal.ID).Str("role", string(resp.Principal.Role)).Msg("login succeeded")
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleWhoAmI returns the principal of the bearer session.
func HandleWhoAmI(svc IdentityService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		p, err := svc.Whoami(r.Context(), principal)
		if err != nil {
			writeServiceError(w, log, err, "account not found")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// HandleLogout revokes the bearer session.
func HandleLogout(svc IdentityService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err := svc.Logout(r.Context(), principal); err != nil {
			writeServiceError(w, log, err, "session not found")
			return
		}
		log.Info().Str("session_id", principal.SessionID).Msg("session revoked")
		w.WriteHeader(http.StatusNoContent)
	}
}
