package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/middleware"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/telemetry"
)

// HandleFindUser serves GET /api/v1/users?email=.
func HandleFindUser(svc IdentityService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			middleware.WriteError(w, http.StatusBadRequest, "email query parameter is required")
			return
		}
		ref, err := svc.FindUserByEmail(r.Context(), email)
		if err != nil {
			writeServiceError(w, log, err, "user not found")
			return
		}
		writeJSON(w, http.StatusOK, ref)
	}
}

// HandleUpsertUser serves PUT /api/v1/users/{id}. The body id must match
// the path.
func HandleUpsertUser(svc IdentityService, metrics *telemetry.ServerMetrics, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req upsertUserRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.ID != chi.URLParam(r, "id") {
			middleware.WriteError(w, http.StatusBadRequest, "id does not match the path")
			return
		}
		ref, err := svc.UpsertUser(r.Context(), principal, req.record())
		if err != nil {
			writeServiceError(w, log, err, "")
			return
		}
		metrics.RecordUserUpsert()
		writeJSON(w, http.StatusOK, ref)
	}
}

// HandleGetUserSchool serves GET /api/v1/users/{id}/school.
func HandleGetUserSchool(svc IdentityService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := svc.GetUserWithSchool(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, log, err, "user not found")
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

// HandleUpdateSchoolPrincipal serves PUT /api/v1/schools/{id}/principal.
func HandleUpdateSchoolPrincipal(svc IdentityService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req principalNameRequest
		if err := decodeAndValidate(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := svc.UpdateSchoolPrincipal(r.Context(), principal, chi.URLParam(r, "id"), req.Name); err != nil {
			writeServiceError(w, log, err, "school not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
