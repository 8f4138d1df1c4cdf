package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pensezy/edutrack/cmd/campusapi/internal/middleware"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/repository"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/services/identity"
)

// writeServiceError maps service and repository errors onto HTTP statuses.
// Unexpected errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		middleware.WriteError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, identity.ErrUnauthenticated):
		middleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, identity.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, identity.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, repository.ErrConflict):
		middleware.WriteError(w, http.StatusConflict, "conflicts with an existing record")
	default:
		log.Error().Err(err).Msg("request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
