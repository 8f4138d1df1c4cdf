package middleware

import (
	"encoding/json"
	"net/http"
)

// WriteError writes a JSON error body of the form {"error": "..."}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="campusapi"`)
	WriteError(w, http.StatusUnauthorized, "unauthorized")
}
