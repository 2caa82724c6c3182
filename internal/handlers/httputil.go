package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/keystonepm/backoffice/internal/middleware"
	"github.com/keystonepm/backoffice/internal/services"
)

// decodeJSON enforces the request-body discipline every endpoint shares:
// bounded size, no unknown fields, exactly one JSON object.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func currentUser(r *http.Request) string {
	if s, ok := r.Context().Value(middleware.UserIDKey).(string); ok && s != "" {
		return s
	}
	return "anonymous"
}
