package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"responseready/middleware"
	"responseready/models"
	"responseready/session"

	"github.com/rs/zerolog"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": message,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.UserProfile, bool) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
	}
	return user, ok
}

// errorStatus maps the error taxonomy to an HTTP status and a message that is
// safe to show the user.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden, permissionMessage(err)
	case errors.Is(err, models.ErrRecordNotFound):
		return http.StatusNotFound, "Record not found"
	case errors.Is(err, models.ErrEmailAlreadyExists):
		return http.StatusConflict, "Email already exists"
	case errors.Is(err, models.ErrValidationFailed):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrProviderManaged):
		return http.StatusBadRequest, "Accounts are managed by the identity provider"
	case errors.Is(err, models.ErrStoreOperationFailed):
		return http.StatusBadGateway, "The record store is unavailable. Please try again."
	}
	return http.StatusInternalServerError, "Internal server error"
}

func permissionMessage(err error) string {
	if strings.Contains(err.Error(), "own role") {
		return "You cannot change your own role"
	}
	return "Insufficient permissions"
}

// handleServiceError writes err as a JSON notification. Failures that are not
// the caller's fault are logged.
func handleServiceError(w http.ResponseWriter, logger zerolog.Logger, err error, action string) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("action", action).Msg("❌ Request failed")
	}
	writeError(w, message, status)
}
