package handlers

import (
	"net/http"

	"responseready/models"
	"responseready/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type AdminHandler struct {
	svc *service.Service
	log zerolog.Logger
}

func NewAdminHandler(svc *service.Service, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		svc: svc,
		log: logger.With().Str("handler", "admin").Logger(),
	}
}

// --- User Management ---

// GetUsers returns all users
func (h *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	users, err := h.svc.ListUsers(r.Context(), caller)
	if err != nil {
		handleServiceError(w, h.log, err, "list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// GetUnits returns users that carry a call sign
func (h *AdminHandler) GetUnits(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	units, err := h.svc.ListUnits(r.Context(), caller)
	if err != nil {
		handleServiceError(w, h.log, err, "list units")
		return
	}

	writeJSON(w, http.StatusOK, units)
}

// UpdateRole changes another user's role
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.RoleUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := models.Validate(&req); err != nil {
		handleServiceError(w, h.log, err, "update role")
		return
	}

	user, err := h.svc.ChangeRole(r.Context(), caller, mux.Vars(r)["id"], req.Role)
	if err != nil {
		handleServiceError(w, h.log, err, "update role")
		return
	}

	h.log.Info().Str("user_id", caller.UID).Str("target", user.UID).Str("role", string(user.Role)).Msg("✅ Role updated")
	writeJSON(w, http.StatusOK, user)
}

// UpdateCallSign sets a user's call sign
func (h *AdminHandler) UpdateCallSign(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CallSignUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.ChangeCallSign(r.Context(), caller, mux.Vars(r)["id"], req.CallSign)
	if err != nil {
		handleServiceError(w, h.log, err, "update call sign")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ResetPassword sets a new password for a user
func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := models.Validate(&req); err != nil {
		handleServiceError(w, h.log, err, "reset password")
		return
	}

	target := mux.Vars(r)["id"]
	if err := h.svc.ResetPassword(r.Context(), caller, target, req.NewPassword); err != nil {
		handleServiceError(w, h.log, err, "reset password")
		return
	}

	h.log.Info().Str("user_id", caller.UID).Str("target", target).Msg("🔑 Password reset")
	writeMessage(w, "Password reset successfully")
}
