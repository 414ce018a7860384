package handlers

import (
	"net/http"

	"responseready/middleware"
	"responseready/models"
	"responseready/policy"
	"responseready/service"
	"responseready/session"

	"github.com/rs/zerolog"
)

type AuthHandler struct {
	sessions *session.Provider
	svc      *service.Service
	log      zerolog.Logger
}

func NewAuthHandler(sessions *session.Provider, svc *service.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		svc:      svc,
		log:      logger.With().Str("handler", "auth").Logger(),
	}
}

// SessionInfo is the restored session: the profile plus what it may do.
type SessionInfo struct {
	User         *models.UserProfile `json:"user"`
	Capabilities []policy.Action     `json:"capabilities"`
}

// Signup creates an account. The very first account becomes commissioner.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.sessions.Signup(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "signup")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.sessions.Login(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "login")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken exchanges a refresh token for a new session
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	resp, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(w, h.log, err, "refresh")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the caller's token and closes their open streams
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	h.sessions.Logout(r.Context(), identity)
	writeMessage(w, "Logged out")
}

// Session restores the session for a persisted token
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, SessionInfo{
		User:         user,
		Capabilities: h.svc.Capabilities(user),
	})
}

type CreateProfileRequest struct {
	Name string `json:"name"`
}

// CreateProfile stores the profile for a provider-authenticated identity
func (h *AuthHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	var req CreateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.sessions.CreateProfile(r.Context(), identity, req.Name)
	if err != nil {
		handleServiceError(w, h.log, err, "create profile")
		return
	}

	writeJSON(w, http.StatusCreated, SessionInfo{
		User:         user,
		Capabilities: h.svc.Capabilities(user),
	})
}
