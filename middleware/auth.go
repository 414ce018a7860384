package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"responseready/auth"
	"responseready/models"
	"responseready/policy"

	"github.com/gorilla/websocket"
)

type contextKey string

const (
	UserContextKey     contextKey = "user"
	IdentityContextKey contextKey = "identity"
)

// Sessions resolves bearer tokens.
type Sessions interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
	Restore(ctx context.Context, token string) (*auth.Identity, *models.UserProfile, error)
}

// AuthMiddleware validates the session token and injects the caller's
// current profile into the request context.
func AuthMiddleware(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := requestToken(w, r)
			if !ok {
				return
			}

			identity, user, err := sessions.Restore(r.Context(), token)
			if err != nil {
				if errors.Is(err, models.ErrUnauthenticated) {
					writeError(w, "Invalid or expired token", http.StatusUnauthorized)
				} else {
					writeError(w, "Failed to load user profile", http.StatusBadGateway)
				}
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			ctx = context.WithValue(ctx, UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityMiddleware validates the token but does not require a stored
// profile. It guards profile creation for provider-managed identities.
func IdentityMiddleware(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := requestToken(w, r)
			if !ok {
				return
			}

			identity, err := sessions.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestToken reads the bearer token. Browsers cannot set headers on a
// WebSocket handshake, so upgrade requests may pass it as ?token= instead.
func requestToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" && websocket.IsWebSocketUpgrade(r) {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, true
		}
	}
	if authHeader == "" {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return "", false
	}

	token, err := auth.ExtractToken(authHeader)
	if err != nil {
		writeError(w, "Invalid authorization header", http.StatusUnauthorized)
		return "", false
	}
	return token, true
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) (*models.UserProfile, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.UserProfile)
	return user, ok
}

// GetIdentityFromContext retrieves the verified token identity
func GetIdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*auth.Identity)
	return identity, ok
}

// RequireAction rejects callers whose role may not perform action. The
// service layer checks again; this keeps forbidden surfaces from being
// reached at all.
func RequireAction(action policy.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, "User not found in context", http.StatusUnauthorized)
				return
			}

			if !policy.Allowed(user.Role, action) {
				writeError(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
