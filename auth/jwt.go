package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"responseready/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "responseready-api"

// Token kinds carried in the "typ" claim so a refresh token cannot be
// presented as an access token.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims represents the JWT claims
type Claims struct {
	UserID string          `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	Kind   string          `json:"typ"`

	// SessionID is shared by every token minted from one login, including
	// tokens obtained by refreshing.
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT token generation and validation
type JWTManager struct {
	secretKey              []byte
	tokenExpiration        time.Duration
	refreshTokenExpiration time.Duration
	now                    func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secretKey string, tokenExpiration, refreshTokenExpiration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:              []byte(secretKey),
		tokenExpiration:        tokenExpiration,
		refreshTokenExpiration: refreshTokenExpiration,
		now:                    time.Now,
	}
}

// NewSessionID returns an identifier for a new login session
func NewSessionID() string {
	return uuid.NewString()
}

// GenerateToken generates a new access token for a user
func (m *JWTManager) GenerateToken(user *models.UserProfile, sessionID string) (string, error) {
	return m.sign(user, sessionID, KindAccess, m.tokenExpiration)
}

// GenerateRefreshToken generates a refresh token with longer expiration
func (m *JWTManager) GenerateRefreshToken(user *models.UserProfile, sessionID string) (string, error) {
	return m.sign(user, sessionID, KindRefresh, m.refreshTokenExpiration)
}

// RefreshExpiration is the lifetime of a refresh token
func (m *JWTManager) RefreshExpiration() time.Duration {
	return m.refreshTokenExpiration
}

func (m *JWTManager) sign(user *models.UserProfile, sessionID, kind string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:    user.UID,
		Email:     user.Email,
		Role:      user.Role,
		Kind:      kind,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.UID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token of the given kind and returns the claims
func (m *JWTManager) ValidateToken(tokenString, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthenticated)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token", models.ErrUnauthenticated, kind)
	}

	return claims, nil
}

// ExtractToken extracts the token from the Authorization header
// Expected format: "Bearer <token>"
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is empty")
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", errors.New("invalid authorization header format")
	}

	return token, nil
}

// LocalVerifier verifies access tokens issued by a JWTManager
type LocalVerifier struct {
	jwt *JWTManager
}

// NewLocalVerifier wraps m as a token verifier
func NewLocalVerifier(m *JWTManager) *LocalVerifier {
	return &LocalVerifier{jwt: m}
}

// Verify validates an access token and returns the identity it names
func (v *LocalVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := v.jwt.ValidateToken(token, KindAccess)
	if err != nil {
		return nil, err
	}
	identity := &Identity{UID: claims.UserID, Email: claims.Email, TokenID: claims.ID, SessionID: claims.SessionID}
	if claims.ExpiresAt != nil {
		identity.Expires = claims.ExpiresAt.Time
	}
	return identity, nil
}
