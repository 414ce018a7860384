package auth

import (
	"context"
	"fmt"
	"time"

	"responseready/models"

	firebase "firebase.google.com/go"
	fbauth "firebase.google.com/go/auth"
)

// Identity is a verified caller before their profile is loaded.
type Identity struct {
	UID       string
	Email     string
	TokenID   string // jti for local tokens, empty for provider tokens
	SessionID string // sid for local tokens, empty for provider tokens
	Expires   time.Time
}

// FirebaseVerifier checks ID tokens issued by Firebase Authentication.
// Sign-in itself happens in the browser; the API only sees the ID token.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier builds a verifier from an initialized Firebase app
func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify validates an ID token and returns the identity it names
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}

	email, _ := token.Claims["email"].(string)
	return &Identity{UID: token.UID, Email: email, Expires: time.Unix(token.Expires, 0)}, nil
}
