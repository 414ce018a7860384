// Package session resolves callers to a stored profile and tracks the
// lifecycle of their sessions.
//
// A Provider is the application-scoped "current user" context. It is built
// once in main and injected into middleware and handlers. Session restore is
// Restore(token); teardown is Logout, which revokes every token of the login
// session and notifies every observer registered for that user so open
// streams can be released.
//
// Signup grants the privileged role to the first profile ever created. The
// check and the write are two store operations with nothing in between, so two
// concurrent first signups can both become commissioner. That is the
// documented single-operator bootstrap assumption and is left as is.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"responseready/auth"
	"responseready/db"
	"responseready/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrProviderManaged is returned for password operations when identities are
// managed by Firebase Authentication.
var ErrProviderManaged = errors.New("identities are managed by the identity provider")

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// EventKind identifies a session event.
type EventKind int

const (
	// LoggedOut fires after a user's token is revoked.
	LoggedOut EventKind = iota
	// ProfileChanged fires after a user's role or call sign changes.
	ProfileChanged
)

func (k EventKind) String() string {
	switch k {
	case LoggedOut:
		return "logged_out"
	case ProfileChanged:
		return "profile_changed"
	}
	return "unknown"
}

// Event is delivered to observers of a user.
type Event struct {
	Kind    EventKind
	Profile *models.UserProfile
}

// Provider is the Session/Identity Provider.
type Provider struct {
	store    db.Store
	verifier TokenVerifier
	jwt      *auth.JWTManager // nil when identities are provider-managed
	hasher   *auth.Hasher
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	revoked   map[string]time.Time // jti -> token expiry
	ended     map[string]time.Time // sid -> expiry of the last refresh token it could have minted
	observers map[string]map[uint64]func(Event)
	nextID    uint64
}

// NewLocal builds a Provider that owns email/password identities and issues
// its own tokens.
func NewLocal(store db.Store, jwt *auth.JWTManager, hasher *auth.Hasher, logger zerolog.Logger) *Provider {
	p := newProvider(store, auth.NewLocalVerifier(jwt), logger)
	p.jwt = jwt
	p.hasher = hasher
	return p
}

// NewExternal builds a Provider that trusts an external verifier, such as
// Firebase Authentication, and only manages profiles.
func NewExternal(store db.Store, verifier TokenVerifier, logger zerolog.Logger) *Provider {
	return newProvider(store, verifier, logger)
}

func newProvider(store db.Store, verifier TokenVerifier, logger zerolog.Logger) *Provider {
	return &Provider{
		store:     store,
		verifier:  verifier,
		log:       logger.With().Str("component", "session").Logger(),
		now:       time.Now,
		revoked:   map[string]time.Time{},
		ended:     map[string]time.Time{},
		observers: map[string]map[uint64]func(Event){},
	}
}

// ManagesPasswords reports whether the Provider handles signup, login and
// password changes itself.
func (p *Provider) ManagesPasswords() bool {
	return p.jwt != nil
}

// Signup creates a profile and password for a new email address and returns
// a fresh session.
func (p *Provider) Signup(ctx context.Context, req *models.SignupRequest) (*models.SessionResponse, error) {
	if !p.ManagesPasswords() {
		return nil, ErrProviderManaged
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}

	if _, err := p.store.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, models.ErrEmailAlreadyExists
	} else if !errors.Is(err, models.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := p.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	// The hash goes in first: a profile without one could never log in and
	// would hold the email forever.
	uid := uuid.NewString()
	if err := p.store.StorePasswordHash(ctx, uid, hash); err != nil {
		return nil, err
	}
	user, err := p.createProfile(ctx, uid, req.Name, req.Email)
	if err != nil {
		return nil, err
	}

	return p.issue(user, auth.NewSessionID())
}

// CreateProfile stores the profile for an identity that the external provider
// has already authenticated. The first-user rule applies as for Signup.
func (p *Provider) CreateProfile(ctx context.Context, identity *auth.Identity, name string) (*models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrValidationFailed)
	}
	if _, err := p.store.GetUser(ctx, identity.UID); err == nil {
		return nil, models.ErrEmailAlreadyExists
	} else if !errors.Is(err, models.ErrRecordNotFound) {
		return nil, err
	}
	return p.createProfile(ctx, identity.UID, name, normalizeEmail(identity.Email))
}

func (p *Provider) createProfile(ctx context.Context, uid, name, email string) (*models.UserProfile, error) {
	first, err := p.store.IsFirstUser(ctx)
	if err != nil {
		return nil, err
	}

	role := models.DefaultSignupRole
	if first {
		role = models.RoleCommissioner
	}

	user := &models.UserProfile{UID: uid, Name: name, Email: email, Role: role}
	if err := p.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	p.log.Info().Str("user_id", user.UID).Str("role", string(role)).Msg("✅ Profile created")
	return user, nil
}

// Login verifies an email and password. Unknown emails and wrong passwords
// are indistinguishable to the caller.
func (p *Provider) Login(ctx context.Context, req *models.LoginRequest) (*models.SessionResponse, error) {
	if !p.ManagesPasswords() {
		return nil, ErrProviderManaged
	}
	req.Email = normalizeEmail(req.Email)
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	user, err := p.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			p.log.Warn().Str("email", req.Email).Msg("⚠️ Login attempt for unknown email")
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	hash, err := p.store.GetPasswordHash(ctx, user.UID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := p.hasher.CheckPassword(req.Password, hash); err != nil {
		p.log.Warn().Str("user_id", user.UID).Msg("⚠️ Invalid password")
		return nil, err
	}

	p.log.Info().Str("user_id", user.UID).Msg("✅ User logged in")
	return p.issue(user, auth.NewSessionID())
}

// Refresh exchanges a refresh token for new tokens in the same session. The
// old refresh token is revoked. The new tokens carry the profile's current
// role.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*models.SessionResponse, error) {
	if !p.ManagesPasswords() {
		return nil, ErrProviderManaged
	}
	claims, err := p.jwt.ValidateToken(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, err
	}
	if p.isRevoked(claims.ID, claims.SessionID) {
		return nil, fmt.Errorf("%w: token revoked", models.ErrUnauthenticated)
	}

	user, err := p.profile(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt != nil {
		p.revoke(claims.ID, claims.ExpiresAt.Time)
	}
	return p.issue(user, claims.SessionID)
}

func (p *Provider) issue(user *models.UserProfile, sessionID string) (*models.SessionResponse, error) {
	token, err := p.jwt.GenerateToken(user, sessionID)
	if err != nil {
		return nil, err
	}
	refresh, err := p.jwt.GenerateRefreshToken(user, sessionID)
	if err != nil {
		return nil, err
	}
	return &models.SessionResponse{Token: token, RefreshToken: refresh, User: user}, nil
}

// Authenticate verifies a token without loading the profile.
func (p *Provider) Authenticate(ctx context.Context, token string) (*auth.Identity, error) {
	identity, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.isRevoked(identity.TokenID, identity.SessionID) {
		return nil, fmt.Errorf("%w: token revoked", models.ErrUnauthenticated)
	}
	return identity, nil
}

// Restore resolves a persisted token to the caller's current profile. The
// profile is always read from the store, so role changes apply to existing
// tokens immediately.
func (p *Provider) Restore(ctx context.Context, token string) (*auth.Identity, *models.UserProfile, error) {
	identity, err := p.Authenticate(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	user, err := p.profile(ctx, identity.UID)
	if err != nil {
		return identity, nil, err
	}
	return identity, user, nil
}

func (p *Provider) profile(ctx context.Context, uid string) (*models.UserProfile, error) {
	user, err := p.store.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no profile for %s", models.ErrUnauthenticated, uid)
		}
		return nil, err
	}
	return user, nil
}

// Logout ends the identity's login session and notifies the user's
// observers. Every access and refresh token carrying the session id is
// rejected afterwards. Provider-managed tokens cannot be revoked here; the
// client signs out of the provider itself.
func (p *Provider) Logout(ctx context.Context, identity *auth.Identity) {
	if identity.TokenID != "" {
		p.revoke(identity.TokenID, identity.Expires)
	}
	if identity.SessionID != "" && p.jwt != nil {
		p.endSession(identity.SessionID, p.now().Add(p.jwt.RefreshExpiration()))
	}
	p.log.Info().Str("user_id", identity.UID).Msg("👋 User logged out")
	p.notify(identity.UID, Event{Kind: LoggedOut})
}

// SetPassword replaces a user's password hash. Authorization is the caller's
// responsibility.
func (p *Provider) SetPassword(ctx context.Context, uid, password string) error {
	if !p.ManagesPasswords() {
		return ErrProviderManaged
	}
	if _, err := p.store.GetUser(ctx, uid); err != nil {
		return err
	}
	hash, err := p.hasher.HashPassword(password)
	if err != nil {
		return err
	}
	return p.store.StorePasswordHash(ctx, uid, hash)
}

// ProfileChanged notifies observers of profile.UID that it was updated.
func (p *Provider) ProfileChanged(profile *models.UserProfile) {
	p.notify(profile.UID, Event{Kind: ProfileChanged, Profile: profile})
}

// Subscribe registers fn for events about uid. The returned function
// unregisters it and is safe to call more than once. fn runs synchronously
// on the goroutine that triggered the event and must not block.
func (p *Provider) Subscribe(uid string, fn func(Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	if p.observers[uid] == nil {
		p.observers[uid] = map[uint64]func(Event){}
	}
	p.observers[uid][id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers[uid], id)
		if len(p.observers[uid]) == 0 {
			delete(p.observers, uid)
		}
	}
}

func (p *Provider) notify(uid string, ev Event) {
	p.mu.Lock()
	fns := make([]func(Event), 0, len(p.observers[uid]))
	for _, fn := range p.observers[uid] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (p *Provider) revoke(jti string, expires time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for id, exp := range p.revoked {
		if now.After(exp) {
			delete(p.revoked, id)
		}
	}
	p.revoked[jti] = expires
}

func (p *Provider) endSession(sid string, expires time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for id, exp := range p.ended {
		if now.After(exp) {
			delete(p.ended, id)
		}
	}
	p.ended[sid] = expires
}

func (p *Provider) isRevoked(jti, sid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, revoked := p.revoked[jti]; jti != "" && revoked {
		return true
	}
	_, ended := p.ended[sid]
	return sid != "" && ended
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
