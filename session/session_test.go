package session_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"responseready/auth"
	"responseready/db"
	"responseready/models"
	"responseready/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newProvider(t *testing.T) (*session.Provider, *db.MemoryDB) {
	t.Helper()
	store := db.NewMemoryDB()
	jwt := auth.NewJWTManager("test-secret", time.Minute, time.Hour)
	return session.NewLocal(store, jwt, auth.NewHasher(bcrypt.MinCost), zerolog.Nop()), store
}

func signup(t *testing.T, p *session.Provider, n int) *models.SessionResponse {
	t.Helper()
	resp, err := p.Signup(context.Background(), &models.SignupRequest{
		Name:     fmt.Sprintf("Officer %d", n),
		Email:    fmt.Sprintf("officer%d@example.com", n),
		Password: "patrol2024",
	})
	require.NoError(t, err)
	return resp
}

func TestSignup_FirstUserIsCommissioner(t *testing.T) {
	p, _ := newProvider(t)

	first := signup(t, p, 1)
	assert.Equal(t, models.RoleCommissioner, first.User.Role)

	for n := 2; n <= 5; n++ {
		later := signup(t, p, n)
		assert.Equal(t, models.DefaultSignupRole, later.User.Role, "signup %d", n)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	p, _ := newProvider(t)
	signup(t, p, 1)

	_, err := p.Signup(context.Background(), &models.SignupRequest{
		Name:     "Someone Else",
		Email:    "  OFFICER1@example.com ",
		Password: "patrol2024",
	})
	assert.ErrorIs(t, err, models.ErrEmailAlreadyExists)
}

func TestSignup_Validation(t *testing.T) {
	p, store := newProvider(t)
	ctx := context.Background()

	_, err := p.Signup(ctx, &models.SignupRequest{Name: "A", Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = p.Signup(ctx, &models.SignupRequest{Name: "", Email: "a@example.com", Password: "patrol2024"})
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	first, err := store.IsFirstUser(ctx)
	require.NoError(t, err)
	assert.True(t, first, "failed signups create nothing")
}

func TestLogin(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	created := signup(t, p, 1)

	resp, err := p.Login(ctx, &models.LoginRequest{Email: "officer1@example.com", Password: "patrol2024"})
	require.NoError(t, err)
	assert.Equal(t, created.User.UID, resp.User.UID)
	assert.NotEmpty(t, resp.Token)

	_, err = p.Login(ctx, &models.LoginRequest{Email: "officer1@example.com", Password: "patrol2025"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = p.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "patrol2024"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestRestore_ReadsCurrentRole(t *testing.T) {
	p, store := newProvider(t)
	ctx := context.Background()
	signup(t, p, 1)
	resp := signup(t, p, 2)

	require.NoError(t, store.UpdateUserRole(ctx, resp.User.UID, models.RoleDispatch))

	_, user, err := p.Restore(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDispatch, user.Role)

	_, _, err = p.Restore(ctx, "garbage")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestLogout_RevokesTokenAndNotifies(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	resp := signup(t, p, 1)

	var events []session.Event
	unsubscribe := p.Subscribe(resp.User.UID, func(ev session.Event) { events = append(events, ev) })
	defer unsubscribe()

	identity, _, err := p.Restore(ctx, resp.Token)
	require.NoError(t, err)

	p.Logout(ctx, identity)

	_, _, err = p.Restore(ctx, resp.Token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	require.Len(t, events, 1)
	assert.Equal(t, session.LoggedOut, events[0].Kind)

	_, err = p.Refresh(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated, "logout ends the refresh token too")
}

func TestLogout_EndsRefreshedTokens(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	resp := signup(t, p, 1)

	refreshed, err := p.Refresh(ctx, resp.RefreshToken)
	require.NoError(t, err)

	// Logging out with the original access token ends the whole chain.
	identity, _, err := p.Restore(ctx, resp.Token)
	require.NoError(t, err)
	p.Logout(ctx, identity)

	_, _, err = p.Restore(ctx, refreshed.Token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = p.Refresh(ctx, refreshed.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	t.Run("OtherSessionsSurvive", func(t *testing.T) {
		other, err := p.Login(ctx, &models.LoginRequest{Email: "officer1@example.com", Password: "patrol2024"})
		require.NoError(t, err)

		_, user, err := p.Restore(ctx, other.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.User.UID, user.UID)

		_, err = p.Refresh(ctx, other.RefreshToken)
		assert.NoError(t, err)
	})
}

// failingPasswords is a store whose password writes fail.
type failingPasswords struct {
	*db.MemoryDB
}

func (failingPasswords) StorePasswordHash(context.Context, string, string) error {
	return fmt.Errorf("%w: unavailable", models.ErrStoreOperationFailed)
}

func TestSignup_FailedPasswordWriteLeavesNoProfile(t *testing.T) {
	ctx := context.Background()
	memory := db.NewMemoryDB()
	jwt := auth.NewJWTManager("test-secret", time.Minute, time.Hour)
	req := func() *models.SignupRequest {
		return &models.SignupRequest{Name: "Officer 1", Email: "officer1@example.com", Password: "patrol2024"}
	}

	broken := session.NewLocal(failingPasswords{memory}, jwt, auth.NewHasher(bcrypt.MinCost), zerolog.Nop())
	_, err := broken.Signup(ctx, req())
	require.ErrorIs(t, err, models.ErrStoreOperationFailed)

	users, err := memory.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	// The email is still free and the bootstrap role is still unclaimed.
	p := session.NewLocal(memory, jwt, auth.NewHasher(bcrypt.MinCost), zerolog.Nop())
	resp, err := p.Signup(ctx, req())
	require.NoError(t, err)
	assert.Equal(t, models.RoleCommissioner, resp.User.Role)
}

func TestRefresh(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	resp := signup(t, p, 1)

	refreshed, err := p.Refresh(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.Token, refreshed.Token)

	_, err = p.Refresh(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated, "refresh tokens are single use")

	_, err = p.Refresh(ctx, resp.Token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated, "access tokens cannot refresh")
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	p, _ := newProvider(t)
	user := &models.UserProfile{UID: "u1", Role: models.RolePolice}

	calls := 0
	unsubscribe := p.Subscribe("u1", func(session.Event) { calls++ })
	p.ProfileChanged(user)
	unsubscribe()
	unsubscribe()
	p.ProfileChanged(user)

	assert.Equal(t, 1, calls)
}

func TestSetPassword(t *testing.T) {
	p, _ := newProvider(t)
	ctx := context.Background()
	resp := signup(t, p, 1)

	require.NoError(t, p.SetPassword(ctx, resp.User.UID, "newpass99"))

	_, err := p.Login(ctx, &models.LoginRequest{Email: "officer1@example.com", Password: "newpass99"})
	assert.NoError(t, err)

	assert.ErrorIs(t, p.SetPassword(ctx, "missing", "newpass99"), models.ErrRecordNotFound)
}

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	return &auth.Identity{UID: token, Email: token + "@example.com"}, nil
}

func TestExternalProvider(t *testing.T) {
	store := db.NewMemoryDB()
	p := session.NewExternal(store, stubVerifier{}, zerolog.Nop())
	ctx := context.Background()

	assert.False(t, p.ManagesPasswords())
	_, err := p.Login(ctx, &models.LoginRequest{Email: "a@example.com", Password: "x"})
	assert.ErrorIs(t, err, session.ErrProviderManaged)

	identity, _, err := p.Restore(ctx, "fb-uid-1")
	assert.ErrorIs(t, err, models.ErrUnauthenticated, "no profile yet")
	require.NotNil(t, identity)

	user, err := p.CreateProfile(ctx, identity, "First Responder")
	require.NoError(t, err)
	assert.Equal(t, "fb-uid-1", user.UID)
	assert.Equal(t, models.RoleCommissioner, user.Role)

	_, err = p.CreateProfile(ctx, identity, "Again")
	assert.ErrorIs(t, err, models.ErrEmailAlreadyExists)

	second, err := p.CreateProfile(ctx, &auth.Identity{UID: "fb-uid-2"}, "Second")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSignupRole, second.Role)
}
