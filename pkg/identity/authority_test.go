package identity_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qbitshield/authgate/pkg/identity"
)

const callbackURL = "https://app.example.com/auth/callback?redirect=%2Fdashboard%2Freports"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAdapter struct {
	provider identity.OAuthProvider
	profiles map[string]identity.ProviderProfile
}

func (f *fakeAdapter) Provider() identity.OAuthProvider { return f.provider }

func (f *fakeAdapter) AuthURL(state string) string {
	return "https://provider.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeAdapter) ResolveProfile(_ context.Context, code string) (identity.ProviderProfile, error) {
	p, ok := f.profiles[code]
	if !ok {
		return identity.ProviderProfile{}, identity.ErrProviderExchange
	}
	return p, nil
}

type fixture struct {
	auth      *identity.Authority
	users     *identity.MemoryUsers
	artifacts *identity.MemoryArtifacts
	clock     *testClock
	adapter   *fakeAdapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:     identity.NewMemoryUsers(),
		artifacts: identity.NewMemoryArtifacts(time.Hour),
		clock:     &testClock{t: time.Now()},
		adapter: &fakeAdapter{
			provider: identity.ProviderGoogle,
			profiles: map[string]identity.ProviderProfile{},
		},
	}

	auth, err := identity.NewAuthority(identity.Config{
		SigningKey: "0123456789abcdef0123456789abcdef",
		BcryptCost: bcrypt.MinCost,
	}, f.users, identity.NewMemorySessions(), f.artifacts,
		identity.WithClock(f.clock.Now),
		identity.WithOAuthAdapters(f.adapter),
	)
	require.NoError(t, err)
	f.auth = auth
	return f
}

func tokenFrom(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestNewAuthority_ShortKey(t *testing.T) {
	t.Parallel()

	_, err := identity.NewAuthority(identity.Config{SigningKey: "short"},
		identity.NewMemoryUsers(), identity.NewMemorySessions(), identity.NewMemoryArtifacts(time.Hour))
	assert.Error(t, err)
}

func TestCredentials(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.SignUp(ctx, " Jane@Example.com ", "hunter22", identity.Profile{Name: "Jane"})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		sess, err := f.auth.VerifyCredentials(ctx, "jane@example.com", "hunter22")
		require.NoError(t, err)
		assert.NotEmpty(t, sess.AccessToken)
		assert.NotEmpty(t, sess.RefreshToken)
		assert.NotEqual(t, uuid.Nil, sess.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.auth.VerifyCredentials(ctx, "jane@example.com", "nope")
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.auth.VerifyCredentials(ctx, "ghost@example.com", "hunter22")
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	})

	t.Run("user without password", func(t *testing.T) {
		_, err := f.users.UpsertProfile(ctx, "magic@example.com", identity.Profile{})
		require.NoError(t, err)
		_, err = f.auth.VerifyCredentials(ctx, "magic@example.com", "anything")
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	})

	t.Run("duplicate sign up", func(t *testing.T) {
		_, err := f.auth.SignUp(ctx, "JANE@example.com", "other", identity.Profile{})
		assert.ErrorIs(t, err, identity.ErrEmailTaken)
	})

	t.Run("sign up validation", func(t *testing.T) {
		_, err := f.auth.SignUp(ctx, "not-an-email", "pw", identity.Profile{})
		assert.ErrorIs(t, err, identity.ErrInvalidEmail)
		_, err = f.auth.SignUp(ctx, "new@example.com", "", identity.Profile{})
		assert.ErrorIs(t, err, identity.ErrPasswordRequired)
	})
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.auth.SignUp(ctx, "a@example.com", "pw", identity.Profile{})
	require.NoError(t, err)
	ref := sess.Ref()

	got, err := f.auth.GetSession(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.ID, got.ID)

	t.Run("empty ref", func(t *testing.T) {
		_, err := f.auth.GetSession(ctx, identity.SessionRef{})
		assert.ErrorIs(t, err, identity.ErrSessionNotFound)
	})

	t.Run("forged refresh token", func(t *testing.T) {
		_, err := f.auth.GetSession(ctx, identity.SessionRef{AccessToken: ref.AccessToken, RefreshToken: "forged"})
		assert.ErrorIs(t, err, identity.ErrSessionNotFound)
	})

	t.Run("garbage access token", func(t *testing.T) {
		_, err := f.auth.GetSession(ctx, identity.SessionRef{AccessToken: "x.y.z", RefreshToken: ref.RefreshToken})
		assert.ErrorIs(t, err, identity.ErrSessionNotFound)
	})
}

func TestSessionExpiryAndRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.auth.SignUp(ctx, "a@example.com", "pw", identity.Profile{})
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)

	_, err = f.auth.GetSession(ctx, sess.Ref())
	assert.ErrorIs(t, err, identity.ErrSessionExpired)

	refreshed, err := f.auth.Refresh(ctx, sess.Ref())
	require.NoError(t, err)
	assert.NotEqual(t, sess.AccessToken, refreshed.AccessToken)
	assert.Equal(t, sess.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, sess.ID, refreshed.ID)

	_, err = f.auth.GetSession(ctx, refreshed.Ref())
	require.NoError(t, err)

	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.auth.Refresh(ctx, refreshed.Ref())
	assert.ErrorIs(t, err, identity.ErrSessionExpired)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.auth.SignUp(ctx, "a@example.com", "pw", identity.Profile{})
	require.NoError(t, err)

	require.NoError(t, f.auth.Invalidate(ctx, sess.Ref()))

	_, err = f.auth.GetSession(ctx, sess.Ref())
	assert.ErrorIs(t, err, identity.ErrSessionNotFound)

	_, err = f.auth.Refresh(ctx, sess.Ref())
	assert.ErrorIs(t, err, identity.ErrSessionNotFound)

	assert.ErrorIs(t, f.auth.Invalidate(ctx, sess.Ref()), identity.ErrSessionNotFound)
}

func TestMagicLink(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.UpsertProfile(ctx, "m@example.com", identity.Profile{Name: "Mia"})
	require.NoError(t, err)

	link, err := f.auth.IssueMagicLink(ctx, "M@example.com", callbackURL)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard/reports", u.Query().Get("redirect"))
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)

	sess, err := f.auth.ExchangeArtifact(ctx, identity.Artifact{Kind: identity.ArtifactMagicLink, Token: tok})
	require.NoError(t, err)

	user, err := f.users.FindByID(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Equal(t, "m@example.com", user.Email)
	assert.True(t, user.Verified)
	assert.Equal(t, "Mia", user.Name)

	_, err = f.auth.ExchangeArtifact(ctx, identity.Artifact{Kind: identity.ArtifactMagicLink, Token: tok})
	assert.ErrorIs(t, err, identity.ErrArtifactConsumed)

	_, err = f.auth.ExchangeArtifact(ctx, identity.Artifact{Kind: identity.ArtifactMagicLink, Token: "unknown"})
	assert.ErrorIs(t, err, identity.ErrArtifactNotFound)

	_, err = f.auth.IssueMagicLink(ctx, "bad", callbackURL)
	assert.ErrorIs(t, err, identity.ErrInvalidEmail)

	_, err = f.auth.IssueMagicLink(ctx, "m@example.com", "/relative/only")
	assert.ErrorIs(t, err, identity.ErrInvalidRedirectURI)
}

func TestArtifactValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for _, a := range []identity.Artifact{
		{},
		{Kind: identity.ArtifactOAuthCode, Code: "c"},
		{Kind: identity.ArtifactMagicLink},
		{Kind: "smoke_signal", Token: "t"},
	} {
		_, err := f.auth.ExchangeArtifact(context.Background(), a)
		assert.ErrorIs(t, err, identity.ErrInvalidArtifact)
	}
}

func TestOAuthFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	begin := func(t *testing.T, f *fixture) string {
		t.Helper()
		authURL, err := f.auth.BeginOAuth(ctx, identity.ProviderGoogle, callbackURL)
		require.NoError(t, err)
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		state := u.Query().Get("state")
		require.NotEmpty(t, state)
		return state
	}

	t.Run("new user round trip", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.adapter.profiles["code-1"] = identity.ProviderProfile{
			Provider: identity.ProviderGoogle, ProviderUserID: "g-1", Email: "G@Example.com", EmailVerified: true, Name: "Gee",
		}

		state := begin(t, f)

		back, err := f.auth.OAuthReturnURL(ctx, "code-1", state)
		require.NoError(t, err)
		u, err := url.Parse(back)
		require.NoError(t, err)
		assert.Equal(t, "/auth/callback", u.Path)
		assert.Equal(t, "/dashboard/reports", u.Query().Get("redirect"))
		assert.Equal(t, "code-1", u.Query().Get("code"))
		assert.Equal(t, state, u.Query().Get("state"))

		artifact := identity.Artifact{Kind: identity.ArtifactOAuthCode, Code: "code-1", State: state}
		sess, err := f.auth.ExchangeArtifact(ctx, artifact)
		require.NoError(t, err)

		user, err := f.users.FindByID(ctx, sess.UserID)
		require.NoError(t, err)
		assert.Equal(t, "g@example.com", user.Email)
		assert.True(t, user.Verified)

		_, err = f.auth.ExchangeArtifact(ctx, artifact)
		assert.ErrorIs(t, err, identity.ErrArtifactConsumed)

		// a second login with the same provider identity reuses the user
		state2 := begin(t, f)
		sess2, err := f.auth.ExchangeArtifact(ctx, identity.Artifact{Kind: identity.ArtifactOAuthCode, Code: "code-1", State: state2})
		require.NoError(t, err)
		assert.Equal(t, sess.UserID, sess2.UserID)
		assert.Equal(t, 1, f.users.Count())
	})

	t.Run("verified email links existing account", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		existing, err := f.users.UpsertProfile(ctx, "shared@example.com", identity.Profile{})
		require.NoError(t, err)
		f.adapter.profiles["c"] = identity.ProviderProfile{
			Provider: identity.ProviderGoogle, ProviderUserID: "g-2", Email: "shared@example.com", EmailVerified: true,
		}

		sess, err := f.auth.ExchangeArtifact(ctx, identity.Artifact{Kind: identity.ArtifactOAuthCode, Code: "c", State: begin(t, f)})
		require.NoError(t, err)
		assert.Equal(t, existing.ID, sess.UserID)
	})

	t.Run("unverified email never takes over an account", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.users.UpsertProfile(ctx, "victim@example.com", identity.Profile{})
		require.NoError(t, err)
		f.adapter.profiles["c"] = identity.ProviderProfile{
			Provider: identity.ProviderGoogle, ProviderUserID: "g-3", Email: "victim@example.com", EmailVerified: false,
		}

		_, err = f.auth.ExchangeArtifact(ctx, identity.Artifact{Kind: identity.ArtifactOAuthCode, Code: "c", State: begin(t, f)})
		assert.ErrorIs(t, err, identity.ErrProviderEmailInUse)
	})

	t.Run("provider exchange failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.auth.ExchangeArtifact(ctx, identity.Artifact{Kind: identity.ArtifactOAuthCode, Code: "bad", State: begin(t, f)})
		assert.ErrorIs(t, err, identity.ErrProviderExchange)
	})

	t.Run("unknown state", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.auth.OAuthReturnURL(ctx, "c", "nope")
		assert.ErrorIs(t, err, identity.ErrArtifactNotFound)
		_, err = f.auth.ExchangeArtifact(ctx, identity.Artifact{Kind: identity.ArtifactOAuthCode, Code: "c", State: "nope"})
		assert.ErrorIs(t, err, identity.ErrArtifactNotFound)
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.auth.BeginOAuth(ctx, identity.ProviderLinkedIn, callbackURL)
		assert.ErrorIs(t, err, identity.ErrUnsupportedProvider)
		assert.Equal(t, []identity.OAuthProvider{identity.ProviderGoogle}, f.auth.OAuthProviders())
	})
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.SignUp(ctx, "r@example.com", "old-password", identity.Profile{})
	require.NoError(t, err)

	link, err := f.auth.RequestPasswordReset(ctx, "R@example.com", "https://app.example.com/reset-password")
	require.NoError(t, err)
	tok := tokenFrom(t, link)
	require.NotEmpty(t, tok)

	sess, err := f.auth.ResetPassword(ctx, tok, "new-password")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)

	_, err = f.auth.VerifyCredentials(ctx, "r@example.com", "old-password")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = f.auth.VerifyCredentials(ctx, "r@example.com", "new-password")
	assert.NoError(t, err)

	t.Run("link is single use", func(t *testing.T) {
		_, err := f.auth.ResetPassword(ctx, tok, "third-password")
		assert.ErrorIs(t, err, identity.ErrResetTokenInvalid)
	})

	t.Run("tampered token", func(t *testing.T) {
		_, err := f.auth.ResetPassword(ctx, tok+"x", "pw")
		assert.ErrorIs(t, err, identity.ErrResetTokenInvalid)
	})

	t.Run("expired token", func(t *testing.T) {
		link, err := f.auth.RequestPasswordReset(ctx, "r@example.com", "https://app.example.com/reset-password")
		require.NoError(t, err)
		f.clock.Advance(2 * time.Hour)
		_, err = f.auth.ResetPassword(ctx, tokenFrom(t, link), "pw")
		assert.ErrorIs(t, err, identity.ErrResetTokenInvalid)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.auth.RequestPasswordReset(ctx, "ghost@example.com", "https://app.example.com/reset-password")
		assert.ErrorIs(t, err, identity.ErrUserNotFound)
	})
}

func TestParseOAuthProvider(t *testing.T) {
	t.Parallel()

	p, err := identity.ParseOAuthProvider("github")
	require.NoError(t, err)
	assert.Equal(t, identity.ProviderGitHub, p)

	_, err = identity.ParseOAuthProvider("myspace")
	assert.ErrorIs(t, err, identity.ErrUnsupportedProvider)
}
