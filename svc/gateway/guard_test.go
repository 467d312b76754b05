package gateway_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/svc/gateway"
)

// signIn signs up a password user through the router and returns the
// browser holding the session cookie.
func signIn(t *testing.T, e *env) *browser {
	t.Helper()
	b := newBrowser(t, e.router)
	res := b.postJSON("/auth/signup", `{"email":"g@example.com","password":"pw-123456"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, b.cookies, "authgate_session")
	return b
}

func TestGuard_Protects(t *testing.T) {
	t.Parallel()

	g := gateway.NewGuard(&mockProvider{}, newCookieStore(t), testConfig)

	assert.True(t, g.Protects("/dashboard"))
	assert.True(t, g.Protects("/dashboard/settings"))
	assert.True(t, g.Protects("/account"))
	assert.False(t, g.Protects("/dashboards"))
	assert.False(t, g.Protects("/login"))
	assert.False(t, g.Protects("/"))
}

func TestGuard_DefaultPrefixes(t *testing.T) {
	t.Parallel()

	g := gateway.NewGuard(&mockProvider{}, newCookieStore(t), gateway.Config{})

	for _, path := range []string{"/dashboard", "/account/profile", "/settings", "/settings/billing"} {
		assert.True(t, g.Protects(path), path)
	}
	assert.False(t, g.Protects("/settingsx"))

	e := newEnv(t)
	res := newBrowser(t, e.router).get("/settings/billing")
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/login?from=%2Fsettings%2Fbilling", res.Header.Get("Location"))

	res = signIn(t, e).get("/settings/billing")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestGuard_UnauthenticatedRedirectsWithOrigin(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	for _, target := range []string{"/dashboard", "/dashboard/settings", "/dashboard/settings?tab=billing", "/account"} {
		t.Run(target, func(t *testing.T) {
			res := newBrowser(t, e.router).get(target)
			assert.Equal(t, http.StatusFound, res.StatusCode)

			loc, err := url.Parse(res.Header.Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/login", loc.Path)
			assert.Equal(t, target, loc.Query().Get("from"))
		})
	}
}

func TestGuard_UnprotectedPathsSkipProvider(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	g := gateway.NewGuard(p, newCookieStore(t), testConfig)

	d := g.Check(context.Background(), "/dashboards", identity.SessionRef{})
	assert.True(t, d.Allow)
	p.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestGuard_ValidSessionPassesThrough(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	b := signIn(t, e)

	res := b.get("/dashboard/settings?tab=billing")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-User-ID"))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "page /dashboard/settings?tab=billing", string(body))
}

func TestGuard_ForgedCookieIsRejected(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	b := newBrowser(t, e.router)
	b.cookies["authgate_session"] = &http.Cookie{Name: "authgate_session", Value: "forged"}

	res := b.get("/dashboard")
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.NotContains(t, b.cookies, "authgate_session")
}

func TestGuard_RefreshesExpiredAccessToken(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	b := signIn(t, e)
	before := b.cookies["authgate_session"].Value

	e.clock.Advance(20 * time.Minute)

	res := b.get("/dashboard")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEqual(t, before, b.cookies["authgate_session"].Value)

	res = b.get("/dashboard")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestGuard_ExpiredRefreshTokenRedirects(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	b := signIn(t, e)

	e.clock.Advance(31 * 24 * time.Hour)

	res := b.get("/dashboard")
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.NotContains(t, b.cookies, "authgate_session")
}

func TestLogout_ThenProtectedRedirects(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	b := signIn(t, e)
	stolen := *b.cookies["authgate_session"]

	res := b.do(newPost("/logout"))
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))
	assert.NotContains(t, b.cookies, "authgate_session")

	res = b.get("/dashboard")
	assert.Equal(t, http.StatusFound, res.StatusCode)

	// replaying the old cookie fails because the session was invalidated
	// server side, not just removed from the browser
	replay := newBrowser(t, e.router)
	replay.cookies["authgate_session"] = &stolen
	res = replay.get("/dashboard")
	assert.Equal(t, http.StatusFound, res.StatusCode)
}

func TestLogout_WithoutSessionStillClears(t *testing.T) {
	t.Parallel()

	p := &mockProvider{}
	h := gateway.NewLogoutHandler(p, newCookieStore(t), testConfig)

	res := newBrowser(t, h).do(newPost("/logout"))
	assert.Equal(t, http.StatusFound, res.StatusCode)
	require.Len(t, res.Cookies(), 1)
	assert.Negative(t, res.Cookies()[0].MaxAge)
	p.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func newPost(target string) *http.Request {
	return httptest.NewRequest(http.MethodPost, target, nil)
}
