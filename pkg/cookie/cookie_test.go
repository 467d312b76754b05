package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbitshield/authgate/pkg/cookie"
)

const secret = "this-is-a-very-long-secret-key-32-chars-long"

func newManager(t *testing.T, opts ...cookie.Option) *cookie.Manager {
	t.Helper()
	m, err := cookie.New([]string{secret}, opts...)
	require.NoError(t, err)
	return m
}

func requestWith(cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires a secret", func(t *testing.T) {
		t.Parallel()
		_, err := cookie.New(nil)
		assert.ErrorIs(t, err, cookie.ErrNoSecret)

		_, err = cookie.New([]string{"", ""})
		assert.ErrorIs(t, err, cookie.ErrNoSecret)
	})

	t.Run("rejects short secrets", func(t *testing.T) {
		t.Parallel()
		_, err := cookie.New([]string{"short"})
		assert.ErrorIs(t, err, cookie.ErrSecretTooShort)
	})

	t.Run("secure defaults", func(t *testing.T) {
		t.Parallel()
		m := newManager(t)
		w := httptest.NewRecorder()
		require.NoError(t, m.Set(w, "c", "v"))

		header := w.Header().Get("Set-Cookie")
		assert.Contains(t, header, "HttpOnly")
		assert.Contains(t, header, "SameSite=Lax")
		assert.Contains(t, header, "Path=/")
	})
}

func TestEncryptedRoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	w := httptest.NewRecorder()
	require.NoError(t, m.SetEncrypted(w, "sess", `{"access_token":"a"}`))

	c := w.Result().Cookies()[0]
	assert.NotContains(t, c.Value, "access_token")

	got, err := m.GetEncrypted(requestWith(c), "sess")
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"a"}`, got)

	t.Run("tampered value fails", func(t *testing.T) {
		t.Parallel()
		bad := &http.Cookie{Name: "sess", Value: c.Value[:len(c.Value)-4] + "AAAA"}
		_, err := m.GetEncrypted(requestWith(bad), "sess")
		assert.Error(t, err)
	})

	t.Run("rotated secret still decrypts", func(t *testing.T) {
		t.Parallel()
		rotated, err := cookie.New([]string{"another-very-long-secret-key-32-chars-long!", secret})
		require.NoError(t, err)
		got, err := rotated.GetEncrypted(requestWith(c), "sess")
		require.NoError(t, err)
		assert.Equal(t, `{"access_token":"a"}`, got)
	})
}

func TestSignedRoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	w := httptest.NewRecorder()
	require.NoError(t, m.SetSigned(w, "flag", "1"))
	c := w.Result().Cookies()[0]

	got, err := m.GetSigned(requestWith(c), "flag")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	forged := &http.Cookie{Name: "flag", Value: "MQ==|forged"}
	_, err = m.GetSigned(requestWith(forged), "flag")
	assert.ErrorIs(t, err, cookie.ErrInvalidSignature)
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	_, err := m.Get(requestWith(), "missing")
	assert.ErrorIs(t, err, cookie.ErrCookieNotFound)
}

func TestDelete_MirrorsSetAttributes(t *testing.T) {
	t.Parallel()

	m := newManager(t, cookie.WithSecure(true))
	opts := []cookie.Option{
		cookie.WithPath("/app"),
		cookie.WithDomain("example.com"),
		cookie.WithSameSite(http.SameSiteStrictMode),
		cookie.WithMaxAge(3600),
	}

	setRec := httptest.NewRecorder()
	require.NoError(t, m.Set(setRec, "sess", "value", opts...))
	set := setRec.Result().Cookies()[0]

	delRec := httptest.NewRecorder()
	m.Delete(delRec, "sess", opts...)
	del := delRec.Result().Cookies()[0]

	assert.Equal(t, set.Name, del.Name)
	assert.Equal(t, set.Path, del.Path)
	assert.Equal(t, set.Domain, del.Domain)
	assert.Equal(t, set.Secure, del.Secure)
	assert.Equal(t, set.HttpOnly, del.HttpOnly)
	assert.Equal(t, set.SameSite, del.SameSite)
	assert.Empty(t, del.Value)
	assert.Equal(t, -1, del.MaxAge)
	assert.Equal(t, 3600, set.MaxAge)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	m, err := cookie.NewFromConfig(cookie.Config{
		Secrets:  " , " + secret + " ,",
		Path:     "/",
		Domain:   "example.com",
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	require.NoError(t, err)

	attrs := m.Attributes()
	assert.Equal(t, "example.com", attrs.Domain)
	assert.True(t, attrs.Secure)
	assert.True(t, attrs.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, attrs.SameSite)
}
