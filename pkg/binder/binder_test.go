package binder_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbitshield/authgate/pkg/binder"
)

type loginForm struct {
	Email    string   `form:"email"`
	Password string   `form:"password"`
	Remember bool     `form:"remember"`
	Scopes   []string `form:"scope"`
	Internal string   `form:"-"`
}

func TestForm(t *testing.T) {
	t.Parallel()

	t.Run("binds tagged fields", func(t *testing.T) {
		t.Parallel()

		body := url.Values{
			"email":    {"a@example.com"},
			"password": {"pw"},
			"remember": {"on"},
			"scope":    {"read", "write"},
			"Internal": {"x"},
		}.Encode()
		req := httptest.NewRequest(http.MethodPost, "/auth/login?email=query@example.com", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		var f loginForm
		require.NoError(t, binder.Form()(req, &f))
		assert.Equal(t, "a@example.com", f.Email)
		assert.Equal(t, "pw", f.Password)
		assert.True(t, f.Remember)
		assert.Equal(t, []string{"read", "write"}, f.Scopes)
		assert.Empty(t, f.Internal)
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")

		var f loginForm
		assert.ErrorIs(t, binder.Form()(req, &f), binder.ErrUnsupportedMediaType)
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("email=x"))
		var f loginForm
		assert.ErrorIs(t, binder.Form()(req, &f), binder.ErrMissingContentType)
	})

	t.Run("non pointer target", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("email=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		assert.ErrorIs(t, binder.Form()(req, loginForm{}), binder.ErrFailedToParseForm)
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()

	var q struct {
		Redirect string `query:"redirect"`
		Page     int    `query:"page"`
		Code     string
	}
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?redirect=%2Faccount&page=2&code=abc", nil)
	require.NoError(t, binder.Query()(req, &q))
	assert.Equal(t, "/account", q.Redirect)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, "abc", q.Code)

	bad := httptest.NewRequest(http.MethodGet, "/?page=two", nil)
	assert.ErrorIs(t, binder.Query()(bad, &q), binder.ErrFailedToParseQuery)
}

func TestJSON(t *testing.T) {
	t.Parallel()

	type magicLink struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	tests := []struct {
		name    string
		ct      string
		body    string
		wantErr error
	}{
		{name: "valid", ct: "application/json; charset=utf-8", body: `{"email":"a@example.com","name":"A"}`},
		{name: "unknown field", ct: "application/json", body: `{"email":"a@example.com","admin":true}`, wantErr: binder.ErrFailedToParseJSON},
		{name: "trailing data", ct: "application/json", body: `{"email":"a"}{"email":"b"}`, wantErr: binder.ErrFailedToParseJSON},
		{name: "empty body", ct: "application/json", body: ``, wantErr: binder.ErrFailedToParseJSON},
		{name: "form content type", ct: "application/x-www-form-urlencoded", body: `{}`, wantErr: binder.ErrUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/auth/magic-link", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.ct)

			var got magicLink
			err := binder.JSON()(req, &got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, magicLink{Email: "a@example.com", Name: "A"}, got)
		})
	}
}
