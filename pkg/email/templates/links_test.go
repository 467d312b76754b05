package templates_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbitshield/authgate/pkg/email/templates"
)

func TestMagicLink(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.MagicLink(templates.LinkData{
		URL:       "https://app.example.com/auth/callback?token=abc&redirect=%2Fdashboard",
		ExpiresIn: "15 minutes",
	}))
	require.NoError(t, err)

	assert.Contains(t, html, "Sign in to your account")
	assert.Contains(t, html, "https://app.example.com/auth/callback?token=abc&amp;redirect=%2Fdashboard")
	assert.Contains(t, html, "15 minutes")
}

func TestPasswordReset_UnsafeURL(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.PasswordReset(templates.LinkData{
		URL: "javascript:alert(1)",
	}))
	require.NoError(t, err)

	assert.Contains(t, html, "Reset your password")
	assert.NotContains(t, html, "javascript:")
	assert.NotContains(t, html, "expires in")
}
