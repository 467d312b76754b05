package gateway

import (
	"net/url"
	"strings"
	"unicode"
)

const maxRedirectLength = 2048

// SanitizeRedirect returns raw when it is a local absolute path and fallback
// otherwise. Scheme-relative (//host), backslash, control character and
// absolute URLs are all rejected.
func SanitizeRedirect(raw, fallback string) string {
	if raw == "" || len(raw) > maxRedirectLength {
		return fallback
	}
	if raw[0] != '/' || strings.HasPrefix(raw, "//") || strings.ContainsRune(raw, '\\') {
		return fallback
	}
	if strings.IndexFunc(raw, unicode.IsControl) >= 0 {
		return fallback
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return raw
}

// loginRedirect builds the login URL that carries the original destination.
func loginRedirect(loginPath, from string) string {
	if from == "" {
		return loginPath
	}
	return loginPath + "?" + url.Values{"from": {from}}.Encode()
}

// pageError builds the URL of page annotated with a failed flow.
func pageError(page, key, from string) string {
	q := url.Values{"error": {key}}
	if from != "" {
		q.Set("from", from)
	}
	return page + "?" + q.Encode()
}
