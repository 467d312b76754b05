package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/linkedin"
)

// OAuthAdapter hides provider specifics behind a code-for-profile exchange.
type OAuthAdapter interface {
	Provider() OAuthProvider
	AuthURL(state string) string
	ResolveProfile(ctx context.Context, code string) (ProviderProfile, error)
}

type adapterBase struct {
	provider   OAuthProvider
	conf       *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

type AdapterOption func(*adapterBase)

// WithEndpoint overrides the provider's authorization and token URLs.
func WithEndpoint(endpoint oauth2.Endpoint) AdapterOption {
	return func(a *adapterBase) { a.conf.Endpoint = endpoint }
}

// WithAPIURL overrides the profile API location: the userinfo URL for
// OpenID providers, the API root for GitHub.
func WithAPIURL(url string) AdapterOption {
	return func(a *adapterBase) { a.apiURL = url }
}

func WithHTTPClient(c *http.Client) AdapterOption {
	return func(a *adapterBase) { a.httpClient = c }
}

func newAdapterBase(provider OAuthProvider, conf *oauth2.Config, apiURL string, opts []AdapterOption) adapterBase {
	a := adapterBase{
		provider:   provider,
		conf:       conf,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func (a *adapterBase) Provider() OAuthProvider { return a.provider }

func (a *adapterBase) AuthURL(state string) string {
	return a.conf.AuthCodeURL(state)
}

func (a *adapterBase) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Join(ErrProviderExchange, err)
	}
	return tok, nil
}

func (a *adapterBase) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s api returned status %d", a.provider, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// oidcAdapter serves providers exposing an OpenID Connect userinfo endpoint.
type oidcAdapter struct {
	adapterBase
}

func NewGoogleAdapter(clientID, clientSecret, redirectURL string, opts ...AdapterOption) OAuthAdapter {
	return &oidcAdapter{newAdapterBase(ProviderGoogle, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}, "https://openidconnect.googleapis.com/v1/userinfo", opts)}
}

func NewLinkedInAdapter(clientID, clientSecret, redirectURL string, opts ...AdapterOption) OAuthAdapter {
	return &oidcAdapter{newAdapterBase(ProviderLinkedIn, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     linkedin.Endpoint,
	}, "https://api.linkedin.com/v2/userinfo", opts)}
}

type oidcUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (a *oidcAdapter) ResolveProfile(ctx context.Context, code string) (ProviderProfile, error) {
	tok, err := a.exchange(ctx, code)
	if err != nil {
		return ProviderProfile{}, err
	}

	var info oidcUserInfo
	if err := a.getJSON(ctx, a.apiURL, tok.AccessToken, &info); err != nil {
		return ProviderProfile{}, fmt.Errorf("fetch %s userinfo: %w", a.provider, err)
	}
	if info.Email == "" {
		return ProviderProfile{}, ErrNoPrimaryEmail
	}

	return ProviderProfile{
		Provider:       a.provider,
		ProviderUserID: info.Sub,
		Email:          info.Email,
		EmailVerified:  info.EmailVerified,
		Name:           info.Name,
	}, nil
}

type githubAdapter struct {
	adapterBase
}

func NewGitHubAdapter(clientID, clientSecret, redirectURL string, opts ...AdapterOption) OAuthAdapter {
	return &githubAdapter{newAdapterBase(ProviderGitHub, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"read:user", "user:email"},
		Endpoint:     github.Endpoint,
	}, "https://api.github.com", opts)}
}

type ghUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ghEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ResolveProfile prefers the primary verified address and falls back to any
// verified one. Unverified addresses are never used.
func (a *githubAdapter) ResolveProfile(ctx context.Context, code string) (ProviderProfile, error) {
	tok, err := a.exchange(ctx, code)
	if err != nil {
		return ProviderProfile{}, err
	}

	var u ghUser
	if err := a.getJSON(ctx, a.apiURL+"/user", tok.AccessToken, &u); err != nil {
		return ProviderProfile{}, fmt.Errorf("fetch github user: %w", err)
	}

	var emails []ghEmail
	if err := a.getJSON(ctx, a.apiURL+"/user/emails", tok.AccessToken, &emails); err != nil {
		return ProviderProfile{}, fmt.Errorf("fetch github emails: %w", err)
	}

	var email string
	for _, e := range emails {
		if e.Verified && (e.Primary || email == "") {
			email = e.Email
		}
	}
	if email == "" {
		return ProviderProfile{}, ErrNoPrimaryEmail
	}

	return ProviderProfile{
		Provider:       ProviderGitHub,
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Email:          email,
		EmailVerified:  true,
		Name:           u.Name,
	}, nil
}
