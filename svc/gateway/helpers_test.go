package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/qbitshield/authgate/pkg/cookie"
	"github.com/qbitshield/authgate/pkg/email"
	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/svc/gateway"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testConfig = gateway.Config{
	PublicURL:         "https://app.example.com",
	CookieName:        "authgate_session",
	ProtectedPrefixes: []string{"/dashboard", "/account", "/settings"},
	DefaultRedirect:   "/dashboard",
	LoginPath:         "/login",
	CallbackPath:      "/auth/callback",
	ResetPath:         "/reset-password",
}

func newCookieStore(t *testing.T, opts ...cookie.Option) *gateway.SessionStore {
	t.Helper()
	m, err := cookie.New([]string{testSecret})
	require.NoError(t, err)
	return gateway.NewSessionStore(m, "authgate_session", opts...)
}

// mockProvider is a testify mock of identity.Provider.
type mockProvider struct {
	mock.Mock
}

func sessionOrNil(v any) *identity.Session {
	s, _ := v.(*identity.Session)
	return s
}

func (m *mockProvider) VerifyCredentials(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	return sessionOrNil(args.Get(0)), args.Error(1)
}

func (m *mockProvider) BeginOAuth(ctx context.Context, p identity.OAuthProvider, redirectURI string) (string, error) {
	args := m.Called(ctx, p, redirectURI)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) ExchangeArtifact(ctx context.Context, a identity.Artifact) (*identity.Session, error) {
	args := m.Called(ctx, a)
	return sessionOrNil(args.Get(0)), args.Error(1)
}

func (m *mockProvider) IssueMagicLink(ctx context.Context, email, redirectURI string) (string, error) {
	args := m.Called(ctx, email, redirectURI)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) GetSession(ctx context.Context, ref identity.SessionRef) (*identity.Session, error) {
	args := m.Called(ctx, ref)
	return sessionOrNil(args.Get(0)), args.Error(1)
}

func (m *mockProvider) Refresh(ctx context.Context, ref identity.SessionRef) (*identity.Session, error) {
	args := m.Called(ctx, ref)
	return sessionOrNil(args.Get(0)), args.Error(1)
}

func (m *mockProvider) Invalidate(ctx context.Context, ref identity.SessionRef) error {
	return m.Called(ctx, ref).Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to, linkURL string) (email.Receipt, error) {
	args := m.Called(ctx, to, linkURL)
	return args.Get(0).(email.Receipt), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) UpsertProfile(ctx context.Context, addr string, p identity.Profile) (*identity.User, error) {
	args := m.Called(ctx, addr, p)
	u, _ := args.Get(0).(*identity.User)
	return u, args.Error(1)
}

// outbox is a Mailer that records every link it is asked to send.
type outbox struct {
	mu    sync.Mutex
	links map[string][]string
	fail  error
}

func newOutbox() *outbox {
	return &outbox{links: map[string][]string{}}
}

func (o *outbox) Send(_ context.Context, to, linkURL string) (email.Receipt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return email.Receipt{}, o.fail
	}
	o.links[to] = append(o.links[to], linkURL)
	return email.Receipt{MessageID: "msg", To: to, SubmittedAt: time.Now()}, nil
}

func (o *outbox) last(t *testing.T, to string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.links[to], "no mail sent to %s", to)
	return o.links[to][len(o.links[to])-1]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAdapter struct {
	profiles map[string]identity.ProviderProfile
}

func (f *fakeAdapter) Provider() identity.OAuthProvider { return identity.ProviderGoogle }

func (f *fakeAdapter) AuthURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f *fakeAdapter) ResolveProfile(_ context.Context, code string) (identity.ProviderProfile, error) {
	p, ok := f.profiles[code]
	if !ok {
		return identity.ProviderProfile{}, identity.ErrProviderExchange
	}
	return p, nil
}

// env wires the gateway to a real Authority over memory stores.
type env struct {
	auth      *identity.Authority
	users     *identity.MemoryUsers
	store     *gateway.SessionStore
	magic     *outbox
	resets    *outbox
	clock     *clock
	adapter   *fakeAdapter
	initiator *gateway.Initiator
	finalizer *gateway.Finalizer
	guard     *gateway.Guard
	logout    *gateway.LogoutHandler
	accounts  *gateway.AccountFlows
	router    http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		users:   identity.NewMemoryUsers(),
		store:   newCookieStore(t),
		magic:   newOutbox(),
		resets:  newOutbox(),
		clock:   &clock{t: time.Now()},
		adapter: &fakeAdapter{profiles: map[string]identity.ProviderProfile{}},
	}

	auth, err := identity.NewAuthority(identity.Config{
		PublicURL:  "https://auth.example.com",
		SigningKey: testSecret,
		BcryptCost: bcrypt.MinCost,
	}, e.users, identity.NewMemorySessions(), identity.NewMemoryArtifacts(time.Hour),
		identity.WithClock(e.clock.Now),
		identity.WithOAuthAdapters(e.adapter),
	)
	require.NoError(t, err)
	e.auth = auth

	e.initiator = gateway.NewInitiator(auth, e.users, e.magic, testConfig)
	e.finalizer = gateway.NewFinalizer(auth, e.store, testConfig)
	e.guard = gateway.NewGuard(auth, e.store, testConfig)
	e.logout = gateway.NewLogoutHandler(auth, e.store, testConfig)
	e.accounts = gateway.NewAccountFlows(auth, e.store, e.resets, testConfig)
	e.router = gateway.NewRouter(gateway.RouterConfig{
		Config:      testConfig,
		Sessions:    e.store,
		Initiator:   e.initiator,
		Finalizer:   e.finalizer,
		Guard:       e.guard,
		Logout:      e.logout,
		Accounts:    e.accounts,
		OAuthReturn: auth,
		Pages:       echoPages,
	})
	return e
}

// echoPages mounts protected and public pages that echo what they saw.
func echoPages(r chi.Router) {
	page := func(w http.ResponseWriter, r *http.Request) {
		if s, ok := gateway.SessionFromContext(r.Context()); ok {
			w.Header().Set("X-User-ID", s.UserID.String())
		}
		_, _ = w.Write([]byte("page " + r.URL.RequestURI()))
	}
	r.Get("/dashboard", page)
	r.Get("/dashboard/*", page)
	r.Get("/account", page)
	r.Get("/settings/*", page)
	r.Get("/dashboards", page)
	r.Get("/login", page)
}

// browser keeps cookies between requests to a handler.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, h: h, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *http.Response {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	res := rec.Result()
	for _, c := range res.Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return res
}

func (b *browser) get(target string) *http.Response {
	b.t.Helper()
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) postForm(target string, form url.Values) *http.Response {
	b.t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postJSON(target, body string) *http.Response {
	b.t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

// localPath strips scheme and host so absolute links can be replayed
// against the handler.
func localPath(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.RequestURI()
}
