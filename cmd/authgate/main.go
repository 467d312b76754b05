package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/qbitshield/authgate/pkg/clientip"
	"github.com/qbitshield/authgate/pkg/config"
	"github.com/qbitshield/authgate/pkg/cookie"
	"github.com/qbitshield/authgate/pkg/email"
	"github.com/qbitshield/authgate/pkg/httpserver"
	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/logger"
	"github.com/qbitshield/authgate/pkg/requestid"
	"github.com/qbitshield/authgate/svc/gateway"
	"github.com/qbitshield/authgate/svc/pages"
)

// oauthReturnPath is the authority endpoint registered with each provider.
const oauthReturnPath = "/auth/oauth/return"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg, logger.WithContextExtractors(
		requestid.LoggerExtractor(),
		clientip.LoggerExtractor(),
		gateway.LoggerExtractor(),
	))
	slog.SetDefault(log)

	if err := run(ctx, log); err != nil {
		log.Error("authgate stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	var (
		appCfg     appConfig
		httpCfg    httpserver.Config
		cookieCfg  cookie.Config
		emailCfg   email.Config
		authCfg    identity.Config
		oauthCfg   identity.OAuthConfig
		gatewayCfg gateway.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&appCfg) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&cookieCfg) },
		func() error { return config.Load(&emailCfg) },
		func() error { return config.Load(&authCfg) },
		func() error { return config.Load(&oauthCfg) },
		func() error { return config.Load(&gatewayCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	store, err := openStorage(ctx, appCfg.StorageDriver, log)
	if err != nil {
		return err
	}
	defer store.close()

	auth, err := identity.NewAuthority(authCfg, store.users, store.sessions, store.artifacts,
		identity.WithLogger(log),
		identity.WithOAuthAdapters(oauthCfg.Adapters(authCfg.PublicURL+oauthReturnPath)...),
	)
	if err != nil {
		return err
	}

	sender, err := email.NewFromConfig(emailCfg)
	if err != nil {
		return fmt.Errorf("email sender: %w", err)
	}

	cookies, err := cookie.NewFromConfig(cookieCfg)
	if err != nil {
		return fmt.Errorf("cookie manager: %w", err)
	}
	sessions := gateway.NewSessionStore(cookies, gatewayCfg.CookieName,
		cookie.WithMaxAge(int(gatewayCfg.SessionMaxAge.Seconds())))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []gateway.Option{gateway.WithLogger(log), gateway.WithMetrics(gateway.NewMetrics(reg))}

	site := pages.New(store.users, auth.OAuthProviders(), log)
	router := gateway.NewRouter(gateway.RouterConfig{
		Config:   gatewayCfg,
		Sessions: sessions,
		Initiator: gateway.NewInitiator(auth, store.users,
			gateway.NewMagicLinkMailer(sender, authCfg.MagicLinkTTL), gatewayCfg, opts...),
		Finalizer: gateway.NewFinalizer(auth, sessions, gatewayCfg, opts...),
		Guard:     gateway.NewGuard(auth, sessions, gatewayCfg, opts...),
		Logout:    gateway.NewLogoutHandler(auth, sessions, gatewayCfg, opts...),
		Accounts: gateway.NewAccountFlows(auth, sessions,
			gateway.NewPasswordResetMailer(sender, authCfg.ResetTTL), gatewayCfg, opts...),
		OAuthReturn: auth,
		Logger:      log,
		Readiness:   store.checks,
		Gatherer:    reg,
		Pages:       site.Mount,
	})

	log.InfoContext(ctx, "authgate starting",
		slog.String("addr", httpCfg.Addr),
		slog.String("storage", appCfg.StorageDriver),
		slog.Int("oauth_providers", len(auth.OAuthProviders())),
	)
	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log)).Run(ctx, router)
}
