package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qbitshield/authgate/db/migrations"
	"github.com/qbitshield/authgate/pkg/config"
	"github.com/qbitshield/authgate/pkg/httpserver"
	"github.com/qbitshield/authgate/pkg/identity"
	"github.com/qbitshield/authgate/pkg/identity/pgstore"
	"github.com/qbitshield/authgate/pkg/identity/redisstore"
	"github.com/qbitshield/authgate/pkg/pg"
	"github.com/qbitshield/authgate/pkg/redis"
)

type appConfig struct {
	// StorageDriver is "postgres" (users in Postgres, sessions and grants in
	// Redis) or "memory" for local runs.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
}

type storage struct {
	users     identity.Users
	sessions  identity.SessionStore
	artifacts identity.ArtifactStore
	checks    []httpserver.Check
	closers   []func()
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, driver string, log *slog.Logger) (*storage, error) {
	switch driver {
	case "memory":
		log.WarnContext(ctx, "using in-memory storage; data is lost on restart")
		return &storage{
			users:     identity.NewMemoryUsers(),
			sessions:  identity.NewMemorySessions(),
			artifacts: identity.NewMemoryArtifacts(time.Hour),
		}, nil
	case "postgres":
		return openPersistent(ctx, log)
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", driver)
	}
}

func openPersistent(ctx context.Context, log *slog.Logger) (*storage, error) {
	var (
		pgCfg    pg.Config
		redisCfg redis.Config
	)
	if err := config.Load(&pgCfg); err != nil {
		return nil, err
	}
	if err := config.Load(&redisCfg); err != nil {
		return nil, err
	}

	s := &storage{}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, pool.Close)

	if err := pg.Migrate(ctx, pool, migrations.FS, pgCfg, log); err != nil {
		s.close()
		return nil, err
	}

	rdb, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		s.close()
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = rdb.Close() })

	s.users = pgstore.NewUsers(pool)
	s.sessions = redisstore.NewSessions(rdb, redisCfg.KeyPrefix)
	s.artifacts = redisstore.NewArtifacts(rdb, redisCfg.KeyPrefix)
	s.checks = []httpserver.Check{
		{Name: "postgres", Fn: pg.Healthcheck(pool)},
		{Name: "redis", Fn: redis.Healthcheck(rdb)},
	}
	return s, nil
}
