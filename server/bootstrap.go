package server

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/simbridge/go-esim-gateway/admintoken"
	"github.com/simbridge/go-esim-gateway/broker"
	"github.com/simbridge/go-esim-gateway/clients"
	fakeclientrepo "github.com/simbridge/go-esim-gateway/clients/fakerepo"
	clientspg "github.com/simbridge/go-esim-gateway/clients/postgres"
	"github.com/simbridge/go-esim-gateway/internal/config"
	"github.com/simbridge/go-esim-gateway/tokencache"
	cachepg "github.com/simbridge/go-esim-gateway/tokencache/postgres"
	cacheredis "github.com/simbridge/go-esim-gateway/tokencache/redis"
	"github.com/simbridge/go-esim-gateway/tokencache/repofakes"
	"github.com/simbridge/go-esim-gateway/vault"
)

// Bootstrap wires the gateway from configuration: repositories (Postgres
// and/or Redis when configured, in-memory otherwise), the vault, the broker,
// the admin token manager, and the background session sweeper. The returned
// shutdown func releases every connection it opened.
func Bootstrap(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, func(), error) {
	if cfg.GetMasterSecret() == "" {
		return nil, nil, errors.New("[Bootstrap] MASTER_SECRET is required")
	}
	if cfg.GetAdminJWTSecret() == "" {
		return nil, nil, errors.New("[Bootstrap] ADMIN_JWT_SECRET is required")
	}
	if cfg.GetUpstreamBaseURL() == "" {
		return nil, nil, errors.New("[Bootstrap] UPSTREAM_BASE_URL is required")
	}

	var shutdownFuncs []func()
	shutdown := func() {
		for i := len(shutdownFuncs) - 1; i >= 0; i-- {
			shutdownFuncs[i]()
		}
	}

	var clientRepo clients.Repo
	var tokenRepo tokencache.Repo

	if databaseURL := cfg.GetDatabaseURL(); databaseURL != "" {
		poolConfig, err := pgxpool.ParseConfig(databaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[Bootstrap] parse database url")
		}
		poolConfig.MinConns = cfg.GetDatabaseMinConns()
		poolConfig.MaxConns = cfg.GetDatabaseMaxConns()

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[Bootstrap] connect to database")
		}
		shutdownFuncs = append(shutdownFuncs, pool.Close)

		clientRepo = clientspg.NewClientRepo(pool)
		tokenRepo = cachepg.NewTokenRepo(pool)
		log.Info().Msg("using postgres storage")
	} else {
		clientRepo = fakeclientrepo.NewFakeClientRepo()
		tokenRepo = repofakes.NewFakeTokenRepo()
		log.Warn().Msg("no DATABASE_URL configured, using in-memory storage")
	}

	if redisAddr := cfg.GetRedisAddr(); redisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:     redisAddr,
			Password: cfg.GetRedisPassword(),
		})
		shutdownFuncs = append(shutdownFuncs, func() { _ = redisClient.Close() })

		tokenRepo = cacheredis.NewTokenRepo(redisClient)
		log.Info().Msg("using redis session cache")
	}

	credentialVault := vault.New(cfg.GetMasterSecret())

	registry, err := clients.NewRegistry(clientRepo, credentialVault)
	if err != nil {
		shutdown()
		return nil, nil, errors.Wrap(err, "[Bootstrap] create registry")
	}

	upstream := broker.NewHTTPUpstream(
		cfg.GetUpstreamBaseURL(),
		cfg.GetUpstreamTimeout(),
		cfg.GetUpstreamHealthTimeout(),
		log,
	)
	sessionBroker, err := broker.New(credentialVault, tokenRepo, upstream, log)
	if err != nil {
		shutdown()
		return nil, nil, errors.Wrap(err, "[Bootstrap] create broker")
	}

	adminTokens, err := admintoken.New(cfg.GetAdminJWTSecret(), cfg.GetAdminTokenExpiry())
	if err != nil {
		shutdown()
		return nil, nil, errors.Wrap(err, "[Bootstrap] create admin token manager")
	}

	sweeper := tokencache.NewSweeper(tokenRepo, cfg.GetSweepInterval(), log)
	go sweeper.Run(ctx)

	s, err := New(cfg, registry, sessionBroker, adminTokens, log)
	if err != nil {
		shutdown()
		return nil, nil, errors.Wrap(err, "[Bootstrap] create server")
	}
	return s, shutdown, nil
}
