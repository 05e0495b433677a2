package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/dbconfig"
	"github.com/mcdev12/launchpad/go/internal/store"
	"github.com/mcdev12/launchpad/go/internal/users"
	"github.com/rs/zerolog/log"
)

// Infra holds everything main opens and must close
type Infra struct {
	Backend store.Backend
	DB      *sql.DB // set for the postgres backend
	Pool    *pgxpool.Pool
	Users   users.UsersRepository
}

func (i *Infra) Close() {
	if i.Pool != nil {
		i.Pool.Close()
	}
	if i.Backend != nil {
		if err := i.Backend.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close backend")
		}
	}
}

func setupInfra(ctx context.Context, backend string, config *Config, clock clockwork.Clock) (*Infra, error) {
	infra := &Infra{}

	switch backend {
	case "memory":
		infra.Backend = store.NewMemoryBackend()
		infra.Users = users.NewMemoryRepository(clock)

	case "redis":
		redisCfg := store.DefaultRedisConfig()
		redisCfg.Addr = getEnv("REDIS_ADDR", firstNonEmpty(config.Redis.Addr, redisCfg.Addr))
		redisCfg.Password = getEnv("REDIS_PASSWORD", "")
		redisCfg.DB = getEnvAsInt("REDIS_DB", config.Redis.DB)
		redisCfg.KeyPrefix = config.Redis.KeyPrefix

		b, err := store.NewRedisBackend(ctx, redisCfg)
		if err != nil {
			return nil, err
		}
		infra.Backend = b
		infra.Users = users.NewMemoryRepository(clock)

	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()

		b, err := store.NewPostgresBackend(ctx, dbCfg.DSN())
		if err != nil {
			return nil, err
		}
		infra.Backend = b
		infra.DB = b.DB()
		if err := b.Migrate(ctx); err != nil {
			infra.Close()
			return nil, err
		}

		pool, err := pgxpool.New(ctx, dbCfg.DSN())
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		infra.Pool = pool

		repo := users.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			infra.Close()
			return nil, err
		}
		infra.Users = repo

		log.Info().Str("database", dbCfg.Name()).Msg("connected to database")

	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}

	return infra, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
