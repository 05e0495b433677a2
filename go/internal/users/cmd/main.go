package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/auth"
	"github.com/mcdev12/launchpad/go/internal/dbconfig"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/mcdev12/launchpad/go/internal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// seedFile is the part of the gateway config this tool reads
type seedFile struct {
	TokenKey string                    `yaml:"token_key"`
	Users    []users.CreateUserRequest `yaml:"users"`
}

func loadSeed(path string) (*seedFile, error) {
	if path == "" {
		return &seedFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &seed, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Issues a launch token for a user. With the memory and redis backends the
// user must be listed in the gateway config; with postgres --create adds it.
func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	username := pflag.StringP("username", "u", "", "username to issue a token for")
	backend := pflag.String("backend", getEnv("LAUNCHPAD_BACKEND", "memory"), "gateway storage backend: memory, redis or postgres")
	configPath := pflag.String("config", getEnv("LAUNCHPAD_CONFIG", ""), "gateway YAML config holding the seeded users")
	create := pflag.Bool("create", false, "create the user if it does not exist (postgres only)")
	moderator := pflag.Bool("moderator", false, "grant the moderator privilege when creating")
	pflag.Parse()

	if *username == "" {
		pflag.Usage()
		os.Exit(2)
	}

	seed, err := loadSeed(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	tokenKey, err := auth.DecodeKey(getEnv("TOKEN_KEY", seed.TokenKey))
	if err != nil {
		log.Fatal().Err(err).Msg("TOKEN_KEY must be a 64 character hex string")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var app *users.App
	switch *backend {
	case "memory", "redis":
		// These gateways keep users in memory, seeded from the config on boot.
		// Seeding the same list here yields the same ids.
		if *create {
			log.Fatal().Str("backend", *backend).Msg("--create needs postgres; add the user to the config's users list instead")
		}
		app = users.NewApp(users.NewMemoryRepository(clockwork.NewRealClock()))
		if err := app.Seed(ctx, seed.Users); err != nil {
			log.Fatal().Err(err).Msg("failed to seed users")
		}

	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := pgxpool.New(ctx, dbCfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		repo := users.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate users table")
		}
		app = users.NewApp(repo)

	default:
		log.Fatal().Str("backend", *backend).Msg("unknown backend")
	}

	var user *models.User
	if *create {
		req := users.CreateUserRequest{Username: *username}
		if *moderator {
			req.Privileges = []string{models.PrivilegeModerator}
		}
		user, err = app.EnsureUser(ctx, req)
	} else {
		user, err = app.GetUserByUsername(ctx, *username)
	}
	if err != nil {
		log.Fatal().Err(err).Str("username", *username).Msg("failed to load user")
	}

	tokens, err := auth.NewTokenService(tokenKey, app)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token service")
	}
	token, err := tokens.Issue(user.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to issue token")
	}

	log.Info().
		Str("username", user.Username).
		Strs("privileges", user.Privileges).
		Msg("issued token")
	fmt.Println(token)
}
