package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/launchpad/go/internal/models"
)

// ErrUserNotFound is returned when no user matches the lookup
var ErrUserNotFound = errors.New("user not found")

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	privileges TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Repository implements user data access on a pgx pool
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new users repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// Migrate creates the users table if needed
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, usersSchema); err != nil {
		return fmt.Errorf("failed to migrate users schema: %w", err)
	}
	return nil
}

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	id := StableID(req.Username)
	privileges := req.Privileges
	if privileges == nil {
		privileges = []string{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, privileges) VALUES ($1, $2, $3)
		RETURNING id, username, privileges, created_at`,
		pgtype.UUID{Bytes: id, Valid: true}, req.Username, privileges)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, privileges, created_at FROM users WHERE id = $1`,
		pgtype.UUID{Bytes: id, Valid: true})

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, privileges, created_at FROM users WHERE username = $1`, username)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// scanUser converts a database row to the domain model
func scanUser(row pgx.Row) (*models.User, error) {
	var (
		id   pgtype.UUID
		user models.User
	)
	err := row.Scan(&id, &user.Username, &user.Privileges, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.ID = uuid.UUID(id.Bytes)
	return &user, nil
}
