package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/rs/zerolog/log"
)

// UsersRepository defines what the app layer needs from the repository
type UsersRepository interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

var (
	_ UsersRepository = (*Repository)(nil)
	_ UsersRepository = (*MemoryRepository)(nil)
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// knownPrivileges lists the privileges the launch app understands
var knownPrivileges = map[string]bool{
	models.PrivilegeModerator: true,
}

// App handles users business logic
type App struct {
	repo UsersRepository
}

// NewApp creates a new users App
func NewApp(repo UsersRepository) *App {
	return &App{
		repo: repo,
	}
}

// CreateUser creates a new user with validation
func (a *App) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := a.validateCreateUserRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Check if user with same username already exists
	existingUser, err := a.repo.GetUserByUsername(ctx, req.Username)
	if err == nil && existingUser != nil {
		return nil, fmt.Errorf("user with username %s already exists", req.Username)
	}

	user, err := a.repo.CreateUser(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Strs("privileges", user.Privileges).
		Msg("created user")
	return user, nil
}

// EnsureUser returns the user with req's username, creating it if missing.
// An existing user keeps its stored privileges.
func (a *App) EnsureUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	user, err := a.repo.GetUserByUsername(ctx, req.Username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return a.CreateUser(ctx, req)
}

// Seed makes sure every listed user exists
func (a *App) Seed(ctx context.Context, seed []CreateUserRequest) error {
	for _, req := range seed {
		user, err := a.EnsureUser(ctx, req)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", req.Username, err)
		}
		log.Debug().Str("username", user.Username).Str("user_id", user.ID.String()).Msg("seed user ready")
	}
	return nil
}

// GetUser retrieves a user by ID
func (a *App) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (a *App) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := a.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// validateCreateUserRequest validates create user request
func (a *App) validateCreateUserRequest(req CreateUserRequest) error {
	if req.Username == "" {
		return fmt.Errorf("username is required")
	}
	if !usernamePattern.MatchString(req.Username) {
		return fmt.Errorf("username must be 3-32 letters, digits, '_', '.' or '-'")
	}
	for _, p := range req.Privileges {
		if !knownPrivileges[p] {
			return fmt.Errorf("unknown privilege %q", p)
		}
	}
	return nil
}
