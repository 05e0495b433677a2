package users

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/models"
)

// userNamespace scopes the name-based user ids
var userNamespace = uuid.MustParse("5b0e4a52-6f1c-4d8e-9a57-3c2f7d1e8b44")

// StableID derives a user's id from its username, so a user seeded on every
// boot keeps the id its tokens were issued for
func StableID(username string) uuid.UUID {
	return uuid.NewSHA1(userNamespace, []byte(username))
}

// MemoryRepository keeps users in memory. Seeded from the gateway config in
// development and used by tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*models.User
	byName map[string]uuid.UUID
	clock  clockwork.Clock
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository(clock clockwork.Clock) *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]*models.User),
		byName: make(map[string]uuid.UUID),
		clock:  clock,
	}
}

func (m *MemoryRepository) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byName[req.Username]; exists {
		return nil, fmt.Errorf("failed to create user: username %s taken", req.Username)
	}
	user := &models.User{
		ID:         StableID(req.Username),
		Username:   req.Username,
		Privileges: append([]string(nil), req.Privileges...),
		CreatedAt:  m.clock.Now().UTC(),
	}
	m.byID[user.ID] = user
	m.byName[user.Username] = user.ID

	out := *user
	return &out, nil
}

func (m *MemoryRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (m *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	id, ok := m.byName[username]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return m.GetUser(ctx, id)
}
