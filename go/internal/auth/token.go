// Package auth validates launch viewer credentials. Tokens are opaque to
// clients: the base64url encoding of a user id followed by a keyed BLAKE3 MAC
// of that id. Validation needs no I/O; resolving the user does.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/zeebo/blake3"
)

const (
	idSize    = 16
	macSize   = 32
	tokenSize = idSize + macSize
	// KeySize is the required length of the signing key
	KeySize = 32
)

// ErrInvalidToken is returned when a token fails validation
var ErrInvalidToken = errors.New("invalid token")

// AuthenticationService validates credentials and resolves them to users
type AuthenticationService interface {
	Validate(token string) bool
	ResolveUser(ctx context.Context, token string) (*models.User, error)
}

// UserLookup is what the token service needs from the users app
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService issues and checks signed user tokens
type TokenService struct {
	key   []byte
	users UserLookup
}

var _ AuthenticationService = (*TokenService)(nil)

// NewTokenService creates a token service. The key must be KeySize bytes.
func NewTokenService(key []byte, users UserLookup) (*TokenService, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", KeySize, len(key))
	}
	return &TokenService{
		key:   append([]byte(nil), key...),
		users: users,
	}, nil
}

// DecodeKey parses a hex-encoded signing key
func DecodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("token key is not hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("token key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Issue returns a token for the given user id
func (s *TokenService) Issue(userID uuid.UUID) (string, error) {
	mac, err := s.mac(userID)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, tokenSize)
	buf = append(buf, userID[:]...)
	buf = append(buf, mac...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Validate reports whether token is well formed and carries a valid MAC
func (s *TokenService) Validate(token string) bool {
	_, err := s.parse(token)
	return err == nil
}

// ResolveUser validates the token and loads its user
func (s *TokenService) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token user: %w", err)
	}
	return user, nil
}

func (s *TokenService) parse(token string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != tokenSize {
		return uuid.Nil, ErrInvalidToken
	}

	var userID uuid.UUID
	copy(userID[:], raw[:idSize])

	want, err := s.mac(userID)
	if err != nil {
		return uuid.Nil, err
	}
	if subtle.ConstantTimeCompare(want, raw[idSize:]) != 1 {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

func (s *TokenService) mac(userID uuid.UUID) ([]byte, error) {
	hasher, err := blake3.NewKeyed(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create token hasher: %w", err)
	}
	hasher.Write(userID[:])
	return hasher.Sum(nil), nil
}
