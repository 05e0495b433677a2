package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/mcdev12/launchpad/go/internal/users"
)

func newService(t *testing.T) (*TokenService, *users.MemoryRepository) {
	t.Helper()
	repo := users.NewMemoryRepository(clockwork.NewFakeClock())
	svc, err := NewTokenService(bytes.Repeat([]byte{7}, KeySize), repo)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc, repo
}

func TestIssueValidateResolve(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)
	user, _ := repo.CreateUser(ctx, users.CreateUserRequest{Username: "mod", Privileges: []string{models.PrivilegeModerator}})

	token, err := svc.Issue(user.ID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !svc.Validate(token) {
		t.Fatalf("issued token should validate")
	}

	got, err := svc.ResolveUser(ctx, token)
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if got.ID != user.ID || !got.HasPrivilege(models.PrivilegeModerator) {
		t.Fatalf("resolved %+v", got)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc, _ := newService(t)
	other, _ := NewTokenService(bytes.Repeat([]byte{9}, KeySize), nil)
	forged, _ := other.Issue(uuid.New())

	for _, token := range []string{"", "garbage-token", "!!!", forged} {
		if svc.Validate(token) {
			t.Errorf("Validate(%q) = true", token)
		}
		if _, err := svc.ResolveUser(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ResolveUser(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestResolveUnknownUser(t *testing.T) {
	svc, _ := newService(t)
	token, _ := svc.Issue(uuid.New())
	if !svc.Validate(token) {
		t.Fatalf("signature should validate even for unknown users")
	}
	if _, err := svc.ResolveUser(context.Background(), token); !errors.Is(err, users.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestNewTokenServiceKeySize(t *testing.T) {
	if _, err := NewTokenService([]byte("short"), nil); err == nil {
		t.Fatalf("expected key size error")
	}
}

func TestDecodeKey(t *testing.T) {
	key, err := DecodeKey(strings.Repeat("ab", KeySize))
	if err != nil {
		t.Fatalf("DecodeKey: %v", err)
	}
	if len(key) != KeySize || key[0] != 0xab {
		t.Fatalf("key = %x", key)
	}

	for _, bad := range []string{"", "zz", strings.Repeat("ab", KeySize-1)} {
		if _, err := DecodeKey(bad); err == nil {
			t.Errorf("DecodeKey(%q) succeeded", bad)
		}
	}
}
