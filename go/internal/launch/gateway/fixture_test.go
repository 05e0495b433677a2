package gateway

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/auth"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/mcdev12/launchpad/go/internal/store"
	"github.com/mcdev12/launchpad/go/internal/users"
)

type fixture struct {
	clock          clockwork.Clock
	app            *launch.App
	tokens         *auth.TokenService
	authorizer     *Authorizer
	reporterToken  string
	moderatorToken string
}

func newFixture(t *testing.T, clock clockwork.Clock) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := users.NewMemoryRepository(clock)
	reporter, err := repo.CreateUser(ctx, users.CreateUserRequest{Username: "reporter"})
	if err != nil {
		t.Fatalf("create reporter: %v", err)
	}
	moderator, err := repo.CreateUser(ctx, users.CreateUserRequest{
		Username:   "flightdirector",
		Privileges: []string{models.PrivilegeModerator},
	})
	if err != nil {
		t.Fatalf("create moderator: %v", err)
	}

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{7}, auth.KeySize), repo)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	reporterToken, err := tokens.Issue(reporter.ID)
	if err != nil {
		t.Fatalf("issue reporter token: %v", err)
	}
	moderatorToken, err := tokens.Issue(moderator.ID)
	if err != nil {
		t.Fatalf("issue moderator token: %v", err)
	}

	return &fixture{
		clock:          clock,
		app:            launch.NewApp(store.NewMemoryBackend(), nil, clock),
		tokens:         tokens,
		authorizer:     NewAuthorizer(tokens),
		reporterToken:  reporterToken,
		moderatorToken: moderatorToken,
	}
}

func fakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC))
}

func statusInput(text string) launch.StatusInput {
	return launch.StatusInput{
		Text:      text,
		Countdown: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
