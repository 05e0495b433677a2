package gateway

import (
	"context"
	"strings"

	"github.com/mcdev12/launchpad/go/internal/auth"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Authorizer maps a connection credential to the roles it holds. It never
// fails: anything short of a valid, resolvable token is a guest.
type Authorizer struct {
	auth auth.AuthenticationService
}

// NewAuthorizer creates an authorizer on top of an authentication service
func NewAuthorizer(svc auth.AuthenticationService) *Authorizer {
	return &Authorizer{auth: svc}
}

// Classify resolves credential into an actor. Moderators also hold the
// privileged role.
func (a *Authorizer) Classify(ctx context.Context, credential string) models.Actor {
	credential = strings.TrimSpace(credential)
	if credential == "" || a.auth == nil || !a.auth.Validate(credential) {
		return models.Guest()
	}

	user, err := a.auth.ResolveUser(ctx, credential)
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve user for valid token, treating as guest")
		return models.Guest()
	}

	roles := models.NewRoleSet(models.RolePrivileged)
	if user.HasPrivilege(models.PrivilegeModerator) {
		roles[models.RoleModerator] = struct{}{}
	}
	return models.Actor{User: user, Roles: roles}
}

// bearerToken extracts the token from an `Authorization: Bearer <token>` header value
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
