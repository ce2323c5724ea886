package service

import (
	"github.com/google/uuid"

	"carmarket/backend/internal/model"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	User    *model.User
	TokenID string
}

func (p *Principal) ID() uuid.UUID {
	if p == nil || p.User == nil {
		return uuid.Nil
	}
	return p.User.ID
}

// Requirement is either a set of roles (any one suffices) or a single permission.
type Requirement struct {
	Roles      []string
	Permission string
}

func RequireRoles(names ...string) Requirement { return Requirement{Roles: names} }

func RequirePermission(name string) Requirement { return Requirement{Permission: name} }
