package repository

import (
	"context"

	"github.com/google/uuid"

	"carmarket/backend/internal/model"
)

// RBACRepository resolves role and permission membership. Nothing is cached:
// every check reads the join tables.
type RBACRepository interface {
	HasRole(ctx context.Context, userID uuid.UUID, names []string) (bool, error)
	// HasPermission is true for a direct grant or a grant through any held role.
	HasPermission(ctx context.Context, userID uuid.UUID, name string) (bool, error)
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error)

	RolesByNames(ctx context.Context, names []string) ([]model.Role, error)
	PermissionsByNames(ctx context.Context, names []string) ([]model.Permission, error)
	FirstOrCreateRole(ctx context.Context, name, label string) (*model.Role, error)
	FirstOrCreatePermission(ctx context.Context, name, label string) (*model.Permission, error)

	ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roles []model.Role) error
	ReplaceUserPermissions(ctx context.Context, userID uuid.UUID, perms []model.Permission) error
	ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, perms []model.Permission) error
	AttachUserRole(ctx context.Context, userID uuid.UUID, role *model.Role) error
}
