package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
)

// RBACService answers role and permission questions and edits assignments.
// Every check reads the store; nothing is memoized between calls.
type RBACService interface {
	HasRole(ctx context.Context, userID uuid.UUID, names ...string) (bool, error)
	HasPermission(ctx context.Context, userID uuid.UUID, name string) (bool, error)
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
	Authorize(ctx context.Context, p *Principal, req Requirement) error
	SetRoles(ctx context.Context, userID uuid.UUID, names []string) (*model.User, error)
	SetPermissions(ctx context.Context, userID uuid.UUID, names []string) (*model.User, error)
	// Seed creates the permission catalogue and the admin, seller and buyer roles.
	Seed(ctx context.Context) error
}

type rbacService struct {
	rbacRepo repository.RBACRepository
	userRepo repository.UserRepository
	logger   *zap.Logger
}

func NewRBACService(rbacRepo repository.RBACRepository, userRepo repository.UserRepository, logger *zap.Logger) RBACService {
	return &rbacService{rbacRepo: rbacRepo, userRepo: userRepo, logger: logger}
}

func (s *rbacService) HasRole(ctx context.Context, userID uuid.UUID, names ...string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	return s.rbacRepo.HasRole(ctx, userID, names)
}

func (s *rbacService) HasPermission(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	return s.rbacRepo.HasPermission(ctx, userID, name)
}

func (s *rbacService) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.rbacRepo.EffectivePermissions(ctx, userID)
}

func (s *rbacService) Authorize(ctx context.Context, p *Principal, req Requirement) error {
	if p == nil || p.User == nil {
		return ErrUnauthenticated
	}

	var (
		ok  bool
		err error
	)
	if req.Permission != "" {
		ok, err = s.HasPermission(ctx, p.ID(), req.Permission)
	} else {
		ok, err = s.HasRole(ctx, p.ID(), req.Roles...)
	}
	if err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *rbacService) SetRoles(ctx context.Context, userID uuid.UUID, names []string) (*model.User, error) {
	names = uniqueNames(names)
	if len(names) == 0 {
		return nil, newValidationError("roles", "at least one role is required")
	}
	if _, err := s.activeUser(ctx, userID); err != nil {
		return nil, err
	}

	roles, err := s.rbacRepo.RolesByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to look up roles: %w", err)
	}
	if missing := missingNames(names, roleNames(roles)); len(missing) > 0 {
		return nil, unknownReference("roles", missing)
	}
	if err := s.rbacRepo.ReplaceUserRoles(ctx, userID, roles); err != nil {
		return nil, fmt.Errorf("failed to replace roles: %w", err)
	}

	s.logger.Info("user roles replaced", zap.String("user_id", userID.String()), zap.Strings("roles", names))
	return s.activeUser(ctx, userID)
}

func (s *rbacService) SetPermissions(ctx context.Context, userID uuid.UUID, names []string) (*model.User, error) {
	names = uniqueNames(names)
	if _, err := s.activeUser(ctx, userID); err != nil {
		return nil, err
	}

	perms, err := s.rbacRepo.PermissionsByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to look up permissions: %w", err)
	}
	if missing := missingNames(names, permissionNames(perms)); len(missing) > 0 {
		return nil, unknownReference("permissions", missing)
	}
	if err := s.rbacRepo.ReplaceUserPermissions(ctx, userID, perms); err != nil {
		return nil, fmt.Errorf("failed to replace permissions: %w", err)
	}

	s.logger.Info("user permissions replaced", zap.String("user_id", userID.String()), zap.Strings("permissions", names))
	return s.activeUser(ctx, userID)
}

func (s *rbacService) Seed(ctx context.Context) error {
	perms := make(map[string]model.Permission, len(model.AllPermissions))
	for _, name := range model.AllPermissions {
		p, err := s.rbacRepo.FirstOrCreatePermission(ctx, name, model.PermissionLabel(name))
		if err != nil {
			return fmt.Errorf("seed permission %s: %w", name, err)
		}
		perms[name] = *p
	}

	for _, name := range []string{model.RoleAdmin, model.RoleSeller, model.RoleBuyer} {
		role, err := s.rbacRepo.FirstOrCreateRole(ctx, name, model.DefaultRoleLabel(name))
		if err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
		grants := make([]model.Permission, 0, len(model.RolePermissions[name]))
		for _, perm := range model.RolePermissions[name] {
			grants = append(grants, perms[perm])
		}
		if err := s.rbacRepo.ReplaceRolePermissions(ctx, role.ID, grants); err != nil {
			return fmt.Errorf("seed role %s permissions: %w", name, err)
		}
	}

	s.logger.Info("rbac seeded", zap.Int("permissions", len(perms)))
	return nil
}

func (s *rbacService) activeUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func missingNames(want, have []string) []string {
	found := make(map[string]struct{}, len(have))
	for _, n := range have {
		found[n] = struct{}{}
	}
	var missing []string
	for _, n := range want {
		if _, ok := found[n]; !ok {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	return missing
}

func roleNames(roles []model.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.Name)
	}
	return out
}

func permissionNames(perms []model.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.Name)
	}
	return out
}

var _ RBACService = (*rbacService)(nil)
