package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"carmarket/backend/internal/model"
)

type pgRBACRepository struct {
	db *gorm.DB
}

func NewPGRBACRepository(db *gorm.DB) RBACRepository {
	return &pgRBACRepository{db: db}
}

func (r *pgRBACRepository) HasRole(ctx context.Context, userID uuid.UUID, names []string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	var n int64
	err := r.db.WithContext(ctx).
		Table("role_user").
		Joins("JOIN roles ON roles.id = role_user.role_id").
		Where("role_user.user_id = ? AND roles.name IN ?", userID, names).
		Count(&n).Error
	return n > 0, err
}

// grantedPermissionIDs selects the ids of every permission a user holds.
func (r *pgRBACRepository) grantedPermissionIDs(db *gorm.DB, userID uuid.UUID) (*gorm.DB, *gorm.DB) {
	direct := db.Table("permission_user").
		Select("permission_user.permission_id").
		Where("permission_user.user_id = ?", userID)
	viaRoles := db.Table("permission_role").
		Select("permission_role.permission_id").
		Joins("JOIN role_user ON role_user.role_id = permission_role.role_id").
		Where("role_user.user_id = ?", userID)
	return direct, viaRoles
}

func (r *pgRBACRepository) HasPermission(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	db := r.db.WithContext(ctx)
	direct, viaRoles := r.grantedPermissionIDs(db, userID)

	var n int64
	err := db.Model(&model.Permission{}).
		Where("name = ?", name).
		Where("(id IN (?) OR id IN (?))", direct, viaRoles).
		Count(&n).Error
	return n > 0, err
}

func (r *pgRBACRepository) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	db := r.db.WithContext(ctx)
	direct, viaRoles := r.grantedPermissionIDs(db, userID)

	var names []string
	err := db.Model(&model.Permission{}).
		Where("(id IN (?) OR id IN (?))", direct, viaRoles).
		Order("name").
		Pluck("name", &names).Error
	return names, err
}

func (r *pgRBACRepository) RolesByNames(ctx context.Context, names []string) ([]model.Role, error) {
	var roles []model.Role
	if len(names) == 0 {
		return roles, nil
	}
	err := r.db.WithContext(ctx).Where("name IN ?", names).Order("name").Find(&roles).Error
	return roles, err
}

func (r *pgRBACRepository) PermissionsByNames(ctx context.Context, names []string) ([]model.Permission, error) {
	var perms []model.Permission
	if len(names) == 0 {
		return perms, nil
	}
	err := r.db.WithContext(ctx).Where("name IN ?", names).Order("name").Find(&perms).Error
	return perms, err
}

func (r *pgRBACRepository) FirstOrCreateRole(ctx context.Context, name, label string) (*model.Role, error) {
	role := model.Role{}
	err := r.db.WithContext(ctx).
		Where(model.Role{Name: name}).
		Attrs(model.Role{Label: label}).
		FirstOrCreate(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *pgRBACRepository) FirstOrCreatePermission(ctx context.Context, name, label string) (*model.Permission, error) {
	perm := model.Permission{}
	err := r.db.WithContext(ctx).
		Where(model.Permission{Name: name}).
		Attrs(model.Permission{Label: label}).
		FirstOrCreate(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *pgRBACRepository) ReplaceUserRoles(ctx context.Context, userID uuid.UUID, roles []model.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assoc := tx.Model(&model.User{ID: userID}).Association("Roles")
		if len(roles) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(roles)
	})
}

func (r *pgRBACRepository) ReplaceUserPermissions(ctx context.Context, userID uuid.UUID, perms []model.Permission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assoc := tx.Model(&model.User{ID: userID}).Association("Permissions")
		if len(perms) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(perms)
	})
}

func (r *pgRBACRepository) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, perms []model.Permission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assoc := tx.Model(&model.Role{ID: roleID}).Association("Permissions")
		if len(perms) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(perms)
	})
}

func (r *pgRBACRepository) AttachUserRole(ctx context.Context, userID uuid.UUID, role *model.Role) error {
	return r.db.WithContext(ctx).Model(&model.User{ID: userID}).Association("Roles").Append(role)
}
