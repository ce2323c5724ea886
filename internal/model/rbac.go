package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
	RoleBuyer  = "buyer"
)

const (
	PermCarsView     = "cars.view"
	PermCarsCreate   = "cars.create"
	PermCarsUpdate   = "cars.update"
	PermCarsDelete   = "cars.delete"
	PermCarsModerate = "cars.moderate"
	PermUsersView    = "users.view"
	PermUsersManage  = "users.manage"
)

// AllPermissions is the seeded permission catalogue in display order.
var AllPermissions = []string{
	PermCarsView, PermCarsCreate, PermCarsUpdate, PermCarsDelete,
	PermUsersView, PermUsersManage, PermCarsModerate,
}

// RolePermissions is the seeded grant of permissions per role.
var RolePermissions = map[string][]string{
	RoleAdmin:  AllPermissions,
	RoleSeller: {PermCarsView, PermCarsCreate, PermCarsUpdate},
	RoleBuyer:  {PermCarsView},
}

// RoleLabels holds the human labels of the seed roles.
var RoleLabels = map[string]string{
	RoleAdmin:  "Administrator",
	RoleSeller: "Seller",
	RoleBuyer:  "Buyer",
}

type Role struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Label     string    `gorm:"type:varchar(128)" json:"label"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Permissions []Permission `gorm:"many2many:permission_role" json:"permissions,omitempty"`
}

func (Role) TableName() string { return "roles" }

func (r *Role) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type Permission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	Label     string    `gorm:"type:varchar(128)" json:"label"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (Permission) TableName() string { return "permissions" }

func (p *Permission) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PermissionLabel turns "cars.create" into "Cars Create".
func PermissionLabel(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// DefaultRoleLabel is used when a role is created on demand.
func DefaultRoleLabel(name string) string {
	if label, ok := RoleLabels[name]; ok {
		return label
	}
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
