package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// VerificationThreshold is the minimum profile completion a verified user must keep.
const VerificationThreshold = 90

type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string     `gorm:"type:varchar(150);not null" json:"name"`
	Email            string     `gorm:"type:varchar(150);not null" json:"email"`
	PasswordHash     string     `gorm:"type:varchar(255);not null" json:"-"`
	FirstName        *string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName         *string    `gorm:"type:varchar(100)" json:"last_name"`
	Phone            *string    `gorm:"type:varchar(20)" json:"phone"`
	Bio              *string    `gorm:"type:varchar(500)" json:"bio"`
	Address          *string    `gorm:"type:varchar(255)" json:"address"`
	City             *string    `gorm:"type:varchar(100)" json:"city"`
	State            *string    `gorm:"type:varchar(100)" json:"state"`
	PostalCode       *string    `gorm:"type:varchar(20)" json:"postal_code"`
	Country          *string    `gorm:"type:varchar(100)" json:"country"`
	DateOfBirth      *time.Time `gorm:"type:date" json:"date_of_birth"`
	Gender           *Gender    `gorm:"type:varchar(16)" json:"gender"`
	CompanyName      *string    `gorm:"type:varchar(255)" json:"company_name"`
	ProfileImagePath *string    `gorm:"type:varchar(512)" json:"profile_image_path"`

	ProfileCompletePercent int        `gorm:"not null;default:0" json:"profile_complete_percent"`
	IsVerified             bool       `gorm:"not null;default:false" json:"is_verified"`
	VerifiedAt             *time.Time `json:"verified_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// ProfileImageURL is resolved by the blob store on the way out.
	ProfileImageURL *string `gorm:"-" json:"profile_image_url"`

	Roles       []Role       `gorm:"many2many:role_user" json:"roles,omitempty"`
	Permissions []Permission `gorm:"many2many:permission_user" json:"permissions,omitempty"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Lifecycle reports whether the user row is tombstoned.
func (u *User) Lifecycle() Lifecycle {
	return lifecycleOf(u.DeletedAt)
}

// RoleNames returns the names of the preloaded roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}
