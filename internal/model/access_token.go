package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessToken records an issued bearer token. The row exists for as long as
// the token is usable; revocation deletes it.
type AccessToken struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	JTI        string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name       string    `gorm:"type:varchar(64);not null;default:api"`
	ExpiresAt  time.Time `gorm:"not null"`
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

func (AccessToken) TableName() string { return "access_tokens" }

func (t *AccessToken) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
