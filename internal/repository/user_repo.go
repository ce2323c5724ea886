package repository

import (
	"context"

	"github.com/google/uuid"

	"carmarket/backend/internal/model"
)

// UserQuery filters the admin user tables.
type UserQuery struct {
	Keyword string // matches name or email
	Trashed bool   // only tombstoned rows
	Page    Page
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID, withTrashed bool) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// EmailTaken checks every row, tombstoned ones included.
	EmailTaken(ctx context.Context, email string, exceptID uuid.UUID) (bool, error)
	Update(ctx context.Context, user *model.User) error
	UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error
	List(ctx context.Context, q UserQuery) ([]model.User, int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	// ForceDelete removes access tokens, role and permission pivots, releases
	// owned cars and purges the row in one transaction.
	ForceDelete(ctx context.Context, id uuid.UUID) error
	EachInBatches(ctx context.Context, batchSize int, fn func(users []model.User) error) error
}
