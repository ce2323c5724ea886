package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"carmarket/backend/internal/model"
)

// TokenRepository persists issued bearer tokens. A token is valid only while
// its row exists.
type TokenRepository interface {
	Create(ctx context.Context, token *model.AccessToken) error
	GetByJTI(ctx context.Context, jti string) (*model.AccessToken, error)
	Touch(ctx context.Context, jti string, at time.Time) error
	DeleteByJTI(ctx context.Context, jti string) error
	ListJTIsByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}
