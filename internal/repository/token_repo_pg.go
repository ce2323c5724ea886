package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"carmarket/backend/internal/model"
)

type pgTokenRepository struct {
	db *gorm.DB
}

func NewPGTokenRepository(db *gorm.DB) TokenRepository {
	return &pgTokenRepository{db: db}
}

func (r *pgTokenRepository) Create(ctx context.Context, token *model.AccessToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *pgTokenRepository) GetByJTI(ctx context.Context, jti string) (*model.AccessToken, error) {
	var token model.AccessToken
	if err := r.db.WithContext(ctx).Where("jti = ?", jti).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *pgTokenRepository) Touch(ctx context.Context, jti string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.AccessToken{}).
		Where("jti = ?", jti).
		Update("last_used_at", at).Error
}

func (r *pgTokenRepository) DeleteByJTI(ctx context.Context, jti string) error {
	return r.db.WithContext(ctx).Where("jti = ?", jti).Delete(&model.AccessToken{}).Error
}

func (r *pgTokenRepository) ListJTIsByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var jtis []string
	err := r.db.WithContext(ctx).Model(&model.AccessToken{}).
		Where("user_id = ?", userID).
		Pluck("jti", &jtis).Error
	return jtis, err
}

func (r *pgTokenRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.AccessToken{}).Error
}
