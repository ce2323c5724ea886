package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carmarket/backend/internal/model"
)

type pgUserRepository struct {
	db *gorm.DB
}

func NewPGUserRepository(db *gorm.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *pgUserRepository) GetByID(ctx context.Context, id uuid.UUID, withTrashed bool) (*model.User, error) {
	q := r.db.WithContext(ctx).Preload("Roles").Preload("Permissions")
	if withTrashed {
		q = q.Unscoped()
	}
	var user model.User
	if err := q.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *pgUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Roles").Preload("Permissions").
		Where("lower(email) = ?", toLower(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *pgUserRepository) EmailTaken(ctx context.Context, email string, exceptID uuid.UUID) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Unscoped().Model(&model.User{}).Where("lower(email) = ?", toLower(email))
	if exceptID != uuid.Nil {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *pgUserRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(user).Error
}

func (r *pgUserRepository) UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	return r.db.WithContext(ctx).Unscoped().Model(&model.User{}).Where("id = ?", id).Updates(columns).Error
}

func (r *pgUserRepository) List(ctx context.Context, q UserQuery) ([]model.User, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.User{})
	order := "created_at DESC"
	if q.Trashed {
		base = base.Unscoped().Where("deleted_at IS NOT NULL")
		order = "deleted_at DESC"
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		p := likePattern(kw)
		base = base.Where("(lower(name) LIKE ? OR lower(email) LIKE ?)", p, p)
	}

	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := base.Preload("Roles").Preload("Permissions").
		Order(order).
		Scopes(paginate(q.Page)).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *pgUserRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgUserRepository) Restore(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Unscoped().Model(&model.User{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgUserRepository) ForceDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.AccessToken{}).Error; err != nil {
			return err
		}
		user := &model.User{ID: id}
		if err := tx.Model(user).Association("Roles").Clear(); err != nil {
			return err
		}
		if err := tx.Model(user).Association("Permissions").Clear(); err != nil {
			return err
		}
		if err := tx.Unscoped().Model(&model.Car{}).
			Where("seller_id = ?", id).
			Update("seller_id", nil).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Delete(&model.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *pgUserRepository) EachInBatches(ctx context.Context, batchSize int, fn func(users []model.User) error) error {
	var batch []model.User
	return r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}
