package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carmarket/backend/internal/model"
)

type pgCarRepository struct {
	db *gorm.DB
}

func NewPGCarRepository(db *gorm.DB) CarRepository {
	return &pgCarRepository{db: db}
}

func orderedImages(db *gorm.DB) *gorm.DB {
	return db.Order(model.ImageOrder)
}

func publicSeller(db *gorm.DB) *gorm.DB {
	return db.Unscoped().Select("id", "name", "email", "is_verified")
}

func (r *pgCarRepository) Create(ctx context.Context, car *model.Car) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		images := car.Images
		car.Images = nil
		if err := tx.Omit(clause.Associations).Create(car).Error; err != nil {
			return err
		}
		for i := range images {
			images[i].CarID = car.ID
		}
		if len(images) > 0 {
			if err := tx.Create(&images).Error; err != nil {
				return err
			}
		}
		car.Images = images
		return nil
	})
}

func (r *pgCarRepository) GetByID(ctx context.Context, id uuid.UUID, withTrashed bool) (*model.Car, error) {
	q := r.db.WithContext(ctx).Preload("Images", orderedImages)
	if withTrashed {
		q = q.Unscoped()
	}
	var car model.Car
	if err := q.First(&car, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &car, nil
}

func (r *pgCarRepository) Save(ctx context.Context, car *model.Car) error {
	return r.db.WithContext(ctx).Unscoped().Omit(clause.Associations).Save(car).Error
}

func (r *pgCarRepository) List(ctx context.Context, q CarQuery) ([]model.Car, int64, error) {
	base := r.db.WithContext(ctx).Model(&model.Car{})
	if q.Trashed {
		base = base.Unscoped().Where("deleted_at IS NOT NULL")
	}
	base = applyCarFilters(base, q).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	find := base.Preload("Images", orderedImages)
	if q.WithSeller {
		find = find.Preload("Seller", publicSeller)
	}
	for _, term := range q.OrderBy {
		find = find.Order(term)
	}

	var cars []model.Car
	if err := find.Scopes(paginate(q.Page)).Find(&cars).Error; err != nil {
		return nil, 0, err
	}
	return cars, total, nil
}

func applyCarFilters(db *gorm.DB, q CarQuery) *gorm.DB {
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.SellerID != nil {
		db = db.Where("seller_id = ?", *q.SellerID)
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		p := likePattern(kw)
		db = db.Where("(lower(make) LIKE ? OR lower(model) LIKE ? OR lower(description) LIKE ?)", p, p, p)
	}
	if q.Make != "" {
		db = db.Where("make = ?", q.Make)
	}
	if q.Model != "" {
		db = db.Where("model = ?", q.Model)
	}
	if q.Condition != "" {
		db = db.Where("condition = ?", q.Condition)
	}
	if q.Location != "" {
		db = db.Where("location = ?", q.Location)
	}
	if q.YearFrom != nil {
		db = db.Where("year >= ?", *q.YearFrom)
	}
	if q.YearTo != nil {
		db = db.Where("year <= ?", *q.YearTo)
	}
	if q.PriceMin != nil {
		db = db.Where("price >= ?", *q.PriceMin)
	}
	if q.PriceMax != nil {
		db = db.Where("price <= ?", *q.PriceMax)
	}
	if q.MileageMax != nil {
		db = db.Where("mileage <= ?", *q.MileageMax)
	}
	return db
}

func (r *pgCarRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Car{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgCarRepository) Restore(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Unscoped().Model(&model.Car{}).
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

func (r *pgCarRepository) ForceDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("car_id = ?", id).Delete(&model.CarImage{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Delete(&model.Car{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *pgCarRepository) CreateImage(ctx context.Context, image *model.CarImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *pgCarRepository) GetImage(ctx context.Context, carID, imageID uuid.UUID) (*model.CarImage, error) {
	var image model.CarImage
	err := r.db.WithContext(ctx).
		Where("car_id = ? AND id = ?", carID, imageID).
		First(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

func (r *pgCarRepository) SaveImage(ctx context.Context, image *model.CarImage) error {
	return r.db.WithContext(ctx).Save(image).Error
}

func (r *pgCarRepository) DeleteImage(ctx context.Context, image *model.CarImage) error {
	return r.db.WithContext(ctx).Delete(image).Error
}

func (r *pgCarRepository) CountImages(ctx context.Context, carID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.CarImage{}).Where("car_id = ?", carID).Count(&n).Error
	return n, err
}
