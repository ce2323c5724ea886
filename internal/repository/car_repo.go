package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carmarket/backend/internal/model"
)

// CarQuery filters a car listing. Zero values mean "no filter".
type CarQuery struct {
	Keyword    string // matches make, model or description
	Make       string
	Model      string
	Condition  model.CarCondition
	Location   string
	YearFrom   *int
	YearTo     *int
	PriceMin   *decimal.Decimal
	PriceMax   *decimal.Decimal
	MileageMax *int

	Status   model.CarStatus
	SellerID *uuid.UUID // ownership scope; nil lists every seller
	Trashed  bool       // only tombstoned rows

	// OrderBy holds trusted ORDER BY terms, applied in sequence.
	OrderBy    []string
	WithSeller bool
	Page       Page
}

type CarRepository interface {
	// Create inserts the car together with any images already attached to it.
	Create(ctx context.Context, car *model.Car) error
	GetByID(ctx context.Context, id uuid.UUID, withTrashed bool) (*model.Car, error)
	Save(ctx context.Context, car *model.Car) error
	List(ctx context.Context, q CarQuery) ([]model.Car, int64, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	// ForceDelete purges the car and its image rows in one transaction.
	ForceDelete(ctx context.Context, id uuid.UUID) error

	CreateImage(ctx context.Context, image *model.CarImage) error
	GetImage(ctx context.Context, carID, imageID uuid.UUID) (*model.CarImage, error)
	SaveImage(ctx context.Context, image *model.CarImage) error
	DeleteImage(ctx context.Context, image *model.CarImage) error
	CountImages(ctx context.Context, carID uuid.UUID) (int64, error)
}
