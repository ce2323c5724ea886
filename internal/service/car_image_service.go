package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carmarket/backend/internal/metrics"
	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
	"carmarket/backend/internal/storage"
)

// Upload is a file received from a multipart form.
type Upload struct {
	Body        io.Reader
	Ext         string
	ContentType string
}

type ImageChanges struct {
	Alt      *string
	IsCover  *bool
	Position *int
}

type CarImageService interface {
	Upload(ctx context.Context, p *Principal, carID uuid.UUID, up Upload, alt *string, isCover bool) (*model.CarImage, error)
	Update(ctx context.Context, p *Principal, carID, imageID uuid.UUID, ch ImageChanges) (*model.CarImage, error)
	Delete(ctx context.Context, p *Principal, carID, imageID uuid.UUID) error
}

type carImageService struct {
	carRepo repository.CarRepository
	rbac    RBACService
	blobs   storage.BlobStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewCarImageService(
	carRepo repository.CarRepository,
	rbac RBACService,
	blobs storage.BlobStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) CarImageService {
	return &carImageService{carRepo: carRepo, rbac: rbac, blobs: blobs, metrics: m, logger: logger}
}

func (s *carImageService) ownedCar(ctx context.Context, p *Principal, carID uuid.UUID) (*model.Car, error) {
	if p == nil || p.User == nil {
		return nil, ErrUnauthenticated
	}
	car, err := s.carRepo.GetByID(ctx, carID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find car: %w", err)
	}
	if err := authorizeCarOwner(ctx, s.rbac, p, car); err != nil {
		return nil, err
	}
	return car, nil
}

func (s *carImageService) image(ctx context.Context, carID, imageID uuid.UUID) (*model.CarImage, error) {
	img, err := s.carRepo.GetImage(ctx, carID, imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find image: %w", err)
	}
	return img, nil
}

// Upload stores the blob first and records the row second. A failed insert
// removes the blob again.
func (s *carImageService) Upload(ctx context.Context, p *Principal, carID uuid.UUID, up Upload, alt *string, isCover bool) (*model.CarImage, error) {
	car, err := s.ownedCar(ctx, p, carID)
	if err != nil {
		return nil, err
	}

	position, err := s.carRepo.CountImages(ctx, car.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}

	key, err := s.blobs.Put(ctx, "cars", up.Ext, up.Body, up.ContentType)
	s.metrics.ObserveBlob("put", err)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	img := &model.CarImage{
		CarID:    car.ID,
		Path:     &key,
		Alt:      alt,
		IsCover:  isCover,
		Position: int(position),
	}
	if err := s.carRepo.CreateImage(ctx, img); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned blob", zap.String("path", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to record image: %w", err)
	}
	return presentImage(s.blobs, img), nil
}

func (s *carImageService) Update(ctx context.Context, p *Principal, carID, imageID uuid.UUID, ch ImageChanges) (*model.CarImage, error) {
	if _, err := s.ownedCar(ctx, p, carID); err != nil {
		return nil, err
	}
	img, err := s.image(ctx, carID, imageID)
	if err != nil {
		return nil, err
	}

	if ch.Position != nil && *ch.Position < 0 {
		return nil, newValidationError("position", "the position must be at least 0")
	}
	if ch.Alt != nil {
		img.Alt = ch.Alt
	}
	if ch.IsCover != nil {
		img.IsCover = *ch.IsCover
	}
	if ch.Position != nil {
		img.Position = *ch.Position
	}
	if err := s.carRepo.SaveImage(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to update image: %w", err)
	}
	return presentImage(s.blobs, img), nil
}

// Delete removes the row, then the blob. A blob failure is only logged.
func (s *carImageService) Delete(ctx context.Context, p *Principal, carID, imageID uuid.UUID) error {
	if _, err := s.ownedCar(ctx, p, carID); err != nil {
		return err
	}
	img, err := s.image(ctx, carID, imageID)
	if err != nil {
		return err
	}
	if err := s.carRepo.DeleteImage(ctx, img); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	if filledStr(img.Path) {
		err := s.blobs.Delete(ctx, *img.Path)
		s.metrics.ObserveBlob("delete", err)
		if err != nil {
			s.logger.Warn("failed to delete image blob", zap.String("path", *img.Path), zap.Error(err))
		}
	}
	return nil
}

var _ CarImageService = (*carImageService)(nil)
