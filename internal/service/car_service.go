package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carmarket/backend/internal/metrics"
	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
	"carmarket/backend/internal/storage"
	"carmarket/backend/pkg/optional"
)

// CarFilter is the list query accepted by the car endpoints.
type CarFilter struct {
	Keyword    string
	Make       string
	Model      string
	Condition  string
	Location   string
	YearFrom   *int
	YearTo     *int
	PriceMin   *decimal.Decimal
	PriceMax   *decimal.Decimal
	MileageMax *int
	// Sort is one of created_at, price, year, mileage; a leading "-" means descending.
	Sort    string
	Page    int
	PerPage int
}

// ImageMeta describes an image row created together with a listing.
type ImageMeta struct {
	Alt      *string
	IsCover  *bool
	Position *int
}

type CarInput struct {
	Make        string
	Model       string
	Year        int
	Price       decimal.Decimal
	Mileage     *int
	Condition   model.CarCondition
	Location    *string
	Description *string
	Images      []ImageMeta
}

// CarChanges is a partial update. Nil pointers and unset fields are left alone.
type CarChanges struct {
	Make        *string
	Model       *string
	Year        *int
	Price       *decimal.Decimal
	Mileage     optional.Field[int]
	Condition   *model.CarCondition
	Location    optional.Field[string]
	Description optional.Field[string]
}

type CarService interface {
	// Reads are owner scoped for sellers only; admins and buyers see every seller's listings.
	List(ctx context.Context, p *Principal, f CarFilter) ([]model.Car, int64, error)
	ListApproved(ctx context.Context, p *Principal, f CarFilter) ([]model.Car, int64, error)
	ListRejected(ctx context.Context, p *Principal, f CarFilter) ([]model.Car, int64, error)
	ListTrashed(ctx context.Context, p *Principal, f CarFilter) ([]model.Car, int64, error)
	PublicList(ctx context.Context, f CarFilter) ([]model.Car, int64, error)
	PublicShow(ctx context.Context, id uuid.UUID) (*model.Car, error)
	Show(ctx context.Context, p *Principal, id uuid.UUID) (*model.Car, error)
	Create(ctx context.Context, p *Principal, in CarInput) (*model.Car, error)
	Update(ctx context.Context, p *Principal, id uuid.UUID, ch CarChanges) (*model.Car, error)
	Destroy(ctx context.Context, p *Principal, id uuid.UUID) error
	Restore(ctx context.Context, p *Principal, id uuid.UUID) (*model.Car, error)
	Force(ctx context.Context, p *Principal, id uuid.UUID) error
	Approve(ctx context.Context, p *Principal, id uuid.UUID) (*model.Car, error)
	Reject(ctx context.Context, p *Principal, id uuid.UUID, reason string) (*model.Car, error)
}

type carService struct {
	carRepo repository.CarRepository
	rbac    RBACService
	blobs   storage.BlobStore
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewCarService(
	carRepo repository.CarRepository,
	rbac RBACService,
	blobs storage.BlobStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) CarService {
	return &carService{
		carRepo: carRepo,
		rbac:    rbac,
		blobs:   blobs,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

var sortableColumns = map[string]struct{}{
	"created_at": {},
	"price":      {},
	"year":       {},
	"mileage":    {},
}

const defaultCarOrder = "created_at DESC"

// parseSort maps a sort key onto a trusted ORDER BY term. Anything outside
// the allow-list falls back to newest first.
func parseSort(key string) string {
	key = strings.TrimSpace(key)
	dir := "ASC"
	if strings.HasPrefix(key, "-") {
		dir = "DESC"
		key = key[1:]
	}
	if _, ok := sortableColumns[key]; !ok {
		return defaultCarOrder
	}
	return key + " " + dir
}

func (f CarFilter) page() repository.Page {
	return repository.Page{Page: f.Page, PerPage: f.PerPage}
}

// scope returns the seller filter for read paths: p's id when p sells and is
// not an admin, nil otherwise. Buyers and admins read the whole catalogue.
func (s *carService) scope(ctx context.Context, p *Principal) (*uuid.UUID, error) {
	if p == nil || p.User == nil {
		return nil, ErrUnauthenticated
	}
	admin, err := s.rbac.HasRole(ctx, p.ID(), model.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}
	if admin {
		return nil, nil
	}
	seller, err := s.rbac.HasRole(ctx, p.ID(), model.RoleSeller)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}
	if !seller {
		return nil, nil
	}
	id := p.ID()
	return &id, nil
}

func (s *carService) list(ctx context.Context, q repository.CarQuery) ([]model.Car, int64, error) {
	cars, total, err := s.carRepo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cars: %w", err)
	}
	return presentCars(s.blobs, cars), total, nil
}

func (s *carService) List(ctx context.Context, p *Principal, f CarFilter) ([]model.Car, int64, error) {
	seller, err := s.scope(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	return s.list(ctx, repository.CarQuery{
		Keyword:    f.Keyword,
		Make:       f.Make,
		Model:      f.Model,
		Condition:  model.CarCondition(f.Condition),
		Location:   f.Location,
		YearFrom:   f.YearFrom,
		YearTo:     f.YearTo,
		PriceMin:   f.PriceMin,
		PriceMax:   f.PriceMax,
		MileageMax: f.MileageMax,
		SellerID:   seller,
		OrderBy:    []string{parseSort(f.Sort)},
		WithSeller: true,
		Page:       f.page(),
	})
}

func (s *carService) ListApproved(ctx context.Context, p *Principal, f CarFilter) ([]model.Car, int64, error) {
	return s.listByState(ctx, p, f, repository.CarQuery{Status: model.CarStatusApproved, OrderBy: []string{"approved_at DESC"}})
}

func (s *carService) ListRejected(ctx context.Context, p *Principal, f CarFilter) ([]model.Car, int64, error) {
	return s.listByState(ctx, p, f, repository.CarQuery{Status: model.CarStatusRejected, OrderBy: []string{"rejected_at DESC"}})
}

func (s *carService) ListTrashed(ctx context.Context, p *Principal, f CarFilter) ([]model.Car, int64, error) {
	return s.listByState(ctx, p, f, repository.CarQuery{Trashed: true, OrderBy: []string{"deleted_at DESC"}})
}

func (s *carService) listByState(ctx context.Context, p *Principal, f CarFilter, q repository.CarQuery) ([]model.Car, int64, error) {
	seller, err := s.scope(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	q.Keyword = f.Keyword
	q.SellerID = seller
	q.Page = f.page()
	return s.list(ctx, q)
}

func (s *carService) PublicList(ctx context.Context, f CarFilter) ([]model.Car, int64, error) {
	return s.list(ctx, repository.CarQuery{
		Keyword:    f.Keyword,
		Status:     model.CarStatusApproved,
		OrderBy:    []string{"published_at DESC", "created_at DESC"},
		WithSeller: true,
		Page:       f.page(),
	})
}

func (s *carService) PublicShow(ctx context.Context, id uuid.UUID) (*model.Car, error) {
	car, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if !car.IsApproved() {
		return nil, ErrNotFound
	}
	return presentCar(s.blobs, car), nil
}

func (s *carService) find(ctx context.Context, id uuid.UUID, withTrashed bool) (*model.Car, error) {
	car, err := s.carRepo.GetByID(ctx, id, withTrashed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find car: %w", err)
	}
	return car, nil
}

// findOwned loads a car and requires p to be its seller or an admin.
func (s *carService) findOwned(ctx context.Context, p *Principal, id uuid.UUID, withTrashed bool) (*model.Car, error) {
	if p == nil || p.User == nil {
		return nil, ErrUnauthenticated
	}
	car, err := s.find(ctx, id, withTrashed)
	if err != nil {
		return nil, err
	}
	if err := authorizeCarOwner(ctx, s.rbac, p, car); err != nil {
		return nil, err
	}
	return car, nil
}

func authorizeCarOwner(ctx context.Context, rbac RBACService, p *Principal, car *model.Car) error {
	if car.OwnedBy(p.ID()) {
		return nil
	}
	return rbac.Authorize(ctx, p, RequireRoles(model.RoleAdmin))
}

func (s *carService) Show(ctx context.Context, p *Principal, id uuid.UUID) (*model.Car, error) {
	seller, err := s.scope(ctx, p)
	if err != nil {
		return nil, err
	}
	car, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if seller != nil && !car.OwnedBy(*seller) {
		return nil, ErrForbidden
	}
	return presentCar(s.blobs, car), nil
}

func (s *carService) Create(ctx context.Context, p *Principal, in CarInput) (*model.Car, error) {
	if p == nil || p.User == nil {
		return nil, ErrUnauthenticated
	}
	if in.Condition == "" {
		in.Condition = model.CarConditionUsed
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	sellerID := p.ID()
	car := &model.Car{
		SellerID:    &sellerID,
		Make:        strings.TrimSpace(in.Make),
		Model:       strings.TrimSpace(in.Model),
		Year:        in.Year,
		Price:       in.Price,
		Mileage:     in.Mileage,
		Condition:   in.Condition,
		Location:    in.Location,
		Description: in.Description,
		Status:      model.CarStatusPending,
	}
	for i, meta := range in.Images {
		img := model.CarImage{Alt: meta.Alt, IsCover: i == 0, Position: i}
		if meta.IsCover != nil {
			img.IsCover = *meta.IsCover
		}
		if meta.Position != nil {
			img.Position = *meta.Position
		}
		car.Images = append(car.Images, img)
	}

	if err := s.carRepo.Create(ctx, car); err != nil {
		return nil, fmt.Errorf("failed to create car: %w", err)
	}
	s.logger.Info("car listed", zap.String("car_id", car.ID.String()), zap.String("seller_id", sellerID.String()))
	return s.reload(ctx, car.ID, false)
}

func (s *carService) validateInput(in CarInput) error {
	v := &ValidationError{}
	if strings.TrimSpace(in.Make) == "" {
		v.add("make", "the make field is required")
	}
	if strings.TrimSpace(in.Model) == "" {
		v.add("model", "the model field is required")
	}
	s.validateYear(v, in.Year)
	validatePrice(v, in.Price)
	validateMileage(v, in.Mileage)
	if !in.Condition.Valid() {
		v.add("condition", "the selected condition is invalid")
	}
	for i, meta := range in.Images {
		if meta.Position != nil && *meta.Position < 0 {
			v.add(fmt.Sprintf("images.%d.position", i), "the position must be at least 0")
		}
	}
	return v.orNil()
}

func (s *carService) validateYear(v *ValidationError, year int) {
	if latest := s.now().Year() + 1; year < model.MinCarYear || year > latest {
		v.add("year", fmt.Sprintf("the year must be between %d and %d", model.MinCarYear, latest))
	}
}

func validatePrice(v *ValidationError, price decimal.Decimal) {
	if price.IsNegative() {
		v.add("price", "the price must be at least 0")
	}
}

func validateMileage(v *ValidationError, mileage *int) {
	if mileage != nil && *mileage < 0 {
		v.add("mileage", "the mileage must be at least 0")
	}
}

func (s *carService) Update(ctx context.Context, p *Principal, id uuid.UUID, ch CarChanges) (*model.Car, error) {
	car, err := s.findOwned(ctx, p, id, false)
	if err != nil {
		return nil, err
	}

	v := &ValidationError{}
	if ch.Make != nil {
		if strings.TrimSpace(*ch.Make) == "" {
			v.add("make", "the make field must not be empty")
		}
		car.Make = strings.TrimSpace(*ch.Make)
	}
	if ch.Model != nil {
		if strings.TrimSpace(*ch.Model) == "" {
			v.add("model", "the model field must not be empty")
		}
		car.Model = strings.TrimSpace(*ch.Model)
	}
	if ch.Year != nil {
		s.validateYear(v, *ch.Year)
		car.Year = *ch.Year
	}
	if ch.Price != nil {
		validatePrice(v, *ch.Price)
		car.Price = *ch.Price
	}
	if ch.Condition != nil {
		if !ch.Condition.Valid() {
			v.add("condition", "the selected condition is invalid")
		}
		car.Condition = *ch.Condition
	}
	ch.Mileage.Apply(&car.Mileage)
	validateMileage(v, car.Mileage)
	ch.Location.Apply(&car.Location)
	ch.Description.Apply(&car.Description)
	if err := v.orNil(); err != nil {
		return nil, err
	}

	if err := s.carRepo.Save(ctx, car); err != nil {
		return nil, fmt.Errorf("failed to update car: %w", err)
	}
	return s.reload(ctx, car.ID, false)
}

func (s *carService) Destroy(ctx context.Context, p *Principal, id uuid.UUID) error {
	car, err := s.findOwned(ctx, p, id, false)
	if err != nil {
		return err
	}
	if err := s.carRepo.SoftDelete(ctx, car.ID); err != nil {
		return fmt.Errorf("failed to delete car: %w", err)
	}
	return nil
}

func (s *carService) Restore(ctx context.Context, p *Principal, id uuid.UUID) (*model.Car, error) {
	car, err := s.findOwned(ctx, p, id, true)
	if err != nil {
		return nil, err
	}
	if car.Lifecycle() != model.LifecycleTombstoned {
		return nil, ErrNotDeleted
	}
	if err := s.carRepo.Restore(ctx, car.ID); err != nil {
		return nil, fmt.Errorf("failed to restore car: %w", err)
	}
	return s.reload(ctx, car.ID, false)
}

func (s *carService) Force(ctx context.Context, p *Principal, id uuid.UUID) error {
	car, err := s.findOwned(ctx, p, id, true)
	if err != nil {
		return err
	}
	if err := s.carRepo.ForceDelete(ctx, car.ID); err != nil {
		return fmt.Errorf("failed to purge car: %w", err)
	}

	for _, img := range car.Images {
		if !filledStr(img.Path) {
			continue
		}
		err := s.blobs.Delete(ctx, *img.Path)
		s.metrics.ObserveBlob("delete", err)
		if err != nil {
			s.logger.Warn("failed to delete car image blob",
				zap.String("car_id", car.ID.String()), zap.String("path", *img.Path), zap.Error(err))
		}
	}
	s.logger.Info("car purged", zap.String("car_id", car.ID.String()), zap.String("actor_id", p.ID().String()))
	return nil
}

func (s *carService) Approve(ctx context.Context, p *Principal, id uuid.UUID) (*model.Car, error) {
	return s.moderate(ctx, p, id, "approved", func(car *model.Car, now time.Time) error {
		return Approve(car, p.ID(), now)
	})
}

func (s *carService) Reject(ctx context.Context, p *Principal, id uuid.UUID, reason string) (*model.Car, error) {
	return s.moderate(ctx, p, id, "rejected", func(car *model.Car, now time.Time) error {
		return Reject(car, p.ID(), reason, now)
	})
}

func (s *carService) moderate(ctx context.Context, p *Principal, id uuid.UUID, decision string, transition func(*model.Car, time.Time) error) (*model.Car, error) {
	if err := s.rbac.Authorize(ctx, p, RequirePermission(model.PermCarsModerate)); err != nil {
		return nil, err
	}
	car, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if err := transition(car, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.carRepo.Save(ctx, car); err != nil {
		return nil, fmt.Errorf("failed to save moderation decision: %w", err)
	}

	s.metrics.ObserveModeration(decision)
	s.logger.Info("car moderated",
		zap.String("car_id", car.ID.String()),
		zap.String("decision", decision),
		zap.String("reviewer_id", p.ID().String()))
	return s.reload(ctx, car.ID, false)
}

func (s *carService) reload(ctx context.Context, id uuid.UUID, withTrashed bool) (*model.Car, error) {
	car, err := s.find(ctx, id, withTrashed)
	if err != nil {
		return nil, err
	}
	return presentCar(s.blobs, car), nil
}

var _ CarService = (*carService)(nil)
