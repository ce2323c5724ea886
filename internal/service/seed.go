package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
)

// demoUsers are created by SeedDemoUsers, one per seed role.
var demoUsers = []struct {
	email, name, role string
}{
	{"admin@example.com", "Admin", model.RoleAdmin},
	{"seller@example.com", "Seller", model.RoleSeller},
	{"buyer@example.com", "Buyer", model.RoleBuyer},
}

// SeedDemoUsers creates the demo accounts if missing and makes sure each holds
// its role. Existing accounts keep their other roles and their password.
func SeedDemoUsers(
	ctx context.Context,
	userRepo repository.UserRepository,
	rbacRepo repository.RBACRepository,
	hasher PasswordHasher,
	password string,
	logger *zap.Logger,
) error {
	if password == "" {
		return errors.New("demo password is empty")
	}
	for _, d := range demoUsers {
		role, err := rbacRepo.FirstOrCreateRole(ctx, d.role, model.DefaultRoleLabel(d.role))
		if err != nil {
			return fmt.Errorf("seed role %s: %w", d.role, err)
		}

		user, err := userRepo.GetByEmail(ctx, d.email)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := hasher.Hash(password)
			if err != nil {
				return fmt.Errorf("hash demo password: %w", err)
			}
			user = &model.User{Name: d.name, Email: d.email, PasswordHash: hash}
			ApplyProfileCompletion(user)
			if err := userRepo.Create(ctx, user); err != nil {
				return fmt.Errorf("create demo user %s: %w", d.email, err)
			}
			logger.Info("demo user created", zap.String("email", d.email), zap.String("role", d.role))
		case err != nil:
			return fmt.Errorf("find demo user %s: %w", d.email, err)
		}

		held, err := rbacRepo.HasRole(ctx, user.ID, []string{d.role})
		if err != nil {
			return fmt.Errorf("check demo user role: %w", err)
		}
		if !held {
			if err := rbacRepo.AttachUserRole(ctx, user.ID, role); err != nil {
				return fmt.Errorf("attach demo role: %w", err)
			}
		}
	}
	return nil
}

type demoCar struct {
	make, model string
	year        int
	price       int64
	mileage     int
	condition   model.CarCondition
	location    string
	description string
	approved    bool
}

// demoCars are listed by the demo seller: the approved ones fill the public
// catalogue, the pending ones wait in the moderation queue.
var demoCars = []demoCar{
	{"Toyota", "Camry", 2022, 25000, 15000, model.CarConditionUsed, "New York, NY", "Well-maintained Toyota Camry with full service history.", true},
	{"Honda", "Civic", 2021, 22000, 28000, model.CarConditionUsed, "Los Angeles, CA", "Reliable Honda Civic in excellent condition.", true},
	{"Ford", "Mustang", 2023, 45000, 5000, model.CarConditionNew, "Chicago, IL", "Brand new Ford Mustang with all latest features.", true},
	{"Tesla", "Model 3", 2022, 42000, 12000, model.CarConditionUsed, "Boston, MA", "Electric Tesla Model 3 with autopilot features.", true},
	{"Subaru", "Outback", 2021, 29000, 35000, model.CarConditionUsed, "Portland, OR", "All-wheel drive Subaru Outback perfect for adventurers.", false},
	{"Kia", "Sorento", 2023, 31000, 8000, model.CarConditionNew, "Atlanta, GA", "Spacious and modern Kia Sorento SUV with latest tech.", false},
	{"Jeep", "Wrangler", 2022, 43000, 15000, model.CarConditionUsed, "Denver, CO", "Off-road capable Jeep Wrangler with removable top.", false},
}

// SeedDemoCars lists demoCars under the demo seller, approved by the demo
// admin. It does nothing once the seller has any live listing, and expects
// SeedDemoUsers to have run.
func SeedDemoCars(
	ctx context.Context,
	userRepo repository.UserRepository,
	carRepo repository.CarRepository,
	now time.Time,
	logger *zap.Logger,
) error {
	seller, err := userRepo.GetByEmail(ctx, demoUsers[1].email)
	if err != nil {
		return fmt.Errorf("find demo seller: %w", err)
	}
	admin, err := userRepo.GetByEmail(ctx, demoUsers[0].email)
	if err != nil {
		return fmt.Errorf("find demo admin: %w", err)
	}

	_, existing, err := carRepo.List(ctx, repository.CarQuery{
		SellerID: &seller.ID,
		Page:     repository.Page{Page: 1, PerPage: 1},
	})
	if err != nil {
		return fmt.Errorf("count demo listings: %w", err)
	}
	if existing > 0 {
		return nil
	}

	for i, d := range demoCars {
		car := &model.Car{
			SellerID:    &seller.ID,
			Make:        d.make,
			Model:       d.model,
			Year:        d.year,
			Price:       decimal.NewFromInt(d.price),
			Mileage:     intPtr(d.mileage),
			Condition:   d.condition,
			Location:    strPtr(d.location),
			Description: strPtr(d.description),
			Status:      model.CarStatusPending,
		}
		if d.approved {
			// Stagger publication so the public feed has a stable order.
			if err := Approve(car, admin.ID, now.Add(-time.Duration(len(demoCars)-i)*time.Hour)); err != nil {
				return err
			}
		}
		if err := carRepo.Create(ctx, car); err != nil {
			return fmt.Errorf("create demo car %s %s: %w", d.make, d.model, err)
		}
	}
	logger.Info("demo cars created", zap.Int("count", len(demoCars)))
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
