package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carmarket/backend/internal/metrics"
	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
	"carmarket/backend/internal/storage"
	"carmarket/backend/pkg/optional"
)

// ProfileChanges is a partial profile update. An explicit null clears a field.
type ProfileChanges struct {
	Name        optional.Field[string]
	Email       optional.Field[string]
	FirstName   optional.Field[string]
	LastName    optional.Field[string]
	Phone       optional.Field[string]
	Bio         optional.Field[string]
	Address     optional.Field[string]
	City        optional.Field[string]
	State       optional.Field[string]
	PostalCode  optional.Field[string]
	Country     optional.Field[string]
	DateOfBirth optional.Field[string] // YYYY-MM-DD
	Gender      optional.Field[string]
	CompanyName optional.Field[string]
}

// Me is the signed-in user's view with derived profile data attached.
type Me struct {
	*model.User
	MissingFields []ProfileField `json:"missing_fields"`
	Permissions   []string       `json:"permissions"`
}

type UserQuery struct {
	Keyword string
	Page    int
	PerPage int
}

type UserService interface {
	Profile(ctx context.Context, userID uuid.UUID) (*model.User, error)
	Me(ctx context.Context, userID uuid.UUID) (*Me, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, ch ProfileChanges) (*model.User, error)
	UploadProfileImage(ctx context.Context, userID uuid.UUID, up Upload) (*model.User, error)
	DeleteProfileImage(ctx context.Context, userID uuid.UUID) (*model.User, error)

	List(ctx context.Context, q UserQuery) ([]model.User, int64, error)
	ListTrashed(ctx context.Context, q UserQuery) ([]model.User, int64, error)
	Show(ctx context.Context, id uuid.UUID) (*model.User, error)
	AdminUpdate(ctx context.Context, id uuid.UUID, name, email *string) (*model.User, error)
	SetVerification(ctx context.Context, id uuid.UUID, verified bool) (*model.User, error)
	Destroy(ctx context.Context, actor *Principal, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) (*model.User, error)
	Force(ctx context.Context, actor *Principal, id uuid.UUID) error
	// RecalculateAll recomputes the completion of every active user and reports how many rows changed.
	RecalculateAll(ctx context.Context) (int, error)
}

type userService struct {
	userRepo  repository.UserRepository
	rbacRepo  repository.RBACRepository
	tokenRepo repository.TokenRepository
	sessions  *repository.SessionStore
	blobs     storage.BlobStore
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewUserService(
	userRepo repository.UserRepository,
	rbacRepo repository.RBACRepository,
	tokenRepo repository.TokenRepository,
	sessions *repository.SessionStore,
	blobs storage.BlobStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo:  userRepo,
		rbacRepo:  rbacRepo,
		tokenRepo: tokenRepo,
		sessions:  sessions,
		blobs:     blobs,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *userService) find(ctx context.Context, id uuid.UUID, withTrashed bool) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id, withTrashed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *userService) reload(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return presentUser(s.blobs, user), nil
}

func (s *userService) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.reload(ctx, userID)
}

func (s *userService) Me(ctx context.Context, userID uuid.UUID) (*Me, error) {
	user, err := s.reload(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms, err := s.rbacRepo.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	if perms == nil {
		perms = []string{}
	}
	return &Me{User: user, MissingFields: MissingProfileFields(user), Permissions: perms}, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, ch ProfileChanges) (*model.User, error) {
	user, err := s.find(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	v := &ValidationError{}
	if ch.Name.Set {
		user.Name = ""
		if ch.Name.Value != nil {
			user.Name = strings.TrimSpace(*ch.Name.Value)
		}
	}
	if ch.Email.Set {
		if err := s.changeEmail(ctx, user, ch.Email.Value, v); err != nil {
			return nil, err
		}
	}
	ch.FirstName.Apply(&user.FirstName)
	ch.LastName.Apply(&user.LastName)
	ch.Phone.Apply(&user.Phone)
	ch.Bio.Apply(&user.Bio)
	ch.Address.Apply(&user.Address)
	ch.City.Apply(&user.City)
	ch.State.Apply(&user.State)
	ch.PostalCode.Apply(&user.PostalCode)
	ch.Country.Apply(&user.Country)
	ch.CompanyName.Apply(&user.CompanyName)
	if ch.DateOfBirth.Set {
		user.DateOfBirth = nil
		if ch.DateOfBirth.Value != nil && *ch.DateOfBirth.Value != "" {
			dob, err := parseDate(*ch.DateOfBirth.Value)
			if err != nil {
				v.add("date_of_birth", "the date of birth is not a valid date")
			} else {
				user.DateOfBirth = &dob
			}
		}
	}
	if ch.Gender.Set {
		user.Gender = nil
		if ch.Gender.Value != nil && *ch.Gender.Value != "" {
			g := model.Gender(*ch.Gender.Value)
			if !validGender(g) {
				v.add("gender", "the selected gender is invalid")
			}
			user.Gender = &g
		}
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	ApplyProfileCompletion(user)
	if err := s.userRepo.Update(ctx, user); err != nil {
		if err := duplicateEmail(err); errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.reload(ctx, userID)
}

// changeEmail validates and applies an email change, enforcing uniqueness
// across active and tombstoned users.
func (s *userService) changeEmail(ctx context.Context, user *model.User, email *string, v *ValidationError) error {
	if email == nil || strings.TrimSpace(*email) == "" {
		v.add("email", "the email field must not be empty")
		return nil
	}
	next := strings.TrimSpace(*email)
	taken, err := s.userRepo.EmailTaken(ctx, next, user.ID)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return ErrDuplicateEmail
	}
	user.Email = next
	return nil
}

func validGender(g model.Gender) bool {
	switch g {
	case model.GenderMale, model.GenderFemale, model.GenderOther:
		return true
	}
	return false
}

// UploadProfileImage stores the new blob, points the row at it, and only
// then removes the previous blob.
func (s *userService) UploadProfileImage(ctx context.Context, userID uuid.UUID, up Upload) (*model.User, error) {
	user, err := s.find(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	key, err := s.blobs.Put(ctx, "profiles", up.Ext, up.Body, up.ContentType)
	s.metrics.ObserveBlob("put", err)
	if err != nil {
		return nil, fmt.Errorf("failed to store profile image: %w", err)
	}

	previous := user.ProfileImagePath
	user.ProfileImagePath = &key
	ApplyProfileCompletion(user)
	cols := completionColumns(user)
	cols["profile_image_path"] = key
	if err := s.userRepo.UpdateColumns(ctx, user.ID, cols); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned blob", zap.String("path", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to update profile image: %w", err)
	}

	if filledStr(previous) && *previous != key {
		s.deleteBlob(ctx, *previous)
	}
	return s.reload(ctx, user.ID)
}

func (s *userService) DeleteProfileImage(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.find(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	if !filledStr(user.ProfileImagePath) {
		return nil, ErrNoProfileImage
	}

	previous := *user.ProfileImagePath
	user.ProfileImagePath = nil
	ApplyProfileCompletion(user)
	cols := completionColumns(user)
	cols["profile_image_path"] = nil
	if err := s.userRepo.UpdateColumns(ctx, user.ID, cols); err != nil {
		return nil, fmt.Errorf("failed to clear profile image: %w", err)
	}
	s.deleteBlob(ctx, previous)
	return s.reload(ctx, user.ID)
}

func (s *userService) deleteBlob(ctx context.Context, path string) {
	err := s.blobs.Delete(ctx, path)
	s.metrics.ObserveBlob("delete", err)
	if err != nil {
		s.logger.Warn("failed to delete blob", zap.String("path", path), zap.Error(err))
	}
}

func (s *userService) List(ctx context.Context, q UserQuery) ([]model.User, int64, error) {
	return s.list(ctx, repository.UserQuery{Keyword: q.Keyword, Page: repository.Page{Page: q.Page, PerPage: q.PerPage}})
}

func (s *userService) ListTrashed(ctx context.Context, q UserQuery) ([]model.User, int64, error) {
	return s.list(ctx, repository.UserQuery{Keyword: q.Keyword, Trashed: true, Page: repository.Page{Page: q.Page, PerPage: q.PerPage}})
}

func (s *userService) list(ctx context.Context, q repository.UserQuery) ([]model.User, int64, error) {
	users, total, err := s.userRepo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		presentUser(s.blobs, &users[i])
	}
	return users, total, nil
}

func (s *userService) Show(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.reload(ctx, id)
}

func (s *userService) AdminUpdate(ctx context.Context, id uuid.UUID, name, email *string) (*model.User, error) {
	user, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}

	v := &ValidationError{}
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			v.add("name", "the name field must not be empty")
		}
		user.Name = strings.TrimSpace(*name)
	}
	if email != nil {
		if err := s.changeEmail(ctx, user, email, v); err != nil {
			return nil, err
		}
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	ApplyProfileCompletion(user)
	if err := s.userRepo.Update(ctx, user); err != nil {
		if err := duplicateEmail(err); errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.reload(ctx, id)
}

// SetVerification flips the verified flag. Verifying requires the profile to
// be complete enough at the time of the call.
func (s *userService) SetVerification(ctx context.Context, id uuid.UUID, verified bool) (*model.User, error) {
	user, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}

	ApplyProfileCompletion(user)
	if verified {
		if user.ProfileCompletePercent < model.VerificationThreshold {
			return nil, ErrProfileIncomplete
		}
		user.IsVerified = true
		user.VerifiedAt = timePtr(s.now().UTC())
	} else {
		user.IsVerified = false
		user.VerifiedAt = nil
	}

	if err := s.userRepo.UpdateColumns(ctx, id, completionColumns(user)); err != nil {
		return nil, fmt.Errorf("failed to update verification: %w", err)
	}
	s.logger.Info("user verification changed", zap.String("user_id", id.String()), zap.Bool("verified", verified))
	return s.reload(ctx, id)
}

// Destroy tombstones a user and revokes every session it holds.
func (s *userService) Destroy(ctx context.Context, actor *Principal, id uuid.UUID) error {
	if actor.ID() == id {
		return ErrSelfDelete
	}
	if err := s.userRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := revokeSessions(ctx, s.tokenRepo, s.sessions, id); err != nil {
		return err
	}
	s.logger.Info("user soft-deleted", zap.String("user_id", id.String()), zap.String("actor_id", actor.ID().String()))
	return nil
}

func (s *userService) Restore(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.find(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if user.Lifecycle() != model.LifecycleTombstoned {
		return nil, ErrNotDeleted
	}
	if err := s.userRepo.Restore(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to restore user: %w", err)
	}
	return s.reload(ctx, id)
}

// Force purges a user. Token rows, pivots and the user row go in one
// transaction; session records and the profile blob are removed after.
func (s *userService) Force(ctx context.Context, actor *Principal, id uuid.UUID) error {
	if actor.ID() == id {
		return ErrSelfDelete
	}
	user, err := s.find(ctx, id, true)
	if err != nil {
		return err
	}

	jtis, err := s.tokenRepo.ListJTIsByUser(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}
	if err := s.userRepo.ForceDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to purge user: %w", err)
	}
	if err := s.sessions.Delete(ctx, jtis...); err != nil {
		s.logger.Warn("failed to drop sessions of purged user", zap.String("user_id", id.String()), zap.Error(err))
	}
	if filledStr(user.ProfileImagePath) {
		s.deleteBlob(ctx, *user.ProfileImagePath)
	}

	s.logger.Info("user purged",
		zap.String("user_id", id.String()),
		zap.String("actor_id", actor.ID().String()),
		zap.Int("revoked_tokens", len(jtis)))
	return nil
}

func (s *userService) RecalculateAll(ctx context.Context) (int, error) {
	updated := 0
	err := s.userRepo.EachInBatches(ctx, 100, func(users []model.User) error {
		for i := range users {
			u := &users[i]
			if !ApplyProfileCompletion(u) {
				continue
			}
			if err := s.userRepo.UpdateColumns(ctx, u.ID, completionColumns(u)); err != nil {
				return fmt.Errorf("update user %s: %w", u.ID, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return updated, fmt.Errorf("failed to recalculate profiles: %w", err)
	}
	return updated, nil
}

var _ UserService = (*userService)(nil)
