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

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
	"carmarket/backend/internal/storage"
	jwtpkg "carmarket/backend/pkg/jwt"
)

// PasswordHasher is satisfied by pkg/crypto.PasswordHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Role        string // buyer (default) or seller
	FirstName   *string
	LastName    *string
	Phone       *string
	CompanyName *string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Logout revokes exactly the presented token. Revoking an unknown token is a no-op.
	Logout(ctx context.Context, tokenID string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
	// Authenticate resolves a bearer token to its principal. The token must
	// validate and be present in both revocation stores.
	Authenticate(ctx context.Context, token string) (*Principal, error)
	RevokeAllSessions(ctx context.Context, userID uuid.UUID) error
}

type authService struct {
	userRepo   repository.UserRepository
	rbacRepo   repository.RBACRepository
	tokenRepo  repository.TokenRepository
	sessions   *repository.SessionStore
	jwtManager *jwtpkg.Manager
	hasher     PasswordHasher
	blobs      storage.BlobStore
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	rbacRepo repository.RBACRepository,
	tokenRepo repository.TokenRepository,
	sessions *repository.SessionStore,
	jwtManager *jwtpkg.Manager,
	hasher PasswordHasher,
	blobs storage.BlobStore,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		rbacRepo:   rbacRepo,
		tokenRepo:  tokenRepo,
		sessions:   sessions,
		jwtManager: jwtManager,
		hasher:     hasher,
		blobs:      blobs,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	roleName := in.Role
	if roleName == "" {
		roleName = model.RoleBuyer
	}
	if roleName != model.RoleBuyer && roleName != model.RoleSeller {
		return nil, newValidationError("role", "the selected role is invalid")
	}

	taken, err := s.userRepo.EmailTaken(ctx, email, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role, err := s.rbacRepo.FirstOrCreateRole(ctx, roleName, model.DefaultRoleLabel(roleName))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role: %w", err)
	}

	user := &model.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		CompanyName:  in.CompanyName,
		Roles:        []model.Role{*role},
	}
	ApplyProfileCompletion(user)

	// The role pivot is written in the same statement transaction as the user row.
	// A concurrent registration can pass EmailTaken; the unique index decides.
	if err := s.userRepo.Create(ctx, user); err != nil {
		if err := duplicateEmail(err); errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", roleName))
	return s.issue(ctx, user.ID)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !s.hasher.Check(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user.ID)
}

// issue mints a token and records it in both revocation stores.
func (s *authService) issue(ctx context.Context, userID uuid.UUID) (*AuthResult, error) {
	signed, claims, err := s.jwtManager.GenerateAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	expiresAt := claims.ExpiresAt.Time

	if err := s.tokenRepo.Create(ctx, &model.AccessToken{
		UserID:    userID,
		JTI:       claims.ID,
		Name:      "api",
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to record token: %w", err)
	}
	if err := s.sessions.Put(ctx, claims.ID, userID, s.jwtManager.TTL()); err != nil {
		_ = s.tokenRepo.DeleteByJTI(ctx, claims.ID)
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	user, err := s.userRepo.GetByID(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &AuthResult{User: presentUser(s.blobs, user), Token: signed, ExpiresAt: expiresAt}, nil
}

func (s *authService) Logout(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return nil
	}
	if err := s.tokenRepo.DeleteByJTI(ctx, tokenID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if err := s.sessions.Delete(ctx, tokenID); err != nil {
		return fmt.Errorf("failed to drop session: %w", err)
	}
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.userRepo.GetByID(ctx, userID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}
	if !s.hasher.Check(current, user.PasswordHash) {
		return ErrIncorrectPassword
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.userRepo.UpdateColumns(ctx, userID, map[string]interface{}{"password_hash": hash})
}

func (s *authService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.jwtManager.Validate(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	record, err := s.tokenRepo.GetByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if record.UserID != userID {
		return nil, ErrUnauthenticated
	}

	owner, err := s.sessions.UserID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if owner != userID {
		return nil, ErrUnauthenticated
	}

	user, err := s.userRepo.GetByID(ctx, userID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.tokenRepo.Touch(ctx, claims.ID, s.now()); err != nil {
		s.logger.Warn("failed to touch token", zap.String("jti", claims.ID), zap.Error(err))
	}
	return &Principal{User: presentUser(s.blobs, user), TokenID: claims.ID}, nil
}

func (s *authService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	return revokeSessions(ctx, s.tokenRepo, s.sessions, userID)
}

// revokeSessions clears every token row of a user and the matching session records.
func revokeSessions(ctx context.Context, tokens repository.TokenRepository, sessions *repository.SessionStore, userID uuid.UUID) error {
	jtis, err := tokens.ListJTIsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}
	if err := tokens.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	if err := sessions.Delete(ctx, jtis...); err != nil {
		return fmt.Errorf("failed to drop sessions: %w", err)
	}
	return nil
}

var _ AuthService = (*authService)(nil)
