package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
	jwtpkg "carmarket/backend/pkg/jwt"
)

func TestRegisterAssignsDefaultRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.auth.Register(ctx, RegisterInput{
		Name:     "Jane",
		Email:    "jane@example.com",
		Password: testPassword,
		Phone:    strPtr("+351900000000"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, []string{model.RoleBuyer}, res.User.RoleNames())
	assert.NotEqual(t, testPassword, res.User.PasswordHash)
	assert.Equal(t, 20, res.User.ProfileCompletePercent, "name, email and phone are 3 of 15")

	p, err := env.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, p.ID())

	seller, err := env.auth.Register(ctx, RegisterInput{Name: "Sam", Email: "sam@example.com", Password: testPassword, Role: model.RoleSeller})
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleSeller}, seller.User.RoleNames())
}

func TestRegisterRejectsDuplicateAndPrivilegedRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: testPassword})
	require.NoError(t, err)

	_, err = env.auth.Register(ctx, RegisterInput{Name: "B", Email: "A@Example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = env.auth.Register(ctx, RegisterInput{Name: "C", Email: "c@example.com", Password: testPassword, Role: model.RoleAdmin})
	assert.ErrorIs(t, err, ErrValidation)
}

// racingUsers lets a second registration pass the EmailTaken check, then
// fails the insert the way a translated unique-index violation does.
type racingUsers struct {
	repository.UserRepository
}

func (racingUsers) EmailTaken(context.Context, string, uuid.UUID) (bool, error) {
	return false, nil
}

func (racingUsers) Create(context.Context, *model.User) error {
	return fmt.Errorf("insert users: %w", gorm.ErrDuplicatedKey)
}

func TestRegisterRaceMapsUniqueViolation(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(racingUsers{env.users}, env.rbacRepo, env.tokens, env.sessions,
		jwtpkg.NewManager("test-signing-key", "carmarket", time.Hour), env.hasher, env.blobs, zap.NewNop())

	_, err := auth.Register(context.Background(), RegisterInput{Name: "A", Email: "a@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestLoginFailuresAreUndifferentiated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t, "buyer@example.com", model.RoleBuyer)

	_, errWrongPassword := env.auth.Login(ctx, "buyer@example.com", "nope")
	_, errUnknownEmail := env.auth.Login(ctx, "ghost@example.com", testPassword)

	assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknownEmail, ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error())
}

func TestLogoutIsIdempotentAndScopedToOneToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, token := env.signUp(t, "multi@example.com", model.RoleBuyer)

	second, err := env.auth.Login(ctx, "multi@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, p.TokenID))
	require.NoError(t, env.auth.Logout(ctx, p.TokenID), "second logout is a no-op")

	_, err = env.auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = env.auth.Authenticate(ctx, second.Token)
	assert.NoError(t, err, "other sessions survive")
}

func TestAuthenticateRequiresBothRevocationStores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, token := env.signUp(t, "ds@example.com", model.RoleBuyer)

	require.NoError(t, env.sessions.Delete(ctx, p.TokenID))
	_, err := env.auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "session record gone")

	res, err := env.auth.Login(ctx, "ds@example.com", testPassword)
	require.NoError(t, err)
	p2, err := env.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	require.NoError(t, env.tokens.DeleteByJTI(ctx, p2.TokenID))
	_, err = env.auth.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "token row gone")

	_, err = env.auth.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, _ := env.signUp(t, "pw@example.com", model.RoleBuyer)

	err := env.auth.ChangePassword(ctx, p.ID(), "wrong", "newsecret")
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	require.NoError(t, env.auth.ChangePassword(ctx, p.ID(), testPassword, "newsecret"))

	_, err = env.auth.Login(ctx, "pw@example.com", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.Login(ctx, "pw@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestRevokeAllSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, token := env.signUp(t, "all@example.com", model.RoleSeller)
	second, err := env.auth.Login(ctx, "all@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, env.auth.RevokeAllSessions(ctx, p.ID()))

	for _, tok := range []string{token, second.Token} {
		_, err := env.auth.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	}
}
