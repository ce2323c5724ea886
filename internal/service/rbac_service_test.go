package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
)

func TestAuthorize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, _ := env.signUp(t, "seller@example.com", model.RoleSeller)

	assert.ErrorIs(t, env.rbac.Authorize(ctx, nil, RequireRoles(model.RoleAdmin)), ErrUnauthenticated)
	assert.ErrorIs(t, env.rbac.Authorize(ctx, seller, RequireRoles(model.RoleAdmin)), ErrForbidden)
	assert.NoError(t, env.rbac.Authorize(ctx, seller, RequireRoles(model.RoleAdmin, model.RoleSeller)))
	assert.NoError(t, env.rbac.Authorize(ctx, seller, RequirePermission(model.PermCarsCreate)))
	assert.ErrorIs(t, env.rbac.Authorize(ctx, seller, RequirePermission(model.PermCarsDelete)), ErrForbidden)
	assert.ErrorIs(t, env.rbac.Authorize(ctx, seller, RequireRoles()), ErrForbidden)
}

func TestDirectGrantWithoutRoleChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, _ := env.signUp(t, "seller@example.com", model.RoleSeller)

	ok, err := env.rbac.HasPermission(ctx, seller.ID(), model.PermCarsDelete)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.rbac.SetPermissions(ctx, seller.ID(), []string{model.PermCarsDelete})
	require.NoError(t, err)

	ok, err = env.rbac.HasPermission(ctx, seller.ID(), model.PermCarsDelete)
	require.NoError(t, err)
	assert.True(t, ok)

	perms, err := env.rbac.EffectivePermissions(ctx, seller.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"cars.create", "cars.delete", "cars.update", "cars.view"}, perms)

	user, err := env.rbac.SetPermissions(ctx, seller.ID(), nil)
	require.NoError(t, err)
	assert.Empty(t, user.Permissions, "an empty set clears direct grants")
}

func TestSetRolesValidatesBeforeReplacing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	buyer, _ := env.signUp(t, "buyer@example.com", model.RoleBuyer)

	_, err := env.rbac.SetRoles(ctx, buyer.ID(), []string{model.RoleSeller, "ghost"})
	assert.ErrorIs(t, err, ErrUnknownReference)
	assert.Contains(t, err.Error(), "ghost")

	ok, err := env.rbac.HasRole(ctx, buyer.ID(), model.RoleBuyer)
	require.NoError(t, err)
	assert.True(t, ok, "a failed replace leaves the old set")

	_, err = env.rbac.SetRoles(ctx, buyer.ID(), nil)
	assert.ErrorIs(t, err, ErrValidation)

	user, err := env.rbac.SetRoles(ctx, buyer.ID(), []string{model.RoleSeller, model.RoleSeller})
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleSeller}, user.RoleNames())

	_, err = env.rbac.SetRoles(ctx, uuid.New(), []string{model.RoleSeller})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.rbac.Seed(ctx))

	perms, err := env.rbacRepo.PermissionsByNames(ctx, model.AllPermissions)
	require.NoError(t, err)
	assert.Len(t, perms, len(model.AllPermissions))

	roles, err := env.rbacRepo.RolesByNames(ctx, []string{model.RoleAdmin, model.RoleSeller, model.RoleBuyer})
	require.NoError(t, err)
	assert.Len(t, roles, 3)

	admin, _ := env.signUp(t, "admin@example.com", model.RoleAdmin)
	granted, err := env.rbac.EffectivePermissions(ctx, admin.ID())
	require.NoError(t, err)
	assert.Len(t, granted, len(model.AllPermissions))
}

func TestSeedDemoUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, SeedDemoUsers(ctx, env.users, env.rbacRepo, env.hasher, "password", nopLogger()))
	}

	res, err := env.auth.Login(ctx, "admin@example.com", "password")
	require.NoError(t, err)
	assert.Equal(t, []string{model.RoleAdmin}, res.User.RoleNames())

	assert.Error(t, SeedDemoUsers(ctx, env.users, env.rbacRepo, env.hasher, "", nopLogger()))
}

func TestSeedDemoCars(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.Error(t, SeedDemoCars(ctx, env.users, env.cars, testNow, nopLogger()), "needs the demo seller")

	require.NoError(t, SeedDemoUsers(ctx, env.users, env.rbacRepo, env.hasher, "password", nopLogger()))
	for i := 0; i < 2; i++ {
		require.NoError(t, SeedDemoCars(ctx, env.users, env.cars, testNow, nopLogger()))
	}

	seller, err := env.users.GetByEmail(ctx, "seller@example.com")
	require.NoError(t, err)
	_, total, err := env.cars.List(ctx, repository.CarQuery{SellerID: &seller.ID})
	require.NoError(t, err)
	assert.EqualValues(t, len(demoCars), total, "a second run adds nothing")

	_, pending, err := env.cars.List(ctx, repository.CarQuery{Status: model.CarStatusPending})
	require.NoError(t, err)
	assert.EqualValues(t, 3, pending)

	public, approved, err := env.carSvc.PublicList(ctx, CarFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 4, approved)
	assert.Equal(t, "Tesla", public[0].Make, "latest publication first")
	for _, c := range public {
		require.NotNil(t, c.ReviewedBy)
		require.NotNil(t, c.PublishedAt)
		assert.True(t, c.PublishedAt.Before(testNow))
	}
}
