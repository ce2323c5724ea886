package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/testutil"
)

func TestUserGetByEmailIsCaseInsensitive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPGUserRepository(db)
	ctx := context.Background()

	created := createUser(t, db, "jane@example.com")

	got, err := repo.GetByEmail(ctx, "  JANE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserEmailTakenIncludesTombstoned(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPGUserRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "gone@example.com")
	require.NoError(t, repo.SoftDelete(ctx, user.ID))

	taken, err := repo.EmailTaken(ctx, "gone@example.com", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.EmailTaken(ctx, "gone@example.com", user.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a user's own email is not a conflict")

	_, err = repo.GetByEmail(ctx, "gone@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "tombstoned users cannot be looked up for login")
}

func TestUserSoftDeleteRestoreAndTrashedListing(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPGUserRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice@example.com")
	createUser(t, db, "bob@example.com")

	require.NoError(t, repo.SoftDelete(ctx, alice.ID))

	active, total, err := repo.List(ctx, UserQuery{Page: Page{Page: 1, PerPage: 10}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, "bob@example.com", active[0].Email)

	trashed, total, err := repo.List(ctx, UserQuery{Trashed: true, Keyword: "ALI"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, trashed, 1)
	assert.Equal(t, model.LifecycleTombstoned, trashed[0].Lifecycle())

	_, err = repo.GetByID(ctx, alice.ID, false)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.Restore(ctx, alice.ID))
	restored, err := repo.GetByID(ctx, alice.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.LifecycleActive, restored.Lifecycle())

	assert.ErrorIs(t, repo.Restore(ctx, alice.ID), gorm.ErrRecordNotFound, "restoring an active user matches no row")
}

func TestUserForceDeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	users := NewPGUserRepository(db)
	rbac := NewPGRBACRepository(db)
	tokens := NewPGTokenRepository(db)
	cars := NewPGCarRepository(db)
	ctx := context.Background()
	roles := seedRBAC(t, rbac)

	user := createUser(t, db, "doomed@example.com")
	require.NoError(t, rbac.AttachUserRole(ctx, user.ID, roles[model.RoleSeller]))
	direct, err := rbac.PermissionsByNames(ctx, []string{model.PermCarsDelete})
	require.NoError(t, err)
	require.NoError(t, rbac.ReplaceUserPermissions(ctx, user.ID, direct))

	for _, jti := range []string{"t1", "t2"} {
		require.NoError(t, tokens.Create(ctx, &model.AccessToken{
			UserID: user.ID, JTI: jti, ExpiresAt: time.Now().Add(time.Hour),
		}))
	}

	car := &model.Car{SellerID: &user.ID, Make: "Toyota", Model: "Corolla", Year: 2019, Price: decimal.NewFromInt(9000)}
	require.NoError(t, cars.Create(ctx, car))

	require.NoError(t, users.ForceDelete(ctx, user.ID))

	jtis, err := tokens.ListJTIsByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, jtis)

	var pivots int64
	require.NoError(t, db.Table("role_user").Where("user_id = ?", user.ID).Count(&pivots).Error)
	assert.Zero(t, pivots)
	require.NoError(t, db.Table("permission_user").Where("user_id = ?", user.ID).Count(&pivots).Error)
	assert.Zero(t, pivots)

	_, err = users.GetByID(ctx, user.ID, true)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	orphan, err := cars.GetByID(ctx, car.ID, false)
	require.NoError(t, err)
	assert.Nil(t, orphan.SellerID, "listing survives with no seller")

	assert.ErrorIs(t, users.ForceDelete(ctx, user.ID), gorm.ErrRecordNotFound)
}
