package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carmarket/backend/internal/model"
	"carmarket/backend/pkg/optional"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "created_at DESC"},
		{"price", "price ASC"},
		{"-price", "price DESC"},
		{"-year", "year DESC"},
		{"mileage", "mileage ASC"},
		{"created_at", "created_at ASC"},
		{"-seller_id", "created_at DESC"},
		{"price; DROP TABLE cars", "created_at DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSort(tt.in))
		})
	}
}

func TestCreateCarDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, _ := env.signUp(t, "s@example.com", model.RoleSeller)

	pos := 5
	car, err := env.carSvc.Create(ctx, seller, CarInput{
		Make:  "Audi",
		Model: "A4",
		Year:  testNow.Year() + 1,
		Price: decimalFromInt(25000),
		Images: []ImageMeta{
			{Alt: strPtr("front")},
			{Alt: strPtr("back"), Position: &pos},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.CarStatusPending, car.Status)
	assert.Equal(t, model.CarConditionUsed, car.Condition)
	assert.True(t, car.OwnedBy(seller.ID()))
	require.Len(t, car.Images, 2)
	assert.Equal(t, "front", *car.Images[0].Alt)
	assert.True(t, car.Images[0].IsCover, "first image is the cover by default")
	assert.Equal(t, 5, car.Images[1].Position)
}

func TestCreateCarValidation(t *testing.T) {
	env := newTestEnv(t)
	seller, _ := env.signUp(t, "s@example.com", model.RoleSeller)

	miles := -1
	_, err := env.carSvc.Create(context.Background(), seller, CarInput{
		Make:      " ",
		Model:     "X",
		Year:      model.MinCarYear - 1,
		Price:     decimalFromInt(-1),
		Mileage:   &miles,
		Condition: "wrecked",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"make", "year", "price", "mileage", "condition"} {
		assert.Contains(t, verr.Fields, field)
	}

	_, err = env.carSvc.Create(context.Background(), seller, CarInput{
		Make: "Ford", Model: "T", Year: testNow.Year() + 2, Price: decimalFromInt(1),
	})
	assert.ErrorIs(t, err, ErrValidation, "year bound follows the clock")
}

func TestOwnershipIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, _ := env.signUp(t, "alice@example.com", model.RoleSeller)
	bob, _ := env.signUp(t, "bob@example.com", model.RoleSeller)
	admin, _ := env.signUp(t, "admin@example.com", model.RoleAdmin)
	buyer, _ := env.signUp(t, "buyer@example.com", model.RoleBuyer)

	car := env.listCar(t, alice, "Fiat")
	brand := "Lancia"

	_, err := env.carSvc.Show(ctx, bob, car.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.carSvc.Update(ctx, bob, car.ID, CarChanges{Make: &brand})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, env.carSvc.Destroy(ctx, bob, car.ID), ErrForbidden)

	shown, err := env.carSvc.Show(ctx, buyer, car.ID)
	require.NoError(t, err, "buyers may read any listing")
	assert.Equal(t, car.ID, shown.ID)
	_, err = env.carSvc.Update(ctx, buyer, car.ID, CarChanges{Make: &brand})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, env.carSvc.Destroy(ctx, buyer, car.ID), ErrForbidden)

	_, err = env.carSvc.Show(ctx, admin, car.ID)
	assert.NoError(t, err)
	updated, err := env.carSvc.Update(ctx, admin, car.ID, CarChanges{Make: &brand})
	require.NoError(t, err)
	assert.Equal(t, "Lancia", updated.Make)

	_, err = env.carSvc.Show(ctx, nil, car.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestListScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice, _ := env.signUp(t, "alice@example.com", model.RoleSeller)
	bob, _ := env.signUp(t, "bob@example.com", model.RoleSeller)
	admin, _ := env.signUp(t, "admin@example.com", model.RoleAdmin)

	env.listCar(t, alice, "Fiat")
	env.listCar(t, alice, "Seat")
	env.listCar(t, bob, "Opel")
	buyer, _ := env.signUp(t, "buyer@example.com", model.RoleBuyer)

	_, total, err := env.carSvc.List(ctx, buyer, CarFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total, "buyers are not owner scoped")

	_, total, err = env.carSvc.ListTrashed(ctx, buyer, CarFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	cars, total, err := env.carSvc.List(ctx, alice, CarFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, c := range cars {
		assert.True(t, c.OwnedBy(alice.ID()))
	}

	_, total, err = env.carSvc.List(ctx, admin, CarFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	cars, total, err = env.carSvc.List(ctx, admin, CarFilter{Keyword: "opel"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.NotNil(t, cars[0].Seller)
	assert.Equal(t, "bob@example.com", cars[0].Seller.Email)
	assert.Empty(t, cars[0].Seller.PasswordHash)
}

func TestModerationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, _ := env.signUp(t, "s@example.com", model.RoleSeller)
	admin, _ := env.signUp(t, "admin@example.com", model.RoleAdmin)
	car := env.listCar(t, seller, "Kia")

	_, err := env.carSvc.Approve(ctx, seller, car.ID)
	assert.ErrorIs(t, err, ErrForbidden, "sellers lack cars.moderate")

	_, err = env.carSvc.PublicShow(ctx, car.ID)
	assert.ErrorIs(t, err, ErrNotFound, "pending cars are not public")

	approved, err := env.carSvc.Approve(ctx, admin, car.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusApproved, approved.Status)
	require.NotNil(t, approved.PublishedAt)
	assert.True(t, approved.PublishedAt.Equal(testNow))
	assert.Equal(t, admin.ID(), *approved.ReviewedBy)

	_, err = env.carSvc.Approve(ctx, admin, car.ID)
	assert.ErrorIs(t, err, ErrConflict)

	public, err := env.carSvc.PublicShow(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, car.ID, public.ID)

	_, err = env.carSvc.Reject(ctx, admin, car.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	rejected, err := env.carSvc.Reject(ctx, admin, car.ID, "Photos do not match")
	require.NoError(t, err)
	assert.Equal(t, "Photos do not match", *rejected.RejectionReason)
	assert.NotNil(t, rejected.PublishedAt)

	_, err = env.carSvc.PublicShow(ctx, car.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, _, err := env.carSvc.ListRejected(ctx, seller, CarFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestPublicListOnlyApproved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, _ := env.signUp(t, "s@example.com", model.RoleSeller)
	admin, _ := env.signUp(t, "admin@example.com", model.RoleAdmin)

	first := env.listCar(t, seller, "Honda")
	second := env.listCar(t, seller, "Mazda")
	env.listCar(t, seller, "Pending")

	_, err := env.carSvc.Approve(ctx, admin, first.ID)
	require.NoError(t, err)
	env.carSvc.(*carService).now = func() time.Time { return testNow.Add(time.Hour) }
	_, err = env.carSvc.Approve(ctx, admin, second.ID)
	require.NoError(t, err)

	cars, total, err := env.carSvc.PublicList(ctx, CarFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, cars, 2)
	assert.Equal(t, second.ID, cars[0].ID, "latest publication first")
	assert.Equal(t, first.ID, cars[1].ID)
}

func TestSoftDeleteLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, _ := env.signUp(t, "s@example.com", model.RoleSeller)
	admin, _ := env.signUp(t, "admin@example.com", model.RoleAdmin)
	car := env.listCar(t, seller, "Skoda")
	_, err := env.carSvc.Approve(ctx, admin, car.ID)
	require.NoError(t, err)

	_, err = env.carSvc.Restore(ctx, seller, car.ID)
	assert.ErrorIs(t, err, ErrNotDeleted)

	require.NoError(t, env.carSvc.Destroy(ctx, seller, car.ID))
	_, err = env.carSvc.Show(ctx, seller, car.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	trashed, total, err := env.carSvc.ListTrashed(ctx, seller, CarFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.CarStatusApproved, trashed[0].Status, "deletion keeps moderation status")

	restored, err := env.carSvc.Restore(ctx, seller, car.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusApproved, restored.Status)
	assert.Equal(t, model.LifecycleActive, restored.Lifecycle())
}

func TestForceDeleteRemovesBlobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, _ := env.signUp(t, "s@example.com", model.RoleSeller)
	car := env.listCar(t, seller, "Volvo")

	img, err := env.images.Upload(ctx, seller, car.ID, Upload{Body: strings.NewReader("jpg"), Ext: "jpg"}, nil, true)
	require.NoError(t, err)
	require.True(t, env.blobs.has(*img.Path))

	require.NoError(t, env.carSvc.Destroy(ctx, seller, car.ID))
	require.NoError(t, env.carSvc.Force(ctx, seller, car.ID))

	assert.False(t, env.blobs.has(*img.Path))
	_, err = env.carSvc.Restore(ctx, seller, car.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateClearsNullableFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller, _ := env.signUp(t, "s@example.com", model.RoleSeller)

	miles := 1000
	car, err := env.carSvc.Create(ctx, seller, CarInput{
		Make: "Mini", Model: "Cooper", Year: 2019, Price: decimalFromInt(9000),
		Mileage: &miles, Location: strPtr("Braga"),
	})
	require.NoError(t, err)

	price := decimalFromInt(8500)
	updated, err := env.carSvc.Update(ctx, seller, car.ID, CarChanges{
		Price:    &price,
		Mileage:  optional.Null[int](),
		Location: optional.Field[string]{},
	})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(price))
	assert.Nil(t, updated.Mileage)
	require.NotNil(t, updated.Location, "absent fields are left alone")
	assert.Equal(t, "Braga", *updated.Location)
}
