package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
	"carmarket/backend/internal/testutil"
	"carmarket/backend/pkg/crypto"
	jwtpkg "carmarket/backend/pkg/jwt"
)

const testPassword = "secret123"

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failPut   bool
	failDel   bool
	deleteLog []string
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}} }

func (f *fakeBlobs) Put(_ context.Context, dir, ext string, body io.Reader, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return "", errors.New("store unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s.%s", dir, uuid.NewString(), ext)
	f.objects[key] = data
	return key, nil
}

func (f *fakeBlobs) Delete(_ context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteLog = append(f.deleteLog, p)
	if f.failDel {
		return errors.New("store unavailable")
	}
	delete(f.objects, p)
	return nil
}

func (f *fakeBlobs) URL(p string) string { return "https://cdn.test/" + p }

func (f *fakeBlobs) has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[p]
	return ok
}

type testEnv struct {
	users    repository.UserRepository
	rbacRepo repository.RBACRepository
	tokens   repository.TokenRepository
	cars     repository.CarRepository
	sessions *repository.SessionStore
	blobs    *fakeBlobs
	hasher   *crypto.PasswordHasher

	rbac    RBACService
	auth    AuthService
	carSvc  CarService
	images  CarImageService
	userSvc UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zap.NewNop()
	clock := func() time.Time { return testNow }

	env := &testEnv{
		users:    repository.NewPGUserRepository(db),
		rbacRepo: repository.NewPGRBACRepository(db),
		tokens:   repository.NewPGTokenRepository(db),
		cars:     repository.NewPGCarRepository(db),
		sessions: repository.NewSessionStore(repository.NewMemoryStateStore()),
		blobs:    newFakeBlobs(),
		hasher:   crypto.NewPasswordHasher(bcrypt.MinCost),
	}

	env.rbac = NewRBACService(env.rbacRepo, env.users, logger)
	require.NoError(t, env.rbac.Seed(context.Background()))

	jwtManager := jwtpkg.NewManager("test-signing-key", "carmarket", time.Hour)
	auth := NewAuthService(env.users, env.rbacRepo, env.tokens, env.sessions, jwtManager, env.hasher, env.blobs, logger)
	env.auth = auth

	carSvc := NewCarService(env.cars, env.rbac, env.blobs, nil, logger)
	carSvc.(*carService).now = clock
	env.carSvc = carSvc

	env.images = NewCarImageService(env.cars, env.rbac, env.blobs, nil, logger)

	userSvc := NewUserService(env.users, env.rbacRepo, env.tokens, env.sessions, env.blobs, nil, logger)
	userSvc.(*userService).now = clock
	env.userSvc = userSvc
	return env
}

// signUp registers a user holding the given role and returns its principal and token.
func (e *testEnv) signUp(t *testing.T, email, role string) (*Principal, string) {
	t.Helper()
	ctx := context.Background()

	hash, err := e.hasher.Hash(testPassword)
	require.NoError(t, err)
	user := &model.User{Name: email, Email: email, PasswordHash: hash}
	ApplyProfileCompletion(user)
	require.NoError(t, e.users.Create(ctx, user))

	roles, err := e.rbacRepo.RolesByNames(ctx, []string{role})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.NoError(t, e.rbacRepo.AttachUserRole(ctx, user.ID, &roles[0]))

	res, err := e.auth.Login(ctx, email, testPassword)
	require.NoError(t, err)
	p, err := e.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	return p, res.Token
}

func (e *testEnv) listCar(t *testing.T, seller *Principal, brand string) *model.Car {
	t.Helper()
	car, err := e.carSvc.Create(context.Background(), seller, CarInput{
		Make:      brand,
		Model:     "Base",
		Year:      2020,
		Price:     decimalFromInt(10000),
		Condition: model.CarConditionUsed,
	})
	require.NoError(t, err)
	return car
}

func nopLogger() *zap.Logger { return zap.NewNop() }

func decimalFromInt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
