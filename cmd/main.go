package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"carmarket/backend/internal/config"
	"carmarket/backend/internal/handler"
	"carmarket/backend/internal/metrics"
	"carmarket/backend/internal/model"
	"carmarket/backend/internal/repository"
	"carmarket/backend/internal/service"
	"carmarket/backend/internal/storage"
	"carmarket/backend/pkg/crypto"
	jwtpkg "carmarket/backend/pkg/jwt"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.JWT.SigningKey == "" {
		logger.Fatal("jwt.signing_key must be set")
	}

	// 3. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Initialize state store (Redis or in-memory)
	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		stateStore = repository.NewRedisStateStore(redisClient, cfg.State.Namespace)
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 6. Initialize blob store (local disk or S3)
	var blobs storage.BlobStore
	routerOpts := handler.RouterOptions{}
	switch cfg.Storage.Backend {
	case "local":
		local, err := storage.NewLocalStore(cfg.Storage.Local.Root, cfg.Storage.Local.BaseURL)
		if err != nil {
			logger.Fatal("failed to init local storage", zap.Error(err))
		}
		blobs = local
		routerOpts.LocalStorageRoot = local.Root()
		routerOpts.LocalStorageURL = cfg.Storage.Local.BaseURL
		logger.Info("using local blob storage", zap.String("root", local.Root()))
	case "s3":
		s3Store, err := storage.NewS3Store(context.Background(), cfg.Storage.S3)
		if err != nil {
			logger.Fatal("failed to init s3 storage", zap.Error(err))
		}
		blobs = s3Store
		logger.Info("using S3 blob storage", zap.String("bucket", cfg.Storage.S3.Bucket))
	default:
		logger.Fatal("unknown storage backend", zap.String("backend", cfg.Storage.Backend))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		routerOpts.Metrics = m
	}

	// 7. Initialize repositories
	userRepo := repository.NewPGUserRepository(db)
	rbacRepo := repository.NewPGRBACRepository(db)
	tokenRepo := repository.NewPGTokenRepository(db)
	carRepo := repository.NewPGCarRepository(db)
	sessions := repository.NewSessionStore(stateStore)

	// 8. Initialize services
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	hasher := crypto.NewPasswordHasher(bcrypt.DefaultCost)
	rbacService := service.NewRBACService(rbacRepo, userRepo, logger)

	// 9. Seed roles, permissions and optional demo accounts
	if cfg.Seed.Enabled {
		ctx := context.Background()
		if err := rbacService.Seed(ctx); err != nil {
			logger.Fatal("failed to seed rbac", zap.Error(err))
		}
		if cfg.Seed.DemoUsers {
			password, err := demoPassword(cfg.Seed, os.Stderr, logger)
			if err != nil {
				logger.Fatal("failed to resolve demo password", zap.Error(err))
			}
			if err := service.SeedDemoUsers(ctx, userRepo, rbacRepo, hasher, password, logger); err != nil {
				logger.Fatal("failed to seed demo users", zap.Error(err))
			}
			if err := service.SeedDemoCars(ctx, userRepo, carRepo, time.Now().UTC(), logger); err != nil {
				logger.Fatal("failed to seed demo cars", zap.Error(err))
			}
		}
	}

	svc := handler.Services{
		Auth:   service.NewAuthService(userRepo, rbacRepo, tokenRepo, sessions, jwtManager, hasher, blobs, logger),
		RBAC:   rbacService,
		Users:  service.NewUserService(userRepo, rbacRepo, tokenRepo, sessions, blobs, m, logger),
		Cars:   service.NewCarService(carRepo, rbacService, blobs, m, logger),
		Images: service.NewCarImageService(carRepo, rbacService, blobs, m, logger),
	}

	// 10. Setup router
	if err := handler.RegisterValidation(); err != nil {
		logger.Fatal("failed to register validators", zap.Error(err))
	}
	router := handler.SetupRouter(cfg, logger, svc, routerOpts)

	// 11. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 12. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
