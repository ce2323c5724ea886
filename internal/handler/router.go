package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carmarket/backend/internal/config"
	"carmarket/backend/internal/handler/middleware"
	"carmarket/backend/internal/metrics"
	"carmarket/backend/internal/model"
	"carmarket/backend/internal/service"
)

// Services bundles what the router hands to its handlers.
type Services struct {
	Auth   service.AuthService
	RBAC   service.RBACService
	Users  service.UserService
	Cars   service.CarService
	Images service.CarImageService
}

// RouterOptions carries optional mounts. LocalStorageRoot, when set, is
// served under LocalStorageURL.
type RouterOptions struct {
	Metrics          *metrics.Metrics
	LocalStorageRoot string
	LocalStorageURL  string
}

func SetupRouter(cfg *config.Config, logger *zap.Logger, svc Services, opts RouterOptions) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORS))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.LocalStorageRoot != "" && opts.LocalStorageURL != "" {
		r.Static(opts.LocalStorageURL, opts.LocalStorageRoot)
	}

	pager := NewPager(cfg.Pagination)
	maxUpload := cfg.Server.MaxUploadBytes
	authHandler := NewAuthHandler(svc.Auth, svc.Users)
	profileHandler := NewProfileHandler(svc.Auth, svc.Users, maxUpload)
	adminHandler := NewAdminHandler(svc.Users, svc.RBAC, pager, maxUpload)
	carHandler := NewCarHandler(svc.Cars, pager)
	imageHandler := NewCarImageHandler(svc.Images, maxUpload)

	api := r.Group("/api")

	// Public routes
	api.GET("/public/cars", carHandler.PublicList)
	api.GET("/public/cars/:id", carHandler.PublicShow)
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.Authenticate(svc.Auth))
	{
		protected.GET("/me", authHandler.Me)
		protected.POST("/logout", authHandler.Logout)

		protected.GET("/profile", profileHandler.Show)
		protected.PUT("/profile", profileHandler.Update)
		protected.PATCH("/profile/password", profileHandler.ChangePassword)
		protected.POST("/profile/upload-image", profileHandler.UploadImage)
		protected.DELETE("/profile/image", profileHandler.DeleteImage)
	}

	// Admin routes (token + admin role)
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(svc.RBAC, model.RoleAdmin))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/users-trashed", adminHandler.ListTrashedUsers)
		admin.GET("/users/:id", adminHandler.ShowUser)
		admin.PUT("/users/:id", adminHandler.UpdateUser)
		admin.POST("/users/:id/upload-image", adminHandler.UploadUserImage)
		admin.PATCH("/users/:id/roles", adminHandler.SetRoles)
		admin.PATCH("/users/:id/permissions", adminHandler.SetPermissions)
		admin.PATCH("/users/:id/verify", adminHandler.SetVerification)
		admin.PATCH("/users/:id/restore", adminHandler.RestoreUser)
		admin.DELETE("/users/:id", adminHandler.DestroyUser)
		admin.DELETE("/users/:id/force", adminHandler.ForceDeleteUser)
	}

	// Car routes, each gated on a permission
	can := func(perm string) gin.HandlerFunc { return middleware.RequirePermission(svc.RBAC, perm) }
	{
		protected.GET("/cars", can(model.PermCarsView), carHandler.List)
		protected.GET("/cars/:id", can(model.PermCarsView), carHandler.Show)
		protected.POST("/cars", can(model.PermCarsCreate), carHandler.Create)
		protected.PUT("/cars/:id", can(model.PermCarsUpdate), carHandler.Update)
		protected.DELETE("/cars/:id", can(model.PermCarsDelete), carHandler.Destroy)

		protected.POST("/cars/:id/upload-image", can(model.PermCarsUpdate), imageHandler.Upload)
		protected.PUT("/cars/:id/images/:imageId", can(model.PermCarsUpdate), imageHandler.Update)
		protected.DELETE("/cars/:id/images/:imageId", can(model.PermCarsUpdate), imageHandler.Delete)

		protected.PATCH("/cars/:id/approve", can(model.PermCarsModerate), carHandler.Approve)
		protected.PATCH("/cars/:id/reject", can(model.PermCarsModerate), carHandler.Reject)

		protected.GET("/cars-approved", can(model.PermCarsView), carHandler.ListApproved)
		protected.GET("/cars-rejected", can(model.PermCarsView), carHandler.ListRejected)
		protected.GET("/cars-trashed", can(model.PermCarsView), carHandler.ListTrashed)

		protected.PATCH("/cars/:id/restore", can(model.PermCarsUpdate), carHandler.Restore)
		protected.DELETE("/cars/:id/force", can(model.PermCarsDelete), carHandler.Force)
	}

	return r
}
