package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"mefolio/internal/api/middleware"
	"mefolio/internal/auth"
	"mefolio/internal/config"
	"mefolio/internal/profile"
	"mefolio/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.Service,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
) {
	store := profile.NewStore(db)
	limiter := profile.NewRateLimiter(cfg.Sync.RateWindow())
	syncService := profile.NewService(store, limiter, cfg.Sync.ConflictTolerance())

	contentHandler := NewContentHandler(db)
	profileHandler := NewProfileHandler(syncService, store, asynqClient, storageClient)
	projectHandler := NewProjectHandler(db)
	authHandler := NewAuthHandler(
		db, authService, redisClient, logger,
		cfg.Auth.LoginRatePerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL(),
		cfg.Auth.CookieDomain,
	)
	assetHandler := NewAssetHandler(db, storageClient, logger, cfg.Upload.ClamdAddr, cfg.Upload.MaxBytes)
	wsHandler := NewWsHandler(redisClient, syncService, logger, nil)
	adminAuth := middleware.AdminAuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		content := v1.Group("/content")
		{
			content.GET("/site", contentHandler.GetSiteConfig)
			content.GET("/projects", contentHandler.ListProjects)
			content.GET("/awards", contentHandler.ListAwards)
			content.GET("/experiences", contentHandler.ListExperiences)
			content.GET("/skills", contentHandler.ListSkills)
			content.GET("/social-links", contentHandler.ListSocialLinks)
			content.GET("/games", contentHandler.ListGames)
		}

		profileGroup := v1.Group("/profile")
		{
			profileGroup.POST("/save", profileHandler.SaveProfile)
			profileGroup.GET("/load", profileHandler.LoadProfile)
			profileGroup.POST("/claim", profileHandler.ClaimProfile)
			profileGroup.POST("/print", profileHandler.PrintProfile)
			profileGroup.GET("/print-link", profileHandler.GetPrintLink)
		}

		admin := v1.Group("/admin")
		{
			authGroup := admin.Group("/auth")
			{
				authGroup.POST("/login", authHandler.Login)
				authGroup.POST("/refresh", authHandler.Refresh)
				authGroup.POST("/logout", adminAuth, authHandler.Logout)
				authGroup.POST("/change-password", adminAuth, authHandler.ChangePassword)
			}

			protected := admin.Group("")
			protected.Use(adminAuth)
			{
				protected.GET("/projects", projectHandler.ListAllProjects)
				protected.POST("/projects", projectHandler.CreateProject)
				protected.PUT("/projects/:id", projectHandler.UpdateProject)
				protected.DELETE("/projects/:id", projectHandler.DeleteProject)
				protected.POST("/projects/reorder/drag", projectHandler.ReorderByDrag)
				protected.POST("/projects/reorder/step", projectHandler.ReorderByStep)

				protected.POST("/assets/upload", assetHandler.UploadAsset)
				protected.GET("/assets", assetHandler.ListAssets)
				protected.GET("/assets/view", assetHandler.GetAssetURL)
				protected.DELETE("/assets/:id", assetHandler.DeleteAsset)
			}
		}
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InternalSecretMiddleware(cfg.API.InternalSecret))
	{
		internal.GET("/print/profiles/:id", profileHandler.GetPrintData)
	}
}
