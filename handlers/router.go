package handlers

import (
	"net/http"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"
	"github.com/Topaz-Oz/Lience-Plate-Detect/middleware"
	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/storage"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the long-lived collaborators built once in main.
type Deps struct {
	Config       *config.Config
	Auth         *services.AuthService
	Users        store.UserStore
	Detections   store.DetectionStore
	Orchestrator *services.Orchestrator
	Registry     *services.Registry
	Cache        *services.CacheService
	Images       storage.ImageStore
}

func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	router := gin.Default()
	router.Use(middleware.SetupCORS(cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "UP",
			"message":     "Plate detection API is running",
			"connections": d.Registry.Count(),
			"redis":       d.Cache.Available(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Storage.Backend == "" || cfg.Storage.Backend == "local" {
		router.Static("/uploads", cfg.Uploads.Dir)
	}

	realtime := NewRealtimeHandler(d.Registry, d.Auth, d.Users,
		time.Duration(cfg.WS.PingIntervalMS)*time.Millisecond, cfg.WS.SendBuffer)
	router.GET("/ws", realtime.Serve)

	authHandler := NewAuthHandler(d.Users, d.Auth)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", middleware.Authenticate(d.Auth), authHandler.Logout)
	}

	authed := router.Group("/")
	authed.Use(middleware.Authenticate(d.Auth))

	users := NewUsersHandler(d.Users)
	userRoutes := authed.Group("/users")
	{
		userRoutes.GET("/me", authHandler.Me)
		userRoutes.PATCH("/me", users.UpdateProfile)
		userRoutes.GET("", middleware.RequireRole("admin"), users.List)
		userRoutes.GET("/stats", middleware.RequireRole("admin"), users.Stats)
		userRoutes.PATCH("/:id/role", middleware.RequireRole("admin"), users.UpdateRole)
		userRoutes.PATCH("/:id/status", middleware.RequireRole("admin"), users.ToggleStatus)
	}

	detection := NewDetectionHandler(d.Orchestrator, d.Detections, d.Images, cfg.Uploads.TempDir, int64(cfg.Uploads.MaxBytes))
	detectionRoutes := authed.Group("/detection")
	{
		detectionRoutes.POST("/upload", detection.Upload)
		detectionRoutes.POST("/stream", detection.Stream)
		detectionRoutes.GET("/history", detection.History)
		detectionRoutes.POST("/save", detection.Save)
	}

	records := NewRecordsHandler(d.Detections, d.Cache)
	recordRoutes := authed.Group("/records")
	{
		recordRoutes.GET("", records.List)
		recordRoutes.GET("/analytics", records.Analytics)
		recordRoutes.GET("/location", records.Location)
		recordRoutes.GET("/stats/daily", records.DailyStats)
		recordRoutes.GET("/export", middleware.RequireRole("admin"), records.Export)
		recordRoutes.PATCH("/:id/verify", middleware.RequireRole("admin"), records.Verify)
	}

	return router
}
