package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"
	"github.com/Topaz-Oz/Lience-Plate-Detect/handlers"
	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/storage"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql db handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	pg := store.NewGorm(db)
	if err := pg.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	cache, err := services.NewCacheService(cfg.Redis)
	if err != nil {
		log.Printf("redis unavailable, running without cache and live relay: %v", err)
	}
	defer cache.Close()

	recognizer, err := services.NewRecognizer(ctx, cfg.Recognizer)
	if err != nil {
		log.Fatalf("Failed to set up recognizer: %v", err)
	}

	images, err := storage.New(ctx, cfg.Storage, cfg.Uploads.Dir)
	if err != nil {
		log.Fatalf("Failed to set up image storage: %v", err)
	}

	registry := services.NewRegistry()
	authService := services.NewAuthService(cfg.JWT)
	orchestrator := services.NewOrchestrator(recognizer, pg, services.NewNotifier(registry), cfg.Uploads.TempDir)

	go services.RelayLive(ctx, cache, registry)

	router := handlers.SetupRouter(handlers.Deps{
		Config:       cfg,
		Auth:         authService,
		Users:        pg,
		Detections:   pg,
		Orchestrator: orchestrator,
		Registry:     registry,
		Cache:        cache,
		Images:       images,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Starting server on %s (recognizer=%s, storage=%s)", srv.Addr, cfg.Recognizer.Backend, cfg.Storage.Backend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
