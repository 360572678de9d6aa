package main

import (
	"context"
	"log"

	"mantra/backend/internal/config"
	"mantra/backend/internal/db"
	"mantra/backend/internal/handler"
	"mantra/backend/internal/migration"
	"mantra/backend/internal/repository"
	"mantra/backend/internal/router"
	"mantra/backend/internal/service"
)

func main() {
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(database)
	counterRepo := repository.NewCounterRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	prefRepo := repository.NewPreferenceRepository(database)

	// Legacy preference blobs drain into the relational store once per
	// user; a failure here retries in full on the next launch.
	legacy := migration.NewLegacyMigrator(counterRepo, sessionRepo, prefRepo)
	if err := legacy.Run(context.Background()); err != nil {
		log.Printf("legacy migration: %v", err)
	}

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	counterService := service.NewCounterService(counterRepo, sessionRepo, prefRepo)
	practiceService := service.NewPracticeService(counterRepo, sessionRepo, prefRepo)
	backupService := service.NewBackupService(counterRepo, sessionRepo, prefRepo)

	authHandler := handler.NewAuthHandler(authService)
	counterHandler := handler.NewCounterHandler(counterService)
	practiceHandler := handler.NewPracticeHandler(practiceService)
	backupHandler := handler.NewBackupHandler(backupService)

	engine := router.New(authService, authHandler, counterHandler, practiceHandler, backupHandler, cfg.CORSOrigins)
	log.Printf("backend listening on :%s", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
