package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/fitness-assessment/internal/analysis"
	"alcyxob/fitness-assessment/internal/api"
	"alcyxob/fitness-assessment/internal/config"
	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/repository/mongo"
	"alcyxob/fitness-assessment/internal/service"
	"alcyxob/fitness-assessment/internal/storage"

	"github.com/gin-gonic/gin"
)

// @title Fitness Assessment API
// @version 1.0
// @description Exercise video ingestion, analysis and media retrieval for the fitness assessment battery.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("starting fitness assessment server", "address", cfg.Server.Address,
		"storage_backend", cfg.Storage.Backend, "analysis_url", cfg.Analysis.BaseURL)

	if cfg.JWT.Secret == "" {
		log.Fatal("jwt.secret is required")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatal("could not connect to MongoDB", "error", err)
	}
	defer func() {
		log.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error("failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Info("database connection established", "database", cfg.Database.Name)

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB, log)
	}()

	// --- Initialize Storage ---
	fileStorage, err := storage.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("failed to initialize file storage", "error", err)
	}

	// --- Analysis Engine ---
	engine, err := analysis.New(analysis.Options{
		BaseURL:         cfg.Analysis.BaseURL,
		AnalyzePath:     cfg.Analysis.AnalyzePath,
		FinalResultPath: cfg.Analysis.FinalResultPath,
		HealthPath:      cfg.Analysis.HealthPath,
		Timeout:         cfg.Analysis.Timeout,
	})
	if err != nil {
		log.Fatal("failed to initialize analysis client", "error", err)
	}

	// --- Initialize Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	mediaRepo := mongo.NewMongoMediaRepository(appDB)
	assessmentRepo := mongo.NewMongoAssessmentRepository(appDB)

	// --- Initialize Services ---
	maxFileBytes := cfg.Server.MaxUploadMB << 20
	opts := service.Options{
		Folder:       cfg.Storage.Folder,
		URLExpiry:    cfg.Storage.SignedURLExpiry,
		MaxFileBytes: maxFileBytes,
	}
	assessmentService := service.NewAssessmentService(userRepo, mediaRepo, assessmentRepo, fileStorage, engine, opts, log)
	mediaService := service.NewMediaService(userRepo, mediaRepo, fileStorage, opts, log)

	// --- Initialize Gin Engine ---
	if cfg.Server.LogMode == "prod" || cfg.Server.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.MaxMultipartMemory = 32 << 20
	router.Use(api.CORS(cfg.Server.CORSOrigins))

	api.SetupRoutes(router, cfg.JWT.Secret, assessmentService, mediaService, maxFileBytes, log)

	// --- Start HTTP Server ---
	// Analysis of a single video can take minutes, so the write timeout
	// covers the engine timeout plus upload and persistence.
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: cfg.Analysis.Timeout + 2*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe failed", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server exiting")
}
