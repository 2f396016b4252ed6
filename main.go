package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sentra-security/sentra-engine/pkg/auth"
	"github.com/sentra-security/sentra-engine/pkg/config"
	"github.com/sentra-security/sentra-engine/pkg/crypto"
	"github.com/sentra-security/sentra-engine/pkg/database"
	"github.com/sentra-security/sentra-engine/pkg/handlers"
	"github.com/sentra-security/sentra-engine/pkg/logging"
	"github.com/sentra-security/sentra-engine/pkg/middleware"
	"github.com/sentra-security/sentra-engine/pkg/repositories"
	"github.com/sentra-security/sentra-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.Bool("redis", cfg.Redis.IsAvailable()))

	ctx := context.Background()

	// Database pool + migrations
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrationDB, err := database.OpenMigrationDB(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	// Redis is optional; a nil client disables the distinct-value cache
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	encryptor, err := crypto.NewCredentialEncryptor(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("Failed to create credential encryptor", zap.Error(err))
	}

	// Auth
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	auth.InitSessionStore(cfg.SessionSecret)

	// Repositories
	projectRepo := repositories.NewProjectRepository()
	userRepo := repositories.NewUserRepository()
	datasourceRepo := repositories.NewDatasourceRepository()
	findingRepo := repositories.NewFindingRepository()
	scanRepo := repositories.NewScanRepository()

	// Services
	cacheTTL := time.Duration(cfg.Redis.TTLSeconds) * time.Second
	tenantCtxFunc := services.NewTenantContextFunc(db)
	projectService := services.NewProjectService(projectRepo, userRepo, tenantCtxFunc, logger)
	userService := services.NewUserService(userRepo, logger)
	datasourceService := services.NewDatasourceService(datasourceRepo, findingRepo, encryptor, logger)
	findingService := services.NewFindingService(findingRepo, redisClient, cacheTTL, logger)
	matrixService := services.NewRiskMatrixService(findingRepo, logger)
	scanService := services.NewScanService(
		db,
		scanRepo,
		findingRepo,
		datasourceService,
		services.NewSimulatedDetector(),
		time.Duration(cfg.Scan.TimeoutMinutes)*time.Minute,
		cfg.Scan.MaxConcurrent,
		logger,
	)

	// Handlers
	mux := http.NewServeMux()
	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(db, logger))

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	authHandler := handlers.NewAuthHandler(authService, cfg, logger)
	authHandler.RegisterRoutes(mux, authMiddleware)

	projectsHandler := handlers.NewProjectsHandler(projectService, logger)
	projectsHandler.RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	usersHandler := handlers.NewUsersHandler(userService, logger)
	usersHandler.RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	datasourcesHandler := handlers.NewDatasourcesHandler(datasourceService, logger)
	datasourcesHandler.RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	findingsHandler := handlers.NewFindingsHandler(findingService, logger)
	findingsHandler.RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	matrixHandler := handlers.NewRiskMatrixHandler(matrixService, cfg.Matrix, logger)
	matrixHandler.RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	scansHandler := handlers.NewScansHandler(scanService, logger)
	scansHandler.RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting sentra-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))

		var err error
		if cfg.TLSCertPath != "" {
			err = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
