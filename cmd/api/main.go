package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mawazawa/tro-packet-engine/internal/assembly"
	"github.com/mawazawa/tro-packet-engine/internal/autosave"
	"github.com/mawazawa/tro-packet-engine/internal/config"
	"github.com/mawazawa/tro-packet-engine/internal/documents"
	"github.com/mawazawa/tro-packet-engine/internal/offline"
	"github.com/mawazawa/tro-packet-engine/internal/workflow"
)

func main() {
	// Initialize logger; the level is adjusted once config is loaded
	level := zap.NewAtomicLevel()
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = level
	logger, _ := zapCfg.Build()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment as-is")
	}

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Logging.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Logging.Level)
		if err != nil {
			logger.Warn("Unknown log level, keeping default", zap.String("level", cfg.Logging.Level))
		} else {
			level.SetLevel(parsed)
		}
	}

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	// ---------------- DOCUMENTS ----------------
	docStore := documents.NewRepository(db)
	docService := documents.NewService(docStore, logger, 0)
	docHandler := documents.NewHandler(docService)

	// ---------------- WORKFLOWS ----------------
	workflowStore := workflow.NewRepository(db)
	workflowService := workflow.NewService(workflowStore, docStore, logger, 0)
	workflowHandler := workflow.NewHandler(workflowService)

	// ---------------- ASSEMBLY ----------------
	renderer := assembly.NewPDFRenderer(assembly.DefaultRendererOptions())
	assembler := assembly.NewAssembler(logger,
		assembly.WithRenderer(renderer),
		assembly.WithCourtRequirements(assembly.CourtRequirements{
			MaxFileSizeBytes: cfg.Assembly.MaxFileSizeBytes,
			MaxPages:         cfg.Assembly.MaxPages,
			PageSize:         cfg.Assembly.PageSize,
		}))
	assemblyHandler := assembly.NewHandler(assembler)

	// ---------------- OFFLINE REPLAY ----------------
	queue := offline.NewRepository(db)
	replayer, err := offline.NewReplayer(queue, docStore, offline.AlwaysOnline{}, logger)
	if err != nil {
		logger.Fatal("Failed to build offline replayer", zap.Error(err))
	}
	if err := replayer.Start(cfg.Offline.ReplaySchedule); err != nil {
		logger.Fatal("Failed to start offline replayer", zap.Error(err))
	}
	defer replayer.Stop()

	// ---------------- AUTOSAVE TUNING ----------------
	// The auto-save engine runs next to the form editor; clients fetch the
	// server's tuning so every editor debounces and retries the same way.
	autosaveOpts := autosave.Options{
		Debounce: time.Duration(cfg.Autosave.DebounceMs) * time.Millisecond,
		Retry: autosave.RetryPolicy{
			MaxAttempts: cfg.Autosave.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Autosave.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Autosave.RetryMaxDelayMs) * time.Millisecond,
			Factor:      2,
		},
	}

	// Setup Router
	router := gin.Default()

	api := router.Group("/api/v1")
	{
		docHandler.RegisterRoutes(api)
		workflowHandler.RegisterRoutes(api)
		assemblyHandler.RegisterRoutes(api)

		api.GET("/client-config", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"autosave": gin.H{
					"debounce_ms":         autosaveOpts.Debounce.Milliseconds(),
					"retry_max_attempts":  autosaveOpts.Retry.MaxAttempts,
					"retry_base_delay_ms": autosaveOpts.Retry.BaseDelay.Milliseconds(),
					"retry_max_delay_ms":  autosaveOpts.Retry.MaxDelay.Milliseconds(),
				},
			})
		})
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
