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

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"github.com/kiko9987/itglobal/internal/aggregate"
	"github.com/kiko9987/itglobal/internal/bootstrap"
	"github.com/kiko9987/itglobal/internal/config"
	"github.com/kiko9987/itglobal/internal/database"
	"github.com/kiko9987/itglobal/internal/handlers"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/middleware"
	"github.com/kiko9987/itglobal/internal/publisher"
	"github.com/kiko9987/itglobal/internal/services"
	"github.com/kiko9987/itglobal/internal/validator"

	_ "github.com/kiko9987/itglobal/internal/docs" // Import swagger docs
)

// @title           ITGlobal Project Tracker API
// @version         1.0
// @description     Tracks HVAC installation projects, aggregates the dashboard and notifies owners about missing project data.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Pipeline API key

const shutdownTimeout = 15 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbManager, err := database.NewManager(appConfig.Database)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	db := dbManager.DB()

	rdb, err := bootstrap.Redis(ctx, appConfig.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	recordStore, err := bootstrap.Store(ctx, appConfig, db, rdb)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}

	// Initialize services
	hub := publisher.NewHub(appConfig.AllowedOrigin)
	snapshotService := services.NewSnapshotService(recordStore)
	snapshotService.OnSnapshotReady(func(snap *aggregate.Snapshot) { hub.PublishSnapshot(snap) })
	codeGenerator := services.NewCodeGenerator(recordStore, appConfig.Engine.Regions, appConfig.Engine.CodeWidth)
	projectService := services.NewProjectService(recordStore, codeGenerator, bootstrap.Rules(appConfig), snapshotService, hub)
	missingFieldService := services.NewMissingFieldService(recordStore, appConfig.Engine.RequiredFields, appConfig.Engine.MissingThreshold)
	deliveryLogService := services.NewDeliveryLogService(db)
	scheduler := bootstrap.Scheduler(appConfig, recordStore, bootstrap.Sender(appConfig),
		bootstrap.Dedup(db, rdb), snapshotService, deliveryLogService, rdb)

	// Initialize handlers
	projectHandler := handlers.NewProjectHandler(projectService)
	dashboardHandler := handlers.NewDashboardHandler(snapshotService)
	missingDataHandler := handlers.NewMissingDataHandler(missingFieldService)
	notificationHandler := handlers.NewNotificationHandler(scheduler, deliveryLogService)
	wsHandler := handlers.NewWebSocketHandler(hub)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors(appConfig.AllowedOrigin))
	router.NoRoute(middleware.NotFound())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	projects := v1.Group("/projects")
	projects.POST("", projectHandler.CreateProject)
	projects.GET("", projectHandler.ListProjects)
	projects.GET("/export", projectHandler.ExportProjects)
	projects.GET("/next-code", projectHandler.PreviewCode)
	projects.GET("/:code", projectHandler.GetProject)
	projects.PUT("/:code", projectHandler.UpdateProject)
	projects.DELETE("/:code", projectHandler.DeleteProject)

	dashboard := v1.Group("/dashboard")
	dashboard.GET("/snapshot", dashboardHandler.GetSnapshot)
	dashboard.GET("/summary", dashboardHandler.GetSummary)
	dashboard.GET("/monthly", dashboardHandler.GetMonthly)
	dashboard.GET("/regions", dashboardHandler.GetRegions)
	dashboard.GET("/brands", dashboardHandler.GetBrands)
	dashboard.GET("/owners", dashboardHandler.GetOwners)
	dashboard.GET("/aging", dashboardHandler.GetAging)
	dashboard.POST("/refresh", dashboardHandler.Refresh)
	dashboard.GET("/export", dashboardHandler.Export)

	v1.GET("/missing-data", missingDataHandler.GetMissingData)
	v1.GET("/missing-data/stats", missingDataHandler.GetFieldStats)
	v1.GET("/ws", wsHandler.Connect)

	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))
	pipeline.POST("/notifications/run", notificationHandler.RunNotifications)
	pipeline.POST("/notifications/summary", notificationHandler.SendSummary)
	pipeline.GET("/notifications/logs", notificationHandler.ListDeliveryLogs)

	server := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		snapshotService.Run(gctx, appConfig.Engine.SnapshotInterval)
		return nil
	})
	g.Go(func() error {
		if err := scheduler.Loop(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("notification loop stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Infof("Starting ITGlobal API on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cors answers preflight requests and allows the dashboard origin.
func cors(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
