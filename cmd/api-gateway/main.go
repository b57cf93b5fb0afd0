package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/studyhelper/studyhelper-api/api/swagger"
	"github.com/studyhelper/studyhelper-api/internal/handler"
	"github.com/studyhelper/studyhelper-api/internal/middleware"
	"github.com/studyhelper/studyhelper-api/internal/models"
	"github.com/studyhelper/studyhelper-api/internal/service"
	"github.com/studyhelper/studyhelper-api/internal/store"
	"github.com/studyhelper/studyhelper-api/pkg/config"
	"github.com/studyhelper/studyhelper-api/pkg/kv"
	"github.com/studyhelper/studyhelper-api/pkg/logger"
	corsmiddleware "github.com/studyhelper/studyhelper-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studyhelper/studyhelper-api/pkg/middleware/requestid"
	"github.com/studyhelper/studyhelper-api/pkg/storage"
)

// @title StudyHelper API
// @version 1.0.0
// @description Study material request and fulfilment workflow
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kvStore, err := kv.New(cfg)
	if err != nil {
		logr.Sugar().Fatalw("failed to init persistence adapter", "backend", cfg.Store.Backend, "error", err)
	}

	blobs, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	requests := store.New(kvStore, cfg.Store.RequestsKey, logr)
	if err := requests.Load(ctx); err != nil {
		logr.Sugar().Fatalw("failed to load request collection", "error", err)
	}

	metricsSvc := service.NewMetricsService()
	identitySvc := service.NewIdentityService(kvStore, nil, logr, service.IdentityConfig{
		FulfillerEmail:        cfg.Identity.FulfillerEmail,
		FulfillerPasswordHash: cfg.Identity.FulfillerPasswordHash,
		FulfillerName:         cfg.Identity.FulfillerName,
		MinPasswordLength:     cfg.Identity.MinPasswordLength,
		TokenSecret:           cfg.JWT.Secret,
		TokenExpiry:           cfg.JWT.Expiration,
		Issuer:                cfg.JWT.Issuer,
		ActorKey:              cfg.Store.ActorKey,
	})
	requestSvc := service.NewRequestService(requests, nil, logr)
	exportSvc := service.NewExportService(requests, logr)
	uploadSvc := service.NewUploadService(requests, blobs, signer, metricsSvc, logr, service.UploadServiceConfig{
		MaxFileSize:      cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
		ProgressInterval: cfg.Uploads.ProgressInterval,
	})
	uploadSvc.Start(ctx)
	defer uploadSvc.Stop()

	authHandler := handler.NewAuthHandler(identitySvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	uploadHandler := handler.NewUploadHandler(uploadSvc)
	bookingHandler := handler.NewBookingHandler(cfg.Booking.URL)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, kvStore)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/downloads", uploadHandler.Download)

	protected := api.Group("", middleware.JWT(identitySvc))
	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/auth/me", authHandler.Me)

	protected.POST("/requests", middleware.RequireRoles(models.RoleRequester), requestHandler.Create)
	protected.GET("/requests", requestHandler.List)
	protected.GET("/requests/stats", requestHandler.Stats)
	protected.GET("/requests/export", middleware.RequireRoles(models.RoleFulfiller), exportHandler.Export)
	protected.GET("/requests/:id", requestHandler.Get)
	protected.PATCH("/requests/:id/status", middleware.RequireRoles(models.RoleFulfiller), requestHandler.UpdateStatus)
	protected.GET("/requests/:id/attachments/:index/url", uploadHandler.DownloadURL)

	uploads := protected.Group("/uploads", middleware.RequireRoles(models.RoleFulfiller))
	uploads.POST("/session", uploadHandler.BeginSession)
	uploads.DELETE("/session", uploadHandler.DiscardSession)
	uploads.POST("/files", uploadHandler.Stage)
	uploads.DELETE("/files/:index", uploadHandler.Unstage)
	uploads.POST("/commit", uploadHandler.Commit)
	uploads.GET("/progress", uploadHandler.Progress)

	protected.GET("/booking", bookingHandler.Info)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
