package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/blob"
	"pdfedit/internal/config"
	"pdfedit/internal/editor"
	"pdfedit/internal/grpcserver"
	"pdfedit/internal/handler"
	"pdfedit/internal/logging"
	"pdfedit/internal/planner"
	"pdfedit/internal/preview"
	"pdfedit/internal/repository"
	"pdfedit/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env")
	}

	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(appConfig.Log.Level)
	ctx := context.Background()

	db, err := repository.Connect(appConfig.Database, 5, 5*time.Second, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	migrator := repository.NewMigrator(appConfig.Database.MigrationsPath, appConfig.Database.GetURL(), logger)
	if res, err := migrator.Up(); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	} else {
		logger.WithFields(logrus.Fields{
			"version": res.Version,
			"changed": res.Changed,
		}).Info("Database schema ready")
	}

	blobs, err := blob.Open(ctx, appConfig.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize %s storage: %v", appConfig.Storage.Backend, err)
	}

	var planCache planner.Cache
	if appConfig.Redis.Addr != "" {
		redisCache, err := planner.NewRedisCache(ctx, appConfig.Redis)
		if err != nil {
			logger.WithError(err).Warn("Plan cache disabled")
		} else {
			defer redisCache.Close()
			planCache = redisCache
		}
	}

	var plans service.Planner
	if llm, err := planner.New(appConfig.LLM, planCache, logger); err != nil {
		logger.WithError(err).Warn("LLM is not configured, edit requests will fail")
	} else {
		plans = llm
		logger.WithField("model", llm.Model()).Info("LLM planner ready")
	}

	documentRepo := repository.NewDocumentRepository(db)
	pdfEditor := editor.New(logger)

	documentService := service.NewDocumentService(documentRepo, blobs, plans, pdfEditor, logger)
	diagnosticsService := service.NewDiagnosticsService(documentRepo, blobs, migrator, logger)
	previewService := preview.NewService(blobs, logger)

	documentHandler := handler.NewDocumentHandler(documentService, appConfig.Server.MaxUploadMB<<20, logger)
	diagnosticsHandler := handler.NewDiagnosticsHandler(diagnosticsService, logger)
	previewHandler := preview.NewHandler(previewService, documentService, logger)

	r := handler.NewRouter(handler.RouterConfig{
		AllowedOrigins: appConfig.Server.AllowedOrigins,
		RequestTimeout: appConfig.Server.RequestTimeout,
	}, documentHandler, diagnosticsHandler, previewHandler.GetPreview, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpcserver.New(documentService, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", appConfig.Server.GRPCPort))
		if err != nil {
			logger.Fatalf("Failed to listen for gRPC: %v", err)
		}
		logger.Infof("Starting gRPC server on port %s", appConfig.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	go func() {
		logger.Infof("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	retentionCtx, stopRetention := context.WithCancel(ctx)
	if appConfig.Retention.KeepVersions > 0 {
		logger.WithFields(logrus.Fields{
			"keep":     appConfig.Retention.KeepVersions,
			"interval": appConfig.Retention.Interval.String(),
		}).Info("Version retention enabled")
		go documentService.RunRetention(retentionCtx, appConfig.Retention.KeepVersions, appConfig.Retention.Interval)
	}

	<-quit
	logger.Info("Shutting down servers...")
	stopRetention()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server forced to shutdown")
	}

	grpcServer.GracefulStop()

	logger.Info("Server exited properly")
}
