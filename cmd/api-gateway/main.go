package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/civic-complaints-api/api/swagger"
	"github.com/noah-isme/civic-complaints-api/internal/assistant"
	"github.com/noah-isme/civic-complaints-api/internal/handler"
	"github.com/noah-isme/civic-complaints-api/internal/realtime"
	"github.com/noah-isme/civic-complaints-api/internal/repository"
	"github.com/noah-isme/civic-complaints-api/internal/service"
	"github.com/noah-isme/civic-complaints-api/migrations"
	"github.com/noah-isme/civic-complaints-api/pkg/cache"
	"github.com/noah-isme/civic-complaints-api/pkg/config"
	"github.com/noah-isme/civic-complaints-api/pkg/database"
	"github.com/noah-isme/civic-complaints-api/pkg/jobs"
	"github.com/noah-isme/civic-complaints-api/pkg/logger"
	"github.com/noah-isme/civic-complaints-api/pkg/response"
	"github.com/noah-isme/civic-complaints-api/pkg/storage"
)

// @title Civic Complaints API
// @version 1.0.0
// @description Citizen complaint intake, routing, resolution and analytics.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	response.ExposeErrorDetails(cfg.Env != config.EnvProduction)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, db, migrations.FS, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	attachments, localAttachments, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	broker, err := newBroker(ctx, cfg, redisClient, logr)
	if err != nil {
		return err
	}

	// The hub is built after the complaint service; metrics read it lazily.
	var hub *realtime.Hub
	metrics := service.NewMetricsService(func() float64 {
		if hub == nil {
			return 0
		}
		return float64(hub.Active())
	})

	validate := validator.New()

	complaintRepo := repository.NewComplaintRepository(db)
	chatRepo := repository.NewChatRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)

	uploads := service.NewUploadService(attachments, service.UploadConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		MaxFiles:     cfg.Uploads.MaxFiles,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
	}, logr)

	authSvc := service.NewAuthService(userRepo, uploads, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		MaxAvatarSize:      cfg.Uploads.MaxAvatarSizeBytes,
	})

	dispatcher := service.NewEventDispatcher(notificationRepo, realtime.NewBroadcaster(broker), departmentRepo, cacheSvc, metrics, logr)
	events := service.NewAsyncPublisher(dispatcher, jobs.QueueConfig{
		Workers:    4,
		BufferSize: 256,
		MaxRetries: 1,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logr,
	})
	events.Start(ctx)
	defer events.Stop()

	complaintSvc := service.NewComplaintService(complaintRepo, departmentRepo, userRepo,
		assistant.New(cfg.Assistant, logr), uploads, events, metrics, validate, logr)
	hub = realtime.NewHub(broker, complaintSvc, logr)

	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, logr)
	userSvc := service.NewUserService(userRepo, complaintRepo, validate, logr)
	if err := userSvc.SeedAdmin(ctx, service.AdminSeed{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Name:     cfg.Admin.Name,
	}); err != nil {
		logr.Error("failed to seed admin account", zap.Error(err))
	}

	svcs := services{
		auth:          authSvc,
		complaints:    complaintSvc,
		chat:          service.NewChatService(chatRepo, complaintRepo, uploads, events, logr),
		notifications: service.NewNotificationService(notificationRepo, logr),
		departments:   service.NewDepartmentService(departmentRepo, userRepo, validate, logr),
		users:         userSvc,
		analytics:     analyticsSvc,
		audit:         userRepo,
		metrics:       metrics,
		hub:           hub,
		readiness:     readinessChecks(db, redisClient),
	}

	if cfg.Reports.Enabled {
		reports, stopReports, err := startReports(ctx, cfg, reportRepo, analyticsSvc, logr)
		if err != nil {
			return err
		}
		defer stopReports()
		svcs.reports = reports
	}

	router := newRouter(cfg, logr, svcs, localAttachments)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newObjectStore returns the attachment store. The local store is also
// returned when in use so the router can serve it statically.
func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, *storage.LocalStorage, error) {
	switch cfg.Storage.Driver {
	case "minio", "s3":
		store, err := storage.NewMinioStorage(ctx, cfg.Storage.Minio)
		if err != nil {
			return nil, nil, fmt.Errorf("init minio storage: %w", err)
		}
		return store, nil, nil
	default:
		store, err := storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, store, nil
	}
}

func newBroker(ctx context.Context, cfg *config.Config, client *redis.Client, logr *zap.Logger) (realtime.Broker, error) {
	if cfg.Realtime.Broker != "redis" {
		return realtime.NewLocalBroker(), nil
	}
	if client == nil {
		return nil, errors.New("REALTIME_BROKER=redis requires REDIS_ENABLED")
	}

	broker := realtime.NewRedisBroker(client, cfg.Realtime.Channel, logr)
	ready := make(chan struct{})
	go func() {
		if err := broker.Run(ctx, ready); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("realtime broker stopped", zap.Error(err))
		}
	}()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, errors.New("realtime broker did not subscribe in time")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return broker, nil
}

func startReports(ctx context.Context, cfg *config.Config, repo *repository.ReportRepository, analytics *service.AnalyticsService, logr *zap.Logger) (*service.ReportService, func(), error) {
	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir, "")
	if err != nil {
		return nil, nil, fmt.Errorf("init report storage: %w", err)
	}

	exporter := service.NewExportService(analytics, files, storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL}, logr)

	worker := service.NewReportWorker(repo, exporter, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue[string]("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		BufferSize: 64,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	reports := service.NewReportService(repo, queue, exporter, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reports.RecoverPendingJobs(ctx)
	reports.StartCleanup(ctx)

	return reports, queue.Stop, nil
}

func readinessChecks(db *sqlx.DB, client *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
