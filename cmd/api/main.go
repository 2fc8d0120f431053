package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/handler"
	"github.com/noah-isme/tutor-api/internal/realtime"
	"github.com/noah-isme/tutor-api/internal/repository"
	"github.com/noah-isme/tutor-api/internal/router"
	"github.com/noah-isme/tutor-api/internal/service"
	"github.com/noah-isme/tutor-api/pkg/cache"
	"github.com/noah-isme/tutor-api/pkg/config"
	"github.com/noah-isme/tutor-api/pkg/database"
	"github.com/noah-isme/tutor-api/pkg/logger"
	mailer "github.com/noah-isme/tutor-api/pkg/mail"
	"github.com/noah-isme/tutor-api/pkg/storage"
)

// @title Tutor API
// @version 1.0.0
// @description Scheduling, messaging and coursework for a tutoring practice
// @BasePath /
// @schemes http https

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	cheatSheetRepo := repository.NewCheatSheetRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Booking.AvailabilityCacheTTL, logr, redisClient != nil)
	catalog, err := service.NewSlotCatalog(cfg.Booking)
	if err != nil {
		return err
	}

	var sender mailer.Sender
	if cfg.Mail.SendgridAPIKey != "" {
		sender = mailer.NewSendgridSender(cfg.Mail.SendgridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	} else {
		sender = mailer.NewConsoleSender(logr)
	}
	operator, err := mail.ParseAddress(cfg.Mail.OperatorAddress)
	if err != nil {
		return fmt.Errorf("operator address: %w", err)
	}
	notifications := service.NewNotificationService(sender, service.NotificationConfig{
		Operator:   *operator,
		Workers:    cfg.Mail.Workers,
		MaxRetries: cfg.Mail.Retries,
		RetryDelay: 2 * time.Second,
	}, metrics, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tutor-api",
	})
	profileSvc := service.NewProfileService(profileRepo, validate, logr)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, bookingRepo, catalog, cacheSvc, cfg.Booking.AvailabilityCacheTTL, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, availabilitySvc, profileSvc, notifications, catalog, metrics, validate, logr)
	lessonRequestSvc, err := service.NewLessonRequestService(notifications, validate, logr)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(0, metrics, logr)
	messageSvc := service.NewMessageService(messageRepo, hub, profileSvc, metrics, validate, logr)

	store, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	inspector := storage.NewInspector(cfg.Storage.MaxFileSizeBytes, cfg.Storage.AllowedMIMEs)
	fileSvc := service.NewFileService(store, signer, inspector, cfg.APIPrefix+"/files", metrics, logr)
	homeworkSvc := service.NewHomeworkService(homeworkRepo, fileSvc, profileSvc, validate, logr)
	cheatSheetSvc := service.NewCheatSheetService(cheatSheetRepo, fileSvc, profileSvc, validate, logr)
	exportSvc := service.NewScheduleExportService(bookingRepo, profileSvc, catalog, validate, logr)

	sweeper, err := service.NewBookingSweeper(cfg.Booking.SweepSchedule, bookingRepo, userRepo, catalog, metrics, logr)
	if err != nil {
		return err
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if redisClient != nil && cfg.Messaging.RedisChannel != "" {
		bridge := realtime.NewRedisBridge(redisClient, cfg.Messaging.RedisChannel, hub, logr)
		go func() {
			if err := bridge.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("redis bridge stopped", zap.Error(err))
			}
		}()
	}

	notifications.Start(workerCtx)
	messageSvc.Start(workerCtx)
	sweeper.Start()

	readiness := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		readiness["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	engine := router.New(router.Options{
		Env:            cfg.Env,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
	}, router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Profile:       handler.NewProfileHandler(profileSvc),
		Availability:  handler.NewAvailabilityHandler(availabilitySvc),
		Booking:       handler.NewBookingHandler(bookingSvc, exportSvc),
		LessonRequest: handler.NewLessonRequestHandler(lessonRequestSvc),
		Message:       handler.NewMessageHandler(messageSvc, cfg.CORS.AllowedOrigins, cfg.Messaging.PingInterval, logr),
		Homework:      handler.NewHomeworkHandler(homeworkSvc),
		CheatSheet:    handler.NewCheatSheetHandler(cheatSheetSvc),
		File:          handler.NewFileHandler(fileSvc),
		Metrics:       handler.NewMetricsHandler(metrics, readiness),
	}, authSvc, metrics, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}

	sweeper.Stop()
	cancelWorkers()
	messageSvc.Stop()
	notifications.Stop()
	return nil
}
