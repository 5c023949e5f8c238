// Package main provides the main entry point for the orochi-mail campaign delivery service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/orochi-mail/app/handlers"
	"github.com/amirphl/orochi-mail/app/middleware"
	"github.com/amirphl/orochi-mail/app/router"
	"github.com/amirphl/orochi-mail/app/scheduler"
	"github.com/amirphl/orochi-mail/app/services"
	businessflow "github.com/amirphl/orochi-mail/business_flow"
	"github.com/amirphl/orochi-mail/config"
	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/amirphl/orochi-mail/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
	closers   []io.Closer
}

// @title Orochi Mail API
// @version 1.0
// @description Campaign delivery, engagement tracking and analytics for email marketing.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	log.Println("Starting orochi-mail...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, appLogCloser := utils.NewLogger("", logOptions(cfg.Logging, cfg.Logging.FilePath))
	log.SetOutput(appLogger.Writer())
	log.SetFlags(appLogger.Flags())

	app, err := initializeApplication(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	app.closers = append(app.closers, appLogCloser)

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Background workers stop after the server so no new sends are accepted meanwhile
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}
	for _, c := range app.closers {
		_ = c.Close()
	}

	log.Println("Server stopped")
}

func logOptions(cfg config.LoggingConfig, path string) utils.LogOptions {
	return utils.LogOptions{
		Output:     cfg.Output,
		FilePath:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Println("Database schema migrated")
	}

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A nil client disables the stats cache and the cross-process dispatch lock.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// initializeEmailProvider picks the provider named by EMAIL_PROVIDER
func initializeEmailProvider(cfg config.EmailConfig, logger *log.Logger) (services.EmailProvider, error) {
	switch cfg.Provider {
	case "ses":
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return services.NewSESProvider(ctx, services.SESConfig{
			Region:           cfg.AWSRegion,
			AccessKey:        cfg.AWSAccessKey,
			SecretKey:        cfg.AWSSecretKey,
			ConfigurationSet: cfg.ConfigurationSet,
		}, logger)
	default:
		return services.NewMockEmailProvider(logger), nil
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, appLogger *log.Logger) (*Application, error) {
	var stopFuncs []func()
	var closers []io.Closer

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		closers = append(closers, rc)
	}

	// Dispatch shares the app log file; one lumberjack writer per file
	dispatchLogger := log.New(appLogger.Writer(), "[dispatch] ", appLogger.Flags())
	schedulerLogger, schedulerCloser := utils.NewLogger("[scheduler] ", logOptions(cfg.Logging, cfg.Scheduler.LogFilePath))
	closers = append(closers, schedulerCloser)

	// Repositories
	campaignRepo := repository.NewCampaignRepository(db)
	mailListRepo := repository.NewMailListRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)
	deliveryRepo := repository.NewDeliveryRecordRepository(db)
	clickRepo := repository.NewClickEventRepository(db)
	analyticsRepo := repository.NewDailyAnalyticsRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)

	// Services
	provider, err := initializeEmailProvider(cfg.Email, dispatchLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	deliveryClient := services.NewDeliveryClient(provider, services.DeliveryClientConfig{
		FromEmail:       cfg.Email.FromEmail,
		FromName:        cfg.Email.FromName,
		TrackingBaseURL: cfg.Tracking.BaseURL,
		SendTimeout:     cfg.Dispatch.SendTimeout,
	}, dispatchLogger)
	log.Printf("Email provider %s initialized, sending as %s", cfg.Email.Provider, cfg.Email.FromEmail)

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Dispatch pool and flows
	pool := scheduler.NewDispatchPool(scheduler.DispatchPoolConfig{
		Workers:    cfg.Dispatch.Workers,
		QueueSize:  cfg.Dispatch.QueueSize,
		LockTTL:    cfg.Dispatch.LockTTL,
		LockPrefix: cfg.Cache.RedisPrefix,
	}, rc, dispatchLogger)

	dispatchFlow := businessflow.NewCampaignDispatchFlow(
		campaignRepo,
		subscriberRepo,
		deliveryRepo,
		deliveryClient,
		pool,
		businessflow.DispatchConfig{
			RatePerSecond: cfg.Dispatch.RatePerSecond,
			Burst:         cfg.Dispatch.Burst,
			ProgressEvery: cfg.Dispatch.ProgressEvery,
		},
		dispatchLogger,
	)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, blacklistRepo, deliveryClient)
	trackingFlow := businessflow.NewTrackingFlow(campaignRepo, subscriberRepo, deliveryRepo, clickRepo)
	unsubscribeFlow := businessflow.NewUnsubscribeFlow(campaignRepo, subscriberRepo, mailListRepo, deliveryRepo, db)
	statsFlow := businessflow.NewCampaignStatsFlow(campaignRepo, deliveryRepo, rc, businessflow.StatsCacheConfig{
		Prefix: cfg.Cache.RedisPrefix,
		TTL:    cfg.Cache.StatsTTL,
	}, log.Default())
	analyticsFlow := businessflow.NewAnalyticsFlow(campaignRepo, subscriberRepo, analyticsRepo, schedulerLogger)

	stopFuncs = append(stopFuncs, pool.Start(context.Background(), dispatchFlow))

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewCampaignScheduler(
			dispatchFlow,
			analyticsFlow,
			schedulerLogger,
			cfg.Scheduler.Interval,
			cfg.Scheduler.AnalyticsInterval,
		)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	// Handlers
	campaignHandler := handlers.NewCampaignHandler(campaignFlow, dispatchFlow, statsFlow)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsFlow)
	trackingHandler := handlers.NewTrackingHandler(trackingFlow)
	unsubscribeHandler := handlers.NewUnsubscribeHandler(unsubscribeFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"email_provider": func(ctx context.Context) error {
			if ok, msg := deliveryClient.TestConnection(ctx); !ok {
				return fmt.Errorf("%s", msg)
			}
			return nil
		},
	}
	if rc != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	appRouter := router.NewFiberRouter(
		cfg,
		router.Handlers{
			Campaign:    campaignHandler,
			Analytics:   analyticsHandler,
			Tracking:    trackingHandler,
			Unsubscribe: unsubscribeHandler,
		},
		authMiddleware,
		healthChecks,
	)

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
		closers:   closers,
	}, nil
}
