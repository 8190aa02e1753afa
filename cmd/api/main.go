package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/notify-dispatch/internal/application/dispatch"
	"github.com/notify-dispatch/internal/application/feed"
	"github.com/notify-dispatch/internal/application/schedule"
	"github.com/notify-dispatch/internal/application/target"
	"github.com/notify-dispatch/internal/config"
	"github.com/notify-dispatch/internal/infrastructure/dynamo"
	jwtinfra "github.com/notify-dispatch/internal/infrastructure/jwt"
	"github.com/notify-dispatch/internal/infrastructure/slack"
	"github.com/notify-dispatch/internal/infrastructure/smtp"
	"github.com/notify-dispatch/internal/infrastructure/sns"
	"github.com/notify-dispatch/internal/infrastructure/teams"
	"github.com/notify-dispatch/internal/infrastructure/web"
	transporthttp "github.com/notify-dispatch/internal/transport/http"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, reading from environment")
	}

	cfg := config.Load()
	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables, logger)

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	customerRepo := dynamo.NewCustomerRepo(dynamoClient, cfg.DynamoTables.Customers)
	targetRepo := dynamo.NewTargetRepo(dynamoClient, cfg.DynamoTables.Targets)
	templateRepo := dynamo.NewTemplateRepo(dynamoClient, cfg.DynamoTables.Templates)
	requestRepo := dynamo.NewRequestRepo(dynamoClient, cfg.DynamoTables.Requests)
	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	settingsRepo := dynamo.NewSettingsRepo(dynamoClient, cfg.DynamoTables.UserSettings, cfg.DynamoTables.Settings)

	// JWT provider is optional: without keys the API runs unauthenticated.
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		logger.Warn().Err(err).Msg("JWT provider not available")
	}

	hub := feed.NewHub(notificationRepo, logger)

	senders := []dispatch.Sender{
		web.NewSender(notificationRepo, hub),
		smtp.NewSender(cfg),
		slack.NewSender(cfg, settingsRepo),
		teams.NewSender(cfg),
	}
	// SMS is optional: skipped when AWS credentials cannot be resolved.
	if smsSender, err := sns.NewSender(cfg); err == nil {
		senders = append(senders, smsSender)
	} else {
		logger.Warn().Err(err).Msg("SNS sender not available")
	}

	resolver := target.NewService(target.ServiceDeps{
		TargetRepo:   targetRepo,
		UserRepo:     userRepo,
		CustomerRepo: customerRepo,
	})

	sched := schedule.NewScheduler(logger)
	dispatchSvc := dispatch.NewService(dispatch.ServiceDeps{
		TemplateRepo:     templateRepo,
		RequestRepo:      requestRepo,
		NotificationRepo: notificationRepo,
		SettingsRepo:     settingsRepo,
		Resolver:         resolver,
		Hub:              hub,
		Scheduler:        sched,
		Senders:          senders,
		Logger:           logger,
	})

	// Re-arm persisted SCHEDULED requests on startup and keep sweeping so
	// deferred dispatches survive restarts.
	dispatchSvc.SweepScheduled(context.Background())
	sched.StartSweep(cfg.ScheduleSweepInterval, func() {
		dispatchSvc.SweepScheduled(context.Background())
	})

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		TargetRepo:       targetRepo,
		TemplateRepo:     templateRepo,
		NotificationRepo: notificationRepo,
		SettingsRepo:     settingsRepo,
		Resolver:         resolver,
		Dispatch:         dispatchSvc,
		Hub:              hub,
		JWTProvider:      jwtProvider,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}
	sched.Stop()
	logger.Info().Msg("server stopped")
}
