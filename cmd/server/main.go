package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/config"
	"github.com/jizusun/OpenBookCorner/internal/handler"
	"github.com/jizusun/OpenBookCorner/internal/health"
	"github.com/jizusun/OpenBookCorner/internal/mail"
	"github.com/jizusun/OpenBookCorner/internal/metrics"
	"github.com/jizusun/OpenBookCorner/internal/middleware"
	"github.com/jizusun/OpenBookCorner/internal/notify"
	"github.com/jizusun/OpenBookCorner/internal/server"
	"github.com/jizusun/OpenBookCorner/internal/service"
	"github.com/jizusun/OpenBookCorner/internal/store"
	"github.com/jizusun/OpenBookCorner/internal/token"
	"github.com/jizusun/OpenBookCorner/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	if env := os.Getenv("CONFIG_PATH"); env != "" && *configPath == "" {
		*configPath = env
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("starting OpenBookCorner",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("mail_enabled", cfg.Mail.Enabled),
		zap.Bool("reminder_enabled", cfg.Reminder.Enabled))

	// Stores.
	pg, err := store.NewPostgresStore(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to connect to Postgres", zap.Error(err))
	}
	defer pg.Close()

	rd, err := store.NewRedisStore(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer rd.Close()

	cache := store.NewInMemoryCache(cfg.Cache.MaxSize, logger)

	// Outbound mail.
	var mailer mail.Sender
	if cfg.Mail.Enabled {
		mailer = mail.NewSMTPSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From, logger)
	} else {
		mailer = mail.NewNopSender(logger)
	}

	// Live notification hub.
	hub := notify.NewHub(logger)
	go hub.Run()

	// Services.
	invites := token.NewInviteIssuer(cfg.Auth.InviteSecret, cfg.Auth.InviteTTL)

	notificationService := service.NewNotificationService(pg, hub, logger)
	authService := service.NewAuthService(pg, rd, rd, mailer, service.AuthConfig{
		CodeTTL:          cfg.Auth.CodeTTL,
		CodeMaxAttempts:  cfg.Auth.CodeMaxAttempts,
		CodeResendWindow: cfg.Auth.CodeResendWindow,
		SessionTTL:       cfg.Auth.SessionTTL,
		SessionRenewal:   cfg.Auth.SessionRenewal,
	}, logger)
	libraryService := service.NewLibraryService(pg, pg, cache, cfg.Cache.LibraryTTL, invites, mailer, cfg.Server.BaseURL, logger)
	bookService := service.NewBookService(pg, pg, logger)
	loanService := service.NewLoanService(pg, pg, pg, rd, notificationService, mailer, service.CirculationConfig{
		LoanPeriod:     cfg.Circulation.LoanPeriod,
		MaxActiveLoans: cfg.Circulation.MaxActiveLoans,
		IdempotencyTTL: cfg.Circulation.IdempotencyTTL,
	}, logger)
	requestService := service.NewRequestService(pg, pg, bookService, notificationService, mailer, logger)
	donationService := service.NewDonationService(pg, pg, notificationService, mailer, logger)

	// HTTP plumbing.
	errHandler := apperrors.NewHandler(logger)
	authn := middleware.NewAuthenticator(authService, logger)

	handlers := server.Handlers{
		Auth:         handler.NewAuthHandler(authService, errHandler, logger),
		Library:      handler.NewLibraryHandler(libraryService, errHandler, logger),
		Book:         handler.NewBookHandler(bookService, errHandler, logger),
		Loan:         handler.NewLoanHandler(loanService, libraryService, errHandler, logger),
		Request:      handler.NewRequestHandler(requestService, errHandler, logger),
		Donation:     handler.NewDonationHandler(donationService, errHandler, logger),
		Notification: handler.NewNotificationHandler(notificationService, hub, errHandler, logger),
		Health:       health.NewChecker(pg, rd, logger),
	}

	srv := server.New(cfg, handlers, authn, libraryService, errHandler, logger)

	// Background workers.
	var reminder *worker.Reminder
	if cfg.Reminder.Enabled {
		reminder = worker.NewReminder(pg, pg, pg, notificationService, mailer, worker.Config{
			CheckInterval: cfg.Reminder.CheckInterval,
			DueSoonWindow: cfg.Reminder.DueSoonWindow,
			Concurrency:   cfg.Reminder.Concurrency,
		}, logger)
		reminder.Start()
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		metricsServer.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down cleanly", zap.Error(err))
	}

	if reminder != nil {
		reminder.Stop()
	}
	hub.Stop()
	if metricsServer != nil {
		if err := metricsServer.Close(); err != nil {
			logger.Warn("failed to close metrics server", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
}
