package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/villa-armonia/lot-reservation/internal/clock"
	"github.com/villa-armonia/lot-reservation/internal/config"
	"github.com/villa-armonia/lot-reservation/internal/database"
	"github.com/villa-armonia/lot-reservation/internal/handler"
	"github.com/villa-armonia/lot-reservation/internal/logging"
	"github.com/villa-armonia/lot-reservation/internal/middleware"
	"github.com/villa-armonia/lot-reservation/internal/notify"
	"github.com/villa-armonia/lot-reservation/internal/queue"
	"github.com/villa-armonia/lot-reservation/internal/repository"
	"github.com/villa-armonia/lot-reservation/internal/router"
	"github.com/villa-armonia/lot-reservation/internal/service"
	"github.com/villa-armonia/lot-reservation/internal/storage"
)

func main() {
	_ = godotenv.Load() // .env is optional outside development

	logger, err := logging.New(logging.ConfigFromEnv())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Config{
		User:     cfg.DBUser,
		Pass:     cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		MaxConns: cfg.DBMaxConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	store := repository.NewStore(db)
	tokens := repository.NewTokenRepo(db)

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unreachable; cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, logger)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)

	storageCfg := config.LoadStorageConfig()
	docs, err := storage.NewS3Store(ctx, storageCfg)
	if err != nil {
		return err
	}
	ledger, err := storage.NewLedger(ctx, storageCfg)
	if err != nil {
		return err
	}

	pub := queue.NewPublisher(cfg.AMQPURL, logger)
	defer pub.Close()

	var notifier queue.Notifier
	if mailCfg := config.LoadMailConfig(); mailCfg.Enabled() {
		notifier = notify.NewMailer(mailCfg, logger)
	} else {
		logger.Info("mail not configured; status emails disabled")
	}
	consumer := queue.NewConsumer(cfg.AMQPURL, cfg.EventLogPath, notifier, logger)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event consumer stopped", zap.Error(err))
		}
	}()

	clk := clock.NewSystem()
	mgr := service.NewManager(store, clk, service.Policy{
		Waitlist:      cfg.Policy.Waitlist,
		CascadeReject: cfg.Policy.CascadeReject,
		AdminEmails:   cfg.Policy.AdminEmails,
	})
	events := handler.NewEventSink(pub, cache, store, clk, logger)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(logging.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("8M"))

	authH := handler.NewAuthHandler(cfg, store, tokens, logger)
	var oauthH *handler.OAuthHandler
	if oc := config.LoadOAuthConfig(); oc.Enabled() {
		oauthH = handler.NewOAuthHandler(oc.OAuth2(), oc.UserInfoURL, nil, mgr, authH, logger)
	}

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authH, oauthH, cfg.JWTSecret)
	router.RegisterLots(e, handler.NewLotHandler(store, logger), cache)
	router.RegisterRequester(e, handler.NewRequestHandler(mgr, docs, ledger, store, events, logger), cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(mgr, store, events, logger), mgr, cfg.JWTSecret, logger)

	addr := ":" + cfg.Port
	logger.Info("listening",
		zap.String("addr", addr),
		zap.String("env", cfg.Env),
		zap.Bool("waitlist", cfg.Policy.Waitlist),
		zap.Bool("cascade_reject", cfg.Policy.CascadeReject))

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
