package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	api "github.com/mind-engage/masterclass/internal/api/http"
	"github.com/mind-engage/masterclass/internal/auth"
	authmw "github.com/mind-engage/masterclass/internal/auth/middleware"
	"github.com/mind-engage/masterclass/internal/config"
	"github.com/mind-engage/masterclass/internal/db"
	"github.com/mind-engage/masterclass/internal/exam"
	"github.com/mind-engage/masterclass/internal/notify"
	"github.com/mind-engage/masterclass/internal/registration"
	"github.com/mind-engage/masterclass/internal/storage"
	syncx "github.com/mind-engage/masterclass/internal/sync"
)

func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	driver := db.ParseDriver(cfg.DBDriver)
	dbh, err := db.Open(openCtx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()
	store := exam.NewSQLStore(dbh, driver)

	// --- Notifications ---
	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()
	events := notify.NewEvents(notifier, logger)

	// --- Auth ---
	jwt := authmw.NewAuthService(cfg.AuthSecret, 0)
	tokens, closeTokens, err := newTokenStore(ctx, cfg, dbh)
	if err != nil {
		return err
	}
	defer closeTokens()
	login := auth.NewMagicLink(store, tokens, jwt, logger, auth.MagicLinkOptions{
		TTL:         cfg.StudentTokenTTL,
		BaseURL:     cfg.PublicURL,
		ExposeToken: cfg.ExposeLoginToken,
	}).WithSender(events)

	// --- Course material ---
	blobs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.Deps{
		Log:           logger,
		CORSOrigins:   cfg.CORSOrigins(),
		Location:      cfg.Timezone,
		Auth:          jwt,
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
		Exams: exam.NewService(store, logger, exam.Options{
			PreSeconds:    cfg.PreQuestionSeconds,
			PostSeconds:   cfg.PostQuestionSeconds,
			QuestionCount: cfg.QuizQuestionCount,
			Location:      cfg.Timezone,
		}).WithNotifier(events),
		Bank:         exam.NewBank(store, logger),
		Registration: registration.NewService(store, logger, events),
		Login:        login,
		Materials:    storage.NewMaterials(blobs, store, logger),
		Events:       syncx.NewEventRepo(dbh),
		Reminder:     events,
		Ready:        dbh.PingContext,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", driver, "notify", cfg.NotifyDriver, "tokens", cfg.TokenStore)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func newNotifier(cfg config.Config, logger *slog.Logger) (notify.Notifier, func(), error) {
	switch cfg.NotifyDriver {
	case "whapi":
		return notify.NewWhapi(cfg.WhapiURL, cfg.WhapiToken, nil), func() {}, nil
	case "amqp":
		p, err := notify.DialPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	default:
		return notify.LogNotifier{Log: logger}, func() {}, nil
	}
}

func newTokenStore(ctx context.Context, cfg config.Config, q db.Queryer) (auth.TokenStore, func(), error) {
	if cfg.TokenStore != "redis" {
		return auth.NewSQLTokenStore(q), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return auth.NewRedisTokenStore(rdb), func() { _ = rdb.Close() }, nil
}
