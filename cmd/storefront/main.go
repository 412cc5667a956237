package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/credential"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/session"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	store := credential.NewMemory()
	var pool *pgxpool.Pool
	if cfg.CredentialStore == "postgres" {
		pool, err = db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer pool.Close()
		store = credential.NewPostgres(pool)
	}

	client := apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout, logger.Named("apiclient"))
	feed := notify.NewFeed(20)
	sink := notify.Multi{feed, notify.NewLog(logger.Named("notify"))}
	sessions := session.NewManager(client, store, sink, logger.Named("session"))
	reconciler := cart.New(client, sessions, sink, logger.Named("cart"))
	if err := sessions.Restore(ctx); err != nil {
		logger.Warn("restore session", zap.Error(err))
	}

	srv := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Session:     sessions,
		Catalog:     catalog.New(client, sessions),
		Cart:        reconciler,
		Feed:        feed,
		DB:          pool,
		CORSOrigins: cfg.CORSOrigins,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("commerce_api", client.BaseURL()),
			zap.String("credential_store", cfg.CredentialStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
