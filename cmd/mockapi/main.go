package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/fakeapi"
	"storefront/internal/importer"
	"storefront/internal/logging"
	"storefront/internal/seed"
)

func main() {
	cfg := config.FromEnv()

	var (
		catalogPath string
		admin       string
		noSeed      bool
	)
	flag.StringVar(&catalogPath, "catalog", cfg.MockAPICatalog, "Path to a product CSV export to load at startup")
	flag.StringVar(&admin, "admin", cfg.MockAPIAdmin, "Admin account to create, as email:password")
	flag.BoolVar(&noSeed, "no-seed", false, "Start without the demo catalog")
	flag.Parse()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	store := fakeapi.NewStore()
	if !noSeed {
		if err := seed.Apply(ctx, store); err != nil {
			logger.Fatal("seed apply", zap.Error(err))
		}
	}
	if catalogPath != "" {
		if err := importCatalog(ctx, store, catalogPath, logger); err != nil {
			logger.Fatal("import catalog", zap.String("file", catalogPath), zap.Error(err))
		}
	}

	api := fakeapi.New(store, fakeapi.Options{
		AccessTTL: cfg.MockAPITokenTTL,
		Logger:    logger,
	})
	if admin != "" {
		email, password, ok := strings.Cut(admin, ":")
		if !ok {
			logger.Fatal("admin must be email:password")
		}
		if err := api.AddAccount(email, password, "admin"); err != nil {
			logger.Fatal("create admin account", zap.String("email", email), zap.Error(err))
		}
		logger.Info("admin account created", zap.String("email", email))
	}

	srv := &http.Server{
		Addr:              cfg.MockAPIAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting mock commerce api",
			zap.String("addr", cfg.MockAPIAddr),
			zap.Int("products", len(store.ListProducts())),
			zap.Duration("token_ttl", cfg.MockAPITokenTTL),
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

func importCatalog(ctx context.Context, store *fakeapi.Store, path string, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	count, err := importer.NewCSVImporter(f, store).Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("catalog imported",
		zap.Int("products", count),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
	)
	return nil
}
