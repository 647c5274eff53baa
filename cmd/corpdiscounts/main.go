// Package main запускает HTTP-сервер сервиса корпоративных скидок.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/corpdiscounts/internal/config"
	"github.com/mmeshcher/corpdiscounts/internal/handler"
	"github.com/mmeshcher/corpdiscounts/internal/identity"
	"github.com/mmeshcher/corpdiscounts/internal/middleware"
	"github.com/mmeshcher/corpdiscounts/internal/repository"
	"github.com/mmeshcher/corpdiscounts/internal/service"
	"github.com/mmeshcher/corpdiscounts/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var identities identity.Provider
	if cfg.IdentityProviderURL != "" {
		identities = identity.NewGoTrue(cfg.IdentityProviderURL, cfg.IdentityProviderKey)
		sugar.Infow("using hosted identity provider", "url", cfg.IdentityProviderURL)
	} else {
		identities = identity.NewLocal(repo)
	}

	var revoker session.Revoker
	if cfg.RedisAddr != "" {
		redisRevoker, err := session.NewRedisRevoker(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer redisRevoker.Close()
		revoker = redisRevoker
	} else {
		sugar.Warn("REDIS_ADDR is not set: signed-out sessions stay valid until they expire")
	}
	if cfg.SessionSecret == "" {
		sugar.Warn("SESSION_SECRET is not set: sessions will not survive a restart")
	}

	svc := service.NewService(repo, identities, logger)
	defer svc.Close()

	if cfg.AdminEmail != "" {
		bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := svc.EnsureAdmin(bootCtx, cfg.AdminEmail, cfg.AdminPassword)
		cancel()
		if err != nil {
			sugar.Fatalw("admin bootstrap error", "error", err.Error())
		}
	}

	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, revoker)
	authMiddleware := middleware.NewAuthMiddleware(sessions)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновый перевод просроченных купонов в EXPIRED, если включён
	g.Go(func() error {
		return svc.RunExpirySweep(ctx, cfg.ExpirySweepInterval)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting corpdiscounts server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
