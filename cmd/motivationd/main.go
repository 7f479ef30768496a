package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "github.com/mind-engage/mindengage-motivation/internal/api/http"
	auth "github.com/mind-engage/mindengage-motivation/internal/auth/middleware"
	"github.com/mind-engage/mindengage-motivation/internal/bootstrap"
	"github.com/mind-engage/mindengage-motivation/internal/config"
	"github.com/mind-engage/mindengage-motivation/internal/features"
	"github.com/mind-engage/mindengage-motivation/internal/inference"
	"github.com/mind-engage/mindengage-motivation/internal/rbac"
)

func main() {
	cfg := config.FromEnv()
	logger := bootstrap.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Models (loaded once, read-only afterwards) ---
	reg, err := bootstrap.LoadRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Error("model registry load failed", "err", err)
		os.Exit(1)
	}

	deriver, err := features.Parse(cfg.DerivedFeatures)
	if err != nil {
		logger.Error("derived features", "err", err)
		os.Exit(1)
	}

	deps := api.Deps{
		Predictor:   inference.New(reg, inference.WithLogger(logger)),
		Catalog:     reg,
		Deriver:     deriver,
		Logger:      logger,
		Roles:       rbac.NewChecker(nil),
		CORSOrigins: cfg.CORSOrigins(),
	}
	if cfg.EnableAuth {
		deps.Auth = auth.NewAuthService(cfg.AuthHMACSecret)
		deps.AdminUser = cfg.AdminUser
		deps.AdminPassHash = cfg.AdminPassHash
	} else if !strings.HasPrefix(cfg.HTTPAddr, "127.0.0.1:") && !strings.HasPrefix(cfg.HTTPAddr, "localhost:") {
		logger.Warn("auth disabled on a non-loopback address", "addr", cfg.HTTPAddr)
	}

	s := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "models", reg.Len(), "auth", cfg.EnableAuth)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server", "err", err)
		os.Exit(1)
	}
}
