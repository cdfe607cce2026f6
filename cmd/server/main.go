package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capturesque/internal/api"
	"capturesque/internal/app/service"
	"capturesque/internal/app/throttle"
	"capturesque/internal/app/thumbnail"
	"capturesque/internal/common/fspath"
	"capturesque/internal/common/security"
	"capturesque/internal/domain/repository"
	"capturesque/internal/platform/cache"
	"capturesque/internal/platform/config"
	"capturesque/internal/platform/database"
	"capturesque/internal/platform/logging"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "error", "text").Error("configuration invalid", "error", err)
		return err
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	log.Info("configuration loaded", "gallery_root", cfg.GalleryRoot, "download_requires_auth", cfg.DownloadRequiresAuth)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Credential store: Postgres when configured, memory otherwise
	var userRepo repository.UserRepository
	if cfg.UsesPostgres() {
		db, err := database.Connect(ctx, cfg.DBConnStr, log)
		if err != nil {
			log.Error("database unavailable", "error", err)
			return err
		}
		defer database.Close(db, log)
		userRepo = repository.NewPgUserRepository(db)
	} else {
		log.Warn("no database configured, users are kept in memory and lost on restart")
		userRepo = repository.NewMemoryUserRepository()
	}

	// 3. Redis-backed login lockout, optional
	var loginThrottle throttle.LoginThrottle = throttle.Noop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			log.Error("redis unavailable", "error", err)
			return err
		}
		defer cache.CloseRedis(rdb, log)
		loginThrottle = throttle.NewRedisLoginThrottle(rdb, cfg.LoginMaxFailures, cfg.LoginLockout)
	}

	// 4. Services
	tokens := security.NewTokenManager(cfg.JWTKey, cfg.JWTExp)
	hasher := security.NewHasher(cfg.PasswordHasher)
	authService := service.NewAuthService(userRepo, hasher, tokens, loginThrottle, cfg.AdminEmail, log)

	thumbs, err := thumbnail.New(cfg.ThumbCacheDir, cfg.ThumbMaxPx, log)
	if err != nil {
		log.Error("thumbnail cache unavailable", "error", err)
		return err
	}
	paths := fspath.NewResolver(cfg.GalleryRoot, cfg.AllowedExtensions)
	galleryService := service.NewGalleryService(paths, thumbs, log)

	// 5. Router & HTTP Server
	router := api.NewRouter(cfg, authService, galleryService, log)
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 6. Graceful Shutdown
	select {
	case err := <-errCh:
		if err != nil {
			log.Error("could not listen", "port", cfg.APIPort, "error", err)
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}
