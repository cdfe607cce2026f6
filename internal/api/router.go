package api

import (
	"log/slog"
	"net/http"
	"time"

	"capturesque/internal/api/handler"
	"capturesque/internal/api/middleware"
	"capturesque/internal/app/service"
	"capturesque/internal/platform/config"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(
	cfg *config.Config,
	authService *service.AuthService,
	galleryService *service.GalleryService,
	log *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	access := middleware.NewAccess(authService)
	authHandler := handler.NewAuthHandler(authService, log)
	galleryHandler := handler.NewGalleryHandler(galleryService, cfg.MaxUploadBytes, log)

	r.Get("/health", handler.Health)

	// Credential endpoints: per-IP rate limit, short deadline.
	limiter := middleware.NewRateLimiter(cfg.AuthRatePerMinute)
	r.Group(func(auth chi.Router) {
		auth.Use(limiter.Handler)
		auth.Use(chiMiddleware.Timeout(15 * time.Second))
		auth.Post("/register", authHandler.Register)
		auth.Post("/login", authHandler.Login)
	})
	r.With(access.Require(middleware.Authenticated)).Get("/auth/verify", authHandler.Verify)

	downloadTier := middleware.Public
	if cfg.DownloadRequiresAuth {
		downloadTier = middleware.Authenticated
	}

	r.Route("/api", func(api chi.Router) {
		// Public reads
		api.Get("/images", galleryHandler.ListRootFolders)
		api.Get("/images/*", galleryHandler.ListImages)
		api.Get("/folders", galleryHandler.ListSubfolders)
		api.Get("/folders/*", galleryHandler.ListSubfolders)
		api.Get("/image/*", galleryHandler.GetFile)
		api.Get("/thumb/*", galleryHandler.Thumbnail)

		api.With(access.Require(downloadTier)).Get("/download/*", galleryHandler.DownloadFile)

		api.Group(func(admin chi.Router) {
			admin.Use(access.Require(middleware.Admin))
			admin.Delete("/folders", galleryHandler.DeleteFolder)
			admin.Delete("/folders/*", galleryHandler.DeleteFolder)
			admin.Post("/create-folder/*", galleryHandler.CreateFolder)
			admin.Post("/rename-folder/*", galleryHandler.RenameFolder)
			admin.Post("/upload", galleryHandler.Upload)
			admin.Post("/upload/*", galleryHandler.Upload)
			admin.Delete("/delete/*", galleryHandler.DeleteFile)
			admin.Post("/rename-image/*", galleryHandler.RenameFile)
			admin.Post("/rename", galleryHandler.RenameFileLegacy)
		})
	})

	return r
}
