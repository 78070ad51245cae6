// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
//   - which URL patterns map to which handler functions
//   - what middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New creates:
//	  sqlite.DB          → service.Stores (every repository is the same DB)
//	  media.Store        → media.Uploader (local directory or S3)
//	  auth.TokenService  → auth middleware + AuthService
//	  services           → handlers → routes
//
// All dependencies are assembled here (the composition root), so handlers
// and services never construct their own collaborators.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/handler"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/middleware"
	sqliteRepo "github.com/sakif/foodgram/internal/repository/sqlite"
	"github.com/sakif/foodgram/internal/service"
)

// authBurst is how many credential requests a client may send back to
// back before AuthRatePerMinute applies.
const authBurst = 5

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and closes it after shutdown so
// pending writes are flushed and the file lock is released.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
}

// New opens the database and media store and mounts every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: middleware.NewRateLimiter(cfg.AuthRatePerMinute, authBurst),
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET              /api/health
//	GET              /api/ingredients/           ?name=
//	GET              /api/ingredients/{id}/
//	GET, POST        /api/recipes/               ?page=&limit=&author=&is_favorited=&is_in_shopping_cart=
//	GET              /api/recipes/download_shopping_cart/
//	GET, PATCH, PUT, DELETE /api/recipes/{id}/
//	POST, DELETE     /api/recipes/{id}/favorite/
//	POST, DELETE     /api/recipes/{id}/shopping_cart/
//	GET              /api/recipes/{id}/get-link/
//	GET, POST        /api/users/
//	GET              /api/users/me/
//	PUT, DELETE      /api/users/me/avatar/
//	POST             /api/users/set_password/
//	GET              /api/users/subscriptions/
//	GET              /api/users/{id}/
//	GET              /api/users/{id}/subscriptions/
//	POST, DELETE     /api/users/{id}/subscribe/
//	POST             /api/auth/token/login/
//	POST             /api/auth/token/logout/
//	GET              /auth/github/login, /auth/github/callback
//	GET              /s/{id}/
//	GET              /media/*
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (logged by Logger)
//  2. RealIP: rewrites RemoteAddr from proxy headers, which the rate limiter keys on
//  3. Recoverer: catches panics and returns 500 instead of crashing
//  4. Logger: logs each request with timing info
//  5. CORS: answers preflight requests before they reach a handler
func (s *Server) setupRoutes(ctx context.Context) error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	// === Dependencies ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	store, err := s.mediaStore(ctx)
	if err != nil {
		return err
	}
	uploader := media.NewUploader(store)

	stores := service.Stores{
		Users:         s.db,
		Ingredients:   s.db,
		Recipes:       s.db,
		Relations:     s.db,
		Subscriptions: s.db,
		Cart:          s.db,
	}
	pager := handler.Paginator{
		BaseURL:     strings.TrimSuffix(s.config.BaseURL, "/"),
		PageSize:    s.config.PageSize,
		MaxPageSize: s.config.MaxPageSize,
	}

	recipes := handler.NewRecipeHandler(service.NewRecipeService(stores, uploader, s.logger), pager, s.config.BaseURL, s.logger)
	users := handler.NewUserHandler(service.NewUserService(stores, passwords, uploader, s.logger), pager, s.config.RecipesLimit, s.logger)
	ingredients := handler.NewIngredientHandler(service.NewIngredientService(stores, s.logger))

	var github handler.GitHubAuthenticator
	if s.config.GitHub.Enabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}
	authHandler := handler.NewAuthHandler(service.NewAuthService(stores, tokens, passwords, s.logger), github, s.config.TokenTTL, s.logger)

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Public routes. A valid token, when present, personalises
		// is_favorited, is_in_shopping_cart and is_subscribed.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))

			r.Get("/ingredients/", ingredients.HandleList)
			r.Get("/ingredients/{id:[0-9]+}/", ingredients.HandleGet)

			r.Get("/recipes/", recipes.HandleList)
			r.Get("/recipes/{id:[0-9]+}/", recipes.HandleGet)
			r.Get("/recipes/{id:[0-9]+}/get-link/", recipes.HandleGetLink)

			r.Get("/users/", users.HandleList)
			r.Get("/users/{id:[0-9]+}/", users.HandleGet)
			r.With(s.limiter.Limit).Post("/users/", users.HandleRegister)

			r.With(s.limiter.Limit).Post("/auth/token/login/", authHandler.HandleTokenLogin)
		})

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Post("/recipes/", recipes.HandleCreate)
			r.Get("/recipes/download_shopping_cart/", recipes.HandleDownloadShoppingCart)
			r.Patch("/recipes/{id:[0-9]+}/", recipes.HandleUpdate)
			r.Put("/recipes/{id:[0-9]+}/", recipes.HandleUpdate)
			r.Delete("/recipes/{id:[0-9]+}/", recipes.HandleDelete)

			favorite := recipes.HandleFavorite()
			r.Post("/recipes/{id:[0-9]+}/favorite/", favorite)
			r.Delete("/recipes/{id:[0-9]+}/favorite/", favorite)
			cart := recipes.HandleShoppingCart()
			r.Post("/recipes/{id:[0-9]+}/shopping_cart/", cart)
			r.Delete("/recipes/{id:[0-9]+}/shopping_cart/", cart)

			r.Get("/users/me/", users.HandleMe)
			r.Put("/users/me/avatar/", users.HandleSetAvatar)
			r.Delete("/users/me/avatar/", users.HandleDeleteAvatar)
			r.Post("/users/set_password/", users.HandleSetPassword)
			r.Get("/users/subscriptions/", users.HandleMySubscriptions)
			r.Get("/users/{id:[0-9]+}/subscriptions/", users.HandleUserSubscriptions)
			r.Post("/users/{id:[0-9]+}/subscribe/", users.HandleSubscribe)
			r.Delete("/users/{id:[0-9]+}/subscribe/", users.HandleSubscribe)

			r.Post("/auth/token/logout/", authHandler.HandleTokenLogout)
		})
	})

	// === GitHub OAuth ===
	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Info("GitHub sign-in disabled: GITHUB_CLIENT_ID or GITHUB_CLIENT_SECRET not set")
	}

	s.router.Get("/s/{id:[0-9]+}/", recipes.HandleShortLink)

	return nil
}

// mediaStore picks S3 when a bucket is configured and the local media
// directory otherwise. Local files are served under the URL prefix path.
func (s *Server) mediaStore(ctx context.Context) (media.Store, error) {
	mc := s.config.Media
	if mc.S3Bucket != "" {
		store, err := media.NewS3Store(ctx, media.S3Options{
			Bucket:    mc.S3Bucket,
			Region:    mc.S3Region,
			PublicURL: mc.S3PublicURL,
			Endpoint:  mc.S3Endpoint,
			AccessKey: mc.S3AccessKey,
			SecretKey: mc.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("creating S3 media store: %w", err)
		}
		s.logger.Info("media stored in S3", slog.String("bucket", mc.S3Bucket))
		return store, nil
	}

	store, err := media.NewLocalStore(mc.Dir, mc.URLPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating local media store: %w", err)
	}

	// "/media/" or "https://cdn.example.com/media/" both serve from the path.
	prefix := mc.URLPrefix
	if u, err := url.Parse(prefix); err == nil {
		prefix = u.Path
	}
	prefix = "/" + strings.Trim(prefix, "/") + "/"
	s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(store.Dir()))))
	return store, nil
}

// handleHealth reports whether the database answers.
//
// HTTP: GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Close releases the database. Start calls it on shutdown; tests that never
// start the server call it directly.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the rate limiter sweeper and close the database
func (s *Server) Start() error {
	defer s.Close()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.limiter.Run(sweepCtx, time.Minute)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // PDF rendering of large carts
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
