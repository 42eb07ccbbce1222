// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is built here and handed
// down, so no other package constructs its own collaborators.
//
//	config → sqlite.DB ─┬→ services → handlers → routes
//	         upload.Store ┘
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/socialgraph/internal/auth"
	"github.com/sakif/socialgraph/internal/config"
	"github.com/sakif/socialgraph/internal/handler"
	"github.com/sakif/socialgraph/internal/metrics"
	"github.com/sakif/socialgraph/internal/middleware"
	sqliteRepo "github.com/sakif/socialgraph/internal/repository/sqlite"
	"github.com/sakif/socialgraph/internal/service"
	"github.com/sakif/socialgraph/internal/upload"
)

const (
	shutdownTimeout    = 30 * time.Second
	healthCheckTimeout = 2 * time.Second
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and closes it on shutdown so the
// WAL is checkpointed and the file lock released.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *metrics.Metrics
}

// New opens the database and upload directory and wires every route.
//
// Import alias: repository/sqlite is imported as sqliteRepo so it is not
// confused with the driver package.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.NewWithRuntime(),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// Middleware order matters:
//  1. RequestID, so every later log line can carry it
//  2. RealIP, which extracts the client IP from proxy headers
//  3. Logger, for timing and metrics
//  4. Recoverer, which turns panics into 500s
//
// Everything under /api requires a valid token.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	uploads, err := upload.NewStore(s.config.UploadDir)
	if err != nil {
		return fmt.Errorf("creating upload store: %w", err)
	}

	// === Services ===
	// Each service receives the repository.Store interface, not the concrete DB.
	accounts := service.NewAccountService(s.db, tokens, auth.NewPasswordService(), uploads, s.logger, s.metrics)
	relations := service.NewRelationshipService(s.db, s.logger, s.metrics)
	posts := service.NewEngagementService(s.db, uploads, s.logger, s.metrics)
	recommend := service.NewRecommendationService(s.db, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(accounts, tokens.TTL(), s.logger)
	accountHandler := handler.NewAccountHandler(accounts, relations, recommend, uploads, s.logger)
	postHandler := handler.NewPostHandler(posts, uploads, s.logger)

	// === Operational routes ===
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	// === Uploaded files ===
	// GET /uploads/posts/abc.png → {UploadDir}/posts/abc.png
	fileServer := http.FileServer(http.Dir(uploads.Root()))
	s.router.Handle(upload.URLPrefix+"*", http.StripPrefix(upload.URLPrefix, fileServer))

	// === Auth Routes (public) ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === API Routes (authenticated) ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Route("/me", func(r chi.Router) {
			r.Get("/", accountHandler.HandleMe)
			r.Patch("/privacy", accountHandler.HandleSetPrivacy)
			r.Patch("/username", accountHandler.HandleChangeUsername)
			r.Put("/avatar", accountHandler.HandleSetAvatar)
			r.Delete("/avatar", accountHandler.HandleClearAvatar)
		})

		r.Route("/account", func(r chi.Router) {
			// Static segments are matched before {id}.
			r.Get("/search/{text}", accountHandler.HandleSearch)
			r.Get("/recommended", accountHandler.HandleRecommended)
			r.Get("/requests", accountHandler.HandlePendingRequests)
			r.Patch("/request/{id}/accept", accountHandler.HandleRespond(service.Accept))
			r.Patch("/request/{id}/decline", accountHandler.HandleRespond(service.Decline))

			r.Get("/{id}", accountHandler.HandleProfile)
			r.Post("/{id}/follow", accountHandler.HandleToggleFollow)
			r.Get("/{id}/followers", accountHandler.HandleFollowers)
			r.Get("/{id}/followings", accountHandler.HandleFollowings)
			r.Get("/{id}/posts", postHandler.HandleListByUser)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Post("/", postHandler.HandleCreate)
			r.Get("/{id}", postHandler.HandleGet)
			r.Post("/{id}/like", postHandler.HandleLike)
			r.Post("/{id}/comments", postHandler.HandleComment)
		})
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, body := http.StatusOK, map[string]string{"status": "ok"}
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// On SIGINT/SIGTERM it stops accepting connections, waits up to 30s for
// in-flight requests, then closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second, // uploads can be up to ~50 MB
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("uploads", s.config.UploadDir),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
