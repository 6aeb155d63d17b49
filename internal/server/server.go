// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: config comes in from main, and New builds
// the whole dependency chain in one place:
//
//	sqlite.DB → services (User, Auth, Activity, Checkin) → handlers → routes
//
// Services receive repository interfaces, never *sqlite.DB directly, and
// handlers receive services. Nothing below this package knows about chi's
// route table or the process lifecycle.
package server

import (
	"context"
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/sakif/checkfit/internal/auth"
	"github.com/sakif/checkfit/internal/config"
	"github.com/sakif/checkfit/internal/handler"
	"github.com/sakif/checkfit/internal/metrics"
	"github.com/sakif/checkfit/internal/middleware"
	sqliteRepo "github.com/sakif/checkfit/internal/repository/sqlite"
	"github.com/sakif/checkfit/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and the login rate limiter's
// cleanup goroutine. Close releases both; Start calls it on the way out.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
	limiter  *middleware.RateLimiter
}

// New opens the database, runs migrations, and wires every route.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and closes the database.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTES:
//
//	POST   /auth/register               public, rate limited
//	POST   /auth/login                  public, rate limited
//	GET    /healthz                     public
//	GET    /metrics                     public
//	GET    /users, /users/{id}          bearer token
//	POST   /users
//	PUT    /users/{id}
//	DELETE /users/{id}
//	POST   /activity                    bearer token
//	GET    /activity, /activity/{id}
//	GET    /activity/{id}/availability
//	PUT    /activity/{id}
//	DELETE /activity/{id}
//	POST   /checkin                     bearer token
//	GET    /checkin/history
//	GET    /checkin, /checkin/{id}
//	PUT    /checkin/{id}
//	DELETE /checkin/{id}
//
// MIDDLEWARE ORDER: RequestID must run before Logger so the log line carries
// the ID, and Recoverer sits inside Logger so a panic still logs as a 500.
func (s *Server) setupRoutes() error {
	collector := metrics.NewCollector(s.registry)
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(collector))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWT.Secret, s.config.JWT.Issuer)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	// s.db implements all three repository interfaces.
	userService := service.NewUserService(s.db, passwords, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	activityService := service.NewActivityService(s.db, s.db, s.logger)
	checkinService := service.NewCheckinService(s.db, s.db, s.db, s.logger,
		service.WithSerializedAdmission(s.config.Admission.Serialize),
		service.WithAdmissionRecorder(collector),
	)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	activityHandler := handler.NewActivityHandler(activityService, s.logger)
	checkinHandler := handler.NewCheckinHandler(checkinService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            rate.Limit(s.config.RateLimit.PerMinute / 60),
		Burst:           s.config.RateLimit.Burst,
		CleanupInterval: 5 * time.Minute,
	}, s.logger)

	// === Public routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
	})
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))

	// === Protected routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(authService))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.HandleList)
			r.Post("/", userHandler.HandleCreate)
			r.Get("/{id}", userHandler.HandleGet)
			r.Put("/{id}", userHandler.HandleUpdate)
			r.Delete("/{id}", userHandler.HandleDelete)
		})

		r.Route("/activity", func(r chi.Router) {
			r.Get("/", activityHandler.HandleList)
			r.Post("/", activityHandler.HandleCreate)
			r.Get("/{id}", activityHandler.HandleGet)
			r.Get("/{id}/availability", activityHandler.HandleAvailability)
			r.Put("/{id}", activityHandler.HandleUpdate)
			r.Delete("/{id}", activityHandler.HandleDelete)
		})

		r.Route("/checkin", func(r chi.Router) {
			r.Get("/", checkinHandler.HandleList)
			r.Post("/", checkinHandler.HandleCreate)
			// Static segment wins over {id} in chi's tree.
			r.Get("/history", checkinHandler.HandleHistory)
			r.Get("/{id}", checkinHandler.HandleGet)
			r.Put("/{id}", checkinHandler.HandleUpdate)
			r.Delete("/{id}", checkinHandler.HandleDelete)
		})
	})

	return nil
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("database", s.config.Database.Path),
			slog.Bool("serializedAdmission", s.config.Admission.Serialize),
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
