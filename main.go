// Package main provides the entry point for the movie recommendation service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"movierec/config"
	"movierec/database"
	"movierec/jobs"
	"movierec/logging"
	"movierec/middleware"
	"movierec/recommend"
	"movierec/repository"
	"movierec/services"
)

// App represents the application with its dependencies
type App struct {
	cfg         *config.Config
	userRepo    *repository.UserRepository
	watchedRepo *repository.WatchedRepository
	catalog     services.Catalog
	authService *services.AuthService
	recommender *recommend.Aggregator
	jobManager  *jobs.JobManager
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewDB(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close database")
		}
	}()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	app := newApp(cfg, db)

	// Start background jobs
	if cfg.Jobs.BackfillEnabled {
		backfill := jobs.NewPosterBackfillJob(app.watchedRepo, app.catalog, cfg.Jobs.BackfillBatch)
		app.jobManager = jobs.NewJobManager(ctx, backfill, cfg.Jobs.BackfillInterval)
		app.jobManager.Start()
		defer app.jobManager.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	logging.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newApp wires repositories and services over an open database
func newApp(cfg *config.Config, db repository.DBTX) *App {
	userRepo := repository.NewUserRepository(db)
	watchedRepo := repository.NewWatchedRepository(db)

	tmdbService := services.NewTMDBService(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Timeout)
	var catalog services.Catalog = tmdbService
	if cfg.TMDB.CircuitBreaker {
		catalog = services.NewBreakerCatalog(tmdbService, services.BreakerConfig{
			Name:             "tmdb",
			FailureThreshold: uint32(cfg.TMDB.BreakerFailures),
			Timeout:          cfg.TMDB.BreakerTimeout,
		})
		logging.Info().Int("failures", cfg.TMDB.BreakerFailures).Msg("TMDB circuit breaker enabled")
	}

	authService := services.NewAuthService(userRepo, services.AuthConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	})

	recommender := recommend.NewAggregator(catalog, watchedRepo, recommend.Config{
		Limit:       cfg.Recommend.Limit,
		Concurrency: cfg.Recommend.Concurrency,
	})

	return &App{
		cfg:         cfg,
		userRepo:    userRepo,
		watchedRepo: watchedRepo,
		catalog:     catalog,
		authService: authService,
		recommender: recommender,
	}
}

// routes registers every endpoint. Router middleware only runs for matched
// routes.
func (app *App) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.AccessLog, middleware.Metrics)

	// Operational endpoints
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/api-key", app.apiKeyHandler).Methods("GET")

	// Accounts
	r.HandleFunc("/register", app.registerHandler).Methods("POST")
	r.HandleFunc("/login", app.loginHandler).Methods("POST")

	// Catalog and watched list, optionally authenticated by bearer token
	api := r.NewRoute().Subrouter()
	api.Use(middleware.Session(app.authService))
	api.HandleFunc("/search", app.searchHandler).Methods("GET")
	api.HandleFunc("/genres", app.genresHandler).Methods("GET")
	api.HandleFunc("/watched", app.addWatchedHandler).Methods("POST")
	api.HandleFunc("/added", app.listWatchedHandler).Methods("GET")
	api.HandleFunc("/delete", app.deleteWatchedHandler).Methods("DELETE")
	api.HandleFunc("/recommendations", app.recommendationsHandler).Methods("GET")

	return r
}

// handler wraps the router with the middleware that must also see unmatched
// requests, such as CORS preflights
func (app *App) handler() http.Handler {
	var h http.Handler = app.routes()
	h = middleware.RateLimit(app.cfg.Server.RateLimitRequests, app.cfg.Server.RateLimitWindow)(h)
	h = middleware.CORS(app.cfg.Server.CORSOrigins)(h)
	return h
}
