// Package app wires the service together: configuration, stores, the
// session-security engine, domain handlers and the route table.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"socialqueue/internal/auth"
	"socialqueue/internal/config"
	"socialqueue/internal/db"
	"socialqueue/internal/kv"
	"socialqueue/internal/maintenance"
	"socialqueue/internal/observability"
	"socialqueue/internal/post"
	"socialqueue/internal/queue"
	"socialqueue/internal/security"
	"socialqueue/internal/social"
	"socialqueue/internal/user"
)

type Options struct {
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Addr    string
	Close   func() error
}

func Build(cfg *config.Config, logger *observability.Logger, options Options) (*Runtime, error) {
	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	store, err := kv.Open(cfg.RedisURL)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("open redis: %w", err)
	}

	var publisher queue.Publisher = queue.Noop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := queue.NewAMQPPublisher(cfg.AMQPURL, cfg.PostQueue)
		if err != nil {
			_ = store.Close()
			_ = database.Close()
			return nil, fmt.Errorf("open amqp publisher: %w", err)
		}
		publisher = amqpPublisher
	}

	userRepo := user.NewRepository(database)

	passwords := security.NewPasswordManager(cfg.BcryptCost)
	tokens := security.NewTokenManager(security.TokenConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.TokenIssuer,
		Audience:   cfg.TokenAudience,
		Leeway:     cfg.TokenLeeway,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, store.Blacklist(), userRepo)
	limiter := auth.NewRateLimitService(store.AttemptCounter(), cfg.LoginMaxAttempts, cfg.LoginLockWindow)

	authService := auth.NewService(userRepo, tokens, passwords, limiter, logger)
	authHandler := auth.NewHandler(authService)
	authMW := auth.NewMiddleware(tokens, userRepo, limiter, logger)

	userService := user.NewService(userRepo, passwords, logger)
	userHandler := user.NewHandler(userService)

	postRepo := post.NewRepository(database)
	postHandler := post.NewHandler(postRepo, publisher, logger)

	socialRepo := social.NewRepository(database)
	socialHandler := social.NewHandler(socialRepo)

	cleanupHandler := maintenance.NewCleanupHandler(postRepo, logger, cfg.CronSecret, cfg.PostRetention, cfg.CleanupBatchSize)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", userHandler.Signup)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.Handle("POST /auth/logout", authMW.RequireAuth(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /auth/logout-all", authMW.RequireAuth(http.HandlerFunc(authHandler.LogoutAll)))

	mux.Handle("GET /users/me", authMW.RequireAuth(http.HandlerFunc(userHandler.Me)))
	mux.Handle("DELETE /users/me", authMW.RequireAuth(http.HandlerFunc(userHandler.DeleteMe)))

	mux.Handle("POST /posts", authMW.RequireAuth(http.HandlerFunc(postHandler.Create)))
	mux.Handle("GET /posts", authMW.RequireAuth(http.HandlerFunc(postHandler.List)))
	mux.Handle("GET /posts/{id}", authMW.RequireAuth(http.HandlerFunc(postHandler.Get)))
	mux.Handle("DELETE /posts/{id}", authMW.RequireAuth(http.HandlerFunc(postHandler.Delete)))

	mux.Handle("POST /socials", authMW.RequireAuth(http.HandlerFunc(socialHandler.Link)))
	mux.Handle("GET /socials", authMW.RequireAuth(http.HandlerFunc(socialHandler.List)))
	mux.Handle("DELETE /socials/{id}", authMW.RequireAuth(http.HandlerFunc(socialHandler.Unlink)))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database, store))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Addr:    cfg.Addr,
		Close: func() error {
			observability.FlushSentry()
			return errors.Join(publisher.Close(), store.Close(), database.Close())
		},
	}, nil
}

func healthHandler(database *sql.DB, store *kv.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		} else if err := store.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
