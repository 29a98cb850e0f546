package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/paqtrack/paqtrack-be/internal/auth"
	"github.com/paqtrack/paqtrack-be/internal/config"
	"github.com/paqtrack/paqtrack-be/internal/delivery"
	"github.com/paqtrack/paqtrack-be/internal/http/handlers"
	"github.com/paqtrack/paqtrack-be/internal/middleware"
	"github.com/paqtrack/paqtrack-be/internal/photo"
	"github.com/paqtrack/paqtrack-be/internal/storage"
)

// Store bundles the persistence interfaces the server wires together; the
// Postgres store satisfies all three.
type Store interface {
	storage.AgentStore
	storage.PackageStore
	storage.AuditStore
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store Store, photos photo.Store, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	guard := middleware.RequireAgent(tokens)
	workflow := delivery.NewService(store, photos, store, logger)

	handlers.NewHealthHandler(time.Now()).Register(mux)

	authH := handlers.NewAuthHandler(store, tokens)
	authH.Register(mux)
	authH.RegisterProtected(mux, guard)

	handlers.NewAgentHandler(store).Register(mux)

	pkgH := handlers.NewPackageHandler(store, workflow)
	pkgH.Register(mux)
	pkgH.RegisterProtected(mux, guard)

	// Delivery photos are served straight off the upload directory.
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	handler := middleware.CORS(cfg.CORSOrigins, middleware.Logging(logger, mux))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
