// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-service/internal/config"
	"github.com/vyrodovalexey/inventory-service/internal/docs"
	"github.com/vyrodovalexey/inventory-service/internal/handler"
	"github.com/vyrodovalexey/inventory-service/internal/middleware"
	"github.com/vyrodovalexey/inventory-service/internal/store"
)

// APITitle names the service in the generated API document.
const APITitle = "Inventory Service"

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *zap.Logger
}

// New creates a new Server instance.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	itemStore store.Store,
	photos handler.PhotoStore,
) *Server {
	router := mux.NewRouter()

	s := &Server{
		router: router,
		config: cfg,
		logger: logger,
	}

	s.setupRoutes(itemStore, photos)
	s.setupHTTPServer()

	return s
}

// middlewares returns the chain applied to every request, outermost first.
func (s *Server) middlewares() []middleware.Middleware {
	chain := []middleware.Middleware{
		middleware.RequestID(),
		middleware.Recovery(s.logger),
	}
	if s.config.MetricsEnabled {
		chain = append(chain, middleware.Metrics())
	}
	return append(chain, middleware.Logging(s.logger))
}

// setupRoutes configures the API routes and the fallback handler.
func (s *Server) setupRoutes(itemStore store.Store, photos handler.PhotoStore) {
	chain := s.middlewares()
	for _, mw := range chain {
		s.router.Use(mux.MiddlewareFunc(mw))
	}

	inventoryHandler := handler.NewInventoryHandler(itemStore, photos, s.logger, s.config.MaxUploadBytes)
	inventoryHandler.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	}

	s.router.Handle("/docs", docs.Handler(s.router, docs.Info{
		Title:   APITitle,
		Version: handler.Version,
		Created: []string{handler.RouteRegister},
	}, s.logger)).Methods(http.MethodGet).Name("docs")

	// mux skips router middleware for unmatched requests, so the fallback
	// gets the same chain explicitly.
	fallback := middleware.Chain(chain...)(http.HandlerFunc(inventoryHandler.MethodNotAllowed))
	s.router.NotFoundHandler = fallback
	s.router.MethodNotAllowedHandler = fallback
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until the server is shut down.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("starting server",
		zap.String("address", listener.Addr().String()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
	)

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}
