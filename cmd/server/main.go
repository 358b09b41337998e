package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lychee-technology/tabula"
	"go.uber.org/zap"
)

// Server represents the HTTP server with its collaborators
type Server struct {
	config   *tabula.Config
	manager  tabula.DatasetManager
	auth     tabula.Authenticator
	limiter  tabula.RateLimiter
	charts   tabula.ChartReader
	exporter tabula.DatasetExporter
	health   func(ctx context.Context) error
	mux      *http.ServeMux
}

// NewServer creates a new Server instance
func NewServer(config *tabula.Config, manager tabula.DatasetManager, auth tabula.Authenticator) *Server {
	return &Server{
		config:  config,
		manager: manager,
		auth:    auth,
		mux:     http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.Handle("GET /api/admin/datasets", s.admin(s.handleListDatasets))
	s.mux.Handle("POST /api/admin/datasets", s.admin(s.handleCreateDataset))
	s.mux.Handle("GET /api/admin/datasets/{id}", s.admin(s.handleGetDataset))
	s.mux.Handle("PUT /api/admin/datasets/{id}", s.admin(s.handleUpdateDataset))
	s.mux.Handle("DELETE /api/admin/datasets/{id}", s.admin(s.handleDeleteDataset))
	s.mux.Handle("POST /api/admin/datasets/{id}/export", s.admin(s.handleExportDataset))

	s.mux.Handle("GET /api/admin/datasets/{id}/data", s.admin(s.handleListDataPoints))
	s.mux.Handle("POST /api/admin/datasets/{id}/data", s.admin(s.handleCreateDataPoint))
	s.mux.Handle("GET /api/admin/datasets/{id}/data/{dataId}", s.admin(s.handleGetDataPoint))
	s.mux.Handle("GET /api/admin/datasets/{id}/data/{dataId}/view", s.admin(s.handleViewDataPoint))
	s.mux.Handle("PUT /api/admin/datasets/{id}/data/{dataId}", s.admin(s.handleUpdateDataPoint))
	s.mux.Handle("DELETE /api/admin/datasets/{id}/data/{dataId}", s.admin(s.handleDeleteDataPoint))

	s.mux.Handle("GET /api/admin/datasets/{id}/form", s.admin(s.handleGetForm))
	s.mux.Handle("POST /api/admin/datasets/{id}/form", s.admin(s.handlePostForm))

	s.mux.Handle("POST /api/auth/login", s.withRateLimit(http.HandlerFunc(s.handleLogin)))
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/auth/verify", s.handleVerify)

	if s.charts != nil {
		s.mux.HandleFunc("GET /api/chart-data/{chartName}", s.handleChartData)
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.mux,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zap.S().Infow("shutting down server", "timeout", s.config.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	config := loadConfig()
	logger, err := newLogger(config.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Validate(); err != nil {
		sugar.Fatalf("invalid configuration: %v", err)
	}

	server, cleanup, err := buildServer(ctx, config)
	if err != nil {
		sugar.Fatalf("failed to initialize server: %v", err)
	}
	defer cleanup()

	server.RegisterRoutes()
	if err := server.Start(ctx); err != nil {
		sugar.Errorf("server error: %v", err)
	}
}
