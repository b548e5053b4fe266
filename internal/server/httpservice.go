package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridfall/internal/config"
)

// HTTPService adapts an http.Server to the Service interface with a bounded
// graceful shutdown.
type HTTPService struct {
	server *http.Server
	cfg    config.ServerConfig
	logger *zap.Logger
}

// NewHTTPService wraps an HTTP handler bound per the server configuration.
//
// Precondition: handler and logger must be non-nil.
func NewHTTPService(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *HTTPService {
	if handler == nil {
		panic("server: handler must be non-nil")
	}
	if logger == nil {
		panic("server: logger must be non-nil")
	}
	return &HTTPService{
		server: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Start listens and serves until Stop is called. A clean shutdown returns nil.
func (s *HTTPService) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests, forcing closure after the shutdown timeout.
func (s *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown incomplete, closing", zap.Error(err))
		_ = s.server.Close()
	}
}
