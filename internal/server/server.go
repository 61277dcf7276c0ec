// Copyright 2026 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server assembles the saludo request pipeline and owns the
// listener lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pjscruggs/saludo"
	"github.com/pjscruggs/saludo/health"
	"github.com/pjscruggs/saludo/http"
	"github.com/pjscruggs/saludo/internal/config"
	"github.com/pjscruggs/saludo/internal/routes"
)

// Server runs the HTTP listener and, when configured, the gRPC health
// listener.
type Server struct {
	cfg     config.Config
	logger  *saludo.Logger
	guard   *saludo.FatalGuard
	handler stdhttp.Handler
	http    *stdhttp.Server
	health  *health.Server
}

// New assembles the pipeline. guard receives errors from background
// listeners nobody waits on.
func New(cfg config.Config, logger *saludo.Logger, guard *saludo.FatalGuard, opts ...routes.Option) *Server {
	if guard == nil {
		guard = saludo.NewFatalGuard(logger)
	}
	handler := NewHandler(cfg, logger, opts...)
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		guard:   guard,
		handler: handler,
		http: &stdhttp.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       time.Minute,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
	}
	if cfg.GRPCHealthPort > 0 {
		s.health = health.New(logger.With(slog.String("component", "health")))
	}
	return s
}

// NewHandler builds the full middleware chain around the routes:
// tracing, request ID, access log, compression, JSON body parsing, panic
// recovery and the router with its terminal error stage.
func NewHandler(cfg config.Config, logger *saludo.Logger, opts ...routes.Option) stdhttp.Handler {
	errs := http.NewErrorHandler(logger.Logger,
		http.WithProduction(cfg.Production),
		http.WithReportOptions(logger.ErrorReportOptions()...),
	)
	router := http.NewRouter(errs, http.ParseJSON(errs, cfg.BodyLimit))
	routes.New(logger.Logger, opts...).Register(router)

	var compress func(stdhttp.Handler) stdhttp.Handler
	if cfg.Compress {
		compress = http.Compress()
	}
	return http.Chain(router,
		http.Instrument(nil),
		http.RequestID(),
		http.AccessLog(logger.Logger),
		compress,
	)
}

// Handler returns the assembled pipeline.
func (s *Server) Handler() stdhttp.Handler {
	return s.handler
}

// Run listens on the configured port and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx ends, then shuts down gracefully within
// the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.health != nil {
		hl, err := net.Listen("tcp", ":"+strconv.Itoa(s.cfg.GRPCHealthPort))
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on grpc health port %d: %w", s.cfg.GRPCHealthPort, err)
		}
		s.guard.Go(func() error { return s.health.Serve(hl) })
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	s.banner(ln.Addr())
	if s.health != nil {
		s.health.SetServing(true)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", slog.Duration("timeout", s.cfg.ShutdownTimeout))
	if s.health != nil {
		s.health.SetServing(false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	if s.health != nil {
		s.health.Shutdown()
	}
	if err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

// banner logs where the server listens and which routes to try.
func (s *Server) banner(addr net.Addr) {
	port := s.cfg.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	base := "http://localhost:" + strconv.Itoa(port)

	s.logger.Info(fmt.Sprintf("Servidor corriendo en el puerto: %d %s", port, base),
		slog.String("env", s.cfg.Env),
		slog.Bool("production", s.cfg.Production),
	)
	s.logger.Info("Probar la API en: " + base)

	try := []string{routes.PathSaludo, routes.PathSyncError, routes.PathAsyncError, "/api/inexistente"}
	urls := make([]string, len(try))
	for i, p := range try {
		urls[i] = base + p
	}
	s.logger.Info("Pruebe rutas: " + strings.Join(urls, ", "))
}
