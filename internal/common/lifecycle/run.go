package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// ErrShutdownTimeout is returned by Run when the services did not stop in
// time after a shutdown signal.
var ErrShutdownTimeout = errors.New("shutdown timed out")

// Run runs sup until SIGINT, SIGTERM or ctx cancellation, then waits for
// the services to stop. It returns the supervisor's error, if any.
func Run(ctx context.Context, sup *Supervisor) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- sup.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	// Every Stop is bounded by StopTimeout; allow for all of them.
	budget := sup.StopTimeout*time.Duration(len(sup.services)) + time.Second
	select {
	case err := <-errCh:
		return err
	case <-time.After(budget):
		slog.Error("Shutdown timed out", "budget", budget)
		return ErrShutdownTimeout
	}
}

// HTTPService runs an http.Server. The listener is bound inside Start, so
// an address in use fails the start rather than surfacing later.
type HTTPService struct {
	server  *http.Server
	name    string
	serving atomic.Bool
	addr    atomic.Pointer[string]
}

// NewHTTPService creates a Service from an http.Server.
func NewHTTPService(name string, server *http.Server) *HTTPService {
	return &HTTPService{server: server, name: name}
}

func (s *HTTPService) Name() string { return s.name }

// Addr returns the bound address once the service is listening.
func (s *HTTPService) Addr() string {
	if p := s.addr.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *HTTPService) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	addr := ln.Addr().String()
	s.addr.Store(&addr)
	slog.Info("HTTP server listening", "service", s.name, "addr", addr)

	s.serving.Store(true)
	defer s.serving.Store(false)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *HTTPService) Stop(ctx context.Context) error {
	slog.Info("Stopping HTTP server", "service", s.name)
	s.serving.Store(false)
	return s.server.Shutdown(ctx)
}

func (s *HTTPService) Health() error {
	if !s.serving.Load() {
		return errors.New("not serving")
	}
	return nil
}
