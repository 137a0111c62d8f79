package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds how long in-flight requests may run after shutdown begins
const DefaultShutdownTimeout = 10 * time.Second

// HTTPServer serves the chat API on a TCP listener. Serve(ctx) blocks
// until the context is cancelled and active requests drain.
type HTTPServer struct {
	address string
	handler http.Handler

	// shutdownTimeout is the maximum time to wait for active
	// requests to complete after the context is cancelled.
	shutdownTimeout time.Duration

	// writeTimeout must outlast the upstream completion timeout.
	writeTimeout time.Duration

	// ready is closed after the listener is bound.
	ready chan struct{}
	addr  net.Addr
}

// HTTPServerConfig configures an HTTPServer
type HTTPServerConfig struct {
	// Address is the TCP listen address (e.g. ":8080"). Required.
	Address string

	// Handler serves incoming requests. Required.
	Handler http.Handler

	// ShutdownTimeout defaults to DefaultShutdownTimeout if zero.
	ShutdownTimeout time.Duration

	// WriteTimeout defaults to two minutes if zero.
	WriteTimeout time.Duration
}

// NewHTTPServer creates a server for the configured address. Call Serve to start it.
func NewHTTPServer(config HTTPServerConfig) (*HTTPServer, error) {
	if config.Address == "" {
		return nil, errors.New("http server: address is required")
	}
	if config.Handler == nil {
		return nil, errors.New("http server: handler is required")
	}

	shutdown := config.ShutdownTimeout
	if shutdown == 0 {
		shutdown = DefaultShutdownTimeout
	}
	write := config.WriteTimeout
	if write == 0 {
		write = 2 * time.Minute
	}

	return &HTTPServer{
		address:         config.Address,
		handler:         config.Handler,
		shutdownTimeout: shutdown,
		writeTimeout:    write,
		ready:           make(chan struct{}),
	}, nil
}

// Ready returns a channel that is closed once the server is accepting connections
func (s *HTTPServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address. Only valid after Ready() is closed.
func (s *HTTPServer) Addr() net.Addr {
	return s.addr
}

// Serve accepts connections until ctx is cancelled, then stops accepting
// and waits up to the shutdown timeout for active requests.
func (s *HTTPServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	zap.S().Infow("http_server_listening", "address", s.addr.String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		zap.S().Infow("http_server_shutting_down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("http_server_shutdown_failed", "error", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}

	zap.S().Infow("http_server_stopped")
	return nil
}
