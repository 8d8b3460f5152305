package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zeusync/aitree/internal/core/observability/log"
)

// HTTPServer serves the debug websocket on /debug and a health probe on /healthz.
type HTTPServer struct {
	debug  *DebugWebSocket
	logger log.Log

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewHTTPServer(debug *DebugWebSocket, logger log.Log) *HTTPServer {
	if logger == nil {
		logger = log.Provide()
	}
	return &HTTPServer{debug: debug, logger: logger}
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/debug":
		s.debug.ServeHTTP(w, r)
	case "/healthz":
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	default:
		http.NotFound(w, r)
	}
}

// Start listens on addr and serves in the background.
func (s *HTTPServer) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerRunning
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}

	srv := s.server
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("debug http server stopped", log.Error(err))
		}
	}()
	s.logger.Info("debug server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" if not running.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server, s.listener = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return ErrServerNotRunning
	}
	return srv.Shutdown(ctx)
}
