// Package api exposes the conversion service over HTTP
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sammcj/md-server/internal/classify"
	"github.com/sammcj/md-server/internal/metrics"
	"github.com/sammcj/md-server/internal/orchestrator"
	"github.com/sammcj/md-server/internal/telemetry"
)

// Endpoints lists the routes served, used for unknown route suggestions
var Endpoints = []string{
	"POST /convert",
	"GET /healthz",
	"GET /health",
	"GET /formats",
}

// Converter runs a conversion request
type Converter interface {
	Convert(ctx context.Context, req *classify.Request) *orchestrator.Outcome
}

// Config wires the HTTP server
type Config struct {
	Converter Converter
	Counters  *metrics.Counters
	// MaxBodySize caps request bodies in bytes
	MaxBodySize int64
	// SizeLimit reports the ceiling for a MIME type, used by /formats
	SizeLimit func(mime string) int64
	Version   string
	Logger    *logrus.Logger
}

// Server handles the HTTP surface
type Server struct {
	converter   Converter
	counters    *metrics.Counters
	maxBodySize int64
	sizeLimit   func(string) int64
	version     string
	logger      *logrus.Logger
	started     time.Time
}

// NewServer creates a Server
func NewServer(cfg Config) *Server {
	s := &Server{
		converter:   cfg.Converter,
		counters:    cfg.Counters,
		maxBodySize: cfg.MaxBodySize,
		sizeLimit:   cfg.SizeLimit,
		version:     cfg.Version,
		logger:      cfg.Logger,
		started:     time.Now(),
	}
	if s.counters == nil {
		s.counters = metrics.NewCounters()
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	return s
}

// Handler returns the routed and instrumented handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /convert", s.handleConvert)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /formats", s.handleFormats)
	mux.HandleFunc("/", s.handleUnknown)

	return telemetry.WrapHandler(s.withRequestID(mux), "md-server")
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string, writeTimeout time.Duration) error {
	server := &http.Server{
		Addr:           addr,
		Handler:        s.Handler(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case serverErr <- err:
			case <-ctx.Done():
			}
		}
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

type requestIDKey struct{}

// NewRequestID returns an identifier of the form req_<uuid>
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := NewRequestID()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return NewRequestID()
}
