// Package health serves liveness, readiness and Prometheus endpoints for a
// running pipe.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health states reported by /readiness
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DefaultStaleAfter is how old the last frame may be before readiness degrades.
const DefaultStaleAfter = 5 * time.Second

// Probe is the pipe state sampled on every readiness request
type Probe struct {
	Running       bool
	Connected     bool
	FramesDecoded uint64
	// LastFrameAge is the time since the last decoded frame (negative if none)
	LastFrameAge time.Duration
	// MQTTEnabled/MQTTConnected describe the optional event emitter
	MQTTEnabled   bool
	MQTTConnected bool
}

// HealthStatus represents the health state of the pipe
type HealthStatus struct {
	Status         string `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds  int64  `json:"uptime_seconds"`
	PipeRunning    bool   `json:"pipe_running"`
	PipeConnected  bool   `json:"pipe_connected"`
	FramesDecoded  uint64 `json:"frames_decoded"`
	LastFrameAgeMS int64  `json:"last_frame_age_ms"` // -1 if no frame yet
	MQTTConnected  *bool  `json:"mqtt_connected,omitempty"`
}

// Server is the HTTP health server
type Server struct {
	probe      func() Probe
	gatherer   prometheus.Gatherer
	staleAfter time.Duration
	started    time.Time
	srv        *http.Server

	mu sync.Mutex
	ln net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithStaleAfter overrides DefaultStaleAfter.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Server) { s.staleAfter = d }
}

// WithGatherer selects the registry served on /metrics
// (prometheus.DefaultGatherer by default).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a server for addr (e.g. ":8080"). probe must be thread-safe.
func New(addr string, probe func() Probe, opts ...Option) *Server {
	s := &Server{
		probe:      probe,
		gatherer:   prometheus.DefaultGatherer,
		staleAfter: DefaultStaleAfter,
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the endpoint mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Check returns the current health status
func (s *Server) Check() HealthStatus {
	p := s.probe()

	status := HealthStatus{
		Status:         StatusHealthy,
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		PipeRunning:    p.Running,
		PipeConnected:  p.Connected,
		FramesDecoded:  p.FramesDecoded,
		LastFrameAgeMS: -1,
	}
	if p.LastFrameAge >= 0 {
		status.LastFrameAgeMS = p.LastFrameAge.Milliseconds()
	}
	if p.MQTTEnabled {
		connected := p.MQTTConnected
		status.MQTTConnected = &connected
	}

	stale := p.LastFrameAge < 0 || p.LastFrameAge > s.staleAfter
	switch {
	case !p.Running:
		status.Status = StatusUnhealthy
	case !p.Connected || stale:
		status.Status = StatusDegraded
	case p.MQTTEnabled && !p.MQTTConnected:
		status.Status = StatusDegraded
	}
	return status
}

// LivenessHandler handles /health (the process is alive)
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

// ReadinessHandler handles /readiness
//
// 503 only when the pipe is not running; degraded is still ready.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.Check()

	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// Start listens on the configured address and serves in the background.
// Listen errors (address in use) are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", s.srv.Addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	slog.Info("health: server started",
		"addr", ln.Addr().String(),
		"endpoints", []string{"/health", "/readiness", "/metrics"},
	)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health: server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start succeeded ("" before).
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("health: shutdown: %w", err)
	}
	slog.Info("health: server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("health: write response failed", "error", err)
	}
}
