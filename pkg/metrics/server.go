// HTTP exporter for the slicer metrics
//
// Serves the Prometheus text format at /metrics together with liveness
// (/health) and readiness (/ready) probes. Readiness is delegated to the
// embedding program, which typically reports whether the pipeline is idle.
//
// Example usage:
//
//	server := metrics.NewMetricsServer(metrics.Global(), ":9100")
//	errCh := server.StartAsync()
//	defer server.Shutdown(context.Background())
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
)

var logger = log.GetLogger("metrics")

// Gatherer renders metrics in Prometheus text format
type Gatherer interface {
	Gather() string
}

// MetricsServerConfig holds exporter configuration
type MetricsServerConfig struct {
	// Address to listen on (e.g., ":9100" or "127.0.0.1:0")
	Address string

	// Optional basic auth credentials, applied to every route except /health
	Username string
	Password string

	// Ready reports readiness for /ready; nil means ready while serving
	Ready func() bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultMetricsServerConfig returns default exporter configuration
func DefaultMetricsServerConfig() MetricsServerConfig {
	return MetricsServerConfig{
		Address:      ":9100",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// MetricsServer exports a Gatherer over HTTP
type MetricsServer struct {
	source Gatherer
	config MetricsServerConfig
	mux    *http.ServeMux
	server *http.Server

	mu        sync.RWMutex
	listener  net.Listener
	running   bool
	startTime time.Time
}

// NewMetricsServer creates an exporter listening on addr
func NewMetricsServer(source Gatherer, addr string) *MetricsServer {
	config := DefaultMetricsServerConfig()
	config.Address = addr
	return NewMetricsServerWithConfig(source, config)
}

// NewMetricsServerWithConfig creates an exporter with custom config
func NewMetricsServerWithConfig(source Gatherer, config MetricsServerConfig) *MetricsServer {
	ms := &MetricsServer{
		source: source,
		config: config,
		mux:    http.NewServeMux(),
	}
	ms.mux.HandleFunc("/health", ms.handleHealth)
	ms.mux.Handle("/metrics", ms.withAuth(http.HandlerFunc(ms.handleMetrics)))
	ms.mux.Handle("/ready", ms.withAuth(http.HandlerFunc(ms.handleReady)))
	ms.mux.Handle("/", ms.withAuth(http.HandlerFunc(ms.handleRoot)))

	ms.server = &http.Server{
		Handler:      ms.mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return ms
}

// Handler returns the exporter's routes
func (ms *MetricsServer) Handler() http.Handler {
	return ms.mux
}

// Start listens and serves until Shutdown
func (ms *MetricsServer) Start() error {
	ln, err := ms.listen()
	if err != nil {
		return err
	}
	return ms.serve(ln)
}

// StartAsync listens synchronously and serves in a goroutine. A listen
// error is delivered on the returned channel, which is closed when the
// server stops.
func (ms *MetricsServer) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	ln, err := ms.listen()
	if err != nil {
		errCh <- err
		close(errCh)
		return errCh
	}
	go func() {
		if err := ms.serve(ln); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (ms *MetricsServer) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", ms.config.Address)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	ms.listener = ln
	ms.running = true
	ms.startTime = time.Now()
	ms.mu.Unlock()
	logger.Info("metrics exporter listening on %s", ln.Addr())
	return ln, nil
}

func (ms *MetricsServer) serve(ln net.Listener) error {
	err := ms.server.Serve(ln)
	ms.mu.Lock()
	ms.running = false
	ms.mu.Unlock()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the exporter
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	ms.mu.Lock()
	ms.running = false
	ms.mu.Unlock()
	return ms.server.Shutdown(ctx)
}

// IsRunning reports whether the exporter is serving
func (ms *MetricsServer) IsRunning() bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.running
}

// GetAddress returns the bound address once listening, else the
// configured one
func (ms *MetricsServer) GetAddress() string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.listener != nil {
		return ms.listener.Addr().String()
	}
	return ms.config.Address
}

func (ms *MetricsServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	output := ms.source.Gather()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(output)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(output))
}

func (ms *MetricsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK\n"))
}

func (ms *MetricsServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ready := ms.IsRunning()
	if ready && ms.config.Ready != nil {
		ready = ms.config.Ready()
	}
	w.Header().Set("Content-Type", "text/plain")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready\n"))
		return
	}
	_, _ = w.Write([]byte("Ready\n"))
}

func (ms *MetricsServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>fiberslice metrics</title></head>
<body>
<h1>fiberslice</h1>
<ul>
<li><a href="/metrics">/metrics</a> Prometheus metrics</li>
<li><a href="/health">/health</a> liveness</li>
<li><a href="/ready">/ready</a> pipeline idle</li>
</ul>
</body>
</html>
`))
}

// withAuth requires basic auth when credentials are configured
func (ms *MetricsServer) withAuth(next http.Handler) http.Handler {
	if ms.config.Username == "" && ms.config.Password == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(ms.config.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(ms.config.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="fiberslice"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStatus returns exporter status for diagnostics
func (ms *MetricsServer) GetStatus() map[string]any {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	status := map[string]any{
		"address": ms.config.Address,
		"running": ms.running,
	}
	if ms.running {
		status["uptime"] = time.Since(ms.startTime).Seconds()
	}
	return status
}
