// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/symbiotic-listener/internal/metrics"
	"github.com/smartdevs17/symbiotic-listener/pkg/utils"
)

const systemMetricsInterval = 30 * time.Second

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// HTTPServer exposes the Prometheus registry on /metrics
type HTTPServer struct {
	config         *ServerConfig
	server         *http.Server
	router         *mux.Router
	metricsManager *metrics.Manager
	logger         *logrus.Entry

	mu       sync.Mutex
	listener net.Listener
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(config *ServerConfig, metricsManager *metrics.Manager) (*HTTPServer, error) {
	if metricsManager == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Metrics server requires a metrics manager")
	}

	s := &HTTPServer{
		config:         config,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("server"),
	}

	s.setupRouter()

	s.server = &http.Server{
		Addr:              net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.observeScrapes)

	handler := promhttp.HandlerFor(s.metricsManager.Registry(), promhttp.HandlerOpts{})
	s.router.Handle("/metrics", handler).Methods(http.MethodGet)
}

// Handler returns the router, for use with httptest
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start binds the listening socket and serves in the background
func (s *HTTPServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "HTTP server already started")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	s.listener = ln
	s.stopCh = make(chan struct{})

	// Populate system metrics so they appear on first scrape
	s.metricsManager.UpdateSystemMetrics()

	s.wg.Add(2)
	go s.systemMetricsUpdater(s.stopCh)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP server error")
		}
	}()

	s.logger.WithField("address", ln.Addr().String()).Info("Metrics server started")
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.metricsManager.UpdateSystemMetrics()
		case <-stop:
			return
		}
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.listener = nil
	s.mu.Unlock()

	s.logger.Info("Stopping metrics server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	return err
}
