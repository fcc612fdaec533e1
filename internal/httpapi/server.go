package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Subscriptions state of the ingest loop
type Subscriptions interface {
	Connected() bool
	ActiveTopics() []string
	NotifyConfigChanged()
}

// HealthResponse body of GET /healthz
type HealthResponse struct {
	Status        string   `json:"status"`
	BusConnected  bool     `json:"bus_connected"`
	Subscriptions int      `json:"subscriptions"`
	Topics        []string `json:"topics,omitempty"`
}

// Server ops endpoints: health, reload, metrics
type Server struct {
	subs     Subscriptions
	registry *prometheus.Registry
	logger   *zap.Logger
	srv      *http.Server
}

// New creates the ops server listening on addr; registry may be nil
func New(addr string, subs Subscriptions, registry *prometheus.Registry, logger *zap.Logger) *Server {
	s := &Server{
		subs:     subs,
		registry: registry,
		logger:   logger,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes builds the chi router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Health)
	r.Post("/reload", s.Reload)
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// Health reports 200 while the bus is connected, 503 otherwise
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	topics := s.subs.ActiveTopics()
	resp := HealthResponse{
		Status:        "ok",
		BusConnected:  s.subs.Connected(),
		Subscriptions: len(topics),
	}
	if r.URL.Query().Get("verbose") != "" {
		resp.Topics = topics
	}

	status := http.StatusOK
	if !resp.BusConnected {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Reload signals a device registry change to the loop
func (s *Server) Reload(w http.ResponseWriter, _ *http.Request) {
	s.subs.NotifyConfigChanged()
	s.logger.Info("Configuration change requested over HTTP")
	w.WriteHeader(http.StatusAccepted)
}

// Start serves until Shutdown; returns nil on a clean shutdown
func (s *Server) Start() error {
	s.logger.Info("Ops HTTP server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
