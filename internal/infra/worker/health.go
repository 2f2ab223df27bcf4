package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"feed-digest/internal/handler/http/respond"
	"feed-digest/internal/utils/redact"
)

// HealthServer provides HTTP endpoints for health checks.
// It implements two endpoints:
//   - /health: Liveness probe (always returns 200 OK)
//   - /health/ready: Readiness probe (returns 200 if the scheduler is running, 503 if not)
//
// The readiness body also reports the outcome of the most recent polling cycle.
// A failing cycle does not make the worker unready: the next cycle retries.
//
// Example usage:
//
//	healthServer := NewHealthServer(":9091", logger)
//	go func() {
//	    if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
//	        logger.Error("health server failed", slog.Any("error", err))
//	    }
//	}()
//	healthServer.SetReady(true)  // Mark as ready once the scheduler started
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	isReady *atomic.Bool
	server  *http.Server

	mu        sync.RWMutex
	lastCycle *cycleStatus
}

type cycleStatus struct {
	At    time.Time `json:"at"`
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

// healthResponse is the JSON response format for health check endpoints.
type healthResponse struct {
	Status    string       `json:"status"`
	LastCycle *cycleStatus `json:"last_cycle,omitempty"`
}

// NewHealthServer creates a new health check server that starts as not ready.
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	isReady := &atomic.Bool{}
	isReady.Store(false)

	return &HealthServer{
		addr:    addr,
		logger:  logger,
		isReady: isReady,
	}
}

// Handler returns the health mux. Start serves it; tests can use it directly.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	return mux
}

// Start serves the health endpoints until ctx is cancelled.
// It returns http.ErrServerClosed after a graceful shutdown (5 second timeout).
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return err
		}
		h.logger.Error("health server failed", slog.Any("error", err))
		return err
	}
}

// SetReady sets the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// IsReady reports the current readiness state.
func (h *HealthServer) IsReady() bool {
	return h.isReady.Load()
}

// RecordCycle stores the outcome of the latest polling cycle.
func (h *HealthServer) RecordCycle(at time.Time, err error) {
	status := &cycleStatus{At: at.UTC(), OK: err == nil}
	if err != nil {
		status.Error = redact.Error(err)
	}

	h.mu.Lock()
	h.lastCycle = status
	h.mu.Unlock()
}

func (h *HealthServer) lastCycleStatus() *cycleStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastCycle == nil {
		return nil
	}
	copied := *h.lastCycle
	return &copied
}

// handleLiveness always returns 200 OK with {"status":"ok"}.
func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleReadiness returns 200 while the scheduler runs and 503 before start or after shutdown began.
func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", LastCycle: h.lastCycleStatus()}
	code := http.StatusOK
	if !h.isReady.Load() {
		resp.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, code, resp)
}
