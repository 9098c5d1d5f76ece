// Package server exposes the manual run trigger, the action log, health and
// Prometheus metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"herald/internal/jobs"
	"herald/internal/logging"
	"herald/internal/model"
)

// Runner starts engagement runs.
type Runner interface {
	Start(ctx context.Context, trigger string) bool
	Running() bool
	Last() (jobs.LastRun, bool)
}

// ActionLister reads the action log.
type ActionLister interface {
	ListActions(ctx context.Context, since time.Time, limit int) ([]model.ActionRecord, error)
}

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handler struct {
	runner  Runner
	actions ActionLister
	db      Pinger
	// runs outlive the request that started them
	runCtx context.Context
	now    func() time.Time
}

// NewRouter wires the HTTP routes. Runs started over HTTP use runCtx.
func NewRouter(runCtx context.Context, runner Runner, actions ActionLister, db Pinger) *mux.Router {
	h := &handler{runner: runner, actions: actions, db: db, runCtx: runCtx, now: time.Now}
	r := mux.NewRouter()
	r.Use(recoverMiddleware)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/runs", h.startRun).Methods(http.MethodPost)
	r.HandleFunc("/runs/last", h.lastRun).Methods(http.MethodGet)
	r.HandleFunc("/actions", h.listActions).Methods(http.MethodGet)
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": h.runner.Running()})
}

func (h *handler) startRun(w http.ResponseWriter, r *http.Request) {
	if !h.runner.Start(h.runCtx, "http") {
		writeJSON(w, http.StatusConflict, map[string]string{"error": jobs.ErrRunInFlight.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *handler) lastRun(w http.ResponseWriter, r *http.Request) {
	last, ok := h.runner.Last()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run yet"})
		return
	}
	body := map[string]any{"summary": last.Summary}
	if last.Err != nil {
		body["error"] = last.Err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) listActions(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be a positive duration like 24h"})
			return
		}
		window = d
	}
	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	recs, err := h.actions.ListActions(r.Context(), h.now().Add(-window), limit)
	if err != nil {
		logging.Error("http_list_actions_failed", map[string]any{"error": err})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read action log"})
		return
	}
	if recs == nil {
		recs = []model.ActionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": recs, "count": len(recs)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error("http_panic", map[string]any{"path": r.URL.Path, "panic": rec})
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info("http_listen", map[string]any{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logging.Info("http_stopped", nil)
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
