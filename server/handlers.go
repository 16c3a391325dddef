package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/study-bridge/history"
	"github.com/onnwee/study-bridge/presence"
	"github.com/onnwee/study-bridge/telemetry"
)

// StatsProvider reports controller counters. *presence.Controller satisfies it.
type StatsProvider interface {
	Stats() presence.Stats
}

// QueueReporter reports pending transitions. *presence.Dispatcher satisfies it.
type QueueReporter interface {
	Len() int
}

// HistoryReader lists archived sessions. *history.Store satisfies it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Deps are the handlers' collaborators. Only Stats is required.
type Deps struct {
	Source  string
	Stats   StatsProvider
	Queue   QueueReporter
	History HistoryReader
	Ready   []Check
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// HandleRoot is the plain liveness answer expected by the hosting platform.
func (h *Handlers) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz runs every readiness check and reports the first failure.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	for _, check := range h.deps.Ready {
		if err := check.Fn(ctx); err != nil {
			telemetry.LoggerWithCorr(r.Context()).Warn("readiness check failed", slog.String("check", check.Name), slog.Any("err", err), slog.String("component", "http"))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.Name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	presence.Stats
	Source     string `json:"source,omitempty"`
	QueueDepth int    `json:"queue_depth"`
}

// HandleStatus reports what the bridge has processed so far.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{Source: h.deps.Source}
	if h.deps.Stats != nil {
		resp.Stats = h.deps.Stats.Stats()
	}
	if h.deps.Queue != nil {
		resp.QueueDepth = h.deps.Queue.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyItem struct {
	history.Record
	DurationSeconds int64 `json:"duration_seconds"`
}

// HandleHistory lists archived sessions, newest first. ?limit=N caps the list.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.deps.History == nil {
		http.Error(w, "history archive disabled", http.StatusNotFound)
		return
	}
	recs, err := h.deps.History.Recent(r.Context(), parseIntQuery(r, "limit", 20))
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("list history failed", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	items := make([]historyItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, historyItem{Record: rec, DurationSeconds: rec.DurationSeconds()})
	}
	writeJSON(w, http.StatusOK, items)
}

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", slog.Any("err", err), slog.String("component", "http"))
	}
}
