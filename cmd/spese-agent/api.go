package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"spesesync/internal/app"
	"spesesync/internal/connectivity"
	"spesesync/internal/core"
)

type statusResponse struct {
	Status    core.SyncStatus `json:"status"`
	Reachable bool            `json:"reachable"`
	QueueLen  int             `json:"queue_len"`
	Running   bool            `json:"running"`
}

type syncResponse struct {
	Deferred   bool   `json:"deferred"`
	Passes     int    `json:"passes"`
	Attempted  int    `json:"attempted"`
	Applied    int    `json:"applied"`
	Failed     string `json:"failed,omitempty"`
	Error      string `json:"error,omitempty"`
	QueueLen   int    `json:"queue_len"`
	DurationMS int64  `json:"duration_ms"`
}

// newAPI serves the agent's local status endpoints next to /metrics.
func newAPI(rt *app.Runtime, probe connectivity.Probe, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metrics)

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{
			Status:    rt.Driver.Status(),
			Reachable: probe.Reachable(),
			QueueLen:  rt.Queue.Len(),
			Running:   rt.Driver.Running(),
		})
	})

	mux.HandleFunc("GET /queue", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, rt.Queue.Actions())
	})

	mux.HandleFunc("POST /sync", func(w http.ResponseWriter, r *http.Request) {
		res := rt.Service.TriggerSync(r.Context())
		body := syncResponse{
			Deferred:   res.Deferred,
			Passes:     res.Passes,
			Attempted:  res.Last.Attempted,
			Applied:    res.Last.Applied,
			QueueLen:   rt.Queue.Len(),
			DurationMS: res.Last.Duration.Milliseconds(),
		}
		status := http.StatusOK
		if res.Deferred {
			status = http.StatusAccepted
		}
		if res.Last.Err != nil {
			body.Error = res.Last.Err.Error()
			if res.Last.Failed != nil {
				body.Failed = res.Last.Failed.String()
			}
			status = http.StatusBadGateway
		}
		writeJSON(w, status, body)
	})

	mux.HandleFunc("POST /ack", func(w http.ResponseWriter, r *http.Request) {
		rt.Driver.Acknowledge(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write JSON response", "error", err)
	}
}
