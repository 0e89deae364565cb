// Package dashboard serves a self-refreshing status page.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// StatsProvider provides counters; *observability.Metrics satisfies it.
type StatsProvider interface {
	Snapshot() map[string]int64
}

// JobCounter reports download jobs by status.
type JobCounter interface {
	JobCounts() map[string]int
}

// Dashboard serves the real-time web dashboard.
type Dashboard struct {
	provider StatsProvider
	jobs     JobCounter
	logger   *slog.Logger
}

// NewDashboard creates a new dashboard. jobs may be nil.
func NewDashboard(provider StatsProvider, jobs JobCounter, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		provider: provider,
		jobs:     jobs,
		logger:   logger.With("component", "dashboard"),
	}
}

// Register mounts the page at "/" and its data at /dashboard/stats.
func (d *Dashboard) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", d.handleDashboard)
	mux.HandleFunc("GET /dashboard/stats", d.handleStats)
}

func (d *Dashboard) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if d.provider != nil {
		for k, v := range d.provider.Snapshot() {
			stats[k] = v
		}
	}
	if d.jobs != nil {
		for status, n := range d.jobs.JobCounts() {
			stats["jobs_"+status] = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		d.logger.Debug("write stats failed", "error", err)
	}
}
