package dashboard

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type staticStats map[string]int64

func (s staticStats) Snapshot() map[string]int64 { return s }

type staticJobs map[string]int

func (j staticJobs) JobCounts() map[string]int { return j }

func newMux(provider StatsProvider, jobs JobCounter) *http.ServeMux {
	mux := http.NewServeMux()
	NewDashboard(provider, jobs, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(mux)
	return mux
}

func TestPage(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/dashboard/stats") {
		t.Error("page does not poll the stats endpoint")
	}

	rec = httptest.NewRecorder()
	newMux(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	mux := newMux(staticStats{"novels_scraped": 4}, staticJobs{"running": 2})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))

	var stats map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats["novels_scraped"] != float64(4) || stats["jobs_running"] != float64(2) {
		t.Errorf("stats = %v", stats)
	}
	if _, ok := stats["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestStatsWithoutProviders(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
