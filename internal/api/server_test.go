package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/NovelGoat/internal/config"
	"github.com/IshaanNene/NovelGoat/internal/observability"
	"github.com/IshaanNene/NovelGoat/internal/scraper"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

const novelURL = "https://example.com/novel/tale"

type fakeScraper struct {
	novels   map[string]*types.Novel
	contents map[string]string
	results  []types.SearchResult
	// block, when set, holds FetchChapters until closed.
	block chan struct{}
}

func (f *fakeScraper) ScrapeNovel(_ context.Context, rawURL string) (*types.Novel, error) {
	if err := config.ValidateURL(rawURL); err != nil {
		return nil, types.ErrInvalidURL
	}
	n, ok := f.novels[rawURL]
	if !ok {
		return nil, types.ErrNoChapters
	}
	cp := *n
	cp.Chapters = make([]*types.Chapter, len(n.Chapters))
	for i, ch := range n.Chapters {
		c := *ch
		cp.Chapters[i] = &c
	}
	return &cp, nil
}

func (f *fakeScraper) FetchChapter(_ context.Context, ch *types.Chapter) *types.Chapter {
	ch.Content = f.contents[ch.URL]
	return ch
}

func (f *fakeScraper) FetchChapters(ctx context.Context, chapters []*types.Chapter, _ time.Duration, onProgress scraper.ProgressFunc) ([]*types.Chapter, error) {
	if f.block != nil {
		<-f.block
	}
	for i, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return chapters, err
		}
		f.FetchChapter(ctx, ch)
		if onProgress != nil {
			onProgress(i+1, len(chapters))
		}
	}
	return chapters, nil
}

func (f *fakeScraper) Search(_ context.Context, _ string) ([]types.SearchResult, error) {
	return f.results, nil
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{
		novels: map[string]*types.Novel{
			novelURL: {
				Title: "Tale of Ashes",
				URL:   novelURL,
				Chapters: []*types.Chapter{
					{Index: 0, Title: "Awakening", URL: novelURL + "/chapter-1"},
					{Index: 1, Title: "Storm", URL: novelURL + "/chapter-2"},
					{Index: 2, Title: "Ashes", URL: novelURL + "/chapter-3"},
				},
			},
		},
		contents: map[string]string{
			novelURL + "/chapter-1": "It began at dawn.",
			novelURL + "/chapter-2": "Rain fell all night.",
			novelURL + "/chapter-3": "Only ashes remained.",
		},
		results: []types.SearchResult{{Title: "Tale of Ashes", URL: novelURL, Source: "novelpub"}},
	}
}

func newTestServer(t *testing.T, sc *fakeScraper, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Export.OutputDir = t.TempDir()
	cfg.Scraper.ChapterDelay = 0
	if mutate != nil {
		mutate(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(cfg, sc, logger, WithMetrics(observability.NewMetrics(logger)))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Wait()
	})
	return s, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postDownload(t *testing.T, ts *httptest.Server, body string) (int, Job) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/downloads", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var job Job
	json.NewDecoder(resp.Body).Decode(&job)
	return resp.StatusCode, job
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, newFakeScraper(), nil)
	var body map[string]string
	if code := getJSON(t, ts.URL+"/api/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" || body["version"] != config.Version {
		t.Errorf("body = %v", body)
	}
}

func TestNovel(t *testing.T) {
	_, ts := newTestServer(t, newFakeScraper(), nil)

	var novel types.Novel
	if code := getJSON(t, ts.URL+"/api/novel?url="+novelURL, &novel); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if novel.Title != "Tale of Ashes" || len(novel.Chapters) != 3 {
		t.Errorf("novel = %+v", novel)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusBadRequest},
		{"?url=ftp://example.com/x", http.StatusBadRequest},
		{"?url=https://example.com/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		if code := getJSON(t, ts.URL+"/api/novel"+tt.query, nil); code != tt.want {
			t.Errorf("GET /api/novel%s = %d, want %d", tt.query, code, tt.want)
		}
	}
}

func TestChapter(t *testing.T) {
	_, ts := newTestServer(t, newFakeScraper(), nil)

	var ch types.Chapter
	if code := getJSON(t, ts.URL+"/api/chapter?url="+novelURL+"/chapter-2", &ch); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if ch.Content != "Rain fell all night." {
		t.Errorf("content = %q", ch.Content)
	}

	if code := getJSON(t, ts.URL+"/api/chapter?url=notaurl", nil); code != http.StatusBadRequest {
		t.Errorf("invalid url status = %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/chapter?url="+novelURL+"/chapter-9", nil); code != http.StatusBadGateway {
		t.Errorf("missing content status = %d", code)
	}
}

func TestSearch(t *testing.T) {
	sc := newFakeScraper()
	_, ts := newTestServer(t, sc, nil)

	var results []types.SearchResult
	if code := getJSON(t, ts.URL+"/api/search?q=tale", &results); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(results) != 1 || results[0].URL != novelURL {
		t.Errorf("results = %+v", results)
	}

	if code := getJSON(t, ts.URL+"/api/search", nil); code != http.StatusBadRequest {
		t.Errorf("missing q status = %d", code)
	}

	sc.results = nil
	var empty []types.SearchResult
	getJSON(t, ts.URL+"/api/search?q=none", &empty)
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected an empty JSON array, got %v", empty)
	}
}

func TestDownloadJob(t *testing.T) {
	s, ts := newTestServer(t, newFakeScraper(), nil)

	code, job := postDownload(t, ts, `{"url":"`+novelURL+`","format":"txt","from":2}`)
	if code != http.StatusAccepted || job.ID == "" {
		t.Fatalf("create = %d %+v", code, job)
	}
	s.Wait()

	var got Job
	if code := getJSON(t, ts.URL+"/api/downloads/"+job.ID, &got); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if got.Status != JobDone || got.Done != 2 || got.Total != 2 || got.Title != "Tale of Ashes" {
		t.Errorf("job = %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not set")
	}

	resp, err := http.Get(ts.URL + "/api/downloads/" + job.ID + "/file")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("file status = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "Tale_of_Ashes_ch2-3.txt") {
		t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	if !strings.Contains(string(data), "Rain fell all night.") || strings.Contains(string(data), "It began at dawn.") {
		t.Errorf("unexpected file body:\n%s", data)
	}

	var jobs []Job
	getJSON(t, ts.URL+"/api/downloads", &jobs)
	if len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}
}

func TestDownloadJobFailures(t *testing.T) {
	s, ts := newTestServer(t, newFakeScraper(), nil)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"bad url", `{"url":"nope"}`},
		{"bad format", `{"url":"` + novelURL + `","format":"docx"}`},
		{"reversed range", `{"url":"` + novelURL + `","from":3,"to":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := postDownload(t, ts, tt.body); code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
		})
	}

	_, job := postDownload(t, ts, `{"url":"`+novelURL+`","from":10}`)
	s.Wait()
	var got Job
	getJSON(t, ts.URL+"/api/downloads/"+job.ID, &got)
	if got.Status != JobFailed || !strings.Contains(got.Error, "no chapters in range") {
		t.Errorf("job = %+v", got)
	}
	if code := getJSON(t, ts.URL+"/api/downloads/"+job.ID+"/file", nil); code != http.StatusConflict {
		t.Errorf("file of failed job status = %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/downloads/missing", nil); code != http.StatusNotFound {
		t.Errorf("missing job status = %d", code)
	}
}

func TestDownloadJobLimit(t *testing.T) {
	sc := newFakeScraper()
	sc.block = make(chan struct{})
	s, ts := newTestServer(t, sc, func(cfg *config.Config) { cfg.API.MaxJobs = 1 })

	body := `{"url":"` + novelURL + `"}`
	if code, _ := postDownload(t, ts, body); code != http.StatusAccepted {
		t.Fatalf("first job status = %d", code)
	}
	if code, _ := postDownload(t, ts, body); code != http.StatusTooManyRequests {
		t.Errorf("second job status = %d, want 429", code)
	}

	close(sc.block)
	s.Wait()

	// Finished jobs are pruned to make room.
	if code, _ := postDownload(t, ts, body); code != http.StatusAccepted {
		t.Errorf("job after prune status = %d", code)
	}
}

func TestStats(t *testing.T) {
	_, ts := newTestServer(t, newFakeScraper(), nil)
	getJSON(t, ts.URL+"/api/search?q=x", nil)

	var snap map[string]int64
	if code := getJSON(t, ts.URL+"/api/stats", &snap); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if snap["api_requests"] != 1 {
		t.Errorf("api_requests = %d", snap["api_requests"])
	}
}

func TestDashboard(t *testing.T) {
	s, ts := newTestServer(t, newFakeScraper(), nil)
	postDownload(t, ts, `{"url":"`+novelURL+`"}`)
	s.Wait()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("dashboard = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	var stats map[string]any
	if code := getJSON(t, ts.URL+"/dashboard/stats", &stats); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if stats["jobs_done"] != float64(1) || stats["jobs_running"] != float64(0) {
		t.Errorf("job counts = %v / %v", stats["jobs_done"], stats["jobs_running"])
	}
	if stats["exports"] != float64(1) {
		t.Errorf("exports = %v", stats["exports"])
	}
}
