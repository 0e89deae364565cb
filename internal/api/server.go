// Package api exposes the scraping core over a JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/NovelGoat/internal/config"
	"github.com/IshaanNene/NovelGoat/internal/dashboard"
	"github.com/IshaanNene/NovelGoat/internal/export"
	"github.com/IshaanNene/NovelGoat/internal/observability"
	"github.com/IshaanNene/NovelGoat/internal/scraper"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// Scraper is the scraping core as seen by the API.
type Scraper interface {
	ScrapeNovel(ctx context.Context, rawURL string) (*types.Novel, error)
	FetchChapter(ctx context.Context, ch *types.Chapter) *types.Chapter
	FetchChapters(ctx context.Context, chapters []*types.Chapter, delay time.Duration, onProgress scraper.ProgressFunc) ([]*types.Chapter, error)
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

// Job states.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Job tracks a download: a batch fetch followed by an export.
type Job struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	URL        string     `json:"url"`
	Format     string     `json:"format"`
	From       int        `json:"from"`
	To         int        `json:"to,omitempty"`
	Title      string     `json:"title,omitempty"`
	Done       int        `json:"done"`
	Total      int        `json:"total"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	path string
}

func (j *Job) finished() bool {
	return j.Status == JobDone || j.Status == JobFailed
}

// Server provides a REST API over the scraper.
type Server struct {
	mux     *http.ServeMux
	port    int
	scraper Scraper
	covers  export.CoverSource
	metrics *observability.Metrics
	logger  *slog.Logger

	outputDir string
	maxJobs   int
	delay     time.Duration
	maxBatch  int

	// Job tracking
	jobs   map[string]*Job
	jobsMu sync.RWMutex
	wg     sync.WaitGroup

	// baseCtx parents job contexts; Start replaces it.
	baseCtx context.Context
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics counts requests on m and serves m's snapshot at /api/stats.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCovers embeds cover images from src in EPUB and PDF downloads.
func WithCovers(src export.CoverSource) Option {
	return func(s *Server) { s.covers = src }
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, sc Scraper, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		port:      cfg.API.Port,
		scraper:   sc,
		logger:    logger.With("component", "api_server"),
		outputDir: cfg.Export.OutputDir,
		maxJobs:   max(cfg.API.MaxJobs, 1),
		delay:     cfg.Scraper.ChapterDelay,
		maxBatch:  cfg.Scraper.MaxChaptersPerDownload,
		jobs:      make(map[string]*Job),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	return s
}

// Handler returns the API's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves the API until ctx is done. Running downloads are cancelled
// with ctx.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", srv.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.wg.Wait()
	return nil
}

// Wait blocks until all download jobs have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) registerRoutes() {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Scraping
	s.mux.HandleFunc("GET /api/novel", s.handleNovel)
	s.mux.HandleFunc("GET /api/chapter", s.handleChapter)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)

	// Downloads
	s.mux.HandleFunc("POST /api/downloads", s.handleCreateDownload)
	s.mux.HandleFunc("GET /api/downloads", s.handleListDownloads)
	s.mux.HandleFunc("GET /api/downloads/{id}", s.handleGetDownload)
	s.mux.HandleFunc("GET /api/downloads/{id}/file", s.handleDownloadFile)

	// Stats
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	// Dashboard
	var provider dashboard.StatsProvider
	if s.metrics != nil {
		provider = s.metrics
	}
	dashboard.NewDashboard(provider, s, s.logger).Register(s.mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleNovel(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordAPIRequest()
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.errorResponse(w, http.StatusBadRequest, "url is required")
		return
	}

	novel, err := s.scraper.ScrapeNovel(r.Context(), rawURL)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, novel)
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordAPIRequest()
	rawURL := r.URL.Query().Get("url")
	if err := config.ValidateURL(rawURL); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ch := s.scraper.FetchChapter(r.Context(), &types.Chapter{URL: rawURL, Title: types.PlaceholderTitle})
	if !ch.HasContent() {
		s.errorResponse(w, http.StatusBadGateway, "chapter content unavailable")
		return
	}
	s.jsonResponse(w, http.StatusOK, ch)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordAPIRequest()
	query := r.URL.Query().Get("q")
	if query == "" {
		s.errorResponse(w, http.StatusBadRequest, "q is required")
		return
	}

	results, err := s.scraper.Search(r.Context(), query)
	if err != nil {
		s.errorResponse(w, statusFor(err), err.Error())
		return
	}
	if results == nil {
		results = []types.SearchResult{}
	}
	s.jsonResponse(w, http.StatusOK, results)
}

func (s *Server) handleCreateDownload(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordAPIRequest()
	var body struct {
		URL    string `json:"url"`
		Format string `json:"format"`
		From   int    `json:"from"`
		To     int    `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := config.ValidateURL(body.URL); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Format == "" {
		body.Format = "txt"
	}
	if _, err := export.New(body.Format); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.From < 1 {
		body.From = 1
	}
	if body.To != 0 && body.To < body.From {
		s.errorResponse(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobPending,
		URL:       body.URL,
		Format:    body.Format,
		From:      body.From,
		To:        body.To,
		StartedAt: time.Now(),
	}

	s.jobsMu.Lock()
	if len(s.jobs) >= s.maxJobs {
		s.pruneLocked()
	}
	if len(s.jobs) >= s.maxJobs {
		s.jobsMu.Unlock()
		s.errorResponse(w, http.StatusTooManyRequests, "too many downloads in progress")
		return
	}
	s.jobs[job.ID] = job
	view := *job
	s.jobsMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job)
	}()

	s.jsonResponse(w, http.StatusAccepted, view)
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	s.jobsMu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, *j)
	}
	s.jobsMu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].StartedAt.Before(jobs[b].StartedAt)
	})
	s.jsonResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(r.PathValue("id"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "job not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(r.PathValue("id"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != JobDone {
		s.errorResponse(w, http.StatusConflict, "job is "+job.Status)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filepath.Base(job.path)))
	http.ServeFile(w, r, job.path)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "metrics not enabled")
		return
	}
	s.jsonResponse(w, http.StatusOK, s.metrics.Snapshot())
}

// JobCounts reports how many tracked jobs are in each state.
func (s *Server) JobCounts() map[string]int {
	counts := map[string]int{JobPending: 0, JobRunning: 0, JobDone: 0, JobFailed: 0}
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts
}

// job returns a copy of the job with the given ID.
func (s *Server) job(id string) (Job, bool) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (s *Server) update(job *Job, fn func(*Job)) {
	s.jobsMu.Lock()
	fn(job)
	s.jobsMu.Unlock()
}

func (s *Server) fail(job *Job, err error) {
	s.logger.Info("download failed", "job", job.ID, "url", job.URL, "error", err)
	now := time.Now()
	s.update(job, func(j *Job) {
		j.Status = JobFailed
		j.Error = err.Error()
		j.FinishedAt = &now
	})
}

// runJob scrapes the novel, fetches the requested range and writes the
// export into the job's own directory.
func (s *Server) runJob(job *Job) {
	ctx := s.baseCtx
	s.update(job, func(j *Job) { j.Status = JobRunning })

	novel, err := s.scraper.ScrapeNovel(ctx, job.URL)
	if err != nil {
		s.fail(job, err)
		return
	}

	last := len(novel.Chapters)
	if job.To > 0 {
		last = job.To
	}
	chapters := novel.Range(job.From-1, last-1)
	if s.maxBatch > 0 && len(chapters) > s.maxBatch {
		chapters = chapters[:s.maxBatch]
	}
	if len(chapters) == 0 {
		s.fail(job, fmt.Errorf("no chapters in range %d-%d (novel has %d)", job.From, last, len(novel.Chapters)))
		return
	}
	s.update(job, func(j *Job) {
		j.Title = novel.Title
		j.Total = len(chapters)
	})

	chapters, err = s.scraper.FetchChapters(ctx, chapters, s.delay, func(done, total int) {
		s.update(job, func(j *Job) { j.Done = done })
	})
	if err != nil {
		s.fail(job, err)
		return
	}

	cover := export.LoadCover(ctx, s.covers, job.Format, novel, s.logger)
	path, err := export.NewWriter(filepath.Join(s.outputDir, job.ID), s.logger).Write(job.Format, novel, chapters, export.WithCover(cover))
	if err != nil {
		s.fail(job, err)
		return
	}
	s.metrics.RecordExport()

	now := time.Now()
	s.update(job, func(j *Job) {
		j.Status = JobDone
		j.path = path
		j.FinishedAt = &now
	})
	s.logger.Info("download finished", "job", job.ID, "path", path)
}

// pruneLocked drops finished jobs and their files, oldest first, until
// there is room for one more. Callers hold jobsMu.
func (s *Server) pruneLocked() {
	var done []*Job
	for _, j := range s.jobs {
		if j.finished() {
			done = append(done, j)
		}
	}
	sort.Slice(done, func(a, b int) bool {
		return done[a].StartedAt.Before(done[b].StartedAt)
	})
	for _, j := range done {
		if len(s.jobs) < s.maxJobs {
			return
		}
		os.RemoveAll(filepath.Join(s.outputDir, j.ID))
		delete(s.jobs, j.ID)
	}
}

// statusFor maps scraper errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNoChapters):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	s.jsonResponse(w, status, map[string]string{"error": msg})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
