package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/protolambda/muskoka-client/internal/logger"
	"github.com/protolambda/muskoka-client/internal/monitoring"
	"github.com/protolambda/muskoka-client/internal/storage"
	"github.com/protolambda/muskoka-client/internal/task"
	"github.com/protolambda/muskoka-client/pkg/client"
)

//go:embed templates/*.html
var templateFS embed.FS

// Uploader submits new transitions to the API
type Uploader interface {
	Upload(ctx context.Context, req client.UploadRequest) (string, error)
}

// HealthChecker is implemented by backends the dashboard depends on
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server provides the web dashboard for browsing transition tasks
type Server struct {
	source   storage.Source
	uploader Uploader
	cache    HealthChecker
	inputs   client.Inputs
	metrics  *monitoring.Metrics
	addr     string
	pageSize int
	log      *logger.Logger

	pages map[string]*template.Template

	serverMu sync.Mutex
	server   *http.Server
}

// Config holds server configuration
type Config struct {
	Addr     string // e.g., ":8000"
	Source   storage.Source
	Uploader Uploader
	Cache    HealthChecker // optional
	Inputs   client.Inputs
	Metrics  *monitoring.Metrics
	PageSize int
}

// NewServer creates a new dashboard server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("task source is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewMetrics()
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	return &Server{
		source:   cfg.Source,
		uploader: cfg.Uploader,
		cache:    cfg.Cache,
		inputs:   cfg.Inputs,
		metrics:  cfg.Metrics,
		addr:     cfg.Addr,
		pageSize: cfg.PageSize,
		log:      logger.ForComponent("dashboard"),
		pages:    pages,
	}, nil
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"listing", "task", "new", "error"} {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// Handler returns the dashboard routes wrapped in middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", s.handleListingPage)
	mux.HandleFunc("GET /task/{key}", s.handleTaskPage)
	mux.HandleFunc("GET /new", s.handleNewPage)
	mux.HandleFunc("POST /new", s.handleUpload)

	// API endpoints
	mux.HandleFunc("GET /api/listing", s.handleListing)
	mux.HandleFunc("GET /api/task/{key}", s.handleTask)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withRequestID(s.withLogging(s.withCORS(mux)))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.serverMu.Lock()
	s.server = server
	s.serverMu.Unlock()

	s.log.Info("starting dashboard", logger.Fields{"addr": s.addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.serverMu.Lock()
	server := s.server
	s.serverMu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// TaskView is a task as served to dashboard clients, with its results
// grouped by post-state hash
type TaskView struct {
	task.Task
	Groups    []task.ResultGroup `json:"groups"`
	HasFail   bool               `json:"has-fail"`
	Consensus bool               `json:"consensus"`
	Inputs    InputsView         `json:"inputs"`
}

// InputsView lists the blob storage URLs of a task's inputs
type InputsView struct {
	PreState string   `json:"pre-state"`
	Blocks   []string `json:"blocks"`
}

func (s *Server) view(t *task.Task) TaskView {
	groups := t.Groups()
	s.metrics.RecordGroups(len(groups))
	return TaskView{
		Task:      *t,
		Groups:    groups,
		HasFail:   t.HasFailure(),
		Consensus: t.Consensus(),
		Inputs: InputsView{
			PreState: s.inputs.PreState(t),
			Blocks:   s.inputs.Blocks(t),
		},
	}
}

// ListingView is one page of the listing
type ListingView struct {
	Tasks []TaskView `json:"tasks"`
	Total int        `json:"total"`

	// Cursors for the neighbouring pages, empty at the ends
	NextAfter  string `json:"next-after,omitempty"`
	PrevBefore string `json:"prev-before,omitempty"`
}

func (s *Server) listing(ctx context.Context, q client.ListingQuery) (ListingView, error) {
	tasks, err := s.source.QueryListing(ctx, q)
	if err != nil {
		return ListingView{}, err
	}

	more := len(tasks) > s.pageSize
	if more {
		tasks = tasks[:s.pageSize]
	}
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, s.view(&tasks[i]))
	}

	lv := ListingView{Tasks: views, Total: len(views)}
	if len(views) > 0 {
		if more || q.Before != "" {
			lv.NextAfter = views[len(views)-1].Key
		}
		if q.After != "" {
			lv.PrevBefore = views[0].Key
		}
	}
	return lv, nil
}

// handleListing returns a page of tasks as JSON
func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	q := client.ParseListingQuery(r.URL.Query())
	lv, err := s.listing(r.Context(), q)
	if err != nil {
		s.writeJSONError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lv)
}

// handleTask returns a single task with grouped results as JSON
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	t, err := s.source.QueryTask(r.Context(), key)
	if err != nil {
		s.writeJSONError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(t))
}

// MetricsResponse is the JSON form of a metrics snapshot
type MetricsResponse struct {
	Timestamp      string             `json:"timestamp"`
	Uptime         string             `json:"uptime"`
	Endpoints      []EndpointResponse `json:"endpoints"`
	CacheHits      int64              `json:"cacheHits"`
	CacheMisses    int64              `json:"cacheMisses"`
	CacheErrors    int64              `json:"cacheErrors"`
	CacheHitRate   float64            `json:"cacheHitRate"`
	GroupsComputed int64              `json:"groupsComputed"`
}

// EndpointResponse is the JSON form of one endpoint's call metrics
type EndpointResponse struct {
	Endpoint   string `json:"endpoint"`
	Calls      int64  `json:"calls"`
	Failures   int64  `json:"failures"`
	AvgLatency string `json:"avgLatency"`
	P95Latency string `json:"p95Latency"`
	P99Latency string `json:"p99Latency"`
	LastError  string `json:"lastError,omitempty"`
}

// handleMetrics returns current metrics as JSON
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := s.metrics.Snapshot()

	endpoints := make([]EndpointResponse, 0, len(snapshot.Endpoints))
	for _, e := range snapshot.Endpoints {
		endpoints = append(endpoints, EndpointResponse{
			Endpoint:   e.Endpoint,
			Calls:      e.Calls,
			Failures:   e.Failures,
			AvgLatency: e.AvgLatency.Round(time.Millisecond).String(),
			P95Latency: e.P95Latency.Round(time.Millisecond).String(),
			P99Latency: e.P99Latency.Round(time.Millisecond).String(),
			LastError:  e.LastError,
		})
	}

	s.writeJSON(w, http.StatusOK, MetricsResponse{
		Timestamp:      snapshot.LastUpdated.Format(time.RFC3339),
		Uptime:         snapshot.Uptime.Round(time.Second).String(),
		Endpoints:      endpoints,
		CacheHits:      snapshot.CacheHits,
		CacheMisses:    snapshot.CacheMisses,
		CacheErrors:    snapshot.CacheErrors,
		CacheHitRate:   snapshot.CacheHitRate,
		GroupsComputed: snapshot.GroupsComputed,
	})
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	status := http.StatusOK

	// Check cache health
	if s.cache != nil {
		if err := s.cache.Health(r.Context()); err != nil {
			health["status"] = "unhealthy"
			health["cache_error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, status, health)
}

// statusFor maps source errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		// the API failed or sent something undecodable
		return http.StatusBadGateway
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", logger.Fields{"error": err})
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.log.Warn("request failed", logger.Fields{
		"path":       r.URL.Path,
		"status":     status,
		"error":      err,
		"request_id": requestID(r.Context()),
	})
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Middleware: withRequestID tags every request with an X-Request-Id
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// Middleware: withLogging logs all HTTP requests
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", logger.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
			"request_id": requestID(r.Context()),
		})
	})
}

// Middleware: withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
