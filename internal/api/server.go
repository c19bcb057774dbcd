// Package api exposes the engine over HTTP: the invocation contract and
// the task management surface. Rendering belongs to external dashboards;
// everything here is JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"freshmart/internal/domain"
	"freshmart/internal/pricing"
	"freshmart/internal/runner"
	"freshmart/internal/schedule"
	"freshmart/internal/store"
)

// Invoker triggers one engine invocation.
type Invoker interface {
	Run(ctx context.Context, f domain.RunFilter) ([]runner.Outcome, error)
}

// TaskStore is the management slice of the store the API needs.
type TaskStore interface {
	CreateTask(ctx context.Context, t domain.Task) (string, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	SetTaskEnabled(ctx context.Context, id string, enabled bool) error
	ListRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error)
}

// Catalog serves the storefront price preview.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

const defaultHistoryLimit = 20

type Server struct {
	r        *chi.Mux
	tasks    TaskStore
	catalog  Catalog
	invoker  Invoker
	registry *runner.Registry
	now      func() time.Time
}

func NewServer(tasks TaskStore, catalog Catalog, invoker Invoker, registry *runner.Registry) http.Handler {
	return NewServerWithDebug(tasks, catalog, invoker, registry, false)
}

func NewServerWithDebug(tasks TaskStore, catalog Catalog, invoker Invoker, registry *runner.Registry, enableDebug bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, tasks: tasks, catalog: catalog, invoker: invoker, registry: registry, now: time.Now}

	r.Get("/health", s.health)
	r.Get("/metrics", s.metrics)

	r.Post("/api/runner/run", s.runTasks)
	r.Post("/api/tasks", s.createTask)
	r.Get("/api/tasks", s.listTasks)
	r.Get("/api/tasks/{id}", s.getTask)
	r.Patch("/api/tasks/{id}", s.patchTask)
	r.Post("/api/tasks/{id}/run", s.runTask)
	r.Get("/api/tasks/{id}/history", s.taskHistory)
	r.Get("/api/products/{id}/price-preview", s.pricePreview)

	if enableDebug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("freshmart_up 1\n"))
}

type runResp struct {
	Results []runner.Outcome `json:"results"`
}

type errResp struct {
	Error string `json:"error"`
}

// runTasks is the invocation contract: optional {task_id, task_type}
// body, 200 with per-task results, 500 only when selecting due tasks
// fails.
func (s *Server) runTasks(w http.ResponseWriter, r *http.Request) {
	var f domain.RunFilter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), 400)
		return
	}
	s.invoke(w, r, f)
}

// runTask is the manual-run management action, equivalent to invoking
// with that task's id. It still honors due+enabled selection.
func (s *Server) runTask(w http.ResponseWriter, r *http.Request) {
	s.invoke(w, r, domain.RunFilter{TaskID: chi.URLParam(r, "id")})
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request, f domain.RunFilter) {
	results, err := s.invoker.Run(r.Context(), f)
	if err != nil {
		writeJSON(w, 500, errResp{Error: err.Error()})
		return
	}
	if results == nil {
		results = []runner.Outcome{}
	}
	writeJSON(w, 200, runResp{Results: results})
}

type createTaskReq struct {
	Name       string        `json:"name"`
	TaskType   string        `json:"task_type"`
	Schedule   string        `json:"schedule"`
	Enabled    *bool         `json:"enabled"`
	Parameters domain.Params `json:"parameters"`
}

type createTaskResp struct {
	ID      string    `json:"id"`
	NextRun time.Time `json:"next_run"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if err := schedule.Validate(req.Schedule); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	// Fail fast on misconfiguration: the task type must have a handler
	// and the parameters must satisfy its schema before anything is
	// persisted.
	h, err := s.registry.Resolve(domain.TaskType(req.TaskType))
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := h.ValidateParams(req.Parameters); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	nextRun, err := schedule.NextRunFrom(s.now(), req.Schedule)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	id, err := s.tasks.CreateTask(r.Context(), domain.Task{
		Name:       req.Name,
		Type:       domain.TaskType(req.TaskType),
		Schedule:   req.Schedule,
		NextRun:    nextRun,
		Enabled:    enabled,
		Parameters: req.Parameters,
	})
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, createTaskResp{ID: id, NextRun: nextRun})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := 500
		if errors.Is(err, store.ErrNotFound) {
			status = 404
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, 200, t)
}

type patchTaskReq struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	var req patchTaskReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Enabled == nil {
		http.Error(w, "enabled is required", 400)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.tasks.SetTaskEnabled(r.Context(), id, *req.Enabled); err != nil {
		status := 500
		if errors.Is(err, store.ErrNotFound) {
			status = 404
		}
		http.Error(w, err.Error(), status)
		return
	}
	t, err := s.tasks.GetTask(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) taskHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", 400)
			return
		}
		limit = n
	}
	runs, err := s.tasks.ListRuns(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if runs == nil {
		runs = []domain.TaskRun{}
	}
	writeJSON(w, 200, runs)
}

type pricePreviewResp struct {
	ProductID    string     `json:"product_id"`
	CurrentPrice string     `json:"current_price"`
	PreviewPrice string     `json:"preview_price"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
}

// pricePreview returns what the batch engine would charge right now. The
// storefront preview and the batch job share one pricing formula.
func (s *Server) pricePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := 500
		if errors.Is(err, store.ErrNotFound) {
			status = 404
		}
		http.Error(w, err.Error(), status)
		return
	}
	preview := pricing.Price(p.OriginalPrice, p.Price, p.ExpiryDate, s.now())
	writeJSON(w, 200, pricePreviewResp{
		ProductID:    p.ID,
		CurrentPrice: p.Price.StringFixed(2),
		PreviewPrice: preview.StringFixed(2),
		ExpiryDate:   p.ExpiryDate,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
