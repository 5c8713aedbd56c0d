package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/bridge"
	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/orchestrator"
	"github.com/unicc-ai/testbridge/internal/storage/sqlite"
	"github.com/unicc-ai/testbridge/internal/suite"
)

// RunStore is the persistence surface the handler needs. Nil disables
// history.
type RunStore interface {
	Save(ctx context.Context, resp *domain.RunResponse) error
	List(ctx context.Context, limit int) ([]sqlite.RunSummary, error)
	Get(ctx context.Context, runID string) (*domain.RunResponse, error)
}

// Handler carries the API dependencies.
type Handler struct {
	orch     *orchestrator.Orchestrator
	registry *adapter.Registry
	store    RunStore
	logger   *slog.Logger
}

// NewHandler creates the API handler. store may be nil.
func NewHandler(orch *orchestrator.Orchestrator, registry *adapter.Registry, store RunStore, logger *slog.Logger) *Handler {
	return &Handler{orch: orch, registry: registry, store: store, logger: logger}
}

// Routes mounts the API surface.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/agents", h.handleAgents)
		r.Get("/suites", h.handleSuites)
		r.Post("/run", h.handleRun(modeFromQuery))
		r.Post("/run/mock", h.handleRun(modeMock))
		r.Post("/run/real", h.handleRun(modeReal))
		r.Get("/runs", h.handleRunList)
		r.Get("/runs/{runID}", h.handleRunGet)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type agentInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (h *Handler) handleAgents(w http.ResponseWriter, r *http.Request) {
	resolver := h.registry.Resolver()
	names := resolver.Known()
	agents := make([]agentInfo, 0, len(names))
	for _, name := range names {
		cfg, err := resolver.Resolve(name)
		if err != nil {
			continue
		}
		agents = append(agents, agentInfo{Name: name, Type: cfg.Type})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (h *Handler) handleSuites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"suites": suite.ListIDs()})
}

// runMode selects how a run endpoint decides between mock and real
// execution.
type runMode int

const (
	// modeFromQuery consults the mock query parameter, defaulting to real.
	modeFromQuery runMode = iota
	// modeMock always runs mock, ignoring any query flag.
	modeMock
	// modeReal always runs real, ignoring any query flag.
	modeReal
)

func (h *Handler) handleRun(mode runMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mock := mode == modeMock
		if mode == modeFromQuery {
			if q := r.URL.Query().Get("mock"); q != "" {
				parsed, err := strconv.ParseBool(q)
				if err != nil {
					writeError(w, r, domain.ErrInvalidRequest("mock parameter %q is not a boolean", q))
					return
				}
				mock = parsed
			}
		}

		var req domain.RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.ErrInvalidRequest("request body is not valid JSON: %v", err))
			return
		}

		AddLogField(r.Context(), "agent", req.Agent)

		startedAt := time.Now()
		outcome, err := h.orch.Run(r.Context(), &req, mock)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp := bridge.Format(&req, outcome, startedAt, time.Now())

		h.persist(r, resp)
		writeJSON(w, http.StatusOK, resp)
	}
}

// persist saves the run when a store is configured. Persistence failures
// are logged, never surfaced to the caller.
func (h *Handler) persist(r *http.Request, resp *domain.RunResponse) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(r.Context(), resp); err != nil {
		h.logger.Warn("failed to persist run",
			slog.String("run_id", resp.RunID),
			slog.String("error", err.Error()),
		)
	}
}

func (h *Handler) handleRunList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []sqlite.RunSummary{}})
		return
	}

	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, r, domain.ErrInvalidRequest("limit parameter %q must be a positive integer", q))
			return
		}
		limit = n
	}

	runs, err := h.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []sqlite.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) handleRunGet(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if h.store == nil {
		writeErrorStatus(w, http.StatusNotFound, "not_found", "run history is disabled")
		return
	}

	resp, err := h.store.Get(r.Context(), runID)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeErrorStatus(w, http.StatusNotFound, "not_found", "run "+runID+" not found")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// errorBody is the structured error payload: a stable kind tag plus a
// human-readable message.
type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Name    string `json:"name,omitempty"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	status := http.StatusInternalServerError
	kind := "internal"
	name := ""
	if de := domain.AsError(err); de != nil {
		status = de.HTTPStatusCode()
		kind = string(de.Kind)
		name = de.Name
	}

	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = err.Error()
	body.Error.Name = name
	writeJSON(w, status, body)
}

func writeErrorStatus(w http.ResponseWriter, status int, kind, message string) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
